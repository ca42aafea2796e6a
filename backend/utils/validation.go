package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
)

var ErrNotStringList = errors.New("body must be a JSON array of strings")

// ParseCount accepts only a JSON integer. Strings, fractions, exponents,
// booleans and null are rejected as ErrInvalidCount.
func ParseCount(raw json.RawMessage) (int, error) {
	invalid := &accounts.ValidationError{Field: "count", Err: accounts.ErrInvalidCount}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, invalid
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, invalid
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, invalid
	}
	n, err := strconv.Atoi(num.String())
	if err != nil {
		return 0, invalid
	}
	return n, nil
}

// ParseTokenList decodes an Add body. Any element that is not a string,
// null included, fails the whole batch.
func ParseTokenList(body []byte) ([]string, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return nil, ErrNotStringList
	}

	var elems []*string
	if err := json.Unmarshal(body, &elems); err != nil {
		return nil, ErrNotStringList
	}

	tokens := make([]string, 0, len(elems))
	for _, e := range elems {
		if e == nil {
			return nil, ErrNotStringList
		}
		tokens = append(tokens, *e)
	}
	return tokens, nil
}
