package utils

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ellavondegurechaff/vmq/internal/domain/accounts"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "integer", raw: `3`, want: 3},
		{name: "zero parses, service rejects", raw: `0`, want: 0},
		{name: "negative parses, service rejects", raw: `-2`, want: -2},
		{name: "padded", raw: "  7 ", want: 7},
		{name: "missing", raw: ``, wantErr: true},
		{name: "null", raw: `null`, wantErr: true},
		{name: "string", raw: `"3"`, wantErr: true},
		{name: "fraction", raw: `1.5`, wantErr: true},
		{name: "float form of integer", raw: `2.0`, wantErr: true},
		{name: "exponent", raw: `1e3`, wantErr: true},
		{name: "bool", raw: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCount(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.True(t, errors.Is(err, accounts.ErrInvalidCount))
				assert.True(t, accounts.IsValidation(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTokenList(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []string
		wantErr bool
	}{
		{name: "strings", body: `["a"," a ","b"]`, want: []string{"a", " a ", "b"}},
		{name: "empty list", body: `[]`, want: []string{}},
		{name: "object", body: `{"accounts":["a"]}`, wantErr: true},
		{name: "number element", body: `["a", 1]`, wantErr: true},
		{name: "null element", body: `["a", null, "b"]`, wantErr: true},
		{name: "null body", body: `null`, wantErr: true},
		{name: "scalar string", body: `"a"`, wantErr: true},
		{name: "blank", body: ``, wantErr: true},
		{name: "broken json", body: `["a"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTokenList([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotStringList)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
