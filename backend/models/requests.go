package models

import "encoding/json"

// AllocateRequest is the body of POST /extract. Count stays raw so a
// non-integer can be reported as INVALID_COUNT rather than a decode error.
type AllocateRequest struct {
	Count     json.RawMessage `json:"count"`
	Consumer  string          `json:"consumer"`
	Extractor string          `json:"extractor"`
}

// ConsumerName prefers consumer and falls back to the legacy extractor field.
func (r *AllocateRequest) ConsumerName() string {
	if r.Consumer != "" {
		return r.Consumer
	}
	return r.Extractor
}
