package transport

import "encoding/json"

// Envelope is the standard API response wrapper used for both success
// and error payloads.
type Envelope struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Data   any    `json:"data,omitempty"`
	Error  any    `json:"error,omitempty"`
	Meta   any    `json:"meta,omitempty"`
}

// ListMeta annotates collection responses.
type ListMeta struct {
	Count int `json:"count"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data any, meta any) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewList returns a success envelope for a collection with its count.
func NewList(data any, count int) Envelope {
	return NewSuccess(data, ListMeta{Count: count})
}

// NewError returns an error envelope with optional metadata.
func NewError(code string, err any, meta any) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String returns the JSON representation (best-effort) for logging.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}
