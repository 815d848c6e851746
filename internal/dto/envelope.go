package dto

import "encoding/json"

// Envelope is the response wrapper used by every upstream endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
	Errors  []FieldError    `json:"errors,omitempty"`
}

// ErrorBody is the general failure shape.
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// FieldError is one field-scoped validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Failed reports whether the envelope describes a failure.
func (e Envelope) Failed() bool {
	return !e.Success || e.Error != nil || len(e.Errors) > 0
}
