package handler

import (
	apperrors "github.com/servicehq/platform-api/pkg/errors"
)

type Response struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`

	// Error is user-facing text only. Programmatic callers branch on the
	// HTTP status and Code, never on this string.
	Error   string                 `json:"error,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(code, message string) *Response {
	return &Response{
		Status: "error",
		Code:   code,
		Error:  message,
	}
}

// NewAppErrorResponse converts an AppError, carrying its details payload
// (required_tier, current/limit) through to the client.
func NewAppErrorResponse(err *apperrors.AppError) *Response {
	return &Response{
		Status:  "error",
		Code:    err.Kind(),
		Error:   err.Message,
		Details: err.Details,
	}
}
