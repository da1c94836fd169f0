package tools

// Status reports whether a tool invocation succeeded.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Error codes returned inside failed results. The model reads these to
// decide whether to retry, rephrase or give up.
const (
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeNetwork      = "network"
	ErrCodeNotFound     = "not_found"
	ErrCodeGeneration   = "generation"
	ErrCodeStorage      = "storage"
	ErrCodeUnauthorized = "unauthorized"
)

// Error is a structured failure the model can understand and correct.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the uniform output shape of every tool. Failures are carried
// in Error with Status set to StatusError; the handler still returns a
// nil Go error so the generation loop is never aborted by a tool.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Error   *Error         `json:"error,omitempty"`
}

func errorResult(code, message string) Result {
	return Result{
		Status:  StatusError,
		Message: message,
		Error:   &Error{Code: code, Message: message},
	}
}
