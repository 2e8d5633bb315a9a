package models

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewErrorResponse builds an ErrorResponse, attaching err's text as details when non-nil
func NewErrorResponse(msg string, err error) ErrorResponse {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	return resp
}
