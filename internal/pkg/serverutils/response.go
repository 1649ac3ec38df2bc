package serverutils

// ErrorBody matches the error shape the frontend expects.
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func ErrorResponse(message string, details ...string) ErrorBody {
	body := ErrorBody{Error: message}
	if len(details) > 0 {
		body.Details = details[0]
	}
	return body
}
