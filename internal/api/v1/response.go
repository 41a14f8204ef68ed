package v1

// Response is the envelope wrapping every API payload.
type Response struct {
	Success bool          `json:"success"`
	Data    interface{}   `json:"data,omitempty"`
	Message string        `json:"message,omitempty"`
	Error   *ErrorDetails `json:"error,omitempty"`
}

// ErrorDetails carries the machine-readable error code and a human message.
type ErrorDetails struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK wraps data in a successful envelope.
func OK(data interface{}) Response {
	return Response{Success: true, Data: data}
}

// OKMessage wraps data with an informational message.
func OKMessage(data interface{}, message string) Response {
	return Response{Success: true, Data: data, Message: message}
}

// Error builds an error envelope.
func Error(code, message string) Response {
	return Response{Success: false, Error: &ErrorDetails{Code: code, Message: message}}
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// EventPage is the payload for paginated event listings.
type EventPage struct {
	Events     []*Event   `json:"events"`
	Pagination Pagination `json:"pagination"`
}
