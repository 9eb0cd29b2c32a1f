package client

import "fmt"

// TransportError is returned when the prediction service could not be reached
// or the exchange broke before a response arrived.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResponseError is returned when the service answered with a non-2xx status or
// with a body that is not a usable prediction. ServerMessage holds the body's
// "error" string when there was one.
type ResponseError struct {
	StatusCode    int
	ServerMessage string
	Reason        string
}

func (e *ResponseError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}
