package dashboard

import "fmt"

// Dialog texts shown through View.Alert.
const (
	MsgNetworkError   = "Network or server error occurred"
	MsgEditIncomplete = "Please fill in URL, viewport (width,height), interval and wait time."
)

// ValidationError reports a form field that could not be used. No request is
// sent when it is returned.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// RequestError is returned when a request got no usable answer: it failed in
// transport (StatusCode 0) or the server answered with a non-success status.
type RequestError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }

// DismissKind classifies how a dismissal failed.
type DismissKind string

const (
	// DismissTransport: the request never completed.
	DismissTransport DismissKind = "transport"
	// DismissStatus: the server answered with a non-success status.
	DismissStatus DismissKind = "status"
	// DismissBody: a success status with a body that is not JSON.
	DismissBody DismissKind = "body"
	// DismissRejected: valid JSON whose status is not "dismissed".
	DismissRejected DismissKind = "rejected"
)

// DismissError is returned by Controller.DismissAlert.
type DismissError struct {
	Site       string
	Kind       DismissKind
	StatusCode int
	Message    string
	Err        error
}

func (e *DismissError) Error() string {
	switch e.Kind {
	case DismissTransport, DismissBody:
		return fmt.Sprintf("dismiss %s: %s: %v", e.Site, e.Kind, e.Err)
	case DismissStatus:
		return fmt.Sprintf("dismiss %s: HTTP %d: %s", e.Site, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("dismiss %s: rejected: %s", e.Site, e.Message)
	}
}

func (e *DismissError) Unwrap() error { return e.Err }
