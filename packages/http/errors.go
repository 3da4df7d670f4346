package http

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError reports a request that produced no usable response:
// connection refused, DNS failure, timeout, cancellation or a broken body.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	switch {
	case e.Timeout():
		return fmt.Sprintf("%s %s: timed out: %v", e.Method, e.URL, e.Err)
	case e.Cancelled():
		return fmt.Sprintf("%s %s: cancelled: %v", e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request hit its deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Cancelled reports whether the request was aborted by its caller.
func (e *TransportError) Cancelled() bool {
	return errors.Is(e.Err, context.Canceled)
}

// ProtocolError reports a response that arrived but could not be understood,
// such as a body declared as JSON that does not parse.
type ProtocolError struct {
	Method string
	URL    string
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Reason)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
