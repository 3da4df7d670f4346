package runner

import (
	"errors"

	"github.com/abdul-hamid-achik/hitprobe/packages/http"
)

var (
	// ErrCancelled marks scenarios interrupted by cancellation of the run.
	ErrCancelled = errors.New("cancelled")
	// ErrAborted marks scenarios that never started because fail-fast
	// stopped the run.
	ErrAborted = errors.New("aborted after first failure")
)

type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindTransport ErrorKind = "transport"
	KindTimeout   ErrorKind = "timeout"
	KindProtocol  ErrorKind = "protocol"
	KindAssertion ErrorKind = "assertion"
	KindCancelled ErrorKind = "cancelled"
	KindAborted   ErrorKind = "aborted"
)

// Classify maps an attempt error to its kind. Errors returned by custom
// assertion functions count as assertion failures.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrAborted) {
		return KindAborted
	}
	if errors.Is(err, ErrCancelled) {
		return KindCancelled
	}

	var transportErr *http.TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Timeout() {
			return KindTimeout
		}
		return KindTransport
	}

	var protocolErr *http.ProtocolError
	if errors.As(err, &protocolErr) {
		return KindProtocol
	}
	return KindAssertion
}
