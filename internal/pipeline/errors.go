package pipeline

import "errors"

// Error kinds. Stage errors wrap one of these so callers can use errors.Is.
var (
	// ErrTransport covers network or protocol failures while fetching from the
	// source API or moving an object.
	ErrTransport = errors.New("transport error")
	// ErrDataFormat is returned when a payload does not have the expected shape.
	ErrDataFormat = errors.New("data format error")
	// ErrResource covers setting up the bucket or the database, the local
	// filesystem, and a missing staged object.
	ErrResource = errors.New("resource error")
	// ErrVerificationFailed is returned by the probe when the round-tripped
	// payload differs from what was written.
	ErrVerificationFailed = errors.New("verification failed")
)

// ErrorKind names the kind of err for reports and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrDataFormat):
		return "data_format"
	case errors.Is(err, ErrResource):
		return "resource"
	case errors.Is(err, ErrVerificationFailed):
		return "verification"
	default:
		return "unknown"
	}
}
