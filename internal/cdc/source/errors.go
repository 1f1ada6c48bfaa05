package source

import "errors"

// ErrCancelled is the benign error class a fetch observes when the
// session's own forced cancellation tears the stream down. Adapters
// either return it directly or wrap it into errors whose Is matches it.
// The consumer loop recovers from this class by restarting the session
// from its last offsets; every other stream error is fatal.
var ErrCancelled = errors.New("source: stream cancelled by session")

// IsCancellation reports whether err belongs to the self-inflicted
// cancellation class.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// coder is implemented by adapter errors that carry a server error code.
type coder interface {
	ServerCode() uint16
}

// Code extracts the server-side error code from err, when the adapter
// surfaced one. Client-side failures carry code 0 and report absence.
// Callers use it for source-specific dispatch, such as the not-sharded
// probe during partition discovery.
func Code(err error) (uint16, bool) {
	var c coder
	if errors.As(err, &c) {
		if code := c.ServerCode(); code != 0 {
			return code, true
		}
	}
	return 0, false
}
