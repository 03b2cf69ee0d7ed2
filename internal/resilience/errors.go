package resilience

import "errors"

// ErrCircuitOpen is returned without touching the dependency while its
// circuit is open.
var ErrCircuitOpen = errors.New("circuit open")

// ErrRateLimited is returned when a call could not acquire a rate-limiter
// token within the acquire timeout. Calls block up to that timeout instead of
// queuing unboundedly.
var ErrRateLimited = errors.New("rate limit exceeded")

// PermanentError marks a failure that retrying cannot fix (validation
// failures, corrupt input, 4xx-equivalent responses). The envelope surfaces
// it immediately and does not count it against the circuit breaker.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err so the envelope will not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError anywhere in its
// chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
