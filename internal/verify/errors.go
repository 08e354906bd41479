package verify

import "errors"

// FatalError marks a verification failure that retrying cannot cure: mission
// missing, runner never linked an oracle account, requirements unparseable.
// The worker fails these missions immediately instead of burning retries.
type FatalError struct {
	Err error
}

func (e FatalError) Error() string { return e.Err.Error() }
func (e FatalError) Unwrap() error { return e.Err }

func fatal(err error) error {
	if err == nil {
		return nil
	}
	return FatalError{Err: err}
}

// IsFatal reports whether err (or anything it wraps) is non-retryable.
func IsFatal(err error) bool {
	var fe FatalError
	return errors.As(err, &fe)
}
