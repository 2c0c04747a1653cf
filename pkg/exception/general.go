package exception

import "errors"

// General errors
var (
	ErrNilInstance     = errors.New("nil instance")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInternal        = errors.New("internal error")
)

// Fatal marks err as unrecoverable. A supervised task returning a fatal
// error tears the whole agent down instead of being retried.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err carries the fatal marker.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return "fatal: " + e.err.Error()
}

func (e *fatalError) Unwrap() error {
	return e.err
}
