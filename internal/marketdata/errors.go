package marketdata

import "errors"

// ErrNoData means the source answered but has nothing for the request,
// e.g. a contract listed too recently to have history. Not retryable.
var ErrNoData = errors.New("marketdata: no data for request")

// TransientError wraps failures worth retrying on a later cycle:
// timeouts, connection resets, 5xx responses, rate-limit rejections.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	if e == nil {
		return "marketdata: transient error"
	}
	if e.Op == "" {
		return "marketdata: transient: " + e.Err.Error()
	}
	return "marketdata: transient " + e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}
