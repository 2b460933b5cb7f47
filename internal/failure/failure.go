// Package failure defines the four failure kinds an upload can end in and
// renders any error chain into one human-readable report.
//
// Every component wraps what it cannot handle in a *Error carrying its Kind
// and the operation that failed. The CLI maps any *Error to exit code 1.
package failure

import (
	"errors"
)

// Kind classifies a failure.
type Kind int

const (
	// KindConfiguration covers missing or invalid settings. Fatal; the user
	// must fix the configuration before rerunning.
	KindConfiguration Kind = iota + 1
	// KindAuth covers credential acquisition that exhausted every strategy,
	// including certificates without a private key.
	KindAuth
	// KindResolution covers site, library and folder lookup or creation.
	KindResolution
	// KindUpload covers session creation, chunk transfer and responses
	// missing an expected field.
	KindUpload
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrAuth          = errors.New("authentication failure")
	ErrResolution    = errors.New("resolution failure")
	ErrUpload        = errors.New("upload failure")
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "ConfigurationError"
	case KindAuth:
		return "AuthFailure"
	case KindResolution:
		return "ResolutionFailure"
	case KindUpload:
		return "UploadFailure"
	default:
		return "UnknownFailure"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindAuth:
		return ErrAuth
	case KindResolution:
		return ErrResolution
	case KindUpload:
		return ErrUpload
	default:
		return nil
	}
}

// Error is a classified failure. Op names what was being attempted, in the
// form used by the report: "{Op} failed: ...".
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error renders the full report via Translate.
func (e *Error) Error() string {
	return Translate(e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()

	return s != nil && target == s
}

// New wraps err as a failure of the given kind. A nil err is replaced by the
// kind's sentinel so the report is never empty.
func New(kind Kind, op string, err error) *Error {
	if err == nil {
		err = kind.sentinel()
	}

	return &Error{Kind: kind, Op: op, Err: err}
}

// Configuration wraps err as a ConfigurationError.
func Configuration(op string, err error) error { return New(KindConfiguration, op, err) }

// Auth wraps err as an AuthFailure.
func Auth(op string, err error) error { return New(KindAuth, op, err) }

// Resolution wraps err as a ResolutionFailure.
func Resolution(op string, err error) error { return New(KindResolution, op, err) }

// Upload wraps err as an UploadFailure.
func Upload(op string, err error) error { return New(KindUpload, op, err) }

// KindOf returns the kind of the outermost *Error in err's chain, or 0 if
// there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	return 0
}
