package errs

// tagged carries a human-readable message while remaining matchable against
// its taxonomy sentinel via errors.Is.
type tagged struct {
	kind error
	msg  string
}

func (e *tagged) Error() string { return e.msg }

func (e *tagged) Unwrap() error { return e.kind }

// Wrap returns an error whose message is msg and whose identity is kind.
func Wrap(kind error, msg string) error {
	return &tagged{kind: kind, msg: msg}
}
