package catalog

import "fmt"

// ParseError reports a malformed or inconsistent declarative config.
type ParseError struct {
	Path    string
	Message string
	err     error
}

func (e *ParseError) Error() string {
	msg := "parse catalog"
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + e.Message
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.err }

func (e *ParseError) Is(err error) bool {
	_, ok := err.(*ParseError)
	return ok
}

func parseErrorf(path string, format string, a ...any) *ParseError {
	return &ParseError{Path: path, Message: fmt.Sprintf(format, a...)}
}
