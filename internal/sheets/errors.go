package sheets

import "fmt"

// SourceError wraps a row-source failure with the source it came from.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("sheet source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError wraps err with the source location.
func NewSourceError(source string, err error) error {
	return &SourceError{Source: source, Err: err}
}
