package importer

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyFile         = errors.New("file has no rows")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrTooManyRows       = errors.New("too many rows")
)

// ParseError locates a failure inside the imported file.
type ParseError struct {
	Op     string
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("%s: line %d: column %q: %v", e.Op, e.Line, e.Column, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("%s: line %d: %v", e.Op, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
