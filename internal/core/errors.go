package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure. Only some kinds are fatal for a
// batch; see IsFatal.
type ErrorKind string

const (
	KindInputFormat   ErrorKind = "input_format"
	KindConfigParse   ErrorKind = "config_parse"
	KindRecordSkipped ErrorKind = "record_skipped"
	KindFontLoad      ErrorKind = "font_load"
	KindEmptyResult   ErrorKind = "empty_result"
	KindAssembly      ErrorKind = "assembly"
)

// Sentinel errors for generation operations.
var (
	// Input format (fatal)
	ErrEmptyInput      = errors.New("empty file")
	ErrInvalidEncoding = errors.New("encoding error: input is not valid UTF-8")
	ErrInvalidTabular  = errors.New("invalid csv")
	ErrNoDataRows      = errors.New("no data rows")
	ErrTooManyRows     = errors.New("too many rows")
	ErrTemplateDecode  = errors.New("unreadable template image")
	ErrNoFile          = errors.New("no file provided")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnknownFormat   = errors.New("unknown item format")

	// Recoverable
	ErrInvalidLayout = errors.New("invalid layout configuration")
	ErrRecordSkipped = errors.New("record has no resolvable name")

	// Batch level (fatal)
	ErrNoCertificates = errors.New("no certificates could be generated")
	ErrAssembly       = errors.New("output assembly failed")
)

// Error is a pipeline error tagged with its kind and the operation that
// produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError wraps err with a kind. A nil err yields nil.
func newError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// inputError builds an InputFormat error from a sentinel and optional detail.
func inputError(op string, sentinel error, detail error) error {
	if detail == nil {
		return newError(KindInputFormat, op, sentinel)
	}
	return newError(KindInputFormat, op, fmt.Errorf("%w: %v", sentinel, detail))
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsFatal reports whether err rejects a whole batch.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindInputFormat, KindEmptyResult, KindAssembly:
		return true
	case KindConfigParse, KindRecordSkipped, KindFontLoad:
		return false
	}
	return err != nil
}
