package render

import "fmt"

// UserError is an error with a message safe to show an end user,
// separate from the internal error (if any) that caused it. It
// mirrors spilldb/db/db.go's UserError and replaces html.c's
// html_error_real's split between its stdout message and its stderr
// diagnostic line.
type UserError struct {
	Msg string
	Err error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *UserError) Unwrap() error { return e.Err }

func userErr(msg string) error { return &UserError{Msg: msg} }

func wrapErr(msg string, err error) error { return &UserError{Msg: msg, Err: err} }

// Standard user-facing messages returned by the render package's
// public operations.
var (
	errInvalidParams   = userErr("Invalid request parameters")
	errNoSuchList      = userErr("No such mailing list")
	errNeedsRebuild    = userErr("Index needs rebuild")
	errNoSuchMessage   = userErr("No such message")
	errIndexCorrupt    = userErr("Index corrupt")
	errAttachmentNone  = userErr("Attachment not found")
	errAttachmentTrunc = userErr("Attachment is truncated")
)
