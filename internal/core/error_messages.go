package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # Input Errors (INP001-INP099)
//
// The recipient table or template image could not be used. The whole batch
// is rejected.
//
//	INP001 - Empty file: The uploaded file is empty
//	INP002 - Encoding error: File is not UTF-8 text
//	INP003 - Invalid table: File is not a readable CSV or workbook
//	INP004 - No data rows: Only a header row was found
//	INP005 - Too many rows: Row count exceeds the configured maximum
//	INP006 - Bad template: The template image could not be decoded
//	INP007 - No file: A required upload was missing
//	INP008 - File too large: Upload exceeds the size limit
//	INP009 - Unknown item format: Requested per-item format is not supported
//
// # Layout Errors (CFG001-CFG099)
//
// Layout problems never block a batch; they are reported when saving or
// previewing a layout.
//
//	CFG001 - Invalid layout: Stored layout is malformed, defaults were used
//	CFG002 - Layout not found: No layout is stored for the template key
//	CFG003 - Store unavailable: The layout store cannot be reached
//	CFG004 - Invalid template key: Key has characters outside [A-Za-z0-9._-]
//
// # Generation Errors (GEN001-GEN099)
//
//	GEN001 - Nothing generated: No row had a usable recipient name
//	GEN002 - Row skipped: A row had no usable recipient name
//
// # Assembly Errors (ASM001-ASM099)
//
//	ASM001 - Assembly failed: Output could not be encoded
//
// # Batch Errors (BAT001-BAT099)
//
//	BAT001 - System busy: Too many batches in progress
//	BAT002 - Request cancelled
//	BAT003 - Request timeout
//	BAT004 - Rate limited
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check application logs for the
// original technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones. Patterns are the sentinel error texts from
// errors.go, which survive any amount of %w wrapping.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// Input (INP001-INP009)
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a file with a header row and at least one recipient",
			Code:    "INP001",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save the file as UTF-8 CSV and upload it again",
			Code:    "INP002",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a readable CSV or Excel workbook",
			Action:  "Export the recipient list as CSV or .xlsx",
			Code:    "INP003",
		},
	},
	{
		pattern: "no data rows",
		msg: UserMessage{
			Message: "The file has a header row but no recipients",
			Action:  "Add one row per recipient below the header",
			Code:    "INP004",
		},
	},
	{
		pattern: "too many rows",
		msg: UserMessage{
			Message: "The file has more rows than a single batch allows",
			Action:  "Split the recipient list into smaller files",
			Code:    "INP005",
		},
	},
	{
		pattern: "unreadable template image",
		msg: UserMessage{
			Message: "The template image could not be read",
			Action:  "Upload a PNG or JPEG template",
			Code:    "INP006",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "A required file was not selected",
			Action:  "Select both a recipient file and a template image",
			Code:    "INP007",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "Upload exceeds the maximum size",
			Action:  "Use a smaller template image or split the recipient list",
			Code:    "INP008",
		},
	},
	{
		pattern: "unknown item format",
		msg: UserMessage{
			Message: "Unsupported certificate format",
			Action:  "Choose jpeg, png or pdf",
			Code:    "INP009",
		},
	},

	// Layout (CFG001-CFG003)
	{
		pattern: "invalid layout configuration",
		msg: UserMessage{
			Message: "The layout settings are invalid",
			Action:  "Check font size, color (#RRGGBB) and text position",
			Code:    "CFG001",
		},
	},
	{
		pattern: "layout not found",
		msg: UserMessage{
			Message: "No layout is saved for this template",
			Action:  "Save a layout first or generate with the defaults",
			Code:    "CFG002",
		},
	},
	{
		pattern: "invalid template key",
		msg: UserMessage{
			Message: "The template key is not valid",
			Action:  "Use up to 128 letters, digits, dots, dashes or underscores",
			Code:    "CFG004",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "The layout store is unavailable",
			Action:  "Please try again in a few moments",
			Code:    "CFG003",
		},
	},

	// Generation (GEN001-GEN002)
	{
		pattern: "no certificates could be generated",
		msg: UserMessage{
			Message: "No certificates could be generated",
			Action:  "Make sure the file has a Name column with values",
			Code:    "GEN001",
		},
	},
	{
		pattern: "record has no resolvable name",
		msg: UserMessage{
			Message: "A row has no recipient name",
			Action:  "Fill in the name for every row",
			Code:    "GEN002",
		},
	},

	// Assembly (ASM001)
	{
		pattern: "output assembly failed",
		msg: UserMessage{
			Message: "The certificates could not be packaged",
			Action:  "Please try again or choose a different output type",
			Code:    "ASM001",
		},
	},

	// Batch (BAT001-BAT004)
	{
		pattern: "too many concurrent batches",
		msg: UserMessage{
			Message: "System is busy generating other batches",
			Action:  "Please wait a moment and try again",
			Code:    "BAT001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "BAT002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Generation timed out",
			Action:  "Try a smaller batch or a smaller template image",
			Code:    "BAT003",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "BAT004",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	_, err := ParseRecords([]byte("Name,Event\n"))
//	msg := MapError(err)
//	// msg.Code == "INP004"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err for a terminal as "Message (CODE). Action".
// When no pattern matches, the technical text is appended instead of the
// generic action so the operator still sees what failed.
func FormatUserError(err error) string {
	ue := NewUserError(err)
	if ue == nil {
		return ""
	}
	if !ue.Known() {
		return fmt.Sprintf("%s (%s): %v", ue.User.Message, ue.User.Code, err)
	}
	return fmt.Sprintf("%s (%s). %s", ue.User.Message, ue.User.Code, ue.User.Action)
}

// UserError pairs a pipeline error with what to tell the user about it.
type UserError struct {
	Technical error
	User      UserMessage
	Kind      ErrorKind
	// Fatal is false for degradations a batch survives, such as an
	// unusable layout or a skipped row.
	Fatal bool
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// Known reports whether the message came from a specific pattern rather
// than the ERR000 fallback.
func (e *UserError) Known() bool {
	return e.User.Code != defaultMessage.Code
}

// NewUserError classifies err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
		Kind:      KindOf(err),
		Fatal:     IsFatal(err),
	}
}
