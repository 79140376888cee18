package ingest

// errors.go maps technical errors to user-friendly messages with codes
// for support reference. Codes are grouped by category:
//
//	FILE001-FILE099  file handling (size, format, missing file)
//	VAL001-VAL099    request validation (mapping)
//	IMP001-IMP099    import processing (busy, aborted)
//	DB001-DB099      storage (constraints, timeouts, connectivity)
//
// Row-level validation failures never reach MapError; they are payload
// data in the summary, not errors.

import (
	"context"
	"errors"
	"strings"
)

// ErrInvalidOwner is returned when a request names no owner or one that
// is not a valid UUID.
var ErrInvalidOwner = errors.New("missing or invalid owner id")

// UserMessage is a user-facing error with a support code and a
// suggested next step.
type UserMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
}

// MapError converts an error into a coded user-facing message.
func MapError(err error) UserMessage {
	switch {
	case errors.Is(err, ErrNoHeader):
		return UserMessage{
			Code:    "FILE002",
			Message: "The file has no header line",
			Action:  "Ensure the first row of the file names its columns",
		}
	case errors.Is(err, ErrInvalidMapping):
		return UserMessage{
			Code:    "VAL001",
			Message: "The column mapping is missing or incomplete",
			Action:  "Map the date and amount fields to columns in your file",
		}
	case errors.Is(err, ErrInvalidOwner):
		return UserMessage{
			Code:    "VAL002",
			Message: "The owner id is missing or invalid",
			Action:  "Send the owner as a UUID in the X-Owner-ID header",
		}
	case errors.Is(err, ErrTooManyImports):
		return UserMessage{
			Code:    "IMP001",
			Message: "Too many imports are in progress",
			Action:  "Please wait a moment and try again",
		}
	case errors.Is(err, ErrDuplicate):
		return UserMessage{
			Code:    "DB001",
			Message: "A matching transaction already exists",
			Action:  "Run a dry run to review duplicates before importing",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return UserMessage{
			Code:    "DB006",
			Message: "The operation timed out",
			Action:  "Try a smaller file or try again later",
		}
	case errors.Is(err, context.Canceled):
		return UserMessage{
			Code:    "IMP002",
			Message: "The request was cancelled",
			Action:  "Any commit already in progress will still complete",
		}
	}

	msg := strings.ToLower(errString(err))
	switch {
	case strings.Contains(msg, "request body too large"), strings.Contains(msg, "file too large"):
		return UserMessage{
			Code:    "FILE001",
			Message: "The file exceeds the size limit",
			Action:  "Split the file into smaller chunks",
		}
	case strings.Contains(msg, "no file provided"), strings.Contains(msg, "missing form file"):
		return UserMessage{
			Code:    "FILE004",
			Message: "No file was provided",
			Action:  "Attach a CSV file to the request",
		}
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"):
		return UserMessage{
			Code:    "DB004",
			Message: "The storage backend is unreachable",
			Action:  "Please try again in a few moments",
		}
	case strings.Contains(msg, "import aborted"):
		return UserMessage{
			Code:    "IMP003",
			Message: "The import was aborted by a storage error",
			Action:  "Rows committed before the error were kept; check the session record and retry",
		}
	}

	return UserMessage{
		Code:    "IMP099",
		Message: "An unexpected error occurred",
		Action:  "Please try again; quote this code if the problem persists",
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
