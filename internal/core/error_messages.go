package core

// # Error Codes Reference
//
// This file defines user-facing error messages with codes for support
// reference. The CLI prints the coded message next to the technical error so
// an operator can quote the code when reporting a failed import.
//
// Categorized errors (see package importerr) map by kind first; store errors
// inside a LoadFailure are refined by message pattern.
//
//	CFG001  - Configuration: a required setting is missing or invalid
//	          Action: Set DATABASE_URL and check the .env file
//
//	SRC001  - Source file: an input file is missing or unreadable
//	          Action: Check the input directory and the file encoding
//
//	CON001  - Connection: the database cannot be reached
//	          Action: Check DATABASE_URL and that the server is running
//
//	KEY001  - Unresolved event: a record names an event that is not in the event file
//	          Action: Add the event or fix the event_id_alias
//
//	LOAD001 - Duplicate key: a record with this id already exists
//	          Action: Reset the database or use a new dataset id
//	          Patterns: "duplicate key", "violates unique"
//
//	LOAD002 - Foreign key: a referenced record does not exist
//	          Action: Check that every referenced event and ASV is present
//	          Patterns: "foreign key"
//
//	LOAD003 - Missing value: a required column is empty
//	          Action: Fill in the required column in the source file
//	          Patterns: "not-null", "null value in column"
//
//	LOAD004 - Store rejected data: the database refused a write
//	          Action: See the technical error for the failing table
//
//	SCH001  - Schema mismatch: source columns or values do not fit the target tables
//	          Action: Compare the source headers with the database columns
//
//	ERR000  - Unknown error: An unexpected error occurred
//	          Action: Check the log for the technical error
//
// Pattern matching is case-insensitive with strings.Contains; the first
// match wins.

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/asvimport/internal/importerr"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var kindMessages = map[importerr.Kind]UserMessage{
	importerr.ConfigError: {
		Message: "Configuration is missing or invalid",
		Action:  "Set DATABASE_URL and check the .env file",
		Code:    "CFG001",
	},
	importerr.SourceUnavailable: {
		Message: "An input file is missing or unreadable",
		Action:  "Check the input directory and the file encoding",
		Code:    "SRC001",
	},
	importerr.ConnectionFailure: {
		Message: "Unable to connect to database",
		Action:  "Check DATABASE_URL and that the server is running",
		Code:    "CON001",
	},
	importerr.UnresolvedAlias: {
		Message: "A record refers to an event that is not in the event file",
		Action:  "Add the event or fix the event_id_alias",
		Code:    "KEY001",
	},
	importerr.SchemaMismatch: {
		Message: "Source data does not fit the target tables",
		Action:  "Compare the source headers and values with the database columns",
		Code:    "SCH001",
	},
}

// loadPatterns refine a LoadFailure by the store's message.
var loadPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this id already exists",
			Action:  "Reset the database or use a new dataset id",
			Code:    "LOAD001",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A record with this id already exists",
			Action:  "Reset the database or use a new dataset id",
			Code:    "LOAD001",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "A referenced record does not exist",
			Action:  "Check that every referenced event and ASV is present",
			Code:    "LOAD002",
		},
	},
	{
		pattern: "not-null",
		msg: UserMessage{
			Message: "A required column is empty",
			Action:  "Fill in the required column in the source file",
			Code:    "LOAD003",
		},
	},
	{
		pattern: "null value in column",
		msg: UserMessage{
			Message: "A required column is empty",
			Action:  "Fill in the required column in the source file",
			Code:    "LOAD003",
		},
	},
}

var loadDefault = UserMessage{
	Message: "The database rejected the import",
	Action:  "See the technical error for the failing table",
	Code:    "LOAD004",
}

// defaultMessage is returned when nothing else matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the log for the technical error",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	err := importerr.Wrap(pgErr, importerr.LoadFailure, "copy", "occurrence")
//	msg := MapError(err)
//	// msg.Code == "LOAD002" for a foreign key violation
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	kind := importerr.KindOf(err)
	if msg, ok := kindMessages[kind]; ok {
		return msg
	}
	if kind == importerr.LoadFailure {
		errStr := strings.ToLower(err.Error())
		for _, ep := range loadPatterns {
			if strings.Contains(errStr, ep.pattern) {
				return ep.msg
			}
		}
		return loadDefault
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
