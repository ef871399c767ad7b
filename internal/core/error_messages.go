package core

// # Error Codes Reference
//
// Every import failure is mapped to a short message, an action and a code the
// operator can quote. Typed pipeline errors are matched first with errors.As;
// anything else falls through to case-insensitive substring patterns.
//
// # Pipeline Errors (ETL001-ETL099)
//
//	ETL001 - Malformed input: A row or header could not be read or converted
//	         Action: Fix the named file, row and column, then run the import again
//
//	ETL002 - Duplicate identifier: A temp_id appears twice in one file
//	         Action: Regenerate the data set or remove the duplicate row
//
//	ETL003 - Unresolved reference: A row points to a record that was never loaded
//	         Action: Check the referenced file contains the identifier
//
//	ETL004 - Partial insert: The database rejected part of a batch
//	         Action: Check for duplicate emails; clear the collections before re-running
//
//	ETL005 - Index creation failed: An index could not be created
//	         Action: Drop the conflicting index or fix the offending documents
//
// # Database Errors (DB001-DB099)
//
//	DB004 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused", "server selection error", "no reachable servers"
//
//	DB006 - Timeout: Operation timed out
//	        Patterns: "context deadline exceeded", "timeout"
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Run in progress: Another import is already running
//	RUN002 - Run not found: The run id is unknown or has expired
//	RUN003 - Run not finished: The result was requested before the run ended
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Check the application logs for the original error

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// UserMessage provides operator-facing error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgMalformed = UserMessage{
		Message: "A row or header in an input file could not be read",
		Action:  "Fix the named file, row and column, then run the import again",
		Code:    "ETL001",
	}
	msgDuplicate = UserMessage{
		Message: "An identifier appears twice in one input file",
		Action:  "Regenerate the data set or remove the duplicate row",
		Code:    "ETL002",
	}
	msgUnresolved = UserMessage{
		Message: "A row references a record that was never loaded",
		Action:  "Check that the referenced file contains the identifier",
		Code:    "ETL003",
	}
	msgPartialInsert = UserMessage{
		Message: "The database rejected part of a batch",
		Action:  "Check for duplicate emails and clear the collections before running again",
		Code:    "ETL004",
	}
	msgIndex = UserMessage{
		Message: "An index could not be created",
		Action:  "Drop the conflicting index or fix the offending documents",
		Code:    "ETL005",
	}
	msgRunInProgress = UserMessage{
		Message: "Another import is already running",
		Action:  "Wait for the current run to finish",
		Code:    "RUN001",
	}
	msgRunNotFound = UserMessage{
		Message: "Import run not found",
		Action:  "The run may have expired; check the run history",
		Code:    "RUN002",
	}
	msgRunNotFinished = UserMessage{
		Message: "Import run has not finished",
		Action:  "Poll the run progress and request the result again later",
		Code:    "RUN003",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps untyped driver and network errors to user messages.
// The first matching pattern wins.
var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Check MONGO_URI and that the server is reachable",
			Code:    "DB004",
		},
	},
	{
		pattern: "server selection error",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Check MONGO_URI and that the server is reachable",
			Code:    "DB004",
		},
	},
	{
		pattern: "no reachable servers",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Check MONGO_URI and that the server is reachable",
			Code:    "DB004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Raise MONGO_OPERATION_TIMEOUT or lower IMPORT_BATCH_SIZE",
			Code:    "DB006",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Raise MONGO_OPERATION_TIMEOUT or lower IMPORT_BATCH_SIZE",
			Code:    "DB006",
		},
	},
}

// defaultMessage is returned when no specific pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the application logs for the original error",
	Code:    "ERR000",
}

// MapError converts an error to a user message. Returns the zero value for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		malformed  *MalformedRecordError
		duplicate  *DuplicateAllocationError
		unresolved *UnresolvedReferenceError
		partial    *PartialInsertError
		index      *IndexProvisioningError
	)
	switch {
	case errors.As(err, &malformed):
		return msgMalformed
	case errors.As(err, &duplicate):
		return msgDuplicate
	case errors.As(err, &unresolved):
		return msgUnresolved
	case errors.As(err, &partial):
		return msgPartialInsert
	case errors.As(err, &index):
		return msgIndex
	case errors.Is(err, ErrRunInProgress):
		return msgRunInProgress
	case errors.Is(err, ErrRunNotFound):
		return msgRunNotFound
	case errors.Is(err, ErrRunNotFinished):
		return msgRunNotFinished
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
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
