package errors

// ErrorCode identifies a failure class across service boundaries.
type ErrorCode int

// Code ranges:
// 10000-10999: system & common
// 11000-11999: submission intake
// 12000-12999: experiment / checkpoint data
// 13000-13999: sandbox & judging
const (
	Success ErrorCode = 10000

	InternalError      ErrorCode = 10001
	InvalidParams      ErrorCode = 10002
	NotFound           ErrorCode = 10003
	Timeout            ErrorCode = 10004
	ServiceUnavailable ErrorCode = 10005

	DatabaseError ErrorCode = 10100
	CacheError    ErrorCode = 10200
	StorageError  ErrorCode = 10300

	SubmissionNotFound   ErrorCode = 11000
	SubmissionPending    ErrorCode = 11001
	DuplicateSubmission  ErrorCode = 11002
	LanguageNotSupported ErrorCode = 11003

	ExperimentNotFound    ErrorCode = 12000
	UserNotFound          ErrorCode = 12001
	ArchiveInvalid        ErrorCode = 12100
	ArchiveEntryMissing   ErrorCode = 12101
	ManifestInvalid       ErrorCode = 12102
	CheckpointModeUnknown ErrorCode = 12103

	SandboxError     ErrorCode = 13000
	SandboxFileError ErrorCode = 13001
	JudgeSystemError ErrorCode = 13100
)

var errorMessages = map[ErrorCode]string{
	Success: "Success",

	InternalError:      "Internal server error",
	InvalidParams:      "Invalid parameters",
	NotFound:           "Resource not found",
	Timeout:            "Request timeout",
	ServiceUnavailable: "Service temporarily unavailable",

	DatabaseError: "Database operation failed",
	CacheError:    "Cache operation failed",
	StorageError:  "Object storage operation failed",

	SubmissionNotFound:   "Submission not found",
	SubmissionPending:    "A previous submission is still being judged",
	DuplicateSubmission:  "Identical code was already submitted",
	LanguageNotSupported: "Language is not configured for this experiment",

	ExperimentNotFound:    "Experiment not found",
	UserNotFound:          "User not found",
	ArchiveInvalid:        "Checkpoint archive is not readable",
	ArchiveEntryMissing:   "Checkpoint archive entry not found",
	ManifestInvalid:       "Checkpoint manifest is not valid",
	CheckpointModeUnknown: "Unknown checkpoint verdict mode",

	SandboxError:     "Sandbox request failed",
	SandboxFileError: "Sandbox file operation failed",
	JudgeSystemError: "Judge system error",
}

// Message returns the default message for the code.
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus maps a code to the HTTP status used by the operational surface.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case Success:
		return 200
	case InvalidParams, LanguageNotSupported:
		return 400
	case NotFound, SubmissionNotFound, ExperimentNotFound, UserNotFound:
		return 404
	case SubmissionPending, DuplicateSubmission:
		return 409
	case ServiceUnavailable:
		return 503
	default:
		return 500
	}
}
