package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Submission & Dispatch errors
// 12000-12999: Worker pool & Transport errors
// 13000-13999: Judge server errors (compile, sandbox, SPJ, test data)
// 14000-14999: Contest & Statistics errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	ServiceUnavailable  ErrorCode = 10006
	Timeout             ErrorCode = 10007

	// Database errors (10100-10199)
	DatabaseError     ErrorCode = 10100
	RecordNotFound    ErrorCode = 10101
	TransactionFailed ErrorCode = 10102

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	CacheMiss  ErrorCode = 10201
	LockFailed ErrorCode = 10202

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	RequiredFieldEmpty ErrorCode = 10301

	// ========== Submission & Dispatch Errors (11000-11999) ==========

	SubmissionNotFound   ErrorCode = 11000
	ProblemNotFound      ErrorCode = 11001
	UserNotFound         ErrorCode = 11002
	LanguageNotSupported ErrorCode = 11003
	UserDisabled         ErrorCode = 11004

	// ========== Worker Pool & Transport Errors (12000-12999) ==========

	WorkerNotFound       ErrorCode = 12000
	NoWorkerAvailable    ErrorCode = 12001
	WorkerDisabled       ErrorCode = 12002
	HeartbeatRejected    ErrorCode = 12003
	WorkerTransportError ErrorCode = 12100
	WorkerBadResponse    ErrorCode = 12101

	// ========== Judge Server Errors (13000-13999) ==========

	JudgeSystemError  ErrorCode = 13000
	CompileError      ErrorCode = 13001
	SPJCompileError   ErrorCode = 13002
	SPJNotCompiled    ErrorCode = 13003
	SPJError          ErrorCode = 13004
	TestDataNotFound  ErrorCode = 13100
	TestDataInvalid   ErrorCode = 13101
	TokenVerifyFailed ErrorCode = 13200

	// ========== Contest & Statistics Errors (14000-14999) ==========

	ContestNotFound  ErrorCode = 14000
	RankUpdateFailed ErrorCode = 14001
)

var errorMessages = map[ErrorCode]string{
	Success: "Success",

	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized",
	Forbidden:           "Forbidden",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Operation timed out",

	DatabaseError:     "Database operation failed",
	RecordNotFound:    "Record not found",
	TransactionFailed: "Database transaction failed",

	CacheError: "Cache operation failed",
	CacheMiss:  "Cache miss",
	LockFailed: "Failed to acquire lock",

	ValidationFailed:   "Validation failed",
	RequiredFieldEmpty: "Required field is empty",

	SubmissionNotFound:   "Submission not found",
	ProblemNotFound:      "Problem not found",
	UserNotFound:         "User not found",
	LanguageNotSupported: "Language is not supported",
	UserDisabled:         "User account is disabled",

	WorkerNotFound:       "Judge worker not found",
	NoWorkerAvailable:    "No judge worker available",
	WorkerDisabled:       "Judge worker is disabled",
	HeartbeatRejected:    "Heartbeat rejected",
	WorkerTransportError: "Failed to reach judge worker",
	WorkerBadResponse:    "Malformed response from judge worker",

	JudgeSystemError:  "Judge system error",
	CompileError:      "Compilation failed",
	SPJCompileError:   "Special judge compilation failed",
	SPJNotCompiled:    "Special judge binary is not compiled",
	SPJError:          "Special judge execution failed",
	TestDataNotFound:  "Test case data not found",
	TestDataInvalid:   "Malformed test case metadata",
	TokenVerifyFailed: "Invalid judge server token",

	ContestNotFound:  "Contest not found",
	RankUpdateFailed: "Failed to update contest rank",
}

// Message returns the default error message for the code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus maps an error code to the HTTP status it should be reported with
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == TokenVerifyFailed, c == HeartbeatRejected:
		return 401
	case c == Forbidden, c == WorkerDisabled, c == UserDisabled:
		return 403
	case c == NotFound, c == RecordNotFound, c == SubmissionNotFound,
		c == ProblemNotFound, c == UserNotFound, c == WorkerNotFound,
		c == ContestNotFound:
		return 404
	case c == ServiceUnavailable, c == NoWorkerAvailable:
		return 503
	case c == InvalidParams, c >= 10300 && c < 10400:
		return 400
	default:
		return 500
	}
}
