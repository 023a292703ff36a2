package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string identifier for a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeStorageError       ErrorCode = "COMMON_017"
	ErrCodeMessagingError     ErrorCode = "COMMON_018"
)

// Member Module Error Codes
const (
	ErrCodeMemberNotFound      ErrorCode = "MEM_001"
	ErrCodeMemberInvalid       ErrorCode = "MEM_002"
	ErrCodeRelationInvalid     ErrorCode = "MEM_003"
	ErrCodeMemoryNotFound      ErrorCode = "MEM_004"
	ErrCodeGenderFilterInvalid ErrorCode = "MEM_005"
)

// Document Persistence Error Codes
const (
	ErrCodeDocumentNotFound ErrorCode = "DOC_001"
	ErrCodeDocumentCorrupt  ErrorCode = "DOC_002"
	ErrCodeBackendUnknown   ErrorCode = "DOC_003"
)

// Story Import Error Codes
const (
	ErrCodeImportFailed     ErrorCode = "IMP_001"
	ErrCodeImportInProgress ErrorCode = "IMP_002"
	ErrCodeImportDisabled   ErrorCode = "IMP_003"
	ErrCodeStoryEmpty       ErrorCode = "IMP_004"
)

// Aliases kept short for call sites.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessagingError:     http.StatusInternalServerError,

	ErrCodeMemberNotFound:      http.StatusNotFound,
	ErrCodeMemberInvalid:       http.StatusUnprocessableEntity,
	ErrCodeRelationInvalid:     http.StatusUnprocessableEntity,
	ErrCodeMemoryNotFound:      http.StatusNotFound,
	ErrCodeGenderFilterInvalid: http.StatusBadRequest,

	ErrCodeDocumentNotFound: http.StatusNotFound,
	ErrCodeDocumentCorrupt:  http.StatusInternalServerError,
	ErrCodeBackendUnknown:   http.StatusInternalServerError,

	ErrCodeImportFailed:     http.StatusBadGateway,
	ErrCodeImportInProgress: http.StatusConflict,
	ErrCodeImportDisabled:   http.StatusServiceUnavailable,
	ErrCodeStoryEmpty:       http.StatusBadRequest,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeStorageError:       "storage error",
	ErrCodeMessagingError:     "messaging error",

	ErrCodeMemberNotFound:      "member not found",
	ErrCodeMemberInvalid:       "invalid member",
	ErrCodeRelationInvalid:     "invalid relationship reference",
	ErrCodeMemoryNotFound:      "memory not found",
	ErrCodeGenderFilterInvalid: "invalid gender filter",

	ErrCodeDocumentNotFound: "family document not found",
	ErrCodeDocumentCorrupt:  "family document is corrupt",
	ErrCodeBackendUnknown:   "unknown storage backend",

	ErrCodeImportFailed:     "failed to parse the story, please try again",
	ErrCodeImportInProgress: "an import is already in progress",
	ErrCodeImportDisabled:   "story import is not configured",
	ErrCodeStoryEmpty:       "story text must not be empty",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
