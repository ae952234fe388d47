package errors

import "net/http"

// ErrorCode represents the type of error
type ErrorCode string

const (
	ErrNotFound             ErrorCode = "NOT_FOUND"
	ErrUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrBadRequest           ErrorCode = "BAD_REQUEST"
	ErrInternalError        ErrorCode = "INTERNAL_ERROR"
	ErrRateLimited          ErrorCode = "RATE_LIMITED"
	ErrServiceUnavail       ErrorCode = "SERVICE_UNAVAILABLE"
	ErrVerificationRequired ErrorCode = "VERIFICATION_REQUIRED"
	ErrVerificationFailed   ErrorCode = "VERIFICATION_FAILED"
	ErrStorageFailure       ErrorCode = "STORAGE_FAILURE"
)

// StatusCodeMap maps ErrorCode to HTTP status code
var StatusCodeMap = map[ErrorCode]int{
	ErrNotFound:             http.StatusNotFound,
	ErrUnauthorized:         http.StatusUnauthorized,
	ErrBadRequest:           http.StatusBadRequest,
	ErrInternalError:        http.StatusInternalServerError,
	ErrRateLimited:          http.StatusTooManyRequests,
	ErrServiceUnavail:       http.StatusServiceUnavailable,
	ErrVerificationRequired: http.StatusForbidden,
	ErrVerificationFailed:   http.StatusForbidden,
	ErrStorageFailure:       http.StatusInternalServerError,
}

// StatusCode returns the HTTP status code for this error code
func (e ErrorCode) StatusCode() int {
	if code, ok := StatusCodeMap[e]; ok {
		return code
	}
	return http.StatusInternalServerError
}
