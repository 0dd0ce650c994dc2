package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ResponseCode business response code
type ResponseCode int

const (
	CodeSuccess       ResponseCode = 0
	CodeInvalidParam  ResponseCode = 1001
	CodeNotFound      ResponseCode = 1002
	CodeConflict      ResponseCode = 1003
	CodeInternalError ResponseCode = 1004
	CodeRateLimit     ResponseCode = 1005

	CodeInvalidTransition  ResponseCode = 2001
	CodeStockNotEnough     ResponseCode = 2002
	CodeBalanceNotEnough   ResponseCode = 2003
	CodeMultiSellerCart    ResponseCode = 2004
	CodeListingUnavailable ResponseCode = 2005
)

// AppError application error structure
type AppError struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// Error implement error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implement errors.Unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError create new application error
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WrapError wrap error
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Predefined errors shared by the HTTP layer
var (
	ErrInvalidParam  = NewError(CodeInvalidParam, "invalid parameter")
	ErrInternalError = NewError(CodeInternalError, "internal server error")
	ErrRateLimit     = NewError(CodeRateLimit, "rate limit exceeded")
)

// AsAppError finds the first AppError in the chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetErrorCode get error code
func GetErrorCode(err error) ResponseCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// IsNotFound reports whether err is a missing order, listing or payment
func IsNotFound(err error) bool {
	return GetErrorCode(err) == CodeNotFound
}

// IsValidation reports whether err rejects the request without side effects
func IsValidation(err error) bool {
	switch GetErrorCode(err) {
	case CodeInvalidParam, CodeInvalidTransition, CodeStockNotEnough,
		CodeBalanceNotEnough, CodeMultiSellerCart, CodeListingUnavailable:
		return true
	}
	return false
}

// HTTPStatus maps an error onto the status code returned to clients
func HTTPStatus(err error) int {
	switch code := GetErrorCode(err); {
	case code == CodeNotFound:
		return http.StatusNotFound
	case code == CodeConflict:
		return http.StatusConflict
	case code == CodeRateLimit:
		return http.StatusTooManyRequests
	case IsValidation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
