package utils

import (
	"fmt"
	"net/http"
)

// ResponseCode business error code carried in API responses
type ResponseCode int

const (
	CodeSuccess ResponseCode = 0

	CodeInvalidParam  ResponseCode = 1001
	CodeInvalidAction ResponseCode = 1002
	CodeUnauthorized  ResponseCode = 1003

	CodeProductNotFound  ResponseCode = 2001
	CodeOutOfStock       ResponseCode = 2002
	CodeAlreadyInStock   ResponseCode = 2003
	CodeAlreadyWaiting   ResponseCode = 2004
	CodeEmptyCart        ResponseCode = 2005
	CodeNoPendingOrder   ResponseCode = 2006
	CodeNoActiveDialogue ResponseCode = 2007

	CodeInternalError ResponseCode = 5001
	CodePersistence   ResponseCode = 5002
	CodeNotification  ResponseCode = 5003
)

// HTTPStatus maps a business code to the HTTP status used by the API
func (c ResponseCode) HTTPStatus() int {
	switch c {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeInvalidAction:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeProductNotFound, CodeNoPendingOrder, CodeNoActiveDialogue:
		return http.StatusNotFound
	case CodeOutOfStock, CodeAlreadyInStock, CodeAlreadyWaiting, CodeEmptyCart:
		return http.StatusConflict
	case CodeNotification:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError application error structure
type AppError struct {
	Code    ResponseCode `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code: %d, message: %s, error: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code: %d, message: %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code, so wrapped
// instances still match the predefined sentinels with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates an application error
func NewError(code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps err under the given code
func WrapError(err error, code ResponseCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Predefined errors
var (
	ErrInvalidParam  = NewError(CodeInvalidParam, "invalid parameter")
	ErrInvalidAction = NewError(CodeInvalidAction, "invalid action")
	ErrUnauthorized  = NewError(CodeUnauthorized, "administrator capability required")

	ErrProductNotFound  = NewError(CodeProductNotFound, "product not found")
	ErrOutOfStock       = NewError(CodeOutOfStock, "product is out of stock")
	ErrAlreadyInStock   = NewError(CodeAlreadyInStock, "product is already in stock")
	ErrAlreadyWaiting   = NewError(CodeAlreadyWaiting, "already on the waiting list")
	ErrEmptyCart        = NewError(CodeEmptyCart, "cart is empty")
	ErrNoPendingOrder   = NewError(CodeNoPendingOrder, "no pending order")
	ErrNoActiveDialogue = NewError(CodeNoActiveDialogue, "no delivery confirmation in progress")

	ErrInternalError = NewError(CodeInternalError, "internal server error")
	ErrPersistence   = NewError(CodePersistence, "persistence error")
	ErrNotification  = NewError(CodeNotification, "notification failure")
)

// IsAppError checks whether err is (or wraps) an application error
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	for e := err; e != nil; {
		if a, ok := e.(*AppError); ok {
			appErr = a
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return appErr, appErr != nil
}

// GetErrorCode returns the code of an application error, CodeInternalError otherwise
func GetErrorCode(err error) ResponseCode {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Code
	}
	return CodeInternalError
}

// GetErrorMessage returns the user facing message of err
func GetErrorMessage(err error) string {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
