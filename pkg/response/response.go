package response

import "errors"

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST   ErrCode = "REQUEST_FAILED"
	BAD_REQUEST      ErrCode = "FAILED_TO_DECODE"
	NOT_FOUND        ErrCode = "NOT_FOUND"
	FORBIDDEN        ErrCode = "FORBIDDEN"
	CONFLICT         ErrCode = "CONFLICT"
	INVALID_ARGUMENT ErrCode = "INVALID_ARGUMENT"
	LOCKED           ErrCode = "LOCKED"
	UNAUTHORIZED     ErrCode = "UNAUTHORIZED"
)

var (
	ErrBadRequest      = errors.New("bad request")
	ErrNotFound        = errors.New("resource not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("scheduling conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrLocked          = errors.New("resource is locked")
)

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}
