package errors

import "net/http"

func NewError(code int64, status int, cause string) Error {
	return Error{code, status, cause}
}

// Error coded failure returned by the http api.
type Error struct {
	Code   int64
	Status int
	Cause  string
}

func (e Error) Error() string {
	return e.Cause
}

// params
var (
	InvalidParameter  = NewError(100, http.StatusBadRequest, "invalid parameter.")
	JobIdError        = NewError(101, http.StatusBadRequest, "id is empty.")
	BodyReadError     = NewError(102, http.StatusBadRequest, "http body read failed.")
	BodyDecodeError   = NewError(103, http.StatusBadRequest, "http body decode failed.")
	BodyMarshalError  = NewError(104, http.StatusInternalServerError, "json marshal failed.")
	VerifyJobError    = NewError(105, http.StatusBadRequest, "verify project failed.")
	ServerClosedError = NewError(107, http.StatusServiceUnavailable, "server is closing.")
	UnauthorizedError = NewError(108, http.StatusUnauthorized, "unauthorized.")
)

// storage
var (
	SqlCreateError = NewError(150, http.StatusInternalServerError, "db insert failed.")
	SqlUpdateError = NewError(152, http.StatusInternalServerError, "db update failed.")
	SqlQueryError  = NewError(153, http.StatusInternalServerError, "db query failed.")
	SqlDeleteError = NewError(154, http.StatusInternalServerError, "db delete failed.")
)

// business
var (
	DuplicateJobError    = NewError(201, http.StatusConflict, "job already exists.")
	JobNotFoundError     = NewError(202, http.StatusNotFound, "job not found.")
	InvalidScheduleError = NewError(203, http.StatusBadRequest, "invalid schedule.")
	ConcurrencyCapError  = NewError(204, http.StatusTooManyRequests, "too many running instances.")
	UpstreamSyncError    = NewError(205, http.StatusBadGateway, "upstream sync failed to start.")
	SlaveNotFoundError   = NewError(207, http.StatusNotFound, "slave not found.")
	InternalError        = NewError(250, http.StatusInternalServerError, "internal error.")
)
