package model

import (
	"encoding/json"
	"net/http"
)

// OpName names a single logical operation of the api
type OpName string

// Operations
const (
	OpAppInfoGet = OpName("appInfo.get")

	OpSessionsCreate = OpName("sessions.create")
	OpSessionsUpdate = OpName("sessions.update")
	OpSessionsDelete = OpName("sessions.delete")

	OpUsersCreate = OpName("users.create")
	OpUsersGetAll = OpName("users.getAll")
	OpUsersGet    = OpName("users.get")
	OpUsersUpdate = OpName("users.update")
	OpUsersDelete = OpName("users.delete")

	OpPublicEntriesGetAll = OpName("publicEntries.getAll")
	OpPublicEntriesGet    = OpName("publicEntries.get")
	OpPublicEntriesSet    = OpName("publicEntries.set")
	OpPublicEntriesDelete = OpName("publicEntries.delete")

	OpPrivateEntriesGetAll = OpName("privateEntries.getAll")
	OpPrivateEntriesGet    = OpName("privateEntries.get")
	OpPrivateEntriesSet    = OpName("privateEntries.set")
	OpPrivateEntriesDelete = OpName("privateEntries.delete")
)

// SuccessStatus returns the http status code a successful execution of the
// operation is reported with
func (o OpName) SuccessStatus() int {
	switch o {
	case OpSessionsCreate, OpUsersCreate:
		return http.StatusCreated
	case OpSessionsUpdate, OpSessionsDelete, OpUsersDelete,
		OpPublicEntriesSet, OpPublicEntriesDelete,
		OpPrivateEntriesSet, OpPrivateEntriesDelete:
		return http.StatusNoContent
	default:
		return http.StatusOK
	}
}

// Operation is a single request to the api. Only the fields used by Op are
// evaluated.
type Operation struct {
	Op       OpName     `json:"op"`
	ID       string     `json:"id,omitempty"`
	Key      string     `json:"key,omitempty"`
	Value    []byte     `json:"value,omitempty"`
	Login    string     `json:"login,omitempty"`
	Password string     `json:"password,omitempty"`
	Role     Role       `json:"role,omitempty"`
	Patch    *UserPatch `json:"patch,omitempty"`
}

// Result is the outcome of a single Operation within a batch
type Result struct {
	Status  int             `json:"status"`
	Body    json.RawMessage `json:"body,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Err returns the typed error carried by this Result or nil on success
func (r Result) Err() error {
	if r.Status < http.StatusBadRequest {
		return nil
	}
	return ErrorFromStatus(r.Status, r.Message)
}

// BatchRequest is the body of a batch request
type BatchRequest struct {
	Operations []Operation `json:"operations"`
}

// BatchResponse is the body of a batch response; Results are index-aligned
// with the operations of the request
type BatchResponse struct {
	Results []Result `json:"results"`
}

// ErrorResponse is the body of an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewErrorResponse creates the ErrorResponse for err
func NewErrorResponse(err error) (int, ErrorResponse) {
	status := StatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	return status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg,
	}
}

// ValueBody is the body used to set an entry value
type ValueBody struct {
	Value []byte `json:"value"`
}
