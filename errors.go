package ideabox

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStoreNotConfigured is returned by every store operation when no
	// database credentials were supplied.
	ErrStoreNotConfigured = errors.New("store is not configured")
)

// StoreError wraps a failure of the backing store.
type StoreError struct {
	Op  string
	Err error
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

type ErrorResponder interface {
	RespondError(w http.ResponseWriter, r *http.Request) bool
}

// errorBody is the JSON body of every error response.
type errorBody struct {
	Message string `json:"message"`
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

// NotFoundError responds with not found status code.
type NotFoundError struct {
	msg string
}

func NotFound(msg string) *NotFoundError {
	return &NotFoundError{msg: msg}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("NotFoundError: %v", e.msg)
}

func (e *NotFoundError) RespondError(w http.ResponseWriter, r *http.Request) bool {
	writeMessage(w, http.StatusNotFound, e.msg)
	return true
}

// BadRequestError responds with bad request status code. The message is
// meant for the client.
type BadRequestError struct {
	msg string
}

func BadRequest(msg string) *BadRequestError {
	return &BadRequestError{msg: msg}
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("BadRequestError: %v", e.msg)
}

func (e *BadRequestError) RespondError(w http.ResponseWriter, r *http.Request) bool {
	writeMessage(w, http.StatusBadRequest, e.msg)
	return true
}

// StoreUnavailableError responds with an internal server error, whether the store
// failed or was never configured. The wrapped error is never sent to the client.
type StoreUnavailableError struct {
	msg string
	err error
}

func StoreUnavailable(msg string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{msg: msg, err: err}
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("StoreUnavailableError: %v: %v", e.msg, e.err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.err
}

func (e *StoreUnavailableError) RespondError(w http.ResponseWriter, r *http.Request) bool {
	writeMessage(w, http.StatusInternalServerError, e.msg)
	return true
}

// MethodNotAllowedError responds with a method not allowed status code.
type MethodNotAllowedError struct {
	method string
	path   string
}

func MethodNotAllowed(method string, path string) *MethodNotAllowedError {
	return &MethodNotAllowedError{
		method: method,
		path:   path,
	}
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("MethodNotAllowed: %v %v", e.method, e.path)
}

func (e *MethodNotAllowedError) RespondError(w http.ResponseWriter, r *http.Request) bool {
	writeMessage(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	return true
}
