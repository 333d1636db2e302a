package workspace

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNotMember       = errors.New("not a workspace member")
	ErrInvalidState    = errors.New("invalid state")
	ErrEmailMismatch   = errors.New("email mismatch")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrArchived        = errors.New("workspace archived")
	ErrConflict        = errors.New("conflict")
)

// Error is a rule violation whose message is shown to the end user as is.
// It unwraps to one of the sentinel errors above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func workspaceNotFound(id string) *Error {
	return newError(ErrNotFound, "Workspace %s was not found.", id)
}

func inviteNotFound(id string) *Error {
	return newError(ErrNotFound, "Invite %s was not found.", id)
}

func notMember(workspaceID, userID string) *Error {
	return newError(ErrNotMember, "User %s is not a member of workspace %s.", userID, workspaceID)
}

func archived(id string) *Error {
	return newError(ErrArchived, "Workspace %s is archived.", id)
}
