package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCredentialNotFound = errors.New("no credentials stored")
	ErrConnectionNotFound = errors.New("no active connection")
	ErrInvalidStateToken  = errors.New("invalid oauth state token")
)

// ValidationError carries the list of missing required credential fields.
// Format problems are advisory warnings and never produce one of these.
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.MissingFields, ", "))
}
