package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the authentication subsystem.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingToken     = errors.New("missing bearer token")
	ErrPermissionDenied = errors.New("permission denied")
)

// Permissions understood by the API.
const (
	PermContentWrite   = "content:write"
	PermContentRead    = "content:read"
	PermDocumentsWrite = "documents:write"
	PermDocumentsRead  = "documents:read"
)

// Subject is the caller identified by a bearer token and passed to request
// handlers via context.
type Subject struct {
	Name        string
	Permissions []string

	permissionsSet map[string]struct{}
}

// normalise prepares the lookup set for permission checks.
func (s *Subject) normalise() {
	if s == nil {
		return
	}
	if s.permissionsSet == nil {
		s.permissionsSet = make(map[string]struct{}, len(s.Permissions))
		for _, perm := range s.Permissions {
			s.permissionsSet[strings.ToLower(strings.TrimSpace(perm))] = struct{}{}
		}
	}
}

// HasPermission reports whether the subject has the specified permission.
// The wildcard permission "*" grants everything.
func (s *Subject) HasPermission(permission string) bool {
	if s == nil {
		return false
	}
	s.normalise()
	if _, ok := s.permissionsSet["*"]; ok {
		return true
	}
	_, ok := s.permissionsSet[strings.ToLower(strings.TrimSpace(permission))]
	return ok
}

// Authorize ensures the subject has all required permissions.
func (s *Subject) Authorize(perms ...string) error {
	if s == nil {
		return ErrInvalidToken
	}
	for _, perm := range perms {
		if perm == "" {
			continue
		}
		if !s.HasPermission(perm) {
			return fmt.Errorf("%w: missing %s", ErrPermissionDenied, perm)
		}
	}
	return nil
}

// Mode enumerates the supported authentication modes.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeToken    Mode = "token"
)

// Token is a static bearer token granted to a named client.
type Token struct {
	Name        string
	Secret      string
	Permissions []string
}

// Config configures the authentication service.
type Config struct {
	Mode   Mode
	Tokens []Token
}
