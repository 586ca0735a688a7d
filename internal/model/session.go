package model

import "fmt"

// Session identifies the caller of a core operation. It is derived from the
// bearer token by the HTTP layer and passed explicitly to every service.
type Session struct {
	UserID string
	Type   UserType
}

func (s Session) Require(t UserType) error {
	if s.UserID == "" {
		return fmt.Errorf("no active session: %w", ErrForbidden)
	}
	if s.Type != t {
		return fmt.Errorf("%s account required: %w", t, ErrForbidden)
	}
	return nil
}
