package domain

import "github.com/google/uuid"

// Role is the acting user's privilege level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated caller of an operation. Authentication happens
// upstream; the engine only consumes the result.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor holds admin rights.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Owns reports whether the actor may see and mutate c.
func (a Actor) Owns(c Card) bool {
	return a.IsAdmin() || (a.UserID != "" && c.OwnerID == a.UserID)
}

// NewID returns a new random card identifier.
func NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
