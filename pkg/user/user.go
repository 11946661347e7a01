package user

import (
	"time"

	"github.com/dmitrymomot/subledger/pkg/recordstore"
)

// User is a customer who can hold subscriptions.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Schema is the record store layout of the users collection.
var Schema = recordstore.MustSchema[User]("users", "created_at", "updated_at")

// CreateInput holds the fields for a new user.
type CreateInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateInput holds optional field changes; nil fields are left as they are.
type UpdateInput struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}
