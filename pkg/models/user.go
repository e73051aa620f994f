package models

import "time"

// User is the portal's record of a cluster user. Rows are created on first
// authenticated access and never deleted by the portal.
type User struct {
	Username  string         `db:"username"   json:"username"`
	Email     string         `db:"email"      json:"email"`
	Password  string         `db:"password"   json:"-"`
	GroupList []string       `db:"grouplist"  json:"grouplist"`
	Extension map[string]any `db:"extension"  json:"extension"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Identity is the authenticated caller as established by the auth middleware.
type Identity struct {
	Username string `json:"username" validate:"required,max=64"`
	Email    string `json:"email"    validate:"omitempty,email"`
	// OID is the identity provider's subject identifier, or the API key id
	// for key-authenticated callers.
	OID string `json:"oid"`
}

// NewUserFromIdentity builds the default record for a first-time caller.
// The subject identifier doubles as the credential placeholder; it is only
// used for token generation.
func NewUserFromIdentity(id Identity) *User {
	return &User{
		Username:  id.Username,
		Email:     id.Email,
		Password:  id.OID,
		GroupList: []string{},
		Extension: map[string]any{},
	}
}
