package model

import "time"

// User represents an account as stored by the credential store.  The
// PasswordHash is never the plaintext and is never serialized; handlers
// define their own response types.
//
// Fields:
//
//	ID           – store-assigned identifier (decimal id, ObjectID hex or UUID).
//	Username     – globally unique display name.
//	Email        – globally unique, lowercased address.
//	PasswordHash – bcrypt or argon2id encoded hash.
//	CreatedAt    – timestamp of registration.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string `json:"-"`
	CreatedAt    time.Time
}
