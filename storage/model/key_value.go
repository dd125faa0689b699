package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// ScopePublic is the scope of the shared public namespace
const ScopePublic = ""

const privateScopePrefix = "user:"

// PrivateScope returns the scope of the private namespace of a user
func PrivateScope(userID string) string {
	return privateScopePrefix + userID
}

// IsPrivateScope reports whether scope belongs to a private namespace
func IsPrivateScope(scope string) bool {
	return scope != ScopePublic
}

// Entry is a single stored key-value pair of a namespace
type Entry struct {
	UpdatedAt int64 `gorm:"autoUpdateTime" json:"-" msgpack:"updated_at"`

	// Scope identifies the namespace; ScopePublic or a PrivateScope
	Scope string `gorm:"primaryKey;size:64" json:"scope" msgpack:"scope"`
	// KeyHash is IndexHash(Key); keys are too long for a mysql index
	KeyHash string `gorm:"primaryKey;size:64" json:"-" msgpack:"-"`
	// Key is the identifier within a scope
	Key string `gorm:"size:1024" json:"key" msgpack:"key"`
	// Value is opaque to the server
	Value []byte `json:"value" msgpack:"value"`
}

// KeyValueMap is the content of a namespace
type KeyValueMap map[string][]byte

// IndexHash returns the hex encoded sha256 of s. Long strings are indexed by
// their hash so every index fits the mysql index size limit.
func IndexHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
