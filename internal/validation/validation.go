// Package validation holds the shape and size checks applied to request
// parameters before they reach a store.
package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// Limits on parameter length
const (
	KeyMaxLength   = 1024
	LoginMaxLength = 999
)

const keySpecialChars = "_-.:/+=~!$*()[]{},;| "

func keyCharAllowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	default:
		return strings.ContainsRune(keySpecialChars, r)
	}
}

// ClientKey is the check a client runs before sending a key
func ClientKey(key string) error {
	if key == "" {
		return model.InvalidParamError("key")
	}
	return nil
}

// Key checks an entry key
func Key(key string) error {
	if key == "" {
		return model.BadRequestError("key must not be empty")
	}
	if utf8.RuneCountInString(key) > KeyMaxLength {
		return model.BadRequestErrorFmt("key must not be longer than %d characters", KeyMaxLength)
	}
	for _, r := range key {
		if !keyCharAllowed(r) {
			return model.BadRequestErrorFmt("key contains invalid character %q", r)
		}
	}
	return nil
}

// Value checks an entry value against the maximum size
func Value(value []byte, maxSize int) error {
	if len(value) > maxSize {
		return model.BadRequestErrorFmt("value must not be larger than %d bytes", maxSize)
	}
	return nil
}

// PrivateData checks the private data of a user; it is limited like a value
func PrivateData(data []byte, maxSize int) error {
	if len(data) > maxSize {
		return model.BadRequestErrorFmt("privateData must not be larger than %d bytes", maxSize)
	}
	return nil
}

// Login checks a login name
func Login(login string) error {
	if login == "" {
		return model.BadRequestError("login must not be empty")
	}
	if utf8.RuneCountInString(login) > LoginMaxLength {
		return model.BadRequestErrorFmt("login must not be longer than %d characters", LoginMaxLength)
	}
	return nil
}

// Role checks a role
func Role(role model.Role) error {
	if !role.Valid() {
		return model.BadRequestErrorFmt("invalid role '%s'", role)
	}
	return nil
}

// Password checks a password
func Password(password string) error {
	if password == "" {
		return model.BadRequestError("password must not be empty")
	}
	return nil
}
