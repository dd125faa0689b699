package storage

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

// Argon2idParams configures Argon2id hashing parameters
type Argon2idParams struct {
	Time        uint32 `yaml:"time"`
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Parallelism uint8  `yaml:"parallelism"`
	KeyLen      uint32 `yaml:"key_len"`
	SaltLen     uint32 `yaml:"salt_len"`
}

// Argon2idHasher is a model.PasswordHasher producing PHC-formatted argon2id
// hashes
type Argon2idHasher struct {
	params Argon2idParams
}

// NewArgon2idHasher creates a new Argon2idHasher; zero params select the
// defaults
func NewArgon2idHasher(params Argon2idParams) *Argon2idHasher {
	if params.Time == 0 {
		params = defaultArgon2idParams()
	}
	return &Argon2idHasher{params: params}
}

// Hash implements the model.PasswordHasher interface
func (h *Argon2idHasher) Hash(password string) (string, error) {
	return hashPasswordArgon2id(password, h.params)
}

// Verify implements the model.PasswordHasher interface
func (h *Argon2idHasher) Verify(encoded, password string) (bool, error) {
	return verifyPasswordArgon2id(encoded, password)
}

// NeedsRehash implements the model.PasswordHasher interface
func (h *Argon2idHasher) NeedsRehash(encoded string) bool {
	stored, err := extractArgon2idParams(encoded)
	return err == nil && !argon2idParamsEqual(stored, h.params)
}

// hashPasswordArgon2id returns a PHC-formatted argon2id hash string
// Format: $argon2id$v=19$m=65536,t=1,p=4$<saltB64>$<hashB64>
func hashPasswordArgon2id(password string, p Argon2idParams) (string, error) {
	if p.Time == 0 {
		p = defaultArgon2idParams()
	}
	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	dk := argon2.IDKey([]byte(password), salt, p.Time, p.MemoryKiB, p.Parallelism, p.KeyLen)
	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	hashB64 := base64.RawStdEncoding.EncodeToString(dk)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s", p.MemoryKiB, p.Time, p.Parallelism, saltB64, hashB64), nil
}

// verifyPasswordArgon2id verifies the given password against a PHC-formatted argon2id hash
func verifyPasswordArgon2id(encoded, password string) (bool, error) {
	params, salt, hash, err := parseArgon2id(encoded)
	if err != nil {
		return false, err
	}
	dk := argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKiB, params.Parallelism, uint32(len(hash)))
	return subtle.ConstantTimeCompare(dk, hash) == 1, nil
}

// extractArgon2idParams parses a PHC-formatted argon2id string and returns parameters
func extractArgon2idParams(encoded string) (Argon2idParams, error) {
	p, _, _, err := parseArgon2id(encoded)
	return p, err
}

func parseArgon2idParam(kv, name string, bitSize int) (uint64, bool, error) {
	if !strings.HasPrefix(kv, name+"=") {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(kv, name+"="), 10, bitSize)
	return v, true, err
}

// parseArgon2id parses a PHC-formatted argon2id hash and returns parameters, salt and hash bytes.
func parseArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	var out Argon2idParams
	if !strings.HasPrefix(encoded, "$argon2id$") {
		return out, nil, nil, errors.Errorf("unsupported password hash format")
	}
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return out, nil, nil, errors.Errorf("invalid argon2id hash format")
	}
	if parts[2] != "v=19" {
		return out, nil, nil, errors.Errorf("unsupported argon2 version")
	}
	for _, kv := range strings.Split(parts[3], ",") {
		if v, ok, err := parseArgon2idParam(kv, "m", 32); err != nil {
			return out, nil, nil, err
		} else if ok {
			out.MemoryKiB = uint32(v)
		}
		if v, ok, err := parseArgon2idParam(kv, "t", 32); err != nil {
			return out, nil, nil, err
		} else if ok {
			out.Time = uint32(v)
		}
		if v, ok, err := parseArgon2idParam(kv, "p", 8); err != nil {
			return out, nil, nil, err
		} else if ok {
			out.Parallelism = uint8(v)
		}
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return out, nil, nil, err
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return out, nil, nil, err
	}
	out.SaltLen = uint32(len(salt))
	out.KeyLen = uint32(len(hash))
	return out, salt, hash, nil
}

func argon2idParamsEqual(a, b Argon2idParams) bool {
	return a.Time == b.Time && a.MemoryKiB == b.MemoryKiB && a.Parallelism == b.Parallelism && a.KeyLen == b.KeyLen && a.SaltLen == b.SaltLen
}

func defaultArgon2idParams() Argon2idParams {
	return Argon2idParams{Time: 1, MemoryKiB: 64 * 1024, Parallelism: 4, KeyLen: 32, SaltLen: 16}
}
