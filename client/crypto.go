package client

import (
	"crypto/rand"
	"encoding/json"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	saltLen      = 16
	privateKeyID = "dataKey"
)

// Password key derivation parameters; changing them makes existing private
// data unreadable.
const (
	kdfTime    = 2
	kdfMemory  = 19 * 1024
	kdfThreads = 1
)

var errDecrypt = errors.New("could not decrypt data")

func derivePasswordKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, kdfTime, kdfMemory, kdfThreads, chacha20poly1305.KeySize)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.Wrap(err, "could not read random bytes")
	}
	return b, nil
}

// seal encrypts plaintext with XChaCha20-Poly1305; the nonce is prepended
func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	nonce, err := randomBytes(aead.NonceSize())
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(nonce), len(nonce)+len(plaintext)+aead.Overhead())
	copy(out, nonce)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

func open(key, data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, errDecrypt
	}
	plain, err := aead.Open(nil, data[:aead.NonceSize()], data[aead.NonceSize():], nil)
	if err != nil {
		return nil, errDecrypt
	}
	return plain, nil
}

// keyring holds the key material of the logged-in user. The private data
// blob of a user is salt || seal(passwordKey, json) where the json object
// carries the data key that encrypts private entry values.
type keyring struct {
	salt        []byte
	passwordKey []byte
	dataKey     []byte
}

// newKeyring creates fresh key material for password and returns it with
// the private data blob to store
func newKeyring(password string) (*keyring, []byte, error) {
	dataKey, err := randomBytes(chacha20poly1305.KeySize)
	if err != nil {
		return nil, nil, err
	}
	plain, err := json.Marshal(map[string][]byte{privateKeyID: dataKey})
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	salt, err := randomBytes(saltLen)
	if err != nil {
		return nil, nil, err
	}
	k := &keyring{
		salt:        salt,
		passwordKey: derivePasswordKey(password, salt),
		dataKey:     dataKey,
	}
	blob, err := k.encryptPrivateData(plain)
	if err != nil {
		return nil, nil, err
	}
	return k, blob, nil
}

// unlockKeyring restores the key material from a private data blob
func unlockKeyring(password string, blob []byte) (*keyring, error) {
	if len(blob) < saltLen {
		return nil, errDecrypt
	}
	k := &keyring{
		salt: append([]byte(nil), blob[:saltLen]...),
	}
	k.passwordKey = derivePasswordKey(password, k.salt)
	plain, err := k.decryptPrivateData(blob)
	if err != nil {
		return nil, err
	}
	if k.dataKey, err = extractDataKey(plain); err != nil {
		return nil, err
	}
	return k, nil
}

func extractDataKey(plain []byte) ([]byte, error) {
	var content map[string]json.RawMessage
	if err := json.Unmarshal(plain, &content); err != nil {
		return nil, errors.Wrap(err, "invalid private data")
	}
	var dataKey []byte
	if err := json.Unmarshal(content[privateKeyID], &dataKey); err != nil {
		return nil, errors.Wrap(err, "invalid data key")
	}
	if len(dataKey) != chacha20poly1305.KeySize {
		return nil, errors.New("invalid data key")
	}
	return dataKey, nil
}

// decryptPrivateData returns the json content of a private data blob
func (k *keyring) decryptPrivateData(blob []byte) ([]byte, error) {
	if len(blob) < saltLen {
		return nil, errDecrypt
	}
	return open(k.passwordKey, blob[saltLen:])
}

// encryptPrivateData seals json content into a private data blob
func (k *keyring) encryptPrivateData(plain []byte) ([]byte, error) {
	sealed, err := seal(k.passwordKey, plain)
	if err != nil {
		return nil, err
	}
	return append(append([]byte(nil), k.salt...), sealed...), nil
}

// rewrap returns the keyring for newPassword and plain sealed under it. The
// data key is kept so private entries stay readable.
func (k *keyring) rewrap(newPassword string, plain []byte) (*keyring, []byte, error) {
	dataKey, err := extractDataKey(plain)
	if err != nil {
		return nil, nil, err
	}
	salt, err := randomBytes(saltLen)
	if err != nil {
		return nil, nil, err
	}
	next := &keyring{
		salt:        salt,
		passwordKey: derivePasswordKey(newPassword, salt),
		dataKey:     dataKey,
	}
	blob, err := next.encryptPrivateData(plain)
	if err != nil {
		return nil, nil, err
	}
	return next, blob, nil
}

func (k *keyring) sealValue(value []byte) ([]byte, error) {
	return seal(k.dataKey, value)
}

func (k *keyring) openValue(data []byte) ([]byte, error) {
	return open(k.dataKey, data)
}
