package model

// Backends groups the storage facilities used by the application.
type Backends struct {
	Persister Persister
	Hasher    PasswordHasher
}
