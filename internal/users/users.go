// Package users implements the user directory.
package users

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/internal/validation"
	"github.com/kvapi-dev/kvapi/storage/model"
)

// Directory holds all users in memory and writes changes through to a
// Persister
type Directory struct {
	persister    model.Persister
	hasher       model.PasswordHasher
	valueMaxSize int
	now          func() time.Time

	mu      sync.RWMutex
	byID    map[string]*model.User
	byLogin map[string]string
	order   []string
}

// NewDirectory creates a new Directory; persister may be nil
func NewDirectory(persister model.Persister, hasher model.PasswordHasher, valueMaxSize int) *Directory {
	return &Directory{
		persister:    persister,
		hasher:       hasher,
		valueMaxSize: valueMaxSize,
		now:          time.Now,
		byID:         make(map[string]*model.User),
		byLogin:      make(map[string]string),
	}
}

// Load fills the Directory from persisted users
func (d *Directory) Load(users []model.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sorted := append([]model.User(nil), users...)
	sort.SliceStable(
		sorted, func(i, j int) bool {
			return sorted[i].CreatedAt < sorted[j].CreatedAt
		},
	)
	for i := range sorted {
		u := sorted[i]
		d.byID[u.ID] = &u
		d.byLogin[u.Login] = u.ID
		d.order = append(d.order, u.ID)
	}
	log.WithField("users", len(users)).Debug("loaded users")
}

// Reset drops all users from memory. Persisted data is not touched.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID = make(map[string]*model.User)
	d.byLogin = make(map[string]string)
	d.order = nil
}

// Count returns the number of users
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

func (d *Directory) persist(u model.User) error {
	if d.persister == nil {
		return nil
	}
	return errors.Wrap(d.persister.SaveUser(u), "could not persist user")
}

// Create creates a new user. The first user must be an admin. With bootstrap
// set the creation is only allowed as long as no user exists.
func (d *Directory) Create(login, password string, role model.Role, bootstrap bool) (*model.User, error) {
	if err := validation.Login(login); err != nil {
		return nil, err
	}
	if err := validation.Role(role); err != nil {
		return nil, err
	}
	if err := validation.Password(password); err != nil {
		return nil, err
	}
	hash, err := d.hasher.Hash(password)
	if err != nil {
		return nil, errors.Wrap(err, "could not hash password")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.byID) == 0 && role != model.RoleAdmin {
		return nil, model.BadRequestError("the first user must be an admin")
	}
	if bootstrap && len(d.byID) > 0 {
		return nil, model.UnauthorizedError("a session is required")
	}
	if _, taken := d.byLogin[login]; taken {
		return nil, model.AlreadyExistsErrorFmt("login already exists: %s", login)
	}
	createdAt := d.now().UnixNano()
	if n := len(d.order); n > 0 {
		if last := d.byID[d.order[n-1]].CreatedAt; createdAt <= last {
			createdAt = last + 1
		}
	}
	u := model.User{
		ID:           uuid.NewString(),
		CreatedAt:    createdAt,
		Login:        login,
		PasswordHash: hash,
		Role:         role,
	}
	if err = d.persist(u); err != nil {
		return nil, err
	}
	d.byID[u.ID] = &u
	d.byLogin[login] = u.ID
	d.order = append(d.order, u.ID)
	log.WithFields(
		log.Fields{
			"user": u.ID,
			"role": role,
		},
	).Info("created user")
	res := u
	return &res, nil
}

// Get returns a copy of a user
func (d *Directory) Get(id string) (*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, model.NotFoundErrorFmt("user not found: %s", id)
	}
	res := *u
	return &res, nil
}

// List returns all users ordered by creation
func (d *Directory) List() []model.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	res := make([]model.User, 0, len(d.order))
	for _, id := range d.order {
		res = append(res, *d.byID[id])
	}
	return res
}

// Authenticate checks a login/password pair. Unknown logins and wrong
// passwords are not distinguished. A hash created with outdated parameters
// is upgraded.
func (d *Directory) Authenticate(login, password string) (*model.User, error) {
	d.mu.RLock()
	var u model.User
	id, ok := d.byLogin[login]
	if ok {
		u = *d.byID[id]
	}
	d.mu.RUnlock()
	notFound := model.NotFoundError("invalid login or password")
	if !ok {
		return nil, notFound
	}
	valid, err := d.hasher.Verify(u.PasswordHash, password)
	if err != nil || !valid {
		return nil, notFound
	}
	if d.hasher.NeedsRehash(u.PasswordHash) {
		d.rehash(u.ID, u.PasswordHash, password)
	}
	return &u, nil
}

func (d *Directory) rehash(id, oldHash, password string) {
	newHash, err := d.hasher.Hash(password)
	if err != nil {
		log.WithError(err).Warn("could not rehash password")
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok || u.PasswordHash != oldHash {
		return
	}
	updated := *u
	updated.PasswordHash = newHash
	if err = d.persist(updated); err != nil {
		log.WithError(err).Warn("could not persist rehashed password")
		return
	}
	*u = updated
}

func validatePatch(patch model.UserPatch, valueMaxSize int) error {
	if login, ok := patch.Login.Get(); ok {
		if err := validation.Login(login); err != nil {
			return err
		}
	}
	if role, ok := patch.Role.Get(); ok {
		if err := validation.Role(role); err != nil {
			return err
		}
	}
	if password, ok := patch.Password.Get(); ok {
		if err := validation.Password(password); err != nil {
			return err
		}
	}
	if data, ok := patch.PrivateData.Get(); ok {
		if err := validation.PrivateData(data, valueMaxSize); err != nil {
			return err
		}
	}
	return nil
}

// Update applies a patch to a user. Authorization must have been checked by
// the caller.
func (d *Directory) Update(id string, patch model.UserPatch) (*model.User, error) {
	if err := validatePatch(patch, d.valueMaxSize); err != nil {
		return nil, err
	}
	var newHash string
	if password, ok := patch.Password.Get(); ok {
		var err error
		if newHash, err = d.hasher.Hash(password); err != nil {
			return nil, errors.Wrap(err, "could not hash password")
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, model.NotFoundErrorFmt("user not found: %s", id)
	}
	updated := *u
	if login, ok := patch.Login.Get(); ok && login != u.Login {
		if _, taken := d.byLogin[login]; taken {
			return nil, model.AlreadyExistsErrorFmt("login already exists: %s", login)
		}
		updated.Login = login
	}
	if role, ok := patch.Role.Get(); ok {
		updated.Role = role
	}
	if data, ok := patch.PrivateData.Get(); ok {
		updated.PrivateData = append([]byte(nil), data...)
	}
	if newHash != "" {
		updated.PasswordHash = newHash
		ts := d.now().UnixMilli()
		if prev := u.LastPasswordUpdateTimestamp; prev != nil && ts <= *prev {
			ts = *prev + 1
		}
		updated.LastPasswordUpdateTimestamp = &ts
	}
	if err := d.persist(updated); err != nil {
		return nil, err
	}
	if updated.Login != u.Login {
		delete(d.byLogin, u.Login)
		d.byLogin[updated.Login] = id
	}
	*u = updated
	log.WithFields(
		log.Fields{
			"user":   id,
			"fields": patch.Fields(),
		},
	).Info("updated user")
	res := updated
	return &res, nil
}

// Delete removes a user
func (d *Directory) Delete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return model.NotFoundErrorFmt("user not found: %s", id)
	}
	if d.persister != nil {
		if err := d.persister.DeleteUser(id); err != nil {
			return errors.Wrap(err, "could not delete persisted user")
		}
	}
	delete(d.byLogin, u.Login)
	delete(d.byID, id)
	for i, oid := range d.order {
		if oid == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	log.WithField("user", id).Info("deleted user")
	return nil
}
