// Package router dispatches single operations through access control and
// validation to the stores.
package router

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kvapi-dev/kvapi/internal/access"
	"github.com/kvapi-dev/kvapi/internal/entries"
	"github.com/kvapi-dev/kvapi/internal/sessions"
	"github.com/kvapi-dev/kvapi/internal/users"
	"github.com/kvapi-dev/kvapi/internal/validation"
	"github.com/kvapi-dev/kvapi/storage/model"
)

// Router executes operations
type Router struct {
	users    *users.Directory
	sessions *sessions.Manager
	entries  *entries.Store
	limits   model.Limits
}

// New creates a new Router
func New(u *users.Directory, s *sessions.Manager, e *entries.Store, limits model.Limits) *Router {
	return &Router{
		users:    u,
		sessions: s,
		entries:  e,
		limits:   limits,
	}
}

// resolveCaller returns the caller behind sessionID or nil for an
// unauthenticated request. Unknown and expired sessions count as
// unauthenticated.
func (r *Router) resolveCaller(ctx context.Context, sessionID string) (*access.Caller, error) {
	if sessionID == "" {
		return nil, nil
	}
	s, err := r.sessions.Authenticate(ctx, sessionID)
	if err != nil {
		var unauthorized model.UnauthorizedError
		if errors.As(err, &unauthorized) {
			return nil, nil
		}
		return nil, err
	}
	u, err := r.users.Get(s.UserID)
	if err != nil {
		var notFound model.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return &access.Caller{
		SessionID: s.ID,
		User:      *u,
	}, nil
}

func (r *Router) target(op model.Operation) access.Target {
	t := access.Target{
		UserID:                op.ID,
		HasAnyUsers:           r.users.Count() > 0,
		PublicEntriesDisabled: r.limits.DisablePublicEntries,
	}
	if op.Patch != nil {
		t.Patch = *op.Patch
	}
	return t
}

// Dispatch executes a single operation on behalf of the session with the
// passed id and returns the result body. An empty sessionID is an
// unauthenticated request.
func (r *Router) Dispatch(ctx context.Context, sessionID string, op model.Operation) (any, error) {
	caller, err := r.resolveCaller(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	target := r.target(op)
	if err = access.Decide(caller, op.Op, target); err != nil {
		log.WithFields(
			log.Fields{
				"op":    op.Op,
				"error": err.Error(),
			},
		).Debug("operation denied")
		return nil, err
	}
	switch op.Op {
	case model.OpAppInfoGet:
		return r.limits.AppInfo(target.HasAnyUsers), nil
	case model.OpSessionsCreate:
		return r.createSession(ctx, op)
	case model.OpSessionsUpdate:
		return nil, nil
	case model.OpSessionsDelete:
		return nil, r.sessions.Delete(ctx, caller.SessionID)
	case model.OpUsersCreate:
		u, err := r.users.Create(op.Login, op.Password, op.Role, caller == nil)
		if err != nil {
			return nil, err
		}
		return u.Public(), nil
	case model.OpUsersGetAll:
		list := r.users.List()
		res := make([]model.UserPublic, len(list))
		for i, u := range list {
			res[i] = u.Public()
		}
		return res, nil
	case model.OpUsersGet:
		u, err := r.users.Get(op.ID)
		if err != nil {
			return nil, err
		}
		return project(caller, u), nil
	case model.OpUsersUpdate:
		u, err := r.users.Update(op.ID, target.Patch)
		if err != nil {
			return nil, err
		}
		return project(caller, u), nil
	case model.OpUsersDelete:
		return nil, r.deleteUser(ctx, op.ID)
	case model.OpPublicEntriesGetAll:
		return r.entries.GetAll(model.ScopePublic), nil
	case model.OpPublicEntriesGet, model.OpPublicEntriesSet, model.OpPublicEntriesDelete:
		return r.entryOp(model.ScopePublic, op)
	case model.OpPrivateEntriesGetAll:
		return r.entries.GetAll(model.PrivateScope(caller.User.ID)), nil
	case model.OpPrivateEntriesGet, model.OpPrivateEntriesSet, model.OpPrivateEntriesDelete:
		return r.entryOp(model.PrivateScope(caller.User.ID), op)
	default:
		return nil, model.BadRequestErrorFmt("unknown operation '%s'", op.Op)
	}
}

func project(caller *access.Caller, u *model.User) any {
	if caller != nil && caller.User.ID == u.ID {
		return u.WithoutPassword()
	}
	return u.Public()
}

func (r *Router) createSession(ctx context.Context, op model.Operation) (*model.SessionInfo, error) {
	u, err := r.users.Authenticate(op.Login, op.Password)
	if err != nil {
		return nil, err
	}
	s, err := r.sessions.Create(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &model.SessionInfo{
		SessionID: s.ID,
		User:      u.WithoutPassword(),
	}, nil
}

func (r *Router) deleteUser(ctx context.Context, id string) error {
	if err := r.users.Delete(id); err != nil {
		return err
	}
	if err := r.sessions.DeleteForUser(ctx, id); err != nil {
		return errors.WithMessage(err, "user deleted but sessions remain")
	}
	if err := r.entries.DropScope(model.PrivateScope(id)); err != nil {
		return errors.WithMessage(err, "user deleted but private entries remain")
	}
	return nil
}

func (r *Router) entryOp(scope string, op model.Operation) (any, error) {
	if err := validation.Key(op.Key); err != nil {
		return nil, err
	}
	switch op.Op {
	case model.OpPublicEntriesGet, model.OpPrivateEntriesGet:
		return r.entries.Get(scope, op.Key)
	case model.OpPublicEntriesSet, model.OpPrivateEntriesSet:
		if err := validation.Value(op.Value, r.limits.ValueMaxSize); err != nil {
			return nil, err
		}
		return nil, r.entries.Set(scope, op.Key, op.Value)
	default:
		return nil, r.entries.Delete(scope, op.Key)
	}
}
