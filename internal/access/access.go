// Package access decides whether a caller may perform an operation.
package access

import (
	arrays "github.com/adam-hanna/arrayOperations"
	"tideland.dev/go/slices"

	"github.com/kvapi-dev/kvapi/storage/model"
)

// Caller is the authenticated user behind a request
type Caller struct {
	SessionID string
	User      model.User
}

// IsAdmin reports whether the caller is an admin
func (c *Caller) IsAdmin() bool {
	return c != nil && c.User.Role == model.RoleAdmin
}

// Target carries what is known about the subject of an operation
type Target struct {
	// UserID is the id of the addressed user for users operations
	UserID string
	// Patch is the patch of a users.update
	Patch model.UserPatch
	// HasAnyUsers reports whether at least one user exists
	HasAnyUsers bool
	// PublicEntriesDisabled reports whether public entries are switched off
	PublicEntriesDisabled bool
}

var (
	ownFieldsAuthorized   = []string{model.UserFieldPassword, model.UserFieldPrivateData}
	ownFieldsAdmin        = []string{model.UserFieldPassword, model.UserFieldPrivateData, model.UserFieldLogin}
	othersFieldsForbidden = []string{model.UserFieldPassword, model.UserFieldPrivateData}
)

var errNoSession = model.UnauthorizedError("a valid session is required")

// Decide returns nil if caller may perform op on target and an
// UnauthorizedError or ForbiddenError otherwise. A nil caller is an
// unauthenticated request. Whether the target exists is not checked here.
func Decide(caller *Caller, op model.OpName, target Target) error {
	switch op {
	case model.OpAppInfoGet, model.OpSessionsCreate:
		return nil
	case model.OpPublicEntriesGetAll, model.OpPublicEntriesGet, model.OpPublicEntriesSet,
		model.OpPublicEntriesDelete:
		if target.PublicEntriesDisabled {
			return model.ForbiddenError("public entries are disabled")
		}
		return nil
	case model.OpUsersCreate:
		if !target.HasAnyUsers {
			return nil
		}
		return requireAdmin(caller)
	case model.OpUsersGetAll:
		return requireAdmin(caller)
	case model.OpUsersGet:
		if caller == nil {
			return errNoSession
		}
		if caller.User.ID == target.UserID || caller.IsAdmin() {
			return nil
		}
		return model.ForbiddenError("users may only read their own record")
	case model.OpUsersUpdate:
		return decideUpdate(caller, target)
	case model.OpUsersDelete:
		if err := requireAdmin(caller); err != nil {
			return err
		}
		if caller.User.ID == target.UserID {
			return model.ForbiddenError("admins cannot delete themselves")
		}
		return nil
	case model.OpSessionsUpdate, model.OpSessionsDelete,
		model.OpPrivateEntriesGetAll, model.OpPrivateEntriesGet, model.OpPrivateEntriesSet,
		model.OpPrivateEntriesDelete:
		if caller == nil {
			return errNoSession
		}
		return nil
	default:
		return model.BadRequestErrorFmt("unknown operation '%s'", op)
	}
}

func requireAdmin(caller *Caller) error {
	if caller == nil {
		return errNoSession
	}
	if !caller.IsAdmin() {
		return model.ForbiddenError("admin role required")
	}
	return nil
}

func decideUpdate(caller *Caller, target Target) error {
	if caller == nil {
		return errNoSession
	}
	fields := target.Patch.Fields()
	if caller.User.ID == target.UserID {
		if target.Patch.Role.IsSet() {
			return model.ForbiddenError("users cannot change their own role")
		}
		allowed := ownFieldsAuthorized
		if caller.IsAdmin() {
			allowed = ownFieldsAdmin
		}
		if disallowed := slices.Subtract(fields, allowed); len(disallowed) > 0 {
			return model.ForbiddenErrorFmt("users cannot change their own %s", disallowed[0])
		}
		return nil
	}
	if !caller.IsAdmin() {
		return model.ForbiddenError("users may only update their own record")
	}
	if forbidden := arrays.Intersect(fields, othersFieldsForbidden); len(forbidden) > 0 {
		return model.ForbiddenErrorFmt("admins cannot change the %s of other users", forbidden[0])
	}
	return nil
}
