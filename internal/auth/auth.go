// Package auth holds the static role table and user directory that gate
// mutating operations.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
)

// Role is a user's permission tier.
type Role string

// Roles.
const (
	RoleAdmin  Role = "Admin"
	RoleEditor Role = "Editor"
	RoleViewer Role = "Viewer"
)

// Action is a permission-checked operation.
type Action string

// Actions.
const (
	ManageConnections Action = "manage_connections"
	ImportData        Action = "import_data"
	ViewDetails       Action = "view_details"
)

// ErrForbidden is returned when a user's role does not allow an action.
var ErrForbidden = errors.New("forbidden")

// ErrUnknownUser is returned for ids missing from the directory.
var ErrUnknownUser = errors.New("unknown user")

var permissions = map[Action][]Role{
	ImportData:        {RoleAdmin},
	ManageConnections: {RoleAdmin, RoleEditor},
	ViewDetails:       {RoleAdmin, RoleEditor, RoleViewer},
}

// Can reports whether role may perform action. Unknown actions are denied.
func Can(role Role, action Action) bool {
	return slices.Contains(permissions[action], role)
}

// User is a directory entry.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Avatar string `json:"avatar"`
}

// Can reports whether the user may perform action.
func (u User) Can(action Action) bool {
	return Can(u.Role, action)
}

// Authorize returns ErrForbidden, wrapped with context, if the user may not
// perform action.
func (u User) Authorize(action Action) error {
	if !u.Can(action) {
		return fmt.Errorf("%s (%s) cannot %s: %w", u.ID, u.Role, action, ErrForbidden)
	}
	return nil
}

// Users is the built-in directory.
var Users = []User{
	{
		ID:     "u1",
		Name:   "Sarah Connor",
		Email:  "sarah@skynet-defense.com",
		Role:   RoleAdmin,
		Avatar: "https://api.dicebear.com/7.x/avataaars/svg?seed=Sarah&backgroundColor=b6e3f4",
	},
	{
		ID:     "u2",
		Name:   "John Doe",
		Email:  "john@techcorp.com",
		Role:   RoleEditor,
		Avatar: "https://api.dicebear.com/7.x/avataaars/svg?seed=John&backgroundColor=c0aede",
	},
	{
		ID:     "u3",
		Name:   "Guest Observer",
		Email:  "guest@auditor.com",
		Role:   RoleViewer,
		Avatar: "https://api.dicebear.com/7.x/avataaars/svg?seed=Guest&backgroundColor=ffdfbf",
	},
}

// Lookup finds a user by id.
func Lookup(id string) (User, error) {
	for _, u := range Users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("%w: %q", ErrUnknownUser, id)
}

// Header carries the caller's user id.
const Header = "X-Nimbus-User"

type ctxKey struct{}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the user set by Middleware.
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}

// Middleware resolves the caller from Header, falling back to defaultID
// when the header is absent. Unknown ids get 401.
func Middleware(defaultID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(Header)
			if id == "" {
				id = defaultID
			}
			u, err := Lookup(id)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// Require rejects requests whose user may not perform action with 403.
func Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, ErrUnknownUser.Error(), http.StatusUnauthorized)
				return
			}
			if err := u.Authorize(action); err != nil {
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
