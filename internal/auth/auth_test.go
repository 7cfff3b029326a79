package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCan(t *testing.T) {
	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ImportData, true},
		{RoleAdmin, ManageConnections, true},
		{RoleAdmin, ViewDetails, true},
		{RoleEditor, ImportData, false},
		{RoleEditor, ManageConnections, true},
		{RoleEditor, ViewDetails, true},
		{RoleViewer, ImportData, false},
		{RoleViewer, ManageConnections, false},
		{RoleViewer, ViewDetails, true},
		{RoleAdmin, Action("delete_everything"), false},
		{Role("Root"), ViewDetails, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.action))
		})
	}
}

func TestLookup(t *testing.T) {
	u, err := Lookup("u2")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", u.Name)
	assert.Equal(t, RoleEditor, u.Role)

	_, err = Lookup("u9")
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestUser_Authorize(t *testing.T) {
	viewer, err := Lookup("u3")
	require.NoError(t, err)

	err = viewer.Authorize(ImportData)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.Contains(t, err.Error(), "u3 (Viewer) cannot import_data")

	assert.NoError(t, viewer.Authorize(ViewDetails))
}

func TestMiddleware(t *testing.T) {
	var seen User
	handler := Middleware("u1")(Require(ManageConnections)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantUser string
	}{
		{name: "default user", wantCode: http.StatusNoContent, wantUser: "u1"},
		{name: "editor allowed", header: "u2", wantCode: http.StatusNoContent, wantUser: "u2"},
		{name: "viewer forbidden", header: "u3", wantCode: http.StatusForbidden},
		{name: "unknown user", header: "mallory", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = User{}
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.header != "" {
				req.Header.Set(Header, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantUser, seen.ID)
		})
	}
}

func TestRequire_WithoutMiddleware(t *testing.T) {
	handler := Require(ViewDetails)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
