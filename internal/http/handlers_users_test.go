package httpapi

import (
	"net/http"
	"testing"
)

func TestListUsersAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/users", env.userToken)
	requireStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.get(t, "/users", env.adminToken)
	requireStatus(t, resp, http.StatusOK)
	page := decodeJSON[listResponse[userDTO]](t, resp)
	if page.TotalEntries != 2 {
		t.Fatalf("total = %d, want the two provisioned users", page.TotalEntries)
	}
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)

	t.Run("admin creates a user", func(t *testing.T) {
		resp := env.post(t, "/users", env.adminToken, map[string]any{
			"email":    "new@test",
			"password": "pw-123456",
		})
		requireStatus(t, resp, http.StatusOK)
		created := decodeJSON[userDTO](t, resp)
		if created.Email != "new@test" || created.Role != "user" {
			t.Fatalf("created = %+v", created)
		}
		if !created.IsActive {
			t.Fatal("new users start active")
		}
	})

	t.Run("non-admin is rejected", func(t *testing.T) {
		resp := env.post(t, "/users", env.userToken, map[string]any{
			"email": "x@test", "password": "pw",
		})
		requireStatus(t, resp, http.StatusForbidden)
		resp.Body.Close()
	})

	t.Run("missing password", func(t *testing.T) {
		resp := env.post(t, "/users", env.adminToken, map[string]any{"email": "y@test"})
		requireStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	})

	t.Run("bad role", func(t *testing.T) {
		resp := env.post(t, "/users", env.adminToken, map[string]any{
			"email": "z@test", "password": "pw", "role": "superuser",
		})
		requireStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	})
}

func TestUserAccessScoping(t *testing.T) {
	env := newTestEnv(t)

	t.Run("self retrieve", func(t *testing.T) {
		resp := env.get(t, "/users/"+env.user.ID, env.userToken)
		requireStatus(t, resp, http.StatusOK)
		got := decodeJSON[userDTO](t, resp)
		if got.ID != env.user.ID {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("other user forbidden", func(t *testing.T) {
		resp := env.get(t, "/users/"+env.admin.ID, env.userToken)
		requireStatus(t, resp, http.StatusForbidden)
		resp.Body.Close()
	})

	t.Run("admin retrieves anyone", func(t *testing.T) {
		resp := env.get(t, "/users/"+env.user.ID, env.adminToken)
		requireStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	})

	t.Run("role change needs admin", func(t *testing.T) {
		resp := env.put(t, "/users/"+env.user.ID, env.userToken, map[string]any{"role": "admin"})
		requireStatus(t, resp, http.StatusForbidden)
		resp.Body.Close()

		resp = env.put(t, "/users/"+env.user.ID, env.adminToken, map[string]any{"role": "admin"})
		requireStatus(t, resp, http.StatusOK)
		updated := decodeJSON[userDTO](t, resp)
		if updated.Role != "admin" {
			t.Fatalf("role = %q", updated.Role)
		}
	})

	t.Run("deactivation needs admin", func(t *testing.T) {
		active := false
		resp := env.put(t, "/users/"+env.user.ID, env.userToken, map[string]any{"is_active": &active})
		requireStatus(t, resp, http.StatusForbidden)
		resp.Body.Close()
	})
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)

	resp := env.delete(t, "/users/"+env.user.ID, env.userToken)
	requireStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = env.delete(t, "/users/"+env.user.ID, env.adminToken)
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = env.get(t, "/users/"+env.user.ID, env.adminToken)
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)

	t.Run("wrong current password", func(t *testing.T) {
		resp := env.post(t, "/users/"+env.user.ID+"/change_password", env.userToken, map[string]string{
			"current_password": "nope",
			"new_password":     "next-pw-123",
		})
		requireStatus(t, resp, http.StatusUnauthorized)
		resp.Body.Close()
	})

	t.Run("self change with correct password", func(t *testing.T) {
		resp := env.post(t, "/users/"+env.user.ID+"/change_password", env.userToken, map[string]string{
			"current_password": testPassword,
			"new_password":     "next-pw-123",
		})
		requireStatus(t, resp, http.StatusOK)
		resp.Body.Close()

		// Old password no longer logs in, the new one does.
		resp = env.post(t, "/login", "", map[string]string{"email": env.user.Email, "password": testPassword})
		requireStatus(t, resp, http.StatusUnauthorized)
		resp.Body.Close()
		resp = env.post(t, "/login", "", map[string]string{"email": env.user.Email, "password": "next-pw-123"})
		requireStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	})

	t.Run("admin resets without current password", func(t *testing.T) {
		resp := env.post(t, "/users/"+env.user.ID+"/change_password", env.adminToken, map[string]string{
			"new_password": "admin-set-pw",
		})
		requireStatus(t, resp, http.StatusOK)
		resp.Body.Close()

		resp = env.post(t, "/login", "", map[string]string{"email": env.user.Email, "password": "admin-set-pw"})
		requireStatus(t, resp, http.StatusOK)
		resp.Body.Close()
	})

	t.Run("change revokes refresh tokens", func(t *testing.T) {
		login := env.post(t, "/login", "", map[string]string{"email": env.user.Email, "password": "admin-set-pw"})
		requireStatus(t, login, http.StatusOK)
		tokens := decodeJSON[map[string]any](t, login)
		refresh, _ := tokens["refresh_token"].(string)

		resp := env.post(t, "/users/"+env.user.ID+"/change_password", env.adminToken, map[string]string{
			"new_password": "rotated-again",
		})
		requireStatus(t, resp, http.StatusOK)
		resp.Body.Close()

		resp = env.post(t, "/refresh_access_token", "", map[string]string{"refresh_token": refresh})
		requireStatus(t, resp, http.StatusUnauthorized)
		resp.Body.Close()
	})
}

func TestUserCollections(t *testing.T) {
	env := newTestEnv(t)
	env.createCollection(t, env.userToken, "mine")
	env.createCollection(t, env.adminToken, "theirs")

	resp := env.get(t, "/users/"+env.user.ID+"/collections", env.userToken)
	requireStatus(t, resp, http.StatusOK)
	page := decodeJSON[listResponse[collectionDTO]](t, resp)
	if page.TotalEntries != 1 || page.Results[0].Name != "mine" {
		t.Fatalf("collections = %+v", page)
	}
}
