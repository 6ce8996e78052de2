package server

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"blogicum/internal/models"
	"blogicum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)
	env.fx.User("taken")

	t.Run("form renders", func(t *testing.T) {
		resp := env.client(t).get("/auth/registration")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), `name="password2"`)
	})

	t.Run("mismatched passwords", func(t *testing.T) {
		resp := env.client(t).post("/auth/registration", url.Values{
			"username":  {"newbie"},
			"email":     {"newbie@example.com"},
			"password1": {"long-enough-secret"},
			"password2": {"something-else-entirely"},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := readBody(t, resp)
		assert.Contains(t, body, `class="error"`)
		assert.Contains(t, body, `value="newbie"`, "entered username is kept")
	})

	t.Run("duplicate username", func(t *testing.T) {
		resp := env.client(t).post("/auth/registration", url.Values{
			"username":  {"taken"},
			"email":     {"other@example.com"},
			"password1": {"long-enough-secret"},
			"password2": {"long-enough-secret"},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "A user with that username already exists.")
	})

	t.Run("success redirects to login", func(t *testing.T) {
		resp := env.client(t).post("/auth/registration", url.Values{
			"username":   {"newbie"},
			"email":      {"newbie@example.com"},
			"first_name": {"New"},
			"last_name":  {"Bie"},
			"password1":  {"long-enough-secret"},
			"password2":  {"long-enough-secret"},
		})
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/auth/login", resp.Header.Get("Location"))

		var user models.User
		require.NoError(t, env.db.Where("username = ?", "newbie").First(&user).Error)
		assert.Equal(t, "New", user.FirstName)
		assert.NotEqual(t, "long-enough-secret", user.Password)
	})

	t.Run("logged in users are sent to their profile", func(t *testing.T) {
		alice := env.fx.User("alice")
		resp := env.client(t).loginAs(alice).get("/auth/registration")
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/profile/alice", resp.Header.Get("Location"))
	})
}

func TestRegister_DisabledByFlag(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.FeatureFlags = "registration=false"
	srv, err := NewServerWithDeps(env.cfg, env.db, nil)
	require.NoError(t, err)
	env.srv, env.app = srv, srv.NewApp()

	resp := env.client(t).get("/auth/registration")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.client(t).get("/auth/login")
	assert.NotContains(t, readBody(t, resp), "/auth/registration")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.fx.User("alice")

	t.Run("wrong password", func(t *testing.T) {
		cl := env.client(t)
		resp := cl.post("/auth/login", url.Values{
			"username": {"alice"},
			"password": {"not-the-password"},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "Please enter a correct username and password.")
		assert.NotContains(t, cl.cookies, sessionCookie)
	})

	t.Run("unknown user", func(t *testing.T) {
		resp := env.client(t).post("/auth/login", url.Values{
			"username": {"ghost"},
			"password": {testutil.Password},
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "Please enter a correct username and password.")
	})

	t.Run("success sets the session and follows next", func(t *testing.T) {
		cl := env.client(t)
		resp := cl.post("/auth/login", url.Values{
			"username": {"alice"},
			"password": {testutil.Password},
			"next":     {"/posts/create"},
		})
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/posts/create", resp.Header.Get("Location"))
		require.Contains(t, cl.cookies, sessionCookie)

		resp = cl.get("/posts/create")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("external next is ignored", func(t *testing.T) {
		resp := env.client(t).post("/auth/login", url.Values{
			"username": {"alice"},
			"password": {testutil.Password},
			"next":     {"//evil.example.com/"},
		})
		assert.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
	})
}

func TestLogout_RevokesSession(t *testing.T) {
	env := newTestEnv(t)
	alice := env.fx.User("alice")

	cl := env.client(t).loginAs(alice)
	token := cl.cookies[sessionCookie]
	assert.Contains(t, readBody(t, cl.get("/")), "Log out")

	resp := cl.post("/auth/logout", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.NotContains(t, cl.cookies, sessionCookie)

	claims, err := env.srv.parseToken(token)
	require.NoError(t, err)
	assert.True(t, env.mr.Exists(blacklistPrefix+claims.JTI))

	// Replaying the old cookie no longer authenticates.
	replay := env.client(t)
	replay.cookies[sessionCookie] = token
	resp = replay.get("/posts/create")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/auth/login"))
}

func TestSession_InvalidCookieIsAnonymous(t *testing.T) {
	env := newTestEnv(t)

	cl := env.client(t)
	cl.cookies[sessionCookie] = "not-a-jwt"
	resp := cl.get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Log in")
	assert.NotContains(t, cl.cookies, sessionCookie, "bad cookie is cleared")
}

func TestCSRF_MissingTokenIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.fx.User("alice")

	cl := env.client(t)
	cl.csrfToken()
	resp := cl.postRaw("/auth/login", url.Values{
		"username": {"alice"},
		"password": {testutil.Password},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.NotContains(t, cl.cookies, sessionCookie)
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", "/"},
		{"/posts/1", "/posts/1"},
		{"https://evil.example.com", "/"},
		{"//evil.example.com", "/"},
		{`/\evil.example.com`, "/"},
		{"relative", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeNext(tt.next, "/"), tt.next)
	}
}
