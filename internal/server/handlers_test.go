package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixmaster/backend/internal/auth/service"
	"mixmaster/backend/internal/googleauth"
	"mixmaster/backend/internal/security"
	sessiondomain "mixmaster/backend/internal/session/domain"
	userdomain "mixmaster/backend/internal/user/domain"
	"mixmaster/backend/internal/verification"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]*userdomain.User{}} }

func (r *memUsers) GetByID(_ context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUsers) Create(_ context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *memUsers) SetVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return errors.New("not found")
	}
	u.IsVerified = true
	return nil
}

func (r *memUsers) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]*sessiondomain.Session{}}
}

func (r *memSessions) GetByRefreshTokenHash(_ context.Context, hash string) (*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.RefreshTokenHash == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memSessions) ListByUser(_ context.Context, userID string) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*sessiondomain.Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSessions) UpsertByDevice(_ context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.sessions {
		if existing.UserID == s.UserID && existing.DeviceID == s.DeviceID {
			delete(r.sessions, id)
		}
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessions) RotateRefreshToken(_ context.Context, sessionID, newHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return errors.New("not found")
	}
	s.RefreshTokenHash = newHash
	s.LastSeenAt = &at
	return nil
}

func (r *memSessions) DeleteByDevice(_ context.Context, userID, deviceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID && s.DeviceID == deviceID {
			delete(r.sessions, id)
			return true, nil
		}
	}
	return false, nil
}

func (r *memSessions) DeleteAllByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

type recordingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *recordingMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

type stubGoogle struct {
	info *googleauth.UserInfo
}

func (g *stubGoogle) Exchange(_ context.Context, _ string) (*googleauth.UserInfo, error) {
	if g.info == nil {
		return nil, errors.New("bad code")
	}
	return g.info, nil
}

type apiFixture struct {
	router   *gin.Engine
	users    *memUsers
	sessions *memSessions
	mail     *recordingMailer
	google   *stubGoogle
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := newMemUsers()
	sessions := newMemSessions()
	mail := &recordingMailer{codes: map[string]string{}}
	google := &stubGoogle{}

	tokens := newTestTokenProvider(t)

	auth := service.NewAuthService(
		users, sessions, security.NewHasher(4), tokens,
		verification.NewMemoryStore(), mail, google, nil, 10*time.Minute,
	)
	router := New(Deps{
		Auth:     auth,
		Tokens:   tokens,
		Users:    users,
		Sessions: sessions,
	})
	return &apiFixture{router: router, users: users, sessions: sessions, mail: mail, google: google}
}

func (f *apiFixture) postJSON(t *testing.T, path string, payload any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) get(t *testing.T, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// signup registers, verifies, and logs in; returns the token pair.
func (f *apiFixture) signup(t *testing.T, email, password, deviceID string) (access, refresh string) {
	t.Helper()
	w := f.postJSON(t, "/user/register", gin.H{
		"email": email, "username": "tester", "password": password,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	f.mail.mu.Lock()
	code := f.mail.codes[email]
	f.mail.mu.Unlock()
	w = f.postJSON(t, "/user/verify", gin.H{"email": email, "code": code}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.postJSON(t, "/user/login", gin.H{
		"email": email, "password": password,
		"device": gin.H{"id": deviceID, "name": "Pixel", "type": "android"},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	access, _ = body["accessToken"].(string)
	refresh, _ = body["refreshToken"].(string)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	return access, refresh
}

// login logs an existing verified user in from another device.
func (f *apiFixture) login(t *testing.T, email, password, deviceID string) (access, refresh string) {
	t.Helper()
	w := f.postJSON(t, "/user/login", gin.H{
		"email": email, "password": password,
		"device": gin.H{"id": deviceID},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	access, _ = body["accessToken"].(string)
	refresh, _ = body["refreshToken"].(string)
	return access, refresh
}

func TestRegisterLoginFlow(t *testing.T) {
	f := newAPIFixture(t)

	w := f.postJSON(t, "/user/register", gin.H{
		"email": "ada@example.com", "username": "ada", "password": "longpassword",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["sent"])

	// Login before verification: 400 with a message.
	w = f.postJSON(t, "/user/login", gin.H{
		"email": "ada@example.com", "password": "longpassword",
		"device": gin.H{"id": "d1"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["message"], "verify")

	access, _ := f.signup(t, "grace@example.com", "longpassword", "d1")

	w = f.get(t, "/user/me", map[string]string{"Authorization": "Bearer " + access})
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "grace@example.com", user["email"])
	assert.NotContains(t, user, "passwordHash")
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "dup@example.com", "longpassword", "d1")

	w := f.postJSON(t, "/user/register", gin.H{
		"email": "dup@example.com", "username": "x", "password": "longpassword",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, false, decodeBody(t, w)["success"])
}

func TestLoginWrongPassword(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "ada@example.com", "longpassword", "d1")

	w := f.postJSON(t, "/user/login", gin.H{
		"email": "ada@example.com", "password": "wrongpassword",
		"device": gin.H{"id": "d1"},
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginMissingFieldsAreBadRequests(t *testing.T) {
	f := newAPIFixture(t)
	f.signup(t, "ada@example.com", "longpassword", "d1")

	tests := []struct {
		name string
		body gin.H
	}{
		{name: "missing device id", body: gin.H{"email": "ada@example.com", "password": "longpassword"}},
		{name: "missing password", body: gin.H{"email": "ada@example.com", "device": gin.H{"id": "d1"}}},
		{name: "missing email", body: gin.H{"password": "longpassword", "device": gin.H{"id": "d1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.postJSON(t, "/user/login", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestRefreshEndpointRotates(t *testing.T) {
	f := newAPIFixture(t)
	_, refresh := f.signup(t, "ada@example.com", "longpassword", "d1")

	w := f.postJSON(t, "/user/refresh", nil, map[string]string{"Authorization": "Bearer " + refresh})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	newRefresh, _ := body["refreshToken"].(string)
	require.NotEmpty(t, newRefresh)
	assert.NotEqual(t, refresh, newRefresh)

	// Replaying the old token now revokes everything: 401 and an empty registry.
	w = f.postJSON(t, "/user/refresh", nil, map[string]string{"Authorization": "Bearer " + refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.sessions.mu.Lock()
	assert.Empty(t, f.sessions.sessions)
	f.sessions.mu.Unlock()

	// The rotated token died with the wipe.
	w = f.postJSON(t, "/user/refresh", nil, map[string]string{"Authorization": "Bearer " + newRefresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	_, refresh := f.signup(t, "ada@example.com", "longpassword", "d1")

	w := f.postJSON(t, "/user/logout", nil, map[string]string{"Authorization": "Bearer " + refresh})
	assert.Equal(t, http.StatusOK, w.Code)

	// The refresh token no longer works.
	w = f.postJSON(t, "/user/refresh", nil, map[string]string{"Authorization": "Bearer " + refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisconnectEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	access, _ := f.signup(t, "ada@example.com", "longpassword", "phone-1")
	f.login(t, "ada@example.com", "longpassword", "laptop-1") // second device
	authz := map[string]string{"Authorization": "Bearer " + access}

	w := f.get(t, "/user/sessions", authz)
	require.Equal(t, http.StatusOK, w.Code)
	sessions, _ := decodeBody(t, w)["sessions"].([]any)
	assert.Len(t, sessions, 2)

	w = f.get(t, "/user/disconnect/laptop-1", authz)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.get(t, "/user/disconnect/laptop-1", authz)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.get(t, "/user/disconnect", authz)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.get(t, "/user/sessions", authz)
	require.Equal(t, http.StatusOK, w.Code)
	sessions, _ = decodeBody(t, w)["sessions"].([]any)
	assert.Empty(t, sessions)
}

func TestGoogleLoginEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.google.info = &googleauth.UserInfo{ID: "g1", Email: "ada@example.com", Name: "Ada"}

	w := f.postJSON(t, "/user/google", gin.H{
		"code": "oauth-code", "device": gin.H{"id": "d1"},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, true, user["isVerified"])
	assert.NotEmpty(t, body["accessToken"])
}

func TestDeleteAccountEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	access, refresh := f.signup(t, "ada@example.com", "longpassword", "d1")

	req := httptest.NewRequest(http.MethodDelete, "/user", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Account gone: access token now resolves to a missing user.
	w2 := f.get(t, "/user/me", map[string]string{"Authorization": "Bearer " + access})
	assert.Equal(t, http.StatusNotFound, w2.Code)
	// And its refresh token is dead.
	w3 := f.postJSON(t, "/user/refresh", nil, map[string]string{"Authorization": "Bearer " + refresh})
	assert.Equal(t, http.StatusUnauthorized, w3.Code)
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)
	w := f.get(t, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["success"])
}

func TestResendEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	w := f.postJSON(t, "/user/register", gin.H{
		"email": "ada@example.com", "username": "ada", "password": "longpassword",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.postJSON(t, "/user/resend", gin.H{"email": "ada@example.com"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["sent"])

	w = f.postJSON(t, "/user/resend", gin.H{"email": "ghost@example.com"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
