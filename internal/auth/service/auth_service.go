package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"mixmaster/backend/internal/events"
	"mixmaster/backend/internal/googleauth"
	"mixmaster/backend/internal/mailer"
	"mixmaster/backend/internal/security"
	sessiondomain "mixmaster/backend/internal/session/domain"
	userdomain "mixmaster/backend/internal/user/domain"
	"mixmaster/backend/internal/verification"
)

// Sentinel errors for the auth service; handlers map them to HTTP statuses.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrNotVerified            = errors.New("please verify your email")
	ErrAlreadyVerified        = errors.New("email already verified")
	ErrInvalidRefreshToken    = errors.New("invalid refresh token")
	ErrRefreshTokenReuse      = errors.New("refresh token not registered; all sessions revoked")
	ErrGoogleAuthFailed       = errors.New("google authentication failed")
	ErrUserNotFound           = errors.New("user not found")
	ErrDeviceNotFound         = errors.New("no session for device")
)

// ValidationError reports a rejected request field. Handlers map it to a 400.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

// Device is the client-supplied device descriptor sent with login requests.
// ID is the stable identifier enforcing one session per device.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// AuthResult holds the outcome of Login, GoogleLogin, or Refresh.
// User is nil for Refresh (token-only flow).
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *userdomain.User
}

// RegisterResult reports the created user and whether the verification mail went out.
type RegisterResult struct {
	User *userdomain.User
	Sent bool
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
	SetVerified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// SessionRepo is the minimal session registry needed by the auth service.
type SessionRepo interface {
	GetByRefreshTokenHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	UpsertByDevice(ctx context.Context, s *sessiondomain.Session) error
	RotateRefreshToken(ctx context.Context, sessionID, newHash string, at time.Time) error
	DeleteByDevice(ctx context.Context, userID, deviceID string) (bool, error)
	DeleteAllByUser(ctx context.Context, userID string) error
}

// AuthService implements registration, verification, password and Google
// login, refresh-token rotation, and session revocation.
type AuthService struct {
	userRepo    UserRepo
	sessionRepo SessionRepo
	hasher      *security.Hasher
	tokens      *security.TokenProvider
	codes       verification.Store
	mail        mailer.Mailer // nil disables outbound mail; register reports sent=false
	google      googleauth.Verifier
	emitter     events.Emitter // nil disables auth events
	codeTTL     time.Duration
}

// NewAuthService returns an AuthService with the given dependencies.
// mail, google, and emitter may be nil; the corresponding features degrade gracefully.
func NewAuthService(
	userRepo UserRepo,
	sessionRepo SessionRepo,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	codes verification.Store,
	mail mailer.Mailer,
	google googleauth.Verifier,
	emitter events.Emitter,
	codeTTL time.Duration,
) *AuthService {
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	return &AuthService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		hasher:      hasher,
		tokens:      tokens,
		codes:       codes,
		mail:        mail,
		google:      google,
		emitter:     emitter,
		codeTTL:     codeTTL,
	}
}

// Register creates an unverified user with the given email, username, and
// password, then issues a verification code and mails it. The user cannot log
// in until VerifyEmail succeeds. picture is an optional stored-image path.
func (s *AuthService) Register(ctx context.Context, email, username, password, picture string) (*RegisterResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		Username:     strings.TrimSpace(username),
		PasswordHash: hashed,
		Picture:      picture,
		Provider:     userdomain.ProviderLocal,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, &ValidationError{msg: err.Error()}
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	sent := s.sendCode(ctx, email)
	s.emit(ctx, events.TypeUserRegistered, user.ID, nil)
	return &RegisterResult{User: user, Sent: sent}, nil
}

// VerifyEmail consumes the pending verification code for the address and
// marks the user verified. Verification errors from the code store
// (expired, mismatched, absent) pass through for the handler to map.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	if err := s.codes.Consume(ctx, email, code); err != nil {
		return err
	}
	if err := s.userRepo.SetVerified(ctx, user.ID); err != nil {
		return err
	}
	s.emit(ctx, events.TypeUserVerified, user.ID, nil)
	return nil
}

// ResendCode issues a fresh verification code for an unverified address and
// mails it. Returns whether the mail went out.
func (s *AuthService) ResendCode(ctx context.Context, email string) (bool, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, ErrUserNotFound
	}
	if user.IsVerified {
		return false, ErrAlreadyVerified
	}
	return s.sendCode(ctx, email), nil
}

// Login authenticates with email/password, requires a verified account, and
// establishes the device's session. Logging in again from the same device
// replaces that device's session in place, revoking its previous refresh token.
func (s *AuthService) Login(ctx context.Context, email, password string, device Device) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, &ValidationError{msg: "email is required"}
	}
	if password == "" {
		return nil, &ValidationError{msg: "password is required"}
	}
	if device.ID == "" {
		return nil, &ValidationError{msg: "device.id is required"}
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return nil, ErrNotVerified
	}

	result, err := s.establishSession(ctx, user, device)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TypeUserLogin, user.ID, map[string]string{"device_id": device.ID})
	return result, nil
}

// GoogleLogin exchanges the OAuth authorization code, finds or creates a
// verified account for the Google identity, and establishes the device's
// session through the same path as password login.
func (s *AuthService) GoogleLogin(ctx context.Context, code string, device Device) (*AuthResult, error) {
	if s.google == nil {
		return nil, ErrGoogleAuthFailed
	}
	if code == "" {
		return nil, &ValidationError{msg: "code is required"}
	}
	if device.ID == "" {
		return nil, &ValidationError{msg: "device.id is required"}
	}
	info, err := s.google.Exchange(ctx, code)
	if err != nil {
		return nil, ErrGoogleAuthFailed
	}

	email := strings.TrimSpace(strings.ToLower(info.Email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		now := time.Now().UTC()
		user = &userdomain.User{
			ID:         uuid.New().String(),
			Email:      email,
			Username:   defaultUsername(info.Name, email),
			Picture:    info.Picture,
			Provider:   userdomain.ProviderGoogle,
			IsVerified: true, // Google already verified the address
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
	}

	result, err := s.establishSession(ctx, user, device)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.TypeUserLoginGoogle, user.ID, map[string]string{"device_id": device.ID})
	return result, nil
}

// Refresh validates the refresh token, rotates it in place, and returns a new
// access+refresh pair.
//
// A token that carries a valid signature but is absent from the session
// registry has been rotated away or revoked; presenting one is treated as
// possible replay of a stolen token, and every session of that user is
// revoked before the request is rejected.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	sess, err := s.sessionRepo.GetByRefreshTokenHash(ctx, security.HashRefreshToken(refreshToken))
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID != userID ||
		!security.RefreshTokenHashEqual(refreshToken, sess.RefreshTokenHash) {
		_ = s.sessionRepo.DeleteAllByUser(ctx, userID)
		s.emit(ctx, events.TypeRefreshReplay, userID, nil)
		return nil, ErrRefreshTokenReuse
	}

	newRefresh, err := s.tokens.IssueRefresh(userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.sessionRepo.RotateRefreshToken(ctx, sess.ID, security.HashRefreshToken(newRefresh), now); err != nil {
		return nil, err
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(userID)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, events.TypeTokenRefreshed, userID, map[string]string{"device_id": sess.DeviceID})
	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    accessExp,
	}, nil
}

// Logout revokes the session identified by the refresh token. A token whose
// session is already gone is a no-op; an unverifiable token is rejected.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	userID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}
	sess, err := s.sessionRepo.GetByRefreshTokenHash(ctx, security.HashRefreshToken(refreshToken))
	if err != nil {
		return err
	}
	if sess == nil || sess.UserID != userID {
		return nil
	}
	if _, err := s.sessionRepo.DeleteByDevice(ctx, sess.UserID, sess.DeviceID); err != nil {
		return err
	}
	s.emit(ctx, events.TypeSessionRevoked, userID, map[string]string{"device_id": sess.DeviceID})
	return nil
}

// Disconnect revokes the user's session for one device.
func (s *AuthService) Disconnect(ctx context.Context, userID, deviceID string) error {
	ok, err := s.sessionRepo.DeleteByDevice(ctx, userID, deviceID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDeviceNotFound
	}
	s.emit(ctx, events.TypeSessionRevoked, userID, map[string]string{"device_id": deviceID})
	return nil
}

// DisconnectAll clears the user's session registry (logout everywhere).
func (s *AuthService) DisconnectAll(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DeleteAllByUser(ctx, userID); err != nil {
		return err
	}
	s.emit(ctx, events.TypeSessionsRevokeAll, userID, nil)
	return nil
}

// Sessions lists the user's active sessions (device metadata only; token
// hashes are not exposed by handlers).
func (s *AuthService) Sessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessionRepo.ListByUser(ctx, userID)
}

// Me returns the user for the given id.
func (s *AuthService) Me(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// DeleteAccount revokes every session and removes the user record.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DeleteAllByUser(ctx, userID); err != nil {
		return err
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return err
	}
	s.emit(ctx, events.TypeUserDeleted, userID, nil)
	return nil
}

// establishSession issues an access+refresh pair for the device and upserts
// the session registry entry. This is the one-session-per-device enforcement
// point: an existing session for the device is replaced, not appended.
func (s *AuthService) establishSession(ctx context.Context, user *userdomain.User, device Device) (*AuthResult, error) {
	refreshToken, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, err
	}

	sess := &sessiondomain.Session{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		DeviceID:         device.ID,
		DeviceName:       device.Name,
		DeviceType:       device.Type,
		RefreshTokenHash: security.HashRefreshToken(refreshToken),
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.sessionRepo.UpsertByDevice(ctx, sess); err != nil {
		return nil, err
	}

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		User:         user,
	}, nil
}

// sendCode issues a verification code for the address and mails it.
// Failures are swallowed: registration succeeds with sent=false.
func (s *AuthService) sendCode(ctx context.Context, email string) bool {
	code, err := verification.NewCode()
	if err != nil {
		return false
	}
	if err := s.codes.Put(ctx, email, code, s.codeTTL); err != nil {
		return false
	}
	if s.mail == nil {
		return false
	}
	return s.mail.SendVerificationCode(ctx, email, code) == nil
}

func (s *AuthService) emit(ctx context.Context, eventType, userID string, metadata map[string]string) {
	events.EmitAsync(s.emitter, ctx, &events.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		UserID:    userID,
		IP:        events.ClientIPFrom(ctx),
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	})
}

func defaultUsername(name, email string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		return name
	}
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{msg: "email is required"}
	}
	if !emailPattern.MatchString(email) {
		return &ValidationError{msg: "invalid email format"}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return &ValidationError{msg: "password must be at least 8 characters"}
	}
	return nil
}
