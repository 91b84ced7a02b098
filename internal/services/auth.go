package services

import (
	"context"
	"errors"
	"html"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/trckr/apiserver/internal/apperr"
	"github.com/trckr/apiserver/internal/store"
	"github.com/trckr/apiserver/types"
)

const (
	minPasswordLength = 6
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
	maxNameLength    = 100

	dummyPassword = "trckr-timing-equalizer"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type SignUpInput struct {
	Name     string
	Email    string
	Password string
}

type SignInInput struct {
	Email    string
	Password string
}

// Session is an authenticated user together with a freshly issued token.
type Session struct {
	User  types.UserSummary
	Token string
}

// AuthService encapsulates signup, signin and identity lookup.
type AuthService struct {
	users  UserRepository
	hasher Hasher
	tokens TokenIssuer
	policy *bluemonday.Policy
	logger *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users UserRepository, hasher Hasher, tokens TokenIssuer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		policy: bluemonday.StrictPolicy(),
		logger: logger,
	}
}

// SignUp creates an account and issues a session token for it.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (Session, error) {
	name := s.sanitizeName(in.Name)
	email := normalizeEmail(in.Email)

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return Session{}, apperr.ValidationCode(apperr.CodeMissingFields, "Name, email and password are required", map[string]any{"missing": missing})
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return Session{}, apperr.Validation("Name must be at most 100 characters")
	}
	if !emailPattern.MatchString(email) {
		return Session{}, apperr.ValidationCode(apperr.CodeInvalidEmail, "Please provide a valid email address", nil)
	}
	if len(in.Password) < minPasswordLength {
		return Session{}, apperr.ValidationCode(apperr.CodeWeakPassword, "Password must be at least 6 characters long", nil)
	}
	if len(in.Password) > maxPasswordBytes {
		return Session{}, apperr.ValidationCode(apperr.CodeWeakPassword, "Password must be at most 72 bytes long", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return Session{}, userExists()
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, wrapStoreErr(err, "Failed to check existing account")
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, err
	}

	user, err := s.users.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		PasswordHash: digest,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return Session{}, userExists()
		}
		return Session{}, wrapStoreErr(err, "Failed to create account")
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID))
	return s.session(user)
}

// SignIn verifies credentials. Unknown emails and wrong passwords fail
// identically and take comparable time.
func (s *AuthService) SignIn(ctx context.Context, in SignInInput) (Session, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return Session{}, apperr.ValidationCode(apperr.CodeMissingFields, "Email and password are required", nil)
	}
	if !emailPattern.MatchString(email) {
		return Session{}, apperr.ValidationCode(apperr.CodeInvalidEmail, "Please provide a valid email address", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.Verify(in.Password, s.dummyDigest())
			return Session{}, apperr.InvalidCredentials()
		}
		return Session{}, wrapStoreErr(err, "Failed to load account")
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return Session{}, apperr.InvalidCredentials()
	}
	return s.session(user)
}

// CurrentUser resolves the account behind an authenticated user id.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (types.UserSummary, error) {
	if !validID(userID) {
		return types.UserSummary{}, apperr.Authentication("User not found")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.UserSummary{}, apperr.Authentication("User not found")
		}
		return types.UserSummary{}, wrapStoreErr(err, "Failed to load account")
	}
	return user.Summary(), nil
}

func (s *AuthService) session(user types.User) (Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{User: user.Summary(), Token: token}, nil
}

func (s *AuthService) sanitizeName(name string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(name)))
}

// dummyDigest is compared against when the email is unknown.
func (s *AuthService) dummyDigest() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Warn("could not prepare dummy password digest", zap.Error(err))
			return
		}
		s.dummyHash = digest
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userExists() error {
	return apperr.Conflict(apperr.CodeUserExists, "An account with this email already exists")
}
