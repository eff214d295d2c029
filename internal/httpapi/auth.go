package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"flowershop/backend/internal/domain"
	"flowershop/backend/internal/store"
)

const tokenIssuer = "flowershop"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// AuthManager issues and verifies staff access tokens. Accounts live in the
// user store and are read on every login, so users created by another
// process (cmd/migrate) can sign in without a restart.
type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore store.UserStore
	now       func() time.Time
}

type staffClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore store.UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		now:       time.Now,
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	user, err := a.lookup(ctx, req.Username)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if !verifyPassword(user.Password, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !user.Active {
		return domain.LoginResponse{}, ErrInactiveAccount
	}

	expiresAt := a.now().UTC().Add(a.tokenTTL)
	token, err := a.sign(user.Username, user.Role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) lookup(ctx context.Context, username string) (domain.UserAccount, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return domain.UserAccount{}, ErrInvalidCredentials
	}
	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		return domain.UserAccount{}, err
	}
	for _, user := range users {
		if strings.EqualFold(user.Username, username) {
			return user, nil
		}
	}
	return domain.UserAccount{}, ErrInvalidCredentials
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &staffClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	claims := staffClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// CreateStaff adds a staff account. Validation failures wrap
// store.ErrInvalidInput and a taken username is store.ErrDuplicate.
func (a *AuthManager) CreateStaff(ctx context.Context, req domain.StaffCreateRequest) (domain.StaffUser, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 || len(username) > 150 {
		return domain.StaffUser{}, fmt.Errorf("%w: username must be 4 to 150 characters", store.ErrInvalidInput)
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.StaffUser{}, fmt.Errorf("%w: username must not contain spaces", store.ErrInvalidInput)
	}
	if len(req.Password) < 8 {
		return domain.StaffUser{}, fmt.Errorf("%w: password must be at least 8 characters", store.ErrInvalidInput)
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return domain.StaffUser{}, fmt.Errorf("hash password: %w", err)
	}

	now := a.now().UTC()
	err = a.userStore.CreateUser(ctx, domain.UserAccount{
		Username:  username,
		Password:  passwordHash,
		Role:      domain.RoleStaff,
		Active:    true,
		CreatedAt: now,
	})
	if err != nil {
		return domain.StaffUser{}, err
	}

	return domain.StaffUser{
		Username:  username,
		Role:      domain.RoleStaff,
		Active:    true,
		CreatedAt: now,
	}, nil
}

func (a *AuthManager) ListStaff(ctx context.Context) ([]domain.StaffUser, error) {
	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.StaffUser, 0, len(users))
	for _, user := range users {
		if user.Role != domain.RoleStaff {
			continue
		}
		result = append(result, domain.StaffUser{
			Username:  user.Username,
			Role:      user.Role,
			Active:    user.Active,
			CreatedAt: user.CreatedAt,
		})
	}
	return result, nil
}

// ResetStaffPassword replaces the password of an existing staff account.
// Admin accounts are not reachable here and report store.ErrNotFound.
func (a *AuthManager) ResetStaffPassword(ctx context.Context, username string, req domain.StaffPasswordResetRequest) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return fmt.Errorf("%w: username is required", store.ErrInvalidInput)
	}
	if len(req.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", store.ErrInvalidInput)
	}

	user, err := a.lookup(ctx, username)
	if errors.Is(err, ErrInvalidCredentials) || (err == nil && user.Role != domain.RoleStaff) {
		return fmt.Errorf("%w: staff user %q", store.ErrNotFound, username)
	}
	if err != nil {
		return err
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return a.userStore.UpdateUserPassword(ctx, user.Username, passwordHash)
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

// HashPassword bcrypt-hashes a password for storage in the users table.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
