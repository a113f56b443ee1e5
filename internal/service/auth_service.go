package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kuliahku/kuliahku-api/internal/dto"
	"github.com/kuliahku/kuliahku-api/internal/models"
	"github.com/kuliahku/kuliahku-api/pkg/config"
	appErrors "github.com/kuliahku/kuliahku-api/pkg/errors"
)

type authUserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByRememberToken(ctx context.Context, token string) (*models.User, error)
	SetRememberToken(ctx context.Context, id, token string, expires time.Time) error
	ClearRememberToken(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const passwordSymbols = `!@#$%^&*()-_=+[]{};:,.<>?`

// AuthService resolves request credentials into a verified user identity and
// issues session and remember tokens.
type AuthService struct {
	repo      authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    config.AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, validate *validator.Validate, logger *zap.Logger, cfg config.AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, config: cfg}
}

// Register creates a new account. Password-strength violations are collected
// and reported together rather than failing on the first rule.
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*models.PublicUser, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid register payload")
	}

	var violations []string
	if !emailPattern.MatchString(req.Email) {
		violations = append(violations, "email must be a valid address")
	}
	violations = append(violations, passwordViolations(req.Password)...)
	if len(violations) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(violations, "; "))
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	verification, err := generateOpaqueToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create verification token")
	}

	user := &models.User{
		Name:              req.Name,
		Email:             strings.ToLower(req.Email),
		PasswordHash:      string(passwordHash),
		IsEmailVerified:   false,
		VerificationToken: &verification,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	public := user.Public()
	return &public, nil
}

// Login authenticates credentials and issues tokens. Unknown email and wrong
// password produce the same error so accounts cannot be enumerated.
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	sessionToken, err := s.IssueSessionToken(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session token")
	}

	res := &dto.LoginResponse{
		User:         user.Public(),
		SessionToken: sessionToken,
		ExpiresIn:    int64(s.config.SessionExpiry.Seconds()),
	}

	if req.RememberMe {
		rememberToken, err := generateOpaqueToken()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create remember token")
		}
		expires := time.Now().UTC().Add(s.config.RememberExpiry)
		if err := s.repo.SetRememberToken(ctx, user.ID, rememberToken, expires); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist remember token")
		}
		res.RememberToken = rememberToken
	} else if err := s.repo.ClearRememberToken(ctx, user.ID); err != nil {
		s.logger.Warn("failed to clear remember token", zap.Error(err))
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	return res, nil
}

// ResolveIdentity resolves a caller from either token. A valid session token
// wins; otherwise a non-expired remember token resolves the user and signals
// that a fresh session token should be issued (sliding renewal). Token
// verification failures never surface as raw crypto errors.
func (s *AuthService) ResolveIdentity(ctx context.Context, sessionToken, rememberToken string) (*models.Identity, bool, error) {
	if sessionToken != "" {
		if claims := s.parseSessionToken(sessionToken); claims != nil {
			return &models.Identity{UserID: claims.UserID, Email: claims.Email, Name: claims.Name}, false, nil
		}
	}

	if rememberToken != "" {
		user, err := s.repo.FindByRememberToken(ctx, rememberToken)
		if err == nil && user.RememberTokenExpires != nil && time.Now().UTC().Before(*user.RememberTokenExpires) {
			return &models.Identity{UserID: user.ID, Email: user.Email, Name: user.Name}, true, nil
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("remember token lookup failed", zap.Error(err))
		}
	}

	return nil, false, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
}

// Logout clears the caller's server-side remember token. It is best-effort:
// internal failures are logged and swallowed, the client-side cookie clearing
// is the actual logout mechanism.
func (s *AuthService) Logout(ctx context.Context, sessionToken, rememberToken string) {
	userID := ""
	if claims := s.parseSessionToken(sessionToken); claims != nil {
		userID = claims.UserID
	}
	if userID == "" && rememberToken != "" {
		if user, err := s.repo.FindByRememberToken(ctx, rememberToken); err == nil {
			userID = user.ID
		}
	}
	if userID == "" {
		return
	}
	if err := s.repo.ClearRememberToken(ctx, userID); err != nil {
		s.logger.Warn("failed to clear remember token on logout", zap.Error(err), zap.String("user_id", userID))
	}
}

// ChangePassword verifies the current password and stores a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req dto.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	}

	if req.NewPassword == req.CurrentPassword {
		return appErrors.Clone(appErrors.ErrValidation, "new password must be different from the current password")
	}
	if len(req.NewPassword) < 8 {
		return appErrors.Clone(appErrors.ErrValidation, "new password must be at least 8 characters")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(newHash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	return nil
}

// IssueSessionToken signs a session JWT for the given identity.
func (s *AuthService) IssueSessionToken(userID, email, name string) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID: userID,
		Email:  email,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.SessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// SessionExpiry exposes the configured session lifetime for cookie max-age.
func (s *AuthService) SessionExpiry() time.Duration {
	return s.config.SessionExpiry
}

// RememberExpiry exposes the configured remember-token lifetime.
func (s *AuthService) RememberExpiry() time.Duration {
	return s.config.RememberExpiry
}

// parseSessionToken verifies a session JWT, swallowing all parse and
// signature errors into a nil result.
func (s *AuthService) parseSessionToken(tokenString string) *models.JWTClaims {
	if tokenString == "" {
		return nil
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		return nil
	}
	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil
	}
	return claims
}

// passwordViolations checks the strength rules and returns every violated one.
func passwordViolations(password string) []string {
	var violations []string
	if len(password) < 8 {
		violations = append(violations, "password must be at least 8 characters")
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	if !hasLower {
		violations = append(violations, "password must contain a lowercase letter")
	}
	if !hasUpper {
		violations = append(violations, "password must contain an uppercase letter")
	}
	if !hasDigit {
		violations = append(violations, "password must contain a digit")
	}
	if !hasSymbol {
		violations = append(violations, "password must contain a symbol")
	}
	return violations
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
