// Package auth учетные записи по логину и паролю и вход через сессии.
//
// Успешный вход создает сессию на сервере и возвращает подписанный токен,
// который ссылается на нее по ID. Выход удаляет сессию, после чего токен
// перестает действовать еще до истечения срока.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ivanov-nikolay/notes_storage/internal/logging"
	"github.com/ivanov-nikolay/notes_storage/internal/metrics"
	"github.com/ivanov-nikolay/notes_storage/internal/models"
	"github.com/ivanov-nikolay/notes_storage/internal/storage"
)

const (
	issuer = "notes_storage"
	// shareAudience аудитория токенов доступа к одному файлу
	shareAudience = "shared_view"
	// DefaultShareTTL срок действия токена доступа к файлу
	DefaultShareTTL = 15 * time.Minute
)

type contextKey string

const userContextKey contextKey = "user"

// Claims данные токена сессии; ID (jti) это ID сессии
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// ShareClaims данные токена доступа к одному файлу без сессии
type ShareClaims struct {
	Folder   string `json:"folder"`
	Filename string `json:"filename"`
	jwt.RegisteredClaims
}

// Auth учетные записи и сессии
type Auth struct {
	users    storage.UserStore
	sessions storage.SessionStore
	secret   []byte
	ttl      time.Duration
	shareTTL time.Duration
	cost     int
	now      func() time.Time
}

// Option настройка Auth
type Option func(*Auth)

// WithBcryptCost задает сложность хэширования паролей
func WithBcryptCost(cost int) Option {
	return func(a *Auth) { a.cost = cost }
}

// WithShareTTL задает срок действия токенов доступа к файлу
func WithShareTTL(ttl time.Duration) Option {
	return func(a *Auth) {
		if ttl > 0 {
			a.shareTTL = ttl
		}
	}
}

// New создает Auth
func New(users storage.UserStore, sessions storage.SessionStore, secret string, ttl time.Duration, opts ...Option) *Auth {
	a := &Auth{
		users:    users,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
		shareTTL: DefaultShareTTL,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// TTL срок жизни сессии
func (a *Auth) TTL() time.Duration {
	return a.ttl
}

// Signup создает пользователя с паролем, захэшированным bcrypt
func (a *Auth) Signup(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password required", models.ErrInvalidCredentials)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = a.users.CreateUser(ctx, models.User{
		Username:     username,
		PasswordHash: string(hashed),
		CreatedAt:    a.now().UTC(),
	})
	if err != nil {
		return err
	}

	logging.Info("user created", zap.String("username", username))
	return nil
}

// Login проверяет пароль, открывает сессию и возвращает ее подписанный токен
func (a *Auth) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	username = strings.TrimSpace(username)

	user, err := a.users.GetUser(ctx, username)
	if errors.Is(err, models.ErrUserNotFound) {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: unknown user", zap.String("username", username))
		return "", time.Time{}, models.ErrInvalidCredentials
	}
	if err != nil {
		metrics.RecordAuthAttempt(false)
		return "", time.Time{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.RecordAuthAttempt(false)
		logging.Warn("login failed: invalid password", zap.String("username", username))
		return "", time.Time{}, models.ErrInvalidCredentials
	}

	now := a.now()
	session := models.Session{
		ID:        uuid.New().String(),
		Username:  user.Username,
		ExpiresAt: now.Add(a.ttl),
	}
	if err := a.sessions.CreateSession(ctx, session); err != nil {
		metrics.RecordAuthAttempt(false)
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}

	claims := &Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID,
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	metrics.RecordAuthAttempt(true)
	logging.Info("login successful", zap.String("username", user.Username))
	return token, session.ExpiresAt, nil
}

// Authenticate проверяет токен и то, что его сессия еще открыта
func (a *Auth) Authenticate(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := a.parse(tokenStr)
	if err != nil {
		return nil, err
	}

	session, err := a.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session.Username != claims.Username {
		return nil, models.ErrSessionNotFound
	}
	return claims, nil
}

// Logout удаляет сессию токена. Недействительный токен игнорируется.
func (a *Auth) Logout(ctx context.Context, tokenStr string) error {
	claims, err := a.parse(tokenStr)
	if err != nil {
		return nil
	}
	if err := a.sessions.DeleteSession(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	logging.Info("logout", zap.String("username", claims.Username))
	return nil
}

// ShareToken выдает короткоживущий токен на чтение одного файла.
// Им пользуются внешние просмотрщики, у которых нет cookie сессии.
func (a *Auth) ShareToken(folder, filename string) (string, error) {
	now := a.now()
	claims := &ShareClaims{
		Folder:   folder,
		Filename: filename,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{shareAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.shareTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign share token: %w", err)
	}
	return token, nil
}

// VerifyShareToken проверяет, что токен действует и выдан именно для folder/filename
func (a *Auth) VerifyShareToken(tokenStr, folder, filename string) error {
	if tokenStr == "" {
		return models.ErrShareTokenInvalid
	}

	claims := &ShareClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, a.keyFunc,
		jwt.WithIssuer(issuer),
		jwt.WithAudience(shareAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now))
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrShareTokenInvalid, err)
	}
	if !token.Valid || claims.Folder != folder || claims.Filename != filename {
		return models.ErrShareTokenInvalid
	}
	return nil
}

func (a *Auth) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return a.secret, nil
}

func (a *Auth) parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, models.ErrSessionNotFound
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, a.keyFunc, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSessionNotFound, err)
	}
	if !token.Valid || claims.ID == "" {
		return nil, models.ErrSessionNotFound
	}
	return claims, nil
}

// WithClaims кладет данные токена в контекст
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// GetClaims достает данные токена из контекста запроса
func GetClaims(ctx context.Context) *Claims {
	claims, _ := ctx.Value(userContextKey).(*Claims)
	return claims
}
