package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	"github.com/noah-isme/car-marketplace-api/internal/token"
	"github.com/noah-isme/car-marketplace-api/internal/validation"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	SetBlockedAt(ctx context.Context, id string, blockedAt *time.Time) error
	GetScopes(ctx context.Context, id string) ([]string, error)
	AddScopes(ctx context.Context, id string, scopes []string) ([]string, error)
	ReplaceScopes(ctx context.Context, id string, scopes []string) ([]string, error)
	RemoveScopes(ctx context.Context, id string, scopes []string) ([]string, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type bannedTokenRepository interface {
	BanJTI(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	IsBanned(ctx context.Context, jti string) (bool, error)
}

type tokenCodec interface {
	IssuePair(userID string, scopes []string) (*models.TokenPair, error)
	Decode(raw string) (*models.TokenClaims, error)
}

// AuthConfig defines account rules for authentication flows.
type AuthConfig struct {
	DefaultScopes     []string
	MinPasswordLength int
	BcryptCost        int
}

// AuthService provides registration, session and scope management use cases.
type AuthService struct {
	repo      authUserRepository
	bans      bannedTokenRepository
	tokens    tokenCodec
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	config    AuthConfig
	now       func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, bans bannedTokenRepository, tokens tokenCodec, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	if config.MinPasswordLength <= 0 {
		config.MinPasswordLength = 8
	}
	if config.BcryptCost <= 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		repo:      repo,
		bans:      bans,
		tokens:    tokens,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser registers an account on behalf of an administrator. Requested scopes are
// checked against the allow-list.
func (s *AuthService) CreateUser(ctx context.Context, req models.CreateUserRequest, meta models.RequestMeta) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Error(err, "invalid create user payload")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	user := &models.User{
		Email:     req.Email,
		Name:      strings.TrimSpace(req.Name),
		Surname:   strings.TrimSpace(req.Surname),
		Active:    active,
		Superuser: req.Superuser,
		Scopes:    pq.StringArray(dedupe(req.Scopes)),
	}

	if err := s.createUser(ctx, user, req.Password); err != nil {
		return nil, err
	}

	s.audit(ctx, models.AuditActionUserCreate, user.ID, meta, map[string]interface{}{"email": user.Email, "scopes": user.Scopes})
	return user, nil
}

// Register creates a self-service account holding the configured default scopes.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest, meta models.RequestMeta) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Error(err, "invalid registration payload")
	}

	user := &models.User{
		Email:   req.Email,
		Name:    strings.TrimSpace(req.Name),
		Surname: strings.TrimSpace(req.Surname),
		Active:  true,
		Scopes:  pq.StringArray(dedupe(s.config.DefaultScopes)),
	}

	err := s.createUser(ctx, user, req.Password)
	s.metrics.RecordAuthEvent(AuthEventRegister, err == nil)
	if err != nil {
		return nil, err
	}

	meta.ActorID = user.ID
	s.audit(ctx, models.AuditActionRegister, user.ID, meta, map[string]interface{}{"email": user.Email})
	return user, nil
}

// createUser enforces email uniqueness, then the password rules, then the scope allow-list,
// and only then hashes and stores the account.
func (s *AuthService) createUser(ctx context.Context, user *models.User, password string) error {
	if _, err := s.repo.FindByEmail(ctx, user.Email); err == nil {
		return appErrors.Clone(appErrors.ErrDuplicateEntry, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	if err := s.checkPassword(password); err != nil {
		return err
	}

	if err := checkScopes(user.Scopes); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	user.PasswordHash = string(hash)

	if err := s.repo.Create(ctx, user); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}
	return nil
}

// GetUser returns a user by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, userLookupError(err)
	}
	return user, nil
}

// GetUserByEmail returns a user by exact email.
func (s *AuthService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if err := s.validator.Var(email, "required,email"); err != nil {
		return nil, appErrors.Validation("email", "invalid email address", nil)
	}
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, userLookupError(err)
	}
	return user, nil
}

// UpdateUser applies a partial update to a user.
func (s *AuthService) UpdateUser(ctx context.Context, id string, req models.UpdateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Error(err, "invalid update user payload")
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := map[string]interface{}{}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != user.Email {
			if _, err := s.repo.FindByEmail(ctx, email); err == nil {
				return nil, appErrors.Clone(appErrors.ErrDuplicateEntry, "email already registered")
			} else if !errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
			}
			user.Email = email
			changed["email"] = email
		}
	}
	if req.Password != nil {
		if err := s.checkPassword(*req.Password); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.config.BcryptCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		user.PasswordHash = string(hash)
		changed["password"] = "changed"
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
		changed["name"] = user.Name
	}
	if req.Surname != nil {
		user.Surname = strings.TrimSpace(*req.Surname)
		changed["surname"] = user.Surname
	}
	if req.Active != nil {
		user.Active = *req.Active
		changed["active"] = user.Active
	}
	if req.Superuser != nil {
		user.Superuser = *req.Superuser
		changed["superuser"] = user.Superuser
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	s.audit(ctx, models.AuditActionUserUpdate, user.ID, meta, changed)
	return user, nil
}

// Login authenticates a user and issues a fresh token pair. An unknown email and a wrong
// password produce the same error.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthSession, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Error(err, "invalid login payload")
	}

	session, err := s.login(ctx, req)
	s.metrics.RecordAuthEvent(AuthEventLogin, err == nil)
	return session, err
}

func (s *AuthService) login(ctx context.Context, req models.LoginRequest) (*models.AuthSession, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.burnPasswordCheck(req.Password)
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	if user.IsBlocked() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "account is blocked")
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Scopes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}

	now := s.now()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	s.audit(ctx, models.AuditActionLogin, user.ID, models.RequestMeta{ActorID: user.ID, IP: req.IP, UserAgent: req.UserAgent}, nil)

	return &models.AuthSession{Tokens: pair, User: user}, nil
}

// Logout bans the jti of the given refresh token. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, meta models.RequestMeta) error {
	err := s.logout(ctx, refreshToken, meta)
	s.metrics.RecordAuthEvent(AuthEventLogout, err == nil)
	return err
}

func (s *AuthService) logout(ctx context.Context, refreshToken string, meta models.RequestMeta) error {
	claims, err := s.decode(refreshToken)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return appErrors.Clone(appErrors.ErrInvalidToken, "token has no identifier")
	}

	if _, err := s.bans.BanJTI(ctx, claims.ID, s.expiry(claims)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}

	if meta.ActorID == "" {
		meta.ActorID = claims.Subject
	}
	s.audit(ctx, models.AuditActionLogout, claims.Subject, meta, nil)
	return nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is banned before the
// new pair is minted and only the caller whose ban inserted the jti gets a pair, so every
// refresh token works exactly once even under concurrent use.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.AuthSession, error) {
	session, err := s.refresh(ctx, refreshToken, meta)
	s.metrics.RecordAuthEvent(AuthEventRefresh, err == nil)
	return session, err
}

func (s *AuthService) refresh(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.AuthSession, error) {
	claims, err := s.decode(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != models.TokenTypeRefresh {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "not a refresh token")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "refresh token is missing claims")
	}

	user, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, userLookupError(err)
	}
	if user.IsBlocked() {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "account is blocked")
	}

	banned, err := s.bans.IsBanned(ctx, claims.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check refresh token")
	}
	if banned {
		s.logger.Warn("refresh token reuse", zap.String("user_id", user.ID), zap.String("jti", claims.ID))
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "refresh token has been revoked")
	}

	inserted, err := s.bans.BanJTI(ctx, claims.ID, s.expiry(claims))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate refresh token")
	}
	if !inserted {
		s.logger.Warn("refresh token redeemed concurrently", zap.String("user_id", user.ID), zap.String("jti", claims.ID))
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "refresh token has been revoked")
	}

	pair, err := s.tokens.IssuePair(user.ID, user.Scopes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue tokens")
	}

	meta.ActorID = user.ID
	s.audit(ctx, models.AuditActionRefresh, user.ID, meta, nil)

	return &models.AuthSession{Tokens: pair, User: user}, nil
}

// VerifyAccessToken reports whether raw is a valid access token of an existing, unblocked user.
func (s *AuthService) VerifyAccessToken(ctx context.Context, raw string) bool {
	claims, err := s.tokens.Decode(raw)
	if err != nil || claims.Type != models.TokenTypeAccess || claims.Subject == "" {
		return false
	}
	return s.activeUser(ctx, claims.Subject)
}

// VerifyRefreshToken reports whether raw is a valid, unbanned refresh token of an existing,
// unblocked user.
func (s *AuthService) VerifyRefreshToken(ctx context.Context, raw string) bool {
	claims, err := s.tokens.Decode(raw)
	if err != nil || claims.Type != models.TokenTypeRefresh || claims.Subject == "" || claims.ID == "" {
		return false
	}
	if !s.activeUser(ctx, claims.Subject) {
		return false
	}
	banned, err := s.bans.IsBanned(ctx, claims.ID)
	if err != nil {
		s.logger.Warn("ban lookup failed during verification", zap.Error(err))
		return false
	}
	return !banned
}

func (s *AuthService) activeUser(ctx context.Context, id string) bool {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("user lookup failed during verification", zap.Error(err))
		}
		return false
	}
	return !user.IsBlocked()
}

// DecodeAccessToken validates raw as an access token and returns its claims.
func (s *AuthService) DecodeAccessToken(raw string) (*models.TokenClaims, error) {
	claims, err := s.decode(raw)
	if err != nil {
		return nil, err
	}
	if claims.Type != models.TokenTypeAccess || claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "not an access token")
	}
	return claims, nil
}

// GetUserScopes returns the current scopes of a user.
func (s *AuthService) GetUserScopes(ctx context.Context, id string) ([]string, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	scopes, err := s.repo.GetScopes(ctx, id)
	if err != nil {
		return nil, userLookupError(err)
	}
	return scopes, nil
}

// AddScopes grants scopes to a user; scopes the user already holds are kept once.
func (s *AuthService) AddScopes(ctx context.Context, id string, scopes []string, meta models.RequestMeta) ([]string, error) {
	if err := s.requireUser(ctx, id); err != nil {
		return nil, err
	}
	if err := checkScopes(scopes); err != nil {
		return nil, err
	}
	return s.mutateScopes(ctx, id, "add", dedupe(scopes), meta, s.repo.AddScopes)
}

// UpdateScopes replaces the scopes of a user.
func (s *AuthService) UpdateScopes(ctx context.Context, id string, scopes []string, meta models.RequestMeta) ([]string, error) {
	if err := s.requireUser(ctx, id); err != nil {
		return nil, err
	}
	if err := checkScopes(scopes); err != nil {
		return nil, err
	}
	return s.mutateScopes(ctx, id, "replace", dedupe(scopes), meta, s.repo.ReplaceScopes)
}

// RemoveScopes revokes scopes from a user. Unknown scopes are ignored.
func (s *AuthService) RemoveScopes(ctx context.Context, id string, scopes []string, meta models.RequestMeta) ([]string, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.mutateScopes(ctx, id, "remove", dedupe(scopes), meta, s.repo.RemoveScopes)
}

// requireUser reports NotFound for a missing user before any scope is validated.
func (s *AuthService) requireUser(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return userLookupError(err)
	}
	return nil
}

func (s *AuthService) mutateScopes(ctx context.Context, id, op string, scopes []string, meta models.RequestMeta, apply func(context.Context, string, []string) ([]string, error)) ([]string, error) {
	updated, err := apply(ctx, id, scopes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to %s scopes", op))
	}
	s.audit(ctx, models.AuditActionScopesChange, id, meta, map[string]interface{}{"op": op, "scopes": scopes, "result": updated})
	return updated, nil
}

// BlockUser prevents a user from logging in or refreshing tokens.
func (s *AuthService) BlockUser(ctx context.Context, id string, meta models.RequestMeta) (*models.User, error) {
	now := s.now()
	return s.setBlocked(ctx, id, &now, models.AuditActionUserBlock, meta)
}

// UnblockUser lifts a block.
func (s *AuthService) UnblockUser(ctx context.Context, id string, meta models.RequestMeta) (*models.User, error) {
	return s.setBlocked(ctx, id, nil, models.AuditActionUserUnblock, meta)
}

func (s *AuthService) setBlocked(ctx context.Context, id string, blockedAt *time.Time, action string, meta models.RequestMeta) (*models.User, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := s.repo.SetBlockedAt(ctx, id, blockedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update block status")
	}
	s.audit(ctx, action, id, meta, nil)
	return s.GetUser(ctx, id)
}

func (s *AuthService) decode(raw string) (*models.TokenClaims, error) {
	claims, err := s.tokens.Decode(raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, appErrors.ErrTokenExpired
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, appErrors.ErrInvalidToken.Message)
	}
	return claims, nil
}

func (s *AuthService) checkPassword(password string) error {
	if utf8.RuneCountInString(password) < s.config.MinPasswordLength {
		return appErrors.Validation("password",
			fmt.Sprintf("password must be at least %d characters", s.config.MinPasswordLength),
			map[string]interface{}{"min_length": s.config.MinPasswordLength})
	}
	if !validation.PasswordStrong(password) {
		return appErrors.Validation("password",
			"password must contain at least one digit, one uppercase and one lowercase letter", nil)
	}
	return nil
}

// burnPasswordCheck spends one bcrypt comparison so unknown emails take as long as wrong passwords.
func (s *AuthService) burnPasswordCheck(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.config.BcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

func (s *AuthService) audit(ctx context.Context, action, resourceID string, meta models.RequestMeta, values map[string]interface{}) {
	entry := &models.AuditLog{
		Action:    action,
		Resource:  "user",
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if meta.ActorID != "" {
		actor := meta.ActorID
		entry.UserID = &actor
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if len(values) > 0 {
		if payload, err := json.Marshal(values); err == nil {
			entry.NewValues = payload
		}
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Validation("id", "invalid user id", nil)
	}
	return nil
}

func checkScopes(scopes []string) error {
	unknown := models.UnknownScopes(scopes)
	if len(unknown) == 0 {
		return nil
	}
	return appErrors.Validation("scopes",
		"unknown scopes: "+strings.Join(unknown, ", "),
		map[string]interface{}{"invalid_scopes": unknown, "allowed_scopes": models.AllowedScopes})
}

func userLookupError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
}

func (s *AuthService) expiry(claims *models.TokenClaims) time.Time {
	if claims.ExpiresAt == nil {
		return s.now().UTC()
	}
	return claims.ExpiresAt.Time
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
