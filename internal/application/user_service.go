package application

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"account-api/internal/domain/entity"
	"account-api/internal/domain/repository"
	"account-api/pkg/helpers"
	"account-api/pkg/mailer"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrMissingFields      = errors.New("name, email and password are required")
)

// Asset is the durable result of a remote media upload.
type Asset struct {
	URL     string `json:"url"`
	AssetID string `json:"asset_id"`
}

// MediaUploader forwards a file to a remote asset host. Implementations must
// not touch local state; the service patches the user record only after a
// successful upload.
type MediaUploader interface {
	Upload(ctx context.Context, folder, ownerID, filename, contentType string, r io.Reader) (*Asset, error)
}

// Publisher enqueues notification jobs. Publishing is fire-and-forget from
// the service's point of view; a failed publish never fails the operation
// that triggered it.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// IssuedToken is an access token plus its expiry, for cookie max-age.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

type Service struct {
	Repo         repository.UserRepository
	JWT          *helpers.JWTManager
	Uploader     MediaUploader
	AvatarFolder string
	Redis        *redis.Client
	Logger       *logrus.Logger
	Pub          Publisher
	BcryptCost   int
	AppName      string
}

func NewService(repo repository.UserRepository, jwt *helpers.JWTManager, uploader MediaUploader, avatarFolder string, rdb *redis.Client, logger *logrus.Logger, pub Publisher, bcryptCost int, appName string) *Service {
	return &Service{
		Repo:         repo,
		JWT:          jwt,
		Uploader:     uploader,
		AvatarFolder: avatarFolder,
		Redis:        rdb,
		Logger:       logger,
		Pub:          pub,
		BcryptCost:   bcryptCost,
		AppName:      appName,
	}
}

func profileKey(userID string) string {
	return "user:profile:" + userID
}

const profileCacheTTL = 15 * time.Minute

// cachedProfile mirrors the public fields of a user for the Redis read cache.
// The password hash is deliberately absent.
type cachedProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url"`
	AvatarID  string    `json:"avatar_id"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCached(u *entity.User) cachedProfile {
	return cachedProfile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		AvatarID:  u.AvatarID,
		Phone:     u.Phone,
		Address:   u.Address,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func (p cachedProfile) toEntity() *entity.User {
	return &entity.User{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		AvatarURL: p.AvatarURL,
		AvatarID:  p.AvatarID,
		Phone:     p.Phone,
		Address:   p.Address,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (s *Service) cacheProfile(ctx context.Context, u *entity.User) {
	if s.Redis == nil {
		return
	}
	if err := helpers.RedisSetJSON(ctx, s.Redis, profileKey(u.ID), toCached(u), profileCacheTTL); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("profile cache set failed")
	}
}

func (s *Service) dropCachedProfile(ctx context.Context, userID string) {
	if s.Redis == nil {
		return
	}
	if err := helpers.RedisDel(ctx, s.Redis, profileKey(userID)); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Warn("profile cache invalidation failed")
	}
}

// Register creates an account and issues its first access token. Email
// uniqueness is enforced by the store; a duplicate surfaces as
// repository.ErrEmailTaken without creating anything.
func (s *Service) Register(ctx context.Context, name, email, password string) (*entity.User, IssuedToken, error) {
	if name == "" || email == "" || password == "" {
		return nil, IssuedToken{}, ErrMissingFields
	}

	hash, err := helpers.HashPassword(password, s.BcryptCost)
	if err != nil {
		return nil, IssuedToken{}, err
	}

	u := &entity.User{Name: name, Email: email, Password: hash}
	if err := s.Repo.Create(ctx, u); err != nil {
		return nil, IssuedToken{}, err
	}

	tok, err := s.issueToken(u.ID)
	if err != nil {
		return nil, IssuedToken{}, err
	}

	s.cacheProfile(ctx, u)
	s.enqueueWelcome(ctx, u)

	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "email": u.Email}).Info("account created")
	}
	return u, tok, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password are indistinguishable to the caller; store failures are not
// credential failures and propagate as-is.
func (s *Service) Login(ctx context.Context, email, password string) (*entity.User, IssuedToken, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, IssuedToken{}, ErrInvalidCredentials
		}
		return nil, IssuedToken{}, err
	}
	if u == nil {
		return nil, IssuedToken{}, ErrInvalidCredentials
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, IssuedToken{}, ErrInvalidCredentials
	}
	tok, err := s.issueToken(u.ID)
	if err != nil {
		return nil, IssuedToken{}, err
	}
	return u, tok, nil
}

func (s *Service) issueToken(userID string) (IssuedToken, error) {
	token, exp, err := s.JWT.GenerateAccessToken(userID)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Error("access token generation failed")
		}
		return IssuedToken{}, err
	}
	return IssuedToken{Token: token, ExpiresAt: exp}, nil
}

// GetProfile reads a profile, cache first.
func (s *Service) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	if s.Redis != nil {
		var cached cachedProfile
		hit, err := helpers.RedisGetJSON(ctx, s.Redis, profileKey(userID), &cached)
		if err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Warn("profile cache read failed")
		}
		if hit {
			return cached.toEntity(), nil
		}
	}

	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	s.cacheProfile(ctx, u)
	return u, nil
}

// ProfilePatch carries the editable profile fields. Empty fields are left
// unchanged; anything outside this struct cannot be written through edit.
type ProfilePatch struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// UpdateProfile applies an allow-listed patch to the caller's own record. An
// email change goes through the same uniqueness constraint as registration.
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if patch.Name != "" {
		u.Name = patch.Name
	}
	if patch.Email != "" {
		u.Email = patch.Email
	}
	if patch.Phone != "" {
		u.Phone = patch.Phone
	}
	if patch.Address != "" {
		u.Address = patch.Address
	}
	if err := s.Repo.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.dropCachedProfile(ctx, userID)
	s.cacheProfile(ctx, u)
	return u, nil
}

// UploadAvatar forwards the file to the media host and patches the avatar
// pair only after the upload succeeds, so a failed upload never leaves a
// half-applied record.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	asset, err := s.Uploader.Upload(ctx, s.AvatarFolder, userID, filename, contentType, r)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", userID).Error("avatar upload failed")
		}
		return nil, err
	}

	u.AvatarURL = asset.URL
	u.AvatarID = asset.AssetID
	if err := s.Repo.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.dropCachedProfile(ctx, userID)
	s.cacheProfile(ctx, u)
	if s.Logger != nil {
		s.Logger.WithField("user_id", userID).Info("avatar updated")
	}
	return u, nil
}

// DeleteAccount permanently removes the caller's record and returns its id.
func (s *Service) DeleteAccount(ctx context.Context, userID string) (string, error) {
	if err := s.Repo.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	s.dropCachedProfile(ctx, userID)
	if s.Logger != nil {
		s.Logger.WithField("user_id", userID).Info("account deleted")
	}
	return userID, nil
}

// enqueueWelcome publishes the welcome email job. Registration never fails
// because of the notification pipeline.
func (s *Service) enqueueWelcome(ctx context.Context, u *entity.User) {
	if s.Pub == nil {
		return
	}
	job := mailer.EmailJob{
		To:       u.Email,
		Template: mailer.TemplateWelcome,
		Data: map[string]any{
			"Name":    u.Name,
			"Email":   u.Email,
			"AppName": s.AppName,
		},
	}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("welcome email enqueue failed")
	}
}
