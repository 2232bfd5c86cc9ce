//go:generate go run go.uber.org/mock/mockgen -source=access_service.go -destination=../mocks/mock_access_service.go -package=mocks
package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/havaian/gossip/auth"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/errors"
	"github.com/havaian/gossip/repositories"
)

// IAccessService is the identity and access component: it turns credentials
// into identities and capabilities.
type IAccessService interface {
	Authenticate(token string) (domain.Identity, error)
	CapabilityOf(identity domain.Identity) domain.Capability
	Login(email, password string) (Session, error)
	Me(identityID string) (domain.Identity, error)
	ChangePassword(identityID, currentPassword, newPassword string) error
	Refresh(identityID string) (Session, error)
	Verify(token string) (Verification, error)
	Bootstrap(name, email, password string) (bool, error)
}

// Session is what a successful login or refresh hands back.
type Session struct {
	Token       string          `json:"token"`
	TokenExpiry time.Time       `json:"tokenExpiry"`
	User        domain.Identity `json:"user"`
}

type Verification struct {
	Valid     bool            `json:"valid"`
	User      domain.Identity `json:"user"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

type AccessService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
	hasher auth.PasswordHasher
	log    *slog.Logger
	now    func() time.Time
}

func NewAccessService(users repositories.IUserRepository, tokens *auth.TokenManager, hasher auth.PasswordHasher, log *slog.Logger) *AccessService {
	return &AccessService{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate validates the token and reloads the identity, so a disabled
// account or a changed role takes effect on the next request.
func (s *AccessService) Authenticate(token string) (domain.Identity, error) {
	identity, _, err := s.authenticate(token)
	return identity, err
}

func (s *AccessService) authenticate(token string) (domain.Identity, time.Time, error) {
	if token == "" {
		return domain.Identity{}, time.Time{}, errors.ErrMissingToken
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return domain.Identity{}, time.Time{}, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	identity, err := s.users.Get(claims.UserID)
	if errors.Is(err, errors.ErrIdentityNotFound) {
		return domain.Identity{}, time.Time{}, errors.ErrInvalidToken
	}
	if err != nil {
		return domain.Identity{}, time.Time{}, err
	}
	if !identity.IsActive {
		return domain.Identity{}, time.Time{}, errors.ErrAccountDisabled
	}
	return identity, claims.ExpiresAt.Time, nil
}

func (s *AccessService) CapabilityOf(identity domain.Identity) domain.Capability {
	return identity.Capability()
}

// Login checks the credentials and stamps the last login time.
// Unknown emails and wrong passwords fail the same way.
func (s *AccessService) Login(email, password string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, fmt.Errorf("%w: email and password are required", errors.ErrInvalidInput)
	}
	identity, err := s.users.GetByEmail(auth.NormalizeEmail(email))
	if errors.Is(err, errors.ErrIdentityNotFound) {
		return Session{}, errors.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !identity.IsActive {
		return Session{}, errors.ErrAccountDisabled
	}
	match, err := s.hasher.Compare(password, identity.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	identity, err = s.users.Update(identity.ID, func(i *domain.Identity) error {
		now := s.now()
		i.LastLoginAt = &now
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	s.log.Info("Operator logged in", "actor_id", identity.ID, "role", identity.Role)
	return s.session(identity)
}

func (s *AccessService) Me(identityID string) (domain.Identity, error) {
	return s.users.Get(identityID)
}

// ChangePassword requires the current password before storing the new hash.
func (s *AccessService) ChangePassword(identityID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return fmt.Errorf("%w: current password is required", errors.ErrInvalidInput)
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	identity, err := s.users.Get(identityID)
	if err != nil {
		return err
	}
	match, err := s.hasher.Compare(currentPassword, identity.PasswordHash)
	if err != nil || !match {
		return errors.ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing failed: %w", err)
	}
	_, err = s.users.Update(identityID, func(i *domain.Identity) error {
		i.PasswordHash = hash
		return nil
	})
	return err
}

func (s *AccessService) Refresh(identityID string) (Session, error) {
	identity, err := s.users.Get(identityID)
	if err != nil {
		return Session{}, err
	}
	if !identity.IsActive {
		return Session{}, errors.ErrAccountDisabled
	}
	return s.session(identity)
}

func (s *AccessService) Verify(token string) (Verification, error) {
	identity, expiresAt, err := s.authenticate(token)
	if err != nil {
		return Verification{}, err
	}
	return Verification{Valid: true, User: identity, ExpiresAt: expiresAt.UTC()}, nil
}

// Bootstrap creates the first admin account when the store has no identity yet.
// It reports whether an account was created.
func (s *AccessService) Bootstrap(name, email, password string) (bool, error) {
	count, err := s.users.Count()
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err = auth.ValidateIdentity(auth.IdentityRequest{Name: name, Email: email, Password: password, Role: string(domain.RoleAdmin)}); err != nil {
		return false, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hashing failed: %w", err)
	}
	now := s.now()
	admin := domain.Identity{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        auth.NormalizeEmail(email),
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err = s.users.Create(admin); err != nil {
		return false, err
	}
	s.log.Info("Bootstrap admin created", "email", admin.Email)
	return true, nil
}

func (s *AccessService) session(identity domain.Identity) (Session, error) {
	token, expiresAt, err := s.tokens.Generate(identity)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	return Session{Token: token, TokenExpiry: expiresAt, User: identity}, nil
}
