package service

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/cscportal/portal-backend/internal/auth/domain"
	"github.com/cscportal/portal-backend/internal/auth/jwt"
	"github.com/cscportal/portal-backend/pkg/errors"
	"github.com/cscportal/portal-backend/pkg/logger"
	"github.com/cscportal/portal-backend/pkg/permissions"
)

// UserStore is the user persistence auth needs
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	CountByRole(ctx context.Context, role string) (int, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateRole(ctx context.Context, id, role string) (*domain.User, error)
}

// AuthService handles registration, login and account administration
type AuthService struct {
	repo       UserStore
	jwtManager *jwt.Manager
	logger     *logger.Logger
	cost       int
}

// NewAuthService creates a new auth service
func NewAuthService(repo UserStore, jwtManager *jwt.Manager, log *logger.Logger) *AuthService {
	return &AuthService{
		repo:       repo,
		jwtManager: jwtManager,
		logger:     log.WithComponent("auth"),
		cost:       bcrypt.DefaultCost,
	}
}

// RegisterRequest represents a citizen registration
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	*jwt.Token
	User *domain.User `json:"user"`
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
}

// CreateStaffRequest represents a superuser creating an account
type CreateStaffRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"required,oneof=user admin superuser"`
}

// SetRoleRequest represents a role change
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin superuser"`
}

// Register creates a citizen account
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*domain.User, error) {
	return s.createUser(ctx, req.Name, req.Email, req.Phone, req.Password, permissions.RoleUser)
}

func (s *AuthService) createUser(ctx context.Context, name, email, phone, password, role string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)

	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, errors.Conflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Internal("failed to hash password")
	}

	user := &domain.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		Phone:        strings.TrimSpace(phone),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", role).Msg("account created")
	return user, nil
}

// Login checks credentials and the role the portal requires, then issues
// an access token. Failures never say which check failed.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest, portal domain.Portal) (*LoginResponse, error) {
	user, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.InvalidCredentials()
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errors.InvalidCredentials()
	}

	if !portalAllows(portal, user.Role) {
		s.logger.Warn().
			Str("user_id", user.ID).
			Str("portal", string(portal)).
			Msg("login refused for role")
		return nil, errors.Forbidden("access denied")
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		return nil, errors.Internal("failed to generate token")
	}

	return &LoginResponse{Token: token, User: user}, nil
}

func portalAllows(portal domain.Portal, role string) bool {
	switch portal {
	case domain.PortalCitizen:
		return permissions.ValidRole(role)
	case domain.PortalAdmin:
		return permissions.RoleAtLeast(role, permissions.RoleAdmin)
	case domain.PortalSuperuser:
		return permissions.RoleAtLeast(role, permissions.RoleSuperuser)
	}
	return false
}

// GetCurrentUser returns the caller's account
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.GetByID(ctx, userID)
}

// ChangePassword replaces the password after verifying the current one
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return errors.Validation(map[string]string{"current_password": "is incorrect"})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cost)
	if err != nil {
		return errors.Internal("failed to hash password")
	}

	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

// ListUsers returns every account
func (s *AuthService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx)
}

// CreateStaff creates an account with any role
func (s *AuthService) CreateStaff(ctx context.Context, req *CreateStaffRequest) (*domain.User, error) {
	if !permissions.ValidRole(req.Role) {
		return nil, errors.Validation(map[string]string{"role": "must be user, admin or superuser"})
	}
	return s.createUser(ctx, req.Name, req.Email, "", req.Password, req.Role)
}

// SetRole changes a user's role. Superusers cannot demote themselves.
func (s *AuthService) SetRole(ctx context.Context, actorID, userID, role string) (*domain.User, error) {
	if !permissions.ValidRole(role) {
		return nil, errors.Validation(map[string]string{"role": "must be user, admin or superuser"})
	}
	if actorID == userID && role != permissions.RoleSuperuser {
		return nil, errors.BadRequest("cannot change your own role")
	}

	user, err := s.repo.UpdateRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Str("role", role).Str("changed_by", actorID).Msg("role changed")
	return user, nil
}

// EnsureSuperuser creates the bootstrap superuser when none exists.
// It returns true when an account was created.
func (s *AuthService) EnsureSuperuser(ctx context.Context, name, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}

	n, err := s.repo.CountByRole(ctx, permissions.RoleSuperuser)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	if name == "" {
		name = "Superuser"
	}
	if _, err := s.createUser(ctx, name, email, "", password, permissions.RoleSuperuser); err != nil {
		return false, err
	}
	return true, nil
}
