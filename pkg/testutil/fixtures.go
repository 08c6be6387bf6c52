package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cscportal/portal-backend/pkg/database"
)

// DefaultPassword is the plain-text password of every user fixture
const DefaultPassword = "password123"

// UserFixture represents test user data
type UserFixture struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// ServiceFixture represents a catalog entry. Schema lists are raw stored text;
// nil means the column is NULL.
type ServiceFixture struct {
	ID                string
	Title             string
	Description       string
	IconPath          string
	FormSchema        *string
	RequiredDocuments *string
	CreatedAt         time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// User creates a citizen fixture with defaults
func (f *FixtureFactory) User(opts ...func(*UserFixture)) UserFixture {
	seq := f.nextSeq()
	hash, _ := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)

	user := UserFixture{
		ID:           uuid.New().String(),
		Name:         fmt.Sprintf("Test User %d", seq),
		Email:        fmt.Sprintf("user%d@portal.test", seq),
		Phone:        fmt.Sprintf("98765%05d", seq),
		PasswordHash: string(hash),
		Role:         "user",
		CreatedAt:    time.Now().UTC(),
	}

	for _, opt := range opts {
		opt(&user)
	}

	return user
}

// Admin creates a staff fixture with the admin role
func (f *FixtureFactory) Admin(opts ...func(*UserFixture)) UserFixture {
	return f.User(append([]func(*UserFixture){WithRole("admin")}, opts...)...)
}

// WithRole sets the user's role
func WithRole(role string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Role = role
	}
}

// WithPassword sets the user password (hashed)
func WithPassword(password string) func(*UserFixture) {
	return func(u *UserFixture) {
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		u.PasswordHash = string(hash)
	}
}

// Service creates a catalog entry fixture without a schema
func (f *FixtureFactory) Service(opts ...func(*ServiceFixture)) ServiceFixture {
	seq := f.nextSeq()

	svc := ServiceFixture{
		ID:          uuid.New().String(),
		Title:       fmt.Sprintf("Test Service %d", seq),
		Description: "Assistance with test paperwork",
		IconPath:    "img/service-icon.png",
		CreatedAt:   time.Now().UTC(),
	}

	for _, opt := range opts {
		opt(&svc)
	}

	return svc
}

// WithTitle sets the service title
func WithTitle(title string) func(*ServiceFixture) {
	return func(s *ServiceFixture) {
		s.Title = title
	}
}

// WithSchemaText stores raw form_schema and required_documents text
func WithSchemaText(formSchema, requiredDocuments string) func(*ServiceFixture) {
	return func(s *ServiceFixture) {
		s.FormSchema = &formSchema
		s.RequiredDocuments = &requiredDocuments
	}
}

// InsertUser writes a user fixture to a real database
func InsertUser(ctx context.Context, db *database.DB, u UserFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, phone, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user fixture: %w", err)
	}
	return nil
}

// InsertService writes a service fixture to a real database
func InsertService(ctx context.Context, db *database.DB, s ServiceFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO services (id, title, description, icon_path, form_schema, required_documents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.Title, s.Description, s.IconPath, s.FormSchema, s.RequiredDocuments, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert service fixture: %w", err)
	}
	return nil
}
