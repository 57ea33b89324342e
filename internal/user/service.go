package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
	"github.com/thislinkplease/midterm-cross-platform/internal/role"
	"github.com/thislinkplease/midterm-cross-platform/internal/token"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

// PasswordHasher hashes the server-only password kept with a row.
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("bcrypt:%d", cost), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// AccountCreator creates auth accounts with the service role.
type AccountCreator interface {
	CreateUser(ctx context.Context, params backend.AdminUserParams) (*backend.User, error)
}

// RowWriter stores a users row together with its server-only password hash.
type RowWriter interface {
	UpsertAccount(ctx context.Context, u entity.User, passwordHash string) error
}

var (
	ErrForbidden      = errors.New("Forbidden")
	ErrInvalidRequest = errors.New("email and password are required")
)

// Service backs the admin-create-user function.
type Service struct {
	verifier token.Verifier
	accounts AccountCreator
	rows     RowWriter
	hasher   PasswordHasher
	roles    role.Classifier
	logger   *zap.SugaredLogger
}

func NewService(v token.Verifier, accounts AccountCreator, rows RowWriter, hasher PasswordHasher, roles role.Classifier, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{verifier: v, accounts: accounts, rows: rows, hasher: hasher, roles: roles, logger: logger}
}

// Authorize resolves the caller's bearer token and requires the
// administrator. Every failure is ErrForbidden.
func (s *Service) Authorize(ctx context.Context, bearer string) (*backend.User, error) {
	caller, err := s.verifier.Verify(ctx, bearer)
	if err != nil {
		s.logger.Debugw("caller token rejected", "err", err)
		return nil, ErrForbidden
	}
	if !s.roles.IsAdmin(caller.Email) {
		s.logger.Debugw("caller is not the administrator", "uid", caller.ID)
		return nil, ErrForbidden
	}
	return caller, nil
}

// CreateUser creates a confirmed auth account and upserts its row. The row
// keeps a bcrypt hash of the password that clients never read.
func (s *Service) CreateUser(ctx context.Context, req entity.CreateUserRequest) (entity.CreateUserResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Password == "" {
		return entity.CreateUserResponse{}, ErrInvalidRequest
	}

	hash, _, err := s.hasher.Hash(req.Password)
	if err != nil {
		return entity.CreateUserResponse{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.accounts.CreateUser(ctx, backend.AdminUserParams{
		Email:        req.Email,
		Password:     req.Password,
		EmailConfirm: true,
		UserMetadata: map[string]any{"username": req.Username, "image": req.Image},
	})
	if err != nil {
		return entity.CreateUserResponse{}, err
	}

	row := req.Row()
	if created.Email != "" {
		row.Email = created.Email
	}
	if err := s.rows.UpsertAccount(ctx, row, hash); err != nil {
		s.logger.Warnw("auth user created but row upsert failed", "uid", created.ID, "err", err)
		return entity.CreateUserResponse{}, err
	}
	s.logger.Infow("user created", "uid", created.ID, "email", row.Email)
	return entity.CreateUserResponse{OK: true, UID: created.ID}, nil
}
