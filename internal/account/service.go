// Package account is the client-side user data service: reads and writes
// of the users table and the auth calls that go with them.
package account

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/thislinkplease/midterm-cross-platform/internal/backend"
	"github.com/thislinkplease/midterm-cross-platform/internal/user/entity"
)

// CreateUserFunction is the serverless function that creates accounts on the
// administrator's behalf.
const CreateUserFunction = "admin-create-user"

var ErrCreateRejected = errors.New("create user was not acknowledged")

type Service struct {
	auth      backend.Auth
	table     backend.Table
	functions backend.Functions
	logger    *zap.SugaredLogger
}

func NewService(p backend.Platform, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{auth: p.Auth, table: p.Table, functions: p.Functions, logger: logger}
}

// Search returns rows whose username contains query, case-insensitively.
func (s *Service) Search(ctx context.Context, query string) ([]entity.User, error) {
	return s.table.SearchByUsername(ctx, query)
}

// Get returns the row for email or nil when there is none.
func (s *Service) Get(ctx context.Context, email string) (*entity.User, error) {
	return s.table.GetByEmail(ctx, email)
}

func (s *Service) Delete(ctx context.Context, email string) error {
	if err := s.table.Delete(ctx, email); err != nil {
		return err
	}
	s.logger.Infow("user row deleted", "email", email)
	return nil
}

// AdminCreate creates the auth account and its row through the
// admin-create-user function and returns the new account id.
func (s *Service) AdminCreate(ctx context.Context, req entity.CreateUserRequest) (string, error) {
	var resp entity.CreateUserResponse
	if err := s.functions.Invoke(ctx, CreateUserFunction, req, &resp); err != nil {
		return "", err
	}
	if !resp.OK {
		return "", ErrCreateRejected
	}
	s.logger.Infow("user created", "email", req.Email, "uid", resp.UID)
	return resp.UID, nil
}

// AdminUpdate rewrites the row keyed by the email it had before editing.
func (s *Service) AdminUpdate(ctx context.Context, originalEmail string, row entity.User) error {
	return s.table.Update(ctx, originalEmail, row)
}

// SaveResult reports what SaveSelf did beyond writing the row.
type SaveResult struct {
	// EmailChangeRequested is set when the provider was asked to move the
	// account to a new address. The session keeps the old address until the
	// user confirms.
	EmailChangeRequested bool
}

// SaveSelf writes the signed-in user's own row. With an unchanged email the
// row is upserted by email. With a new email the current row is rewritten in
// place and the auth provider is asked to change the account email; the row
// then carries the new address while the session still has the old one.
func (s *Service) SaveSelf(ctx context.Context, row entity.User) (SaveResult, error) {
	sess, err := s.auth.GetSession(ctx)
	if err != nil {
		return SaveResult{}, err
	}
	authEmail := sess.Email()
	if authEmail == "" {
		return SaveResult{}, backend.ErrNotAuthenticated
	}

	row.Email = strings.TrimSpace(row.Email)
	if backend.NormalizeEmail(row.Email) == backend.NormalizeEmail(authEmail) {
		row.Email = authEmail
		return SaveResult{}, s.table.Upsert(ctx, row)
	}

	existing, err := s.table.GetByEmail(ctx, authEmail)
	if err != nil {
		return SaveResult{}, err
	}
	if existing != nil {
		err = s.table.Update(ctx, authEmail, row)
	} else {
		err = s.table.Upsert(ctx, row)
	}
	if err != nil {
		return SaveResult{}, err
	}
	if _, err := s.auth.UpdateUser(ctx, backend.UserAttributes{Email: row.Email}); err != nil {
		return SaveResult{}, err
	}
	s.logger.Infow("email change requested", "from", authEmail, "to", row.Email)
	return SaveResult{EmailChangeRequested: true}, nil
}

// MirrorAuthUser copies an auth account into the table. Values already stored
// win; row only fills the fields that are empty.
func (s *Service) MirrorAuthUser(ctx context.Context, row entity.User) error {
	existing, err := s.table.GetByEmail(ctx, row.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Username != "" {
			row.Username = existing.Username
		}
		if existing.Image != "" {
			row.Image = existing.Image
		}
	}
	return s.table.Upsert(ctx, row)
}

// ChangePassword updates the signed-in user's password. The table is not
// touched.
func (s *Service) ChangePassword(ctx context.Context, password string) error {
	_, err := s.auth.UpdateUser(ctx, backend.UserAttributes{Password: password})
	return err
}
