package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/linguaflow/linguaflow/internal/core/db"
)

// User is an account row as seen by handlers.
type User struct {
	ID       int64
	Username string
	Email    string
	IsAdmin  bool
	IsActive bool
}

// Default credentials seeded when no admin account exists yet. Matches the
// bootstrap behavior operators rely on for first login; change on first use.
const (
	defaultAdminUsername = "admin"
	defaultAdminEmail    = "admin@example.com"
	defaultAdminPassword = "admin123"
)

// RegisterUser creates an account with a bcrypt-hashed password and security
// answer, returning the new user ID.
func (s *Store) RegisterUser(h *db.Handle, username, email, password, securityAnswer string, admin bool) (int64, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	answerHash, err := bcrypt.GenerateFromPassword([]byte(securityAnswer), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash security answer: %w", err)
	}

	query, err := s.raw("create-user")
	if err != nil {
		return 0, err
	}
	rows, err := h.Execute(query, username, email, string(passwordHash), string(answerHash), boolToInt(admin))
	if err != nil {
		return 0, err
	}
	row, ok := rows.FetchOne()
	if !ok {
		return 0, errors.New("create-user returned no id")
	}
	return row.Int64("id"), nil
}

// Authenticate verifies a username/password pair and returns the account.
// Unknown users, wrong passwords, and deactivated accounts all fail with
// ErrInvalidCredentials so callers cannot distinguish them.
func (s *Store) Authenticate(h *db.Handle, username, password string) (*User, error) {
	query, err := s.raw("get-user-by-username")
	if err != nil {
		return nil, err
	}
	rows, err := h.Execute(query, username)
	if err != nil {
		return nil, err
	}
	row, ok := rows.FetchOne()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(row.String("password")), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !row.Bool("is_active") {
		return nil, ErrInvalidCredentials
	}
	return &User{
		ID:       row.Int64("id"),
		Username: row.String("username"),
		Email:    row.String("email"),
		IsAdmin:  row.Bool("is_admin"),
		IsActive: true,
	}, nil
}

// GetUser fetches one account by ID.
func (s *Store) GetUser(h *db.Handle, id int64) (*User, error) {
	query, err := s.raw("get-user-by-id")
	if err != nil {
		return nil, err
	}
	rows, err := h.Execute(query, id)
	if err != nil {
		return nil, err
	}
	row, ok := rows.FetchOne()
	if !ok {
		return nil, ErrNotFound
	}
	return &User{
		ID:       row.Int64("id"),
		Username: row.String("username"),
		Email:    row.String("email"),
		IsAdmin:  row.Bool("is_admin"),
		IsActive: row.Bool("is_active"),
	}, nil
}

// CountUsers returns the total number of accounts.
func (s *Store) CountUsers(h *db.Handle) (int64, error) {
	query, err := s.raw("count-users")
	if err != nil {
		return 0, err
	}
	rows, err := h.Execute(query)
	if err != nil {
		return 0, err
	}
	row, ok := rows.FetchOne()
	if !ok {
		return 0, errors.New("count-users returned no row")
	}
	return row.Int64("count"), nil
}

// EnsureAdminUser seeds the default admin account when no admin exists.
// Returns true if an account was created.
func (s *Store) EnsureAdminUser(h *db.Handle) (bool, error) {
	query, err := s.raw("count-admins")
	if err != nil {
		return false, err
	}
	rows, err := h.Execute(query)
	if err != nil {
		return false, err
	}
	if row, ok := rows.FetchOne(); ok && row.Int64("count") > 0 {
		return false, nil
	}
	_, err = s.RegisterUser(h, defaultAdminUsername, defaultAdminEmail, defaultAdminPassword, defaultAdminUsername, true)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Reset tokens are single use and expire an hour after issuance. Timestamps
// are stored in the embedded store's canonical text layout so both backends
// round-trip them.
const (
	resetTokenTTL   = time.Hour
	timestampLayout = "2006-01-02 15:04:05"
)

// CreatePasswordReset issues a reset token for the account with the given
// email, recording it with its expiry and mirroring it onto the user row.
func (s *Store) CreatePasswordReset(h *db.Handle, email string) (string, error) {
	query, err := s.raw("get-user-by-email")
	if err != nil {
		return "", err
	}
	rows, err := h.Execute(query, email)
	if err != nil {
		return "", err
	}
	row, ok := rows.FetchOne()
	if !ok {
		return "", ErrNotFound
	}
	userID := row.Int64("id")

	token := uuid.NewString()
	expires := time.Now().UTC().Add(resetTokenTTL).Format(timestampLayout)

	query, err = s.raw("create-password-reset")
	if err != nil {
		return "", err
	}
	if _, err := h.Execute(query, userID, token, expires); err != nil {
		return "", err
	}

	query, err = s.raw("set-user-reset-token")
	if err != nil {
		return "", err
	}
	if _, err := h.Execute(query, token, userID); err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword redeems a reset token and replaces the account password.
// Unknown, already used, and expired tokens all fail with ErrNotFound so
// callers cannot probe token state.
func (s *Store) ResetPassword(h *db.Handle, token, newPassword string) error {
	query, err := s.raw("get-password-reset")
	if err != nil {
		return err
	}
	rows, err := h.Execute(query, token)
	if err != nil {
		return err
	}
	row, ok := rows.FetchOne()
	if !ok {
		return ErrNotFound
	}
	expires, ok := row.Time("expires_at")
	if !ok || time.Now().UTC().After(expires) {
		return ErrNotFound
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	query, err = s.raw("update-user-password")
	if err != nil {
		return err
	}
	if _, err := h.Execute(query, string(passwordHash), row.Int64("user_id")); err != nil {
		return err
	}

	query, err = s.raw("consume-password-reset")
	if err != nil {
		return err
	}
	_, err = h.Execute(query, row.Int64("id"))
	return err
}

// RecordActivity appends one account audit entry.
func (s *Store) RecordActivity(h *db.Handle, userID int64, activityType, details string) error {
	query, err := s.raw("record-activity")
	if err != nil {
		return err
	}
	_, err = h.Execute(query, userID, activityType, details)
	return err
}
