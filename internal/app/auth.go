package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookmarket/internal/otp"
	"bookmarket/internal/util"
	"bookmarket/pkg/auth"
	"bookmarket/pkg/domain"
	"bookmarket/pkg/store"
)

// Register creates an account with a unique email and returns the new user.
// Emails on the configured admin list come out with the admin flag set.
func (a *App) Register(username, email, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, ErrUsernameRequired
	}
	email, err := otp.NormalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	_, bootstrapAdmin := a.adminEmails[email]
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Admin:        bootstrapAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.User{}, ErrEmailAlreadyExists
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and returns the account.
func (a *App) Login(email, password string) (domain.User, error) {
	email, err := otp.NormalizeEmail(email)
	if err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		slog.Warn("security_event", "event", "login_failed", "email", otp.MaskEmail(email))
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Profile returns the account for the given id.
func (a *App) Profile(userID string) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// ForgotPassword issues a reset code for the account's email and hands it to
// the configured sender. Returns the code TTL in seconds.
func (a *App) ForgotPassword(email string) (int, error) {
	email, err := otp.NormalizeEmail(email)
	if err != nil {
		return 0, err
	}
	_, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return 0, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return 0, ErrUserNotFound
	}
	code, ttl, err := a.resetCodes.CreateChallenge(email)
	if err != nil {
		return 0, err
	}
	if err := a.codeSender.SendResetCode(email, code); err != nil {
		return 0, fmt.Errorf("send reset code: %w", err)
	}
	return ttl, nil
}

// ResetPassword verifies the reset code and rewrites the account's password.
func (a *App) ResetPassword(email, code, newPassword string) error {
	email, err := otp.NormalizeEmail(email)
	if err != nil {
		return err
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	if err := a.resetCodes.VerifyChallenge(email, code); err != nil {
		return err
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	slog.Info("security_event", "event", "password_reset", "email", otp.MaskEmail(email))
	return nil
}
