package auth

import (
	"context"
	"errors"
	"fmt"

	"reminderdesk/internal/config"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/repo"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Role       domain.Role
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required (role %s)", e.Permission, e.Role)
}

// InactiveUserError is returned for directory users switched off by an admin.
type InactiveUserError struct {
	Email string
}

func (e InactiveUserError) Error() string {
	return fmt.Sprintf("user %s is inactive", e.Email)
}

// Service answers permission questions from the configured role table and
// the users directory.
type Service struct {
	Config *config.Config
	Repo   repo.Repo
}

func (s Service) Permissions(v domain.Viewer) []string {
	if s.Config == nil {
		return nil
	}
	return s.Config.Permissions(v.Role)
}

func (s Service) HasPermission(v domain.Viewer, perm string) bool {
	return s.Config != nil && s.Config.HasPermission(v.Role, perm)
}

func (s Service) Require(v domain.Viewer, perm string) error {
	if !v.Role.Valid() {
		return ForbiddenError{Role: v.Role, Permission: perm}
	}
	if !s.HasPermission(v, perm) {
		return ForbiddenError{Role: v.Role, Permission: perm}
	}
	return nil
}

// CheckActive refuses viewers whose email belongs to an inactive directory
// user. Viewers unknown to the directory pass.
func (s Service) CheckActive(ctx context.Context, v domain.Viewer) error {
	if v.Email == "" || s.Repo.DB == nil {
		return nil
	}
	u, err := s.Repo.GetUserByEmail(ctx, v.Email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user %s: %w", v.Email, err)
	}
	if !u.Active() {
		return InactiveUserError{Email: u.Email}
	}
	return nil
}

// ViewerForUser turns a directory user into the identity used for calls.
func ViewerForUser(u domain.User) (domain.Viewer, error) {
	if !u.Active() {
		return domain.Viewer{}, InactiveUserError{Email: u.Email}
	}
	if !u.Role.Valid() {
		return domain.Viewer{}, fmt.Errorf("user %s has unknown role %q", u.Email, u.Role)
	}
	return domain.Viewer{Role: u.Role, Email: u.Email}, nil
}
