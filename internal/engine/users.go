package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"reminderdesk/internal/domain"
	"reminderdesk/internal/engine/auth"
	"reminderdesk/internal/events"
	"reminderdesk/internal/repo"
)

type UserInput struct {
	FullName string `validate:"required,max=120"`
	Email    string `validate:"required,email"`
	Role     string `validate:"required"`
	Status   string `validate:"omitempty,oneof=active inactive"`
}

func (e Engine) AddUser(ctx context.Context, in UserInput, actor domain.Viewer) (domain.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = domain.NormalizeEmail(in.Email)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if err := validate.Struct(in); err != nil {
		return domain.User{}, fromValidator(err)
	}
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return domain.User{}, invalid("role", "%v", err)
	}
	if in.Status == "" {
		in.Status = domain.UserActive
	}
	u := domain.User{
		ID:        uuid.NewString(),
		FullName:  in.FullName,
		Email:     in.Email,
		Role:      role,
		Status:    in.Status,
		CreatedAt: e.stamp(),
	}
	tx, err := e.begin(ctx, "add user")
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.User{}, invalid("email", "%s is already registered", u.Email)
		}
		return domain.User{}, e.fail("add user", StoreError{Op: "insert user", Err: err})
	}
	payload := events.Payload{"email": u.Email, "role": u.Role, "status": u.Status}
	if err := e.events().Append(ctx, tx, events.UserCreated, events.KindUser, u.ID, actor.Actor(), payload); err != nil {
		return domain.User{}, e.fail("add user", StoreError{Op: "append event", Err: err})
	}
	if err := e.commit(tx, "add user"); err != nil {
		return domain.User{}, err
	}
	e.log().Info("user created", zap.String("id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func (e Engine) ListUsers(ctx context.Context, f repo.UserFilter) ([]domain.User, error) {
	users, err := e.Repo.ListUsers(ctx, f)
	if err != nil {
		return nil, e.fail("list users", StoreError{Op: "list users", Err: err})
	}
	return users, nil
}

// SetUserStatus activates or deactivates a directory user.
func (e Engine) SetUserStatus(ctx context.Context, id, status string, actor domain.Viewer) (domain.User, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != domain.UserActive && status != domain.UserInactive {
		return domain.User{}, invalid("status", "must be active or inactive")
	}
	tx, err := e.begin(ctx, "user status")
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	u, err := e.Repo.GetUser(ctx, tx, id)
	if err != nil {
		return domain.User{}, e.fail("user status", storeErr("read user", "user", id, err))
	}
	if u.Status == status {
		return u, nil
	}
	if err := e.Repo.UpdateUserStatus(ctx, tx, id, status); err != nil {
		return domain.User{}, e.fail("user status", storeErr("update user", "user", id, err))
	}
	payload := events.Payload{"from": u.Status, "to": status}
	if err := e.events().Append(ctx, tx, events.UserStatusChanged, events.KindUser, id, actor.Actor(), payload); err != nil {
		return domain.User{}, e.fail("user status", StoreError{Op: "append event", Err: err})
	}
	if err := e.commit(tx, "user status"); err != nil {
		return domain.User{}, err
	}
	u.Status = status
	return u, nil
}

// UpdateUser edits a directory user. Blank input fields keep their current
// value; the merged record is validated like a new user.
func (e Engine) UpdateUser(ctx context.Context, id string, in UserInput, actor domain.Viewer) (domain.User, error) {
	tx, err := e.begin(ctx, "update user")
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	u, err := e.Repo.GetUser(ctx, tx, id)
	if err != nil {
		return domain.User{}, e.fail("update user", storeErr("read user", "user", id, err))
	}
	merged := UserInput{
		FullName: firstNonBlank(in.FullName, u.FullName),
		Email:    domain.NormalizeEmail(firstNonBlank(in.Email, u.Email)),
		Role:     firstNonBlank(in.Role, string(u.Role)),
		Status:   strings.ToLower(firstNonBlank(in.Status, u.Status)),
	}
	if err := validate.Struct(merged); err != nil {
		return domain.User{}, fromValidator(err)
	}
	role, err := domain.ParseRole(merged.Role)
	if err != nil {
		return domain.User{}, invalid("role", "%v", err)
	}
	next := u
	next.FullName = merged.FullName
	next.Email = merged.Email
	next.Role = role
	next.Status = merged.Status

	changes := events.Payload{}
	if next.FullName != u.FullName {
		changes["full_name"] = next.FullName
	}
	if next.Email != u.Email {
		changes["email"] = next.Email
		changes["from_email"] = u.Email
	}
	if next.Role != u.Role {
		changes["role"] = next.Role
		changes["from_role"] = u.Role
	}
	if next.Status != u.Status {
		changes["status"] = next.Status
	}
	if len(changes) == 0 {
		return u, nil
	}
	if err := e.Repo.UpdateUser(ctx, tx, next); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return domain.User{}, invalid("email", "%s is already registered", next.Email)
		}
		return domain.User{}, e.fail("update user", storeErr("update user", "user", id, err))
	}
	if err := e.events().Append(ctx, tx, events.UserUpdated, events.KindUser, id, actor.Actor(), changes); err != nil {
		return domain.User{}, e.fail("update user", StoreError{Op: "append event", Err: err})
	}
	if err := e.commit(tx, "update user"); err != nil {
		return domain.User{}, err
	}
	e.log().Info("user updated", zap.String("id", id), zap.Int("fields", len(changes)))
	return next, nil
}

// DeleteUser removes a directory user and its API keys. Reminders addressed to
// the user's email are kept.
func (e Engine) DeleteUser(ctx context.Context, id string, actor domain.Viewer) (domain.User, error) {
	tx, err := e.begin(ctx, "delete user")
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	u, err := e.Repo.GetUser(ctx, tx, id)
	if err != nil {
		return domain.User{}, e.fail("delete user", storeErr("read user", "user", id, err))
	}
	if err := e.Repo.DeleteUser(ctx, tx, id); err != nil {
		return domain.User{}, e.fail("delete user", storeErr("delete user", "user", id, err))
	}
	payload := events.Payload{"email": u.Email, "role": u.Role, "full_name": u.FullName}
	if err := e.events().Append(ctx, tx, events.UserDeleted, events.KindUser, id, actor.Actor(), payload); err != nil {
		return domain.User{}, e.fail("delete user", StoreError{Op: "append event", Err: err})
	}
	if err := e.commit(tx, "delete user"); err != nil {
		return domain.User{}, err
	}
	e.log().Info("user deleted", zap.String("id", id), zap.String("role", string(u.Role)))
	return u, nil
}

func firstNonBlank(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

// RoleMembers resolves a role to the emails of its active users.
func (e Engine) RoleMembers(ctx context.Context, role domain.Role) ([]string, error) {
	emails, err := e.Repo.EmailsByRole(ctx, role)
	if err != nil {
		return nil, e.fail("role members", StoreError{Op: "emails by role", Err: err})
	}
	return emails, nil
}

func (e Engine) UserCounts(ctx context.Context) (map[domain.Role]int, error) {
	counts, err := e.Repo.CountUsersByRole(ctx)
	if err != nil {
		return nil, e.fail("user counts", StoreError{Op: "count users", Err: err})
	}
	return counts, nil
}

// CreateAPIKey issues a key for a directory user. The raw key is returned once
// and only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name string) (string, domain.APIKey, error) {
	if _, err := e.Repo.GetUser(ctx, nil, userID); err != nil {
		return "", domain.APIKey{}, e.fail("api key", storeErr("read user", "user", userID, err))
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.APIKey{}, err
	}
	raw := "rdk_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: e.stamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return "", domain.APIKey{}, e.fail("api key", StoreError{Op: "insert api key", Err: err})
	}
	return raw, key, nil
}

// CheckViewerActive rejects viewers that map to a deactivated directory user.
func (e Engine) CheckViewerActive(ctx context.Context, v domain.Viewer) error {
	return auth.Service{Config: e.Config, Repo: e.Repo}.CheckActive(ctx, v)
}
