package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/auth"
	"github.com/iliyamo/member-portal/internal/avatar"
	"github.com/iliyamo/member-portal/internal/model"
	"github.com/iliyamo/member-portal/internal/repository"
)

// User listing bounds.
const (
	MaxUserListLimit     = 1000
	DefaultUserListLimit = 100
)

// AdminService implements the admin panel. Callers are expected to have
// passed RequireRole(actor, model.RoleAdmin).
type AdminService struct {
	users   UserStore
	hasher  *auth.PasswordHasher
	audit   *AuditRecorder
	avatars *avatar.Store
	log     *zap.Logger
}

func NewAdminService(users UserStore, hasher *auth.PasswordHasher, audit *AuditRecorder, avatars *avatar.Store, log *zap.Logger) *AdminService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminService{users: users, hasher: hasher, audit: audit, avatars: avatars, log: log}
}

// ListUsers returns users ordered by id.
func (s *AdminService) ListUsers(ctx context.Context, skip, limit int) ([]model.User, error) {
	if skip < 0 {
		return nil, apperr.Validation("skip", "skip must not be negative")
	}
	if limit < 1 || limit > MaxUserListLimit {
		return nil, apperr.Validationf("limit", "limit must be between 1 and %d", MaxUserListLimit)
	}
	return s.users.List(ctx, skip, limit)
}

// ToggleActive flips the target's is_active flag.
func (s *AdminService) ToggleActive(ctx context.Context, actor *model.User, targetID int64, meta RequestMeta) (*model.User, error) {
	if actor.ID == targetID {
		return nil, apperr.ErrSelfAction
	}
	target, err := s.target(ctx, targetID)
	if err != nil {
		return nil, err
	}
	target.IsActive = !target.IsActive
	action := model.ActionUserDeactivated
	if target.IsActive {
		action = model.ActionUserActivated
	}
	if err := s.save(ctx, target, s.audit.Event(&actor.ID, action, meta, describe(target, ""))); err != nil {
		return nil, err
	}
	return target, nil
}

// SetRole changes the target's role.
func (s *AdminService) SetRole(ctx context.Context, actor *model.User, targetID int64, role string, meta RequestMeta) (*model.User, error) {
	if actor.ID == targetID {
		return nil, apperr.ErrSelfAction
	}
	if !model.ValidRole(role) {
		return nil, apperr.Validationf("role", "role must be %q or %q", model.RoleUser, model.RoleAdmin)
	}
	target, err := s.target(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role == role {
		return target, nil
	}
	detail := describe(target, fmt.Sprintf("role=%s->%s", target.Role, role))
	target.Role = role
	if err := s.save(ctx, target, s.audit.Event(&actor.ID, model.ActionRoleChanged, meta, detail)); err != nil {
		return nil, err
	}
	return target, nil
}

// ResetPassword replaces the target's password.
func (s *AdminService) ResetPassword(ctx context.Context, actor *model.User, targetID int64, newPassword string, meta RequestMeta) error {
	if actor.ID == targetID {
		return apperr.ErrSelfAction
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	target, err := s.target(ctx, targetID)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return apperr.Validation("new_password", "password is too long")
	}
	if err != nil {
		return err
	}
	target.PasswordHash = hash
	return s.save(ctx, target, s.audit.Event(&actor.ID, model.ActionPasswordReset, meta, describe(target, "")))
}

// DeleteUser removes the target and then, best effort, its avatar file.
// The file removal is not part of the database transaction.
func (s *AdminService) DeleteUser(ctx context.Context, actor *model.User, targetID int64, meta RequestMeta) error {
	if actor.ID == targetID {
		return apperr.ErrSelfAction
	}
	target, err := s.target(ctx, targetID)
	if err != nil {
		return err
	}
	ev := s.audit.Event(&actor.ID, model.ActionUserDeleted, meta, describe(target, ""))
	if err := s.users.Delete(ctx, target.ID, ev); err != nil {
		return translate(err)
	}
	s.audit.Committed(ev)
	if target.Avatar != nil {
		_ = s.avatars.Delete(*target.Avatar)
	}
	s.log.Info("user deleted", zap.Int64("user_id", target.ID), zap.Int64("by", actor.ID))
	return nil
}

// EnsureAdmin creates an active admin with the given credentials unless a
// user with that email or username already exists. It reports whether a
// user was created.
func (s *AdminService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	username, err := auth.ValidateUsername(username)
	if err != nil {
		return false, err
	}
	email, err = auth.NormalizeEmail(email)
	if err != nil {
		return false, err
	}
	if err := auth.ValidatePassword(password); err != nil {
		return false, err
	}
	for _, lookup := range []func() (*model.User, error){
		func() (*model.User, error) { return s.users.GetByUsername(ctx, username) },
		func() (*model.User, error) { return s.users.GetByEmail(ctx, email) },
	} {
		existing, err := lookup()
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if existing.Role != model.RoleAdmin {
			s.log.Warn("bootstrap admin identity held by a non-admin account",
				zap.Int64("user_id", existing.ID), zap.String("username", existing.Username))
		}
		return false, nil
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	u := &model.User{Username: username, Email: email, PasswordHash: hash, Role: model.RoleAdmin, IsActive: true}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return false, nil
		}
		return false, err
	}
	s.log.Info("bootstrap admin created", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return true, nil
}

func (s *AdminService) target(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

func (s *AdminService) save(ctx context.Context, u *model.User, ev *model.AuditLog) error {
	if err := s.users.Update(ctx, u, ev); err != nil {
		return translate(err)
	}
	s.audit.Committed(ev)
	return nil
}

func describe(u *model.User, extra string) string {
	d := fmt.Sprintf("target_id=%d username=%s", u.ID, u.Username)
	if extra != "" {
		d += " " + extra
	}
	return d
}
