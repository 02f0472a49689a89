package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/member-portal/internal/apperr"
	"github.com/iliyamo/member-portal/internal/auth"
	"github.com/iliyamo/member-portal/internal/avatar"
	"github.com/iliyamo/member-portal/internal/model"
	"github.com/iliyamo/member-portal/internal/repository"
)

// AccountService implements the self-service operations: registration,
// login, logout, profile update and avatar upload.
type AccountService struct {
	users   UserStore
	hasher  *auth.PasswordHasher
	tokens  *auth.TokenService
	audit   *AuditRecorder
	avatars *avatar.Store
	log     *zap.Logger

	// dummyHash is verified against when the email is unknown so a failed
	// login costs the same whether or not the account exists.
	dummyHash string
}

func NewAccountService(users UserStore, hasher *auth.PasswordHasher, tokens *auth.TokenService,
	audit *AuditRecorder, avatars *avatar.Store, log *zap.Logger) (*AccountService, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dummy, err := hasher.Hash("not-a-real-password-0")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &AccountService{
		users: users, hasher: hasher, tokens: tokens, audit: audit,
		avatars: avatars, log: log, dummyHash: dummy,
	}, nil
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register validates in, creates an active user with the user role and
// records a register event in the same transaction. A taken username or
// email yields ErrConflict without saying which.
func (s *AccountService) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (*model.User, error) {
	username, err := auth.ValidateUsername(in.Username)
	if err != nil {
		return nil, err
	}
	email, err := auth.NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		IsActive:     true,
	}
	ev := s.audit.Event(nil, model.ActionRegister, meta, "")
	if err := s.users.Create(ctx, u, ev); err != nil {
		return nil, translate(err)
	}
	s.audit.Committed(ev)
	s.log.Info("user registered", zap.Int64("user_id", u.ID))
	return u, nil
}

// Session is the outcome of a successful login.
type Session struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// Login checks the credentials and issues an access token. Every failure
// is audited as login_failed; unknown emails are recorded without a user id.
func (s *AccountService) Login(ctx context.Context, email, password string, meta RequestMeta) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.Validation("email", "email must not be empty")
	}
	if password == "" {
		return nil, apperr.Validation("password", "password must not be empty")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.hasher.Verify(password, s.dummyHash)
		s.audit.Record(ctx, s.audit.Event(nil, model.ActionLoginFailed, meta, "email="+email))
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		s.audit.Record(ctx, s.audit.Event(&u.ID, model.ActionLoginFailed, meta, "invalid password"))
		return nil, apperr.ErrInvalidCredentials
	}
	if !u.IsActive {
		s.audit.Record(ctx, s.audit.Event(&u.ID, model.ActionLoginFailed, meta, "account disabled"))
		return nil, apperr.ErrAccountDisabled
	}

	token, exp, err := s.tokens.Issue(u.ID, u.Role, s.tokens.TTL())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.audit.Record(ctx, s.audit.Event(&u.ID, model.ActionLoginSuccess, meta, ""))
	return &Session{User: u, Token: token, ExpiresAt: exp}, nil
}

// Logout records a logout for u. The token itself stays valid until it
// expires; clearing the cookie is the handler's job. u may be nil when the
// request carried no usable token.
func (s *AccountService) Logout(ctx context.Context, u *model.User, meta RequestMeta) {
	if u == nil {
		return
	}
	s.audit.Record(ctx, s.audit.Event(&u.ID, model.ActionLogout, meta, ""))
}

// ProfileUpdate lists the fields a principal may change on themselves. Nil
// fields are left untouched; an empty Bio clears it. Changing the password
// requires CurrentPassword.
type ProfileUpdate struct {
	Username        *string
	Email           *string
	Bio             *string
	NewPassword     *string
	CurrentPassword string
}

// UpdateProfile applies p to u. Role and activation state are not
// reachable from here.
func (s *AccountService) UpdateProfile(ctx context.Context, u *model.User, p ProfileUpdate, meta RequestMeta) (*model.User, error) {
	next := *u
	var changed []string

	if p.Username != nil {
		name, err := auth.ValidateUsername(*p.Username)
		if err != nil {
			return nil, err
		}
		if name != next.Username {
			next.Username = name
			changed = append(changed, "username")
		}
	}
	if p.Email != nil {
		email, err := auth.NormalizeEmail(*p.Email)
		if err != nil {
			return nil, err
		}
		if email != next.Email {
			next.Email = email
			changed = append(changed, "email")
		}
	}
	if p.Bio != nil {
		if err := auth.ValidateBio(*p.Bio); err != nil {
			return nil, err
		}
		if !sameOptional(next.Bio, *p.Bio) {
			next.Bio = optional(*p.Bio)
			changed = append(changed, "bio")
		}
	}

	var events []*model.AuditLog
	if p.NewPassword != nil {
		if p.CurrentPassword == "" || !s.hasher.Verify(p.CurrentPassword, u.PasswordHash) {
			return nil, apperr.Validation("current_password", "current password is incorrect")
		}
		if err := auth.ValidatePassword(*p.NewPassword); err != nil {
			return nil, err
		}
		hash, err := s.hash(*p.NewPassword)
		if err != nil {
			return nil, err
		}
		next.PasswordHash = hash
		events = append(events, s.audit.Event(&u.ID, model.ActionPasswordChange, meta, ""))
	}
	if len(changed) > 0 {
		events = append(events, s.audit.Event(&u.ID, model.ActionProfileUpdate, meta, "fields="+strings.Join(changed, ",")))
	}
	if len(events) == 0 {
		return u, nil
	}

	if err := s.users.Update(ctx, &next, events...); err != nil {
		return nil, translate(err)
	}
	s.audit.Committed(events...)
	return &next, nil
}

// UploadAvatar validates data, removes the previous avatar file and stores
// the new one. Removing the old file is best effort.
func (s *AccountService) UploadAvatar(ctx context.Context, u *model.User, ext string, data []byte, meta RequestMeta) (*model.User, error) {
	if err := s.avatars.Check(ext, data); err != nil {
		return nil, err
	}
	if u.Avatar != nil {
		_ = s.avatars.Delete(*u.Avatar)
	}
	stored, err := s.avatars.Save(ext, data)
	if err != nil {
		return nil, err
	}

	next := *u
	next.Avatar = &stored
	ev := s.audit.Event(&u.ID, model.ActionAvatarUpload, meta, "path="+stored)
	if err := s.users.Update(ctx, &next, ev); err != nil {
		_ = s.avatars.Delete(stored)
		return nil, translate(err)
	}
	s.audit.Committed(ev)
	return &next, nil
}

func (s *AccountService) hash(password string) (string, error) {
	h, err := s.hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", apperr.Validation("password", "password is too long")
	}
	return h, err
}

func sameOptional(cur *string, v string) bool {
	if cur == nil {
		return v == ""
	}
	return *cur == v
}
