package model

import "time"

// Audit actions recorded by the service layer.
const (
	ActionRegister        = "register"
	ActionLoginSuccess    = "login_success"
	ActionLoginFailed     = "login_failed"
	ActionLogout          = "logout"
	ActionProfileUpdate   = "profile_update"
	ActionPasswordChange  = "password_change"
	ActionAvatarUpload    = "avatar_upload"
	ActionUserActivated   = "user_activated"
	ActionUserDeactivated = "user_deactivated"
	ActionUserDeleted     = "user_deleted"
	ActionPasswordReset   = "password_reset"
	ActionRoleChanged     = "role_changed"
)

// AuditLog mirrors a row in `audit_logs`. Rows are appended and never
// updated or deleted by the application. UserID is a weak reference: it is
// nil for events without a known principal and becomes nil when the
// principal is deleted.
type AuditLog struct {
	ID        int64
	UserID    *int64
	Username  *string // joined from users on read; nil once the user is gone
	Action    string
	IPAddress *string
	UserAgent *string
	Details   *string
	CreatedAt time.Time
}
