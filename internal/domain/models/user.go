// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an account that can own, administer, or belong to projects.
//
// NOTE:
//   - ForgotOTPVerifiedUntil replaces a transient "reset allowed" flag. A reset
//     is only permitted while the timestamp lies in the future.
//   - TokenVersion is bumped whenever credentials change; session tokens carry
//     the version they were issued with.
type User struct {
	ID                     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                   string             `bson:"name" json:"name"`
	NameCI                 string             `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Email                  string             `bson:"email" json:"email"`
	PasswordHash           string             `bson:"password_hash" json:"-"`
	IsVerified             bool               `bson:"is_verified" json:"is_verified"`
	ForgotOTPVerifiedUntil *time.Time         `bson:"forgot_otp_verified_until,omitempty" json:"-"`
	TokenVersion           int                `bson:"token_version" json:"-"`
	IsDeleted              bool               `bson:"is_deleted" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Active reports whether the user may be referenced by projects and tasks.
func (u User) Active() bool {
	return u.IsVerified && !u.IsDeleted
}

// ResetAllowed reports whether a forgot-password OTP was verified recently
// enough for a password reset to proceed at now.
func (u User) ResetAllowed(now time.Time) bool {
	return u.ForgotOTPVerifiedUntil != nil && now.Before(*u.ForgotOTPVerifiedUntil)
}

// Summary returns the display-safe projection of the user.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

// UserSummary is what other users are allowed to see about a user.
type UserSummary struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Email string             `bson:"email" json:"email"`
}
