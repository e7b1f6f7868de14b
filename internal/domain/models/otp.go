// internal/domain/models/otp.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OTPPurpose says what a one-time passcode proves.
type OTPPurpose string

const (
	OTPRegister       OTPPurpose = "register"
	OTPForgotPassword OTPPurpose = "forgot_password"
	OTPChangeEmail    OTPPurpose = "change_email"
)

// OTP is a pending one-time passcode. Only the bcrypt hash of the code is
// stored. Records expire through a TTL index on ExpiresAt.
type OTP struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      primitive.ObjectID `bson:"user_id"`
	Purpose     OTPPurpose         `bson:"purpose"`
	TargetEmail string             `bson:"target_email,omitempty"` // change_email only
	CodeHash    string             `bson:"code_hash"`
	Attempts    int                `bson:"attempts"`
	ExpiresAt   time.Time          `bson:"expires_at"`
	CreatedAt   time.Time          `bson:"created_at"`
}

// BlacklistedToken is a revoked bearer token kept until it would have expired.
type BlacklistedToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Token     string             `bson:"token"`
	ExpiresAt time.Time          `bson:"expires_at"`
}
