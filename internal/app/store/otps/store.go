// internal/app/store/otps/store.go
package otps

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the number of digits in a code.
	CodeLength = 6
	// DefaultExpiry is how long a code is valid.
	DefaultExpiry = 5 * time.Minute
	// BcryptCost for hashing codes.
	BcryptCost = 10
	// MaxVerifyAttempts is how many guesses one code allows.
	MaxVerifyAttempts = 5
)

// Store manages one-time codes. At most one live code exists per
// (user, purpose); issuing a new one replaces the old.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
	now    func() time.Time
}

// New creates a Store. A non-positive expiry means DefaultExpiry.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{c: db.Collection("otps"), expiry: expiry, now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Expiry returns how long issued codes stay valid.
func (s *Store) Expiry() time.Duration { return s.expiry }

// Issue generates a code, stores its hash and returns the plain code.
func (s *Store) Issue(ctx context.Context, userID primitive.ObjectID, purpose models.OTPPurpose, targetEmail string) (string, error) {
	code, hash, err := NewCode()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()

	if _, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID, "purpose": purpose}); err != nil {
		return "", fmt.Errorf("delete previous otp: %w", err)
	}
	otp := models.OTP{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		Purpose:     purpose,
		TargetEmail: targetEmail,
		CodeHash:    hash,
		ExpiresAt:   now.Add(s.expiry),
		CreatedAt:   now,
	}
	if _, err := s.c.InsertOne(ctx, otp); err != nil {
		return "", fmt.Errorf("insert otp: %w", err)
	}
	return code, nil
}

// Verify checks code against the live record for (userID, purpose) and
// deletes the record on success. Every guess counts toward the attempt cap;
// the cap check and the increment are one atomic update, so concurrent
// guesses cannot exceed it.
func (s *Store) Verify(ctx context.Context, userID primitive.ObjectID, purpose models.OTPPurpose, code string) (*models.OTP, error) {
	live := bson.M{
		"user_id":    userID,
		"purpose":    purpose,
		"expires_at": bson.M{"$gt": s.now().UTC()},
	}
	capped := bson.M{"attempts": bson.M{"$lt": MaxVerifyAttempts}}
	for k, v := range live {
		capped[k] = v
	}

	var otp models.OTP
	err := s.c.FindOneAndUpdate(ctx, capped,
		bson.M{"$inc": bson.M{"attempts": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&otp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either no live code, or one whose attempts are used up.
		n, cerr := s.c.CountDocuments(ctx, live)
		if cerr != nil {
			return nil, cerr
		}
		if n > 0 {
			return nil, apperr.ErrTooManyAttempts
		}
		return nil, apperr.ErrOTPExpired
	}
	if err != nil {
		return nil, err
	}

	if !CheckCode(otp.CodeHash, code) {
		return nil, apperr.ErrInvalidOTP
	}

	res, err := s.c.DeleteOne(ctx, bson.M{"_id": otp.ID})
	if err != nil {
		return nil, err
	}
	if res.DeletedCount == 0 {
		// A concurrent correct guess consumed it first.
		return nil, apperr.ErrOTPExpired
	}
	return &otp, nil
}

// DeleteByUser removes every code for userID.
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}

// NewCode returns a random zero-padded numeric code and its bcrypt hash.
func NewCode() (code, hash string, err error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", "", fmt.Errorf("generate code: %w", err)
	}
	code = fmt.Sprintf("%0*d", CodeLength, n.Int64())
	h, err := bcrypt.GenerateFromPassword([]byte(code), BcryptCost)
	if err != nil {
		return "", "", fmt.Errorf("hash code: %w", err)
	}
	return code, string(h), nil
}

// CheckCode reports whether code matches hash.
func CheckCode(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
