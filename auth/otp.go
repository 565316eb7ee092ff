package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"eventhub/apperr"
	"eventhub/database"
	"eventhub/mail"
	"eventhub/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OTPIssued describes a freshly issued code without revealing it.
type OTPIssued struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RequestOTP issues a new login code for a registered email, replacing any
// unverified code. At most one code is issued per resend interval.
func (b *Broker) RequestOTP(ctx context.Context, email string) (*OTPIssued, error) {
	email = models.NormalizeEmail(email)
	reg, err := b.identity.Resolve(ctx, email)
	if err != nil {
		if !apperr.IsKind(err, apperr.KindNotFound) {
			return nil, err
		}
		u, uerr := findUser(b.db.WithContext(ctx), email)
		if uerr != nil {
			return nil, apperr.Internal("load user", uerr)
		}
		if u == nil || !u.IsSuperAdmin() {
			return nil, err
		}
	}

	code, err := generateCode()
	if err != nil {
		return nil, apperr.Internal("generate code", err)
	}

	unlock := b.otpLocks.Lock(email)
	defer unlock()

	now := b.clock.Now()
	otp := models.OneTimePasscode{
		CreatedAt: now,
		Email:     email,
		Code:      code,
		Purpose:   models.OTPPurposeLogin,
		ExpiresAt: now.Add(b.otpTTL),
	}
	err = database.Transact(ctx, b.db, func(tx *gorm.DB) error {
		var last models.OneTimePasscode
		err := tx.Where("email = ? AND purpose = ?", email, models.OTPPurposeLogin).
			Order("created_at DESC, id DESC").First(&last).Error
		if err != nil && !database.IsNotFound(err) {
			return err
		}
		if err == nil {
			if wait := b.otpInterval - now.Sub(last.CreatedAt); wait > 0 {
				return apperr.RateLimited(fmt.Sprintf("please wait %d seconds before requesting another code", int(wait.Round(time.Second).Seconds())))
			}
		}

		if err := tx.Where("email = ? AND verified = ?", email, false).
			Delete(&models.OneTimePasscode{}).Error; err != nil {
			return err
		}
		return tx.Create(&otp).Error
	})
	if err != nil {
		return nil, serviceError("issue otp", err)
	}

	name := ""
	if reg != nil {
		name = reg.Name
	}
	msg := mail.Message{
		To:       []string{email},
		Subject:  "Your login code",
		Template: "otp",
		Data:     map[string]any{"name": name, "code": code, "minutes": int(b.otpTTL.Minutes())},
	}
	if err := b.mailer.Send(ctx, msg); err != nil {
		b.logger.Warn("otp mail failed, code stays valid", zap.String("email", email), zap.Error(err))
	}

	b.logger.Info("otp issued", zap.String("email", email), zap.Time("expires_at", otp.ExpiresAt))
	return &OTPIssued{Email: email, ExpiresAt: otp.ExpiresAt}, nil
}

// ResendOTP is RequestOTP under its user-facing name.
func (b *Broker) ResendOTP(ctx context.Context, email string) (*OTPIssued, error) {
	return b.RequestOTP(ctx, email)
}

// VerifyOTP consumes a code and continues through the shared login path. The
// code survives a login that fails for a retryable reason.
func (b *Broker) VerifyOTP(ctx context.Context, email, code string) (res *Result, err error) {
	defer func() { b.observe(MethodOTP, res, err) }()

	email = models.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || len(code) != 6 {
		return nil, apperr.InvalidCredential("invalid or expired code")
	}

	db := b.db.WithContext(ctx)
	var otp models.OneTimePasscode
	err = db.Where("email = ? AND code = ? AND purpose = ? AND verified = ?", email, code, models.OTPPurposeLogin, false).
		Order("id DESC").First(&otp).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.InvalidCredential("invalid or expired code")
		}
		return nil, apperr.Internal("load otp", err)
	}
	if !otp.IsActive(b.clock.Now()) {
		return nil, apperr.InvalidCredential("invalid or expired code")
	}

	consumed := db.Model(&models.OneTimePasscode{}).
		Where("id = ? AND verified = ?", otp.ID, false).
		Update("verified", true)
	if consumed.Error != nil {
		return nil, apperr.Internal("consume otp", consumed.Error)
	}
	if consumed.RowsAffected == 0 {
		return nil, apperr.InvalidCredential("invalid or expired code")
	}

	res, err = b.admit(ctx, email, nil)
	if err != nil && retryable(err) {
		b.releaseCode(db, &otp)
		return nil, err
	}

	if derr := db.Where("email = ? AND verified = ?", email, true).
		Delete(&models.OneTimePasscode{}).Error; derr != nil {
		b.logger.Warn("failed to clean up verified codes", zap.String("email", email), zap.Error(derr))
	}
	return res, err
}

// releaseCode hands a consumed code back so the user can retry within its
// lifetime, unless a newer code was issued meanwhile.
func (b *Broker) releaseCode(db *gorm.DB, otp *models.OneTimePasscode) {
	unlock := b.otpLocks.Lock(otp.Email)
	defer unlock()

	err := db.Model(&models.OneTimePasscode{}).
		Where("id = ? AND NOT EXISTS (SELECT 1 FROM one_time_passcodes AS o WHERE o.email = ? AND o.verified = ?)", otp.ID, otp.Email, false).
		Update("verified", false).Error
	if err != nil {
		b.logger.Warn("failed to release otp after login error", zap.String("email", otp.Email), zap.Error(err))
	}
}

// retryable reports whether a login failure was not the principal's fault.
func retryable(err error) bool {
	switch apperr.KindOf(err) {
	case apperr.KindInternal, apperr.KindUnavailable:
		return true
	}
	return false
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
