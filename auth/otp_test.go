package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"eventhub/apperr"
	"eventhub/database"
	"eventhub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOTP_RequestAndVerify(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.Create(&models.FoodRegistrant{TraineeID: "F1", Email: "food@example.com", Name: "Fern", IsApproved: true}).Error)

	issued, err := h.broker.RequestOTP(ctx, " Food@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "food@example.com", issued.Email)
	assert.True(t, issued.ExpiresAt.Equal(h.clock.Now().Add(10*time.Minute)))

	code := h.mailer.lastCode(t)
	assert.Len(t, code, 6)
	assert.Equal(t, "otp", h.mailer.sent[0].Template)

	res, err := h.broker.VerifyOTP(ctx, "food@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, res.Outcome)
	assert.NotEmpty(t, res.Token)

	var n int64
	require.NoError(t, h.db.Model(&models.OneTimePasscode{}).Where("email = ?", "food@example.com").Count(&n).Error)
	assert.Zero(t, n, "verified codes are removed")

	_, err = h.broker.VerifyOTP(ctx, "food@example.com", code)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidCredential))
}

func TestOTP_UnregisteredEmail(t *testing.T) {
	h := newHarness(t)
	_, err := h.broker.RequestOTP(context.Background(), "nobody@example.com")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	assert.Empty(t, h.mailer.sent)
}

func TestOTP_SuperAdminWithoutRegistration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, database.SeedSuperAdmin(h.db, "root@example.com", "correct horse", zap.NewNop()))

	_, err := h.broker.RequestOTP(ctx, "root@example.com")
	require.NoError(t, err)

	res, err := h.broker.VerifyOTP(ctx, "root@example.com", h.mailer.lastCode(t))
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, res.User.Role)
}

func TestOTP_Expired(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.Create(&models.FoodRegistrant{TraineeID: "F1", Email: "food@example.com", Name: "Fern", IsApproved: true}).Error)

	_, err := h.broker.RequestOTP(ctx, "food@example.com")
	require.NoError(t, err)
	code := h.mailer.lastCode(t)

	h.clock.Advance(11 * time.Minute)
	_, err = h.broker.VerifyOTP(ctx, "food@example.com", code)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidCredential))
}

func TestOTP_WrongCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.Create(&models.FoodRegistrant{TraineeID: "F1", Email: "food@example.com", Name: "Fern", IsApproved: true}).Error)

	_, err := h.broker.RequestOTP(ctx, "food@example.com")
	require.NoError(t, err)
	code := h.mailer.lastCode(t)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = h.broker.VerifyOTP(ctx, "food@example.com", wrong)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidCredential))

	_, err = h.broker.VerifyOTP(ctx, "food@example.com", "12")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidCredential))

	_, err = h.broker.VerifyOTP(ctx, "food@example.com", code)
	assert.NoError(t, err)
}

func TestOTP_ResendIsRateLimited(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.Create(&models.FoodRegistrant{TraineeID: "F1", Email: "food@example.com", Name: "Fern", IsApproved: true}).Error)

	_, err := h.broker.RequestOTP(ctx, "food@example.com")
	require.NoError(t, err)
	first := h.mailer.lastCode(t)

	h.clock.Advance(30 * time.Second)
	_, err = h.broker.ResendOTP(ctx, "food@example.com")
	assert.True(t, apperr.IsKind(err, apperr.KindRateLimited))
	assert.Len(t, h.mailer.sent, 1)

	h.clock.Advance(31 * time.Second)
	_, err = h.broker.ResendOTP(ctx, "food@example.com")
	require.NoError(t, err)
	second := h.mailer.lastCode(t)

	var n int64
	require.NoError(t, h.db.Model(&models.OneTimePasscode{}).Where("email = ?", "food@example.com").Count(&n).Error)
	assert.EqualValues(t, 1, n, "resend replaces the unverified code")

	if first != second {
		_, err = h.broker.VerifyOTP(ctx, "food@example.com", first)
		assert.True(t, apperr.IsKind(err, apperr.KindInvalidCredential))
	}
	_, err = h.broker.VerifyOTP(ctx, "food@example.com", second)
	assert.NoError(t, err)
}

func TestOTP_PlayerPendingStillConsumesCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.Create(&models.Player{TraineeID: "P1", Email: "player@example.com", Name: "Pia"}).Error)

	_, err := h.broker.RequestOTP(ctx, "player@example.com")
	require.NoError(t, err)

	res, err := h.broker.VerifyOTP(ctx, "player@example.com", h.mailer.lastCode(t))
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, res.Outcome)
	assert.EqualValues(t, 1, h.countRequests(t, "player@example.com"))

	var n int64
	require.NoError(t, h.db.Model(&models.OneTimePasscode{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestOTP_ConcurrentRequestsLeaveOneActiveCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.Create(&models.FoodRegistrant{TraineeID: "F1", Email: "food@example.com", Name: "Fern", IsApproved: true}).Error)
	// One connection keeps the shared in-memory database from reporting
	// table locks; the requests still race for the email lock.
	sqlDB, err := h.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	_, err = h.broker.RequestOTP(ctx, "food@example.com")
	require.NoError(t, err)
	h.clock.Advance(2 * time.Minute)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		issued  int
		limited int
		other   []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.broker.RequestOTP(ctx, "food@example.com")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				issued++
			case apperr.IsKind(err, apperr.KindRateLimited):
				limited++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 1, issued)
	assert.Equal(t, callers-1, limited)

	var codes []models.OneTimePasscode
	require.NoError(t, h.db.Where("email = ? AND verified = ?", "food@example.com", false).Find(&codes).Error)
	require.Len(t, codes, 1)

	_, err = h.broker.VerifyOTP(ctx, "food@example.com", h.mailer.lastCode(t))
	assert.NoError(t, err)
}

func TestOTP_InternalLoginFailureKeepsCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.Create(&models.Player{TraineeID: "P1", Email: "player@example.com", Name: "Pia"}).Error)

	_, err := h.broker.RequestOTP(ctx, "player@example.com")
	require.NoError(t, err)
	code := h.mailer.lastCode(t)

	require.NoError(t, h.db.Migrator().DropTable(&models.LoginRequest{}))
	_, err = h.broker.VerifyOTP(ctx, "player@example.com", code)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInternal))

	var otp models.OneTimePasscode
	require.NoError(t, h.db.Where("email = ?", "player@example.com").First(&otp).Error)
	assert.False(t, otp.Verified)

	require.NoError(t, h.db.AutoMigrate(&models.LoginRequest{}))
	res, err := h.broker.VerifyOTP(ctx, "player@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, res.Outcome)
}

func TestOTP_RejectedPrincipalConsumesCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.db.Create(&models.Player{TraineeID: "P1", Email: "player@example.com", Name: "Pia"}).Error)
	require.NoError(t, h.db.Create(&models.User{Email: "player@example.com", Role: models.RoleUser, ApprovalStatus: models.StatusRejected}).Error)

	_, err := h.broker.RequestOTP(ctx, "player@example.com")
	require.NoError(t, err)
	code := h.mailer.lastCode(t)

	_, err = h.broker.VerifyOTP(ctx, "player@example.com", code)
	assert.True(t, apperr.IsKind(err, apperr.KindAccessDenied))

	var n int64
	require.NoError(t, h.db.Model(&models.OneTimePasscode{}).Count(&n).Error)
	assert.Zero(t, n)

	_, err = h.broker.VerifyOTP(ctx, "player@example.com", code)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidCredential))
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Regexp(t, `^\d{6}$`, code)
	}
}
