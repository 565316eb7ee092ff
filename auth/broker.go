// Package auth turns a credential proof into a session token or an
// approval-pending answer.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"eventhub/apperr"
	"eventhub/approval"
	"eventhub/database"
	"eventhub/identity"
	"eventhub/mail"
	"eventhub/models"
	"eventhub/session"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Login methods, used for logging and metrics labels.
const (
	MethodPassword = "password"
	MethodGoogle   = "google"
	MethodOTP      = "otp"
	MethodLegacy   = "legacy"
)

type Outcome string

const (
	OutcomeGranted Outcome = "granted"
	OutcomePending Outcome = "pending"
)

// Result is either a granted session or a pending approval.
type Result struct {
	Outcome Outcome      `json:"-"`
	Token   string       `json:"token,omitempty"`
	User    *models.User `json:"user,omitempty"`
	Email   string       `json:"email,omitempty"`
	Name    string       `json:"name,omitempty"`
}

// Observer receives one call per finished login attempt.
type Observer interface {
	ObserveLogin(method, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveLogin(string, string) {}

type Options struct {
	OTPTTL            time.Duration
	OTPResendInterval time.Duration
	Observer          Observer
}

type Broker struct {
	db       *gorm.DB
	identity *identity.Store
	gate     *approval.Gate
	tokens   *session.Service
	verifier IdentityVerifier
	mailer   mail.Dispatcher
	clock    clockwork.Clock
	logger   *zap.Logger
	observer Observer

	otpTTL      time.Duration
	otpInterval time.Duration
	otpLocks    *keyedMutex
}

func NewBroker(
	db *gorm.DB,
	ids *identity.Store,
	gate *approval.Gate,
	tokens *session.Service,
	verifier IdentityVerifier,
	mailer mail.Dispatcher,
	clock clockwork.Clock,
	logger *zap.Logger,
	opts Options,
) *Broker {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 10 * time.Minute
	}
	if opts.OTPResendInterval <= 0 {
		opts.OTPResendInterval = 60 * time.Second
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Broker{
		db:          db,
		identity:    ids,
		gate:        gate,
		tokens:      tokens,
		verifier:    verifier,
		mailer:      mailer,
		clock:       clock,
		logger:      logger.Named("auth"),
		observer:    opts.Observer,
		otpTTL:      opts.OTPTTL,
		otpInterval: opts.OTPResendInterval,
		otpLocks:    newKeyedMutex(),
	}
}

// PasswordLogin authenticates a privileged principal with a password.
// It never creates a login request.
func (b *Broker) PasswordLogin(ctx context.Context, email, password string) (res *Result, err error) {
	defer func() { b.observe(MethodPassword, res, err) }()

	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	u, err := findUser(b.db.WithContext(ctx), email)
	if err != nil {
		return nil, apperr.Internal("load user", err)
	}
	if u == nil {
		return nil, apperr.NotFound("no account for this email")
	}
	if !u.HasPassword() || u.Role == models.RoleUser {
		return nil, apperr.InvalidCredential("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.InvalidCredential("invalid credentials")
	}

	decision, err := approval.CheckAccess(u)
	if err != nil {
		return nil, err
	}
	if decision == approval.Pending {
		return nil, apperr.PendingApproval("your account is awaiting approval")
	}

	return b.grant(ctx, u)
}

// Signup creates an admin principal that must be approved before it can log in.
func (b *Broker) Signup(ctx context.Context, email, password, name string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("a valid email is required")
	}
	if len(password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	u := &models.User{
		Email:          email,
		Name:           strings.TrimSpace(name),
		PasswordHash:   string(hashedPassword),
		Role:           models.RoleAdmin,
		ApprovalStatus: models.StatusPending,
	}
	if err := b.db.WithContext(ctx).Create(u).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Duplicate("an account with this email already exists")
		}
		return nil, apperr.Internal("create user", err)
	}

	b.logger.Info("admin signup awaiting approval", zap.String("email", email))
	return u, nil
}

// GoogleLogin verifies an identity-provider token and admits its email.
func (b *Broker) GoogleLogin(ctx context.Context, idToken string) (res *Result, err error) {
	defer func() { b.observe(MethodGoogle, res, err) }()

	profile, err := b.verifier.Verify(ctx, idToken)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			b.logger.Warn("identity provider unavailable", zap.Error(err))
			return nil, apperr.Wrap(apperr.KindUnavailable, "identity provider unavailable, try again", err)
		}
		return nil, apperr.Wrap(apperr.KindInvalidCredential, "identity token rejected", err)
	}
	return b.admit(ctx, profile.Email, profile)
}

// LegacyLogin admits a player or food registrant by email alone. New
// principals are approved on the spot; an existing one keeps its status.
//
// Deprecated: superseded by the OTP flow.
func (b *Broker) LegacyLogin(ctx context.Context, email string) (res *Result, err error) {
	defer func() { b.observe(MethodLegacy, res, err) }()

	reg, err := b.identity.ResolveAmong(ctx, email, models.KindPlayer, models.KindFood)
	if err != nil {
		return nil, err
	}

	var u *models.User
	err = database.Transact(ctx, b.db, func(tx *gorm.DB) error {
		var err error
		u, err = findUser(tx, reg.Email)
		if err != nil {
			return err
		}
		if u == nil {
			u, err = createPrincipal(tx, reg, nil, models.StatusApproved)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, serviceError("legacy login", err)
	}

	decision, err := approval.CheckAccess(u)
	if err != nil {
		return nil, err
	}
	if decision == approval.Pending {
		return &Result{Outcome: OutcomePending, Email: u.Email, Name: u.DisplayName()}, nil
	}
	return b.grant(ctx, u)
}

// Me returns the principal behind a session.
func (b *Broker) Me(ctx context.Context, userID uint) (*models.User, error) {
	var u models.User
	if err := b.db.WithContext(ctx).Preload("Player").Preload("Player.Team").First(&u, userID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("load user", err)
	}
	return &u, nil
}

// admit is the shared path of every identity-proving login: resolve the email,
// find or create the principal, consult the gate, open a login request when
// the principal is pending.
func (b *Broker) admit(ctx context.Context, email string, profile *Profile) (*Result, error) {
	email = models.NormalizeEmail(email)
	reg, regErr := b.identity.Resolve(ctx, email)
	if regErr != nil && !apperr.IsKind(regErr, apperr.KindNotFound) {
		return nil, regErr
	}

	var (
		u       *models.User
		pending *models.LoginRequest
	)
	err := database.Transact(ctx, b.db, func(tx *gorm.DB) error {
		var err error
		u, err = findUser(tx, email)
		if err != nil {
			return err
		}
		// Only the seeded super admin may log in without a registration record.
		if regErr != nil && (u == nil || !u.IsSuperAdmin()) {
			return regErr
		}

		if u == nil {
			status := models.StatusPending
			if approval.AutoApproves(reg.Kind) {
				status = models.StatusApproved
			}
			if u, err = createPrincipal(tx, reg, profile, status); err != nil {
				return err
			}
		}

		decision, err := approval.CheckAccess(u)
		if err != nil {
			return err
		}
		if decision == approval.Pending {
			pending, err = b.gate.EnsureRequest(tx, u, reg)
			return err
		}

		if reg != nil && reg.Kind == models.KindCommittee {
			if _, err := b.identity.CheckInTx(tx, reg.ID); err != nil {
				return err
			}
		}
		if profile != nil && profile.PictureURL != "" && u.PictureURL != profile.PictureURL {
			u.PictureURL = profile.PictureURL
			if err := tx.Model(u).Update("picture_url", profile.PictureURL).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, serviceError("admit", err)
	}

	if pending != nil {
		return &Result{Outcome: OutcomePending, Email: u.Email, Name: u.DisplayName()}, nil
	}
	return b.grant(ctx, u)
}

// grant stamps the login time and issues the session token.
func (b *Broker) grant(ctx context.Context, u *models.User) (*Result, error) {
	now := b.clock.Now()
	if err := b.db.WithContext(ctx).Model(u).Update("last_login_at", now).Error; err != nil {
		return nil, apperr.Internal("record login", err)
	}
	u.LastLoginAt = &now

	token, err := b.tokens.Issue(u)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	b.logger.Info("login granted", zap.Uint("user_id", u.ID), zap.String("role", string(u.Role)))
	return &Result{Outcome: OutcomeGranted, Token: token, User: u}, nil
}

func (b *Broker) observe(method string, res *Result, err error) {
	switch {
	case err != nil:
		b.observer.ObserveLogin(method, string(apperr.KindOf(err)))
	case res != nil:
		b.observer.ObserveLogin(method, string(res.Outcome))
	}
}

func findUser(db *gorm.DB, email string) (*models.User, error) {
	var u models.User
	if err := db.Where("email = ?", email).First(&u).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func createPrincipal(tx *gorm.DB, reg *identity.Registration, profile *Profile, status models.ApprovalStatus) (*models.User, error) {
	u := &models.User{
		Email:          reg.Email,
		Name:           reg.Name,
		Role:           reg.Role(),
		ApprovalStatus: status,
	}
	if profile != nil {
		if u.Name == "" {
			u.Name = profile.DisplayName
		}
		u.PictureURL = profile.PictureURL
	}
	if reg.Kind == models.KindPlayer {
		id := reg.ID
		u.PlayerID = &id
	}
	if err := tx.Create(u).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Wrap(apperr.KindInternal, "concurrent first login, please retry", err)
		}
		return nil, err
	}
	return u, nil
}

func serviceError(op string, err error) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return apperr.Internal(op, err)
}
