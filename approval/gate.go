// Package approval decides whether a principal may receive a session token
// and records reviewer decisions.
package approval

import (
	"context"
	"fmt"

	"eventhub/apperr"
	"eventhub/database"
	"eventhub/identity"
	"eventhub/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Decision is the outcome of CheckAccess.
type Decision int

const (
	Granted Decision = iota
	Pending
)

// AutoApproves reports whether a first login of this kind skips review.
// Food registrants were vetted by the bulk import.
func AutoApproves(kind models.RegistrationKind) bool {
	return kind == models.KindFood
}

// CheckAccess evaluates the principal's approval status. A rejected principal
// fails with AccessDenied; a pending one yields Pending without an error.
func CheckAccess(u *models.User) (Decision, error) {
	if u.IsSuperAdmin() {
		return Granted, nil
	}
	switch u.ApprovalStatus {
	case models.StatusApproved:
		return Granted, nil
	case models.StatusRejected:
		return Pending, apperr.AccessDenied("your access request was rejected")
	default:
		return Pending, nil
	}
}

type Gate struct {
	db     *gorm.DB
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewGate(db *gorm.DB, clock clockwork.Clock, logger *zap.Logger) *Gate {
	return &Gate{db: db, clock: clock, logger: logger.Named("approval")}
}

// EnsureRequest returns the principal's pending login request, creating it if
// none exists. It must run inside the caller's transaction.
func (g *Gate) EnsureRequest(tx *gorm.DB, u *models.User, reg *identity.Registration) (*models.LoginRequest, error) {
	var req models.LoginRequest
	err := tx.Where("user_id = ? AND status = ?", u.ID, models.StatusPending).
		Order("id").First(&req).Error
	if err == nil {
		return &req, nil
	}
	if !database.IsNotFound(err) {
		return nil, err
	}

	req = models.LoginRequest{
		UserID:           u.ID,
		Email:            u.Email,
		Name:             u.DisplayName(),
		RegistrationKind: reg.Kind,
		RegistrationID:   reg.ID,
		Status:           models.StatusPending,
	}
	if err := tx.Create(&req).Error; err != nil {
		return nil, err
	}
	g.logger.Info("login request created",
		zap.Uint("request_id", req.ID),
		zap.String("email", req.Email),
		zap.String("kind", string(reg.Kind)))
	return &req, nil
}

func validOutcome(outcome models.ApprovalStatus) error {
	if outcome != models.StatusApproved && outcome != models.StatusRejected {
		return apperr.Validation("outcome must be APPROVED or REJECTED")
	}
	return nil
}

// Decide approves or rejects a pending login request. Approval also lists the
// linked registration record. Everything commits together or not at all.
func (g *Gate) Decide(ctx context.Context, requestID uint, outcome models.ApprovalStatus, reviewerID uint, reason string) (*models.LoginRequest, error) {
	if err := validOutcome(outcome); err != nil {
		return nil, err
	}

	var req models.LoginRequest
	err := database.Transact(ctx, g.db, func(tx *gorm.DB) error {
		now := g.clock.Now()
		res := tx.Model(&models.LoginRequest{}).
			Where("id = ? AND status = ?", requestID, models.StatusPending).
			Updates(map[string]any{
				"status":      outcome,
				"reviewed_by": reviewerID,
				"reviewed_at": now,
				"review_note": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if err := tx.First(&req, requestID).Error; err != nil {
			if database.IsNotFound(err) {
				return apperr.NotFound("login request not found")
			}
			return err
		}
		if res.RowsAffected == 0 {
			return apperr.AlreadyProcessed(fmt.Sprintf("login request already %s", req.Status))
		}

		if err := setPrincipalStatus(tx, req.UserID, outcome); err != nil {
			return err
		}
		if outcome == models.StatusApproved {
			if err := identity.SetApproved(tx, req.RegistrationKind, req.RegistrationID); err != nil {
				return err
			}
			if req.RegistrationKind == models.KindPlayer {
				if err := tx.Model(&models.User{}).Where("id = ?", req.UserID).
					Update("player_id", req.RegistrationID).Error; err != nil {
					return err
				}
			}
		}

		reqID := req.ID
		return tx.Create(&models.ApprovalHistory{
			CreatedAt:      now,
			ActorID:        reviewerID,
			TargetUserID:   req.UserID,
			TargetEmail:    req.Email,
			LoginRequestID: &reqID,
			Outcome:        outcome,
			Reason:         reason,
		}).Error
	})
	if err != nil {
		return nil, asServiceError("decide login request", err)
	}

	g.logger.Info("login request decided",
		zap.Uint("request_id", req.ID),
		zap.String("outcome", string(outcome)),
		zap.Uint("reviewer_id", reviewerID))
	return &req, nil
}

// DecidePrincipal approves or rejects a principal directly, such as an admin
// who signed up with a password. Open login requests are decided with it.
func (g *Gate) DecidePrincipal(ctx context.Context, userID uint, outcome models.ApprovalStatus, reviewerID uint, reason string) (*models.User, error) {
	if err := validOutcome(outcome); err != nil {
		return nil, err
	}

	var u models.User
	err := database.Transact(ctx, g.db, func(tx *gorm.DB) error {
		if err := tx.First(&u, userID).Error; err != nil {
			if database.IsNotFound(err) {
				return apperr.NotFound("user not found")
			}
			return err
		}
		if u.IsSuperAdmin() {
			return apperr.AccessDenied("super admin approval cannot be changed")
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND approval_status = ?", userID, models.StatusPending).
			Update("approval_status", outcome)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.AlreadyProcessed(fmt.Sprintf("user already %s", u.ApprovalStatus))
		}
		u.ApprovalStatus = outcome
		now := g.clock.Now()

		// A request still open for this principal is closed with the same
		// outcome and lists its registration record on approval.
		var open []models.LoginRequest
		if err := tx.Where("user_id = ? AND status = ?", userID, models.StatusPending).
			Order("id").Find(&open).Error; err != nil {
			return err
		}
		if outcome == models.StatusApproved {
			for _, req := range open {
				if err := identity.SetApproved(tx, req.RegistrationKind, req.RegistrationID); err != nil {
					return err
				}
			}
			if len(open) == 0 && u.PlayerID != nil {
				if err := identity.SetApproved(tx, models.KindPlayer, *u.PlayerID); err != nil {
					return err
				}
			}
		}

		var requestID *uint
		if len(open) > 0 {
			if err := tx.Model(&models.LoginRequest{}).
				Where("user_id = ? AND status = ?", userID, models.StatusPending).
				Updates(map[string]any{
					"status":      outcome,
					"reviewed_by": reviewerID,
					"reviewed_at": now,
					"review_note": reason,
				}).Error; err != nil {
				return err
			}
			id := open[0].ID
			requestID = &id
		}

		return tx.Create(&models.ApprovalHistory{
			CreatedAt:      now,
			ActorID:        reviewerID,
			TargetUserID:   u.ID,
			TargetEmail:    u.Email,
			LoginRequestID: requestID,
			Outcome:        outcome,
			Reason:         reason,
		}).Error
	})
	if err != nil {
		return nil, asServiceError("decide principal", err)
	}

	g.logger.Info("principal decided",
		zap.Uint("user_id", u.ID),
		zap.String("outcome", string(outcome)),
		zap.Uint("reviewer_id", reviewerID))
	return &u, nil
}

// setPrincipalStatus never touches a super admin.
func setPrincipalStatus(tx *gorm.DB, userID uint, status models.ApprovalStatus) error {
	return tx.Model(&models.User{}).
		Where("id = ? AND role <> ?", userID, models.RoleSuperAdmin).
		Update("approval_status", status).Error
}

// ListRequests returns login requests, newest first. An empty status lists all.
func (g *Gate) ListRequests(ctx context.Context, status models.ApprovalStatus) ([]models.LoginRequest, error) {
	var out []models.LoginRequest
	q := g.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Internal("list login requests", err)
	}
	return out, nil
}

// ListPendingUsers returns pending principals without an open login request.
// Those with one are reviewed through ListRequests.
func (g *Gate) ListPendingUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := g.db.WithContext(ctx).
		Where("approval_status = ? AND role <> ?", models.StatusPending, models.RoleSuperAdmin).
		Where("NOT EXISTS (SELECT 1 FROM login_requests WHERE login_requests.user_id = users.id AND login_requests.status = ?)", models.StatusPending).
		Order("created_at").Find(&out).Error; err != nil {
		return nil, apperr.Internal("list pending users", err)
	}
	return out, nil
}

// History returns the most recent audit entries.
func (g *Gate) History(ctx context.Context, limit int) ([]models.ApprovalHistory, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []models.ApprovalHistory
	if err := g.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, apperr.Internal("list approval history", err)
	}
	return out, nil
}

// asServiceError keeps taxonomy errors and turns anything else into a
// retryable internal error.
func asServiceError(op string, err error) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return apperr.Internal(op, err)
}
