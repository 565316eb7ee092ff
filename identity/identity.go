// Package identity holds the registration records that entitle an email to
// log in: committee members, players and food registrants.
package identity

import (
	"context"
	"fmt"

	"eventhub/apperr"
	"eventhub/database"
	"eventhub/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Registration is the record an email resolved to.
type Registration struct {
	Kind  models.RegistrationKind
	ID    uint
	Email string
	Name  string
}

// Role is the principal role granted to a first-time login of this kind.
func (r Registration) Role() models.Role {
	if r.Kind == models.KindCommittee {
		return models.RoleAdmin
	}
	return models.RoleUser
}

// Precedence is the order in which registration tables are consulted when an
// email appears in more than one of them.
var Precedence = []models.RegistrationKind{models.KindCommittee, models.KindPlayer, models.KindFood}

type Store struct {
	db    *gorm.DB
	clock clockwork.Clock
}

func NewStore(db *gorm.DB, clock clockwork.Clock) *Store {
	return &Store{db: db, clock: clock}
}

// Resolve finds the registration for email using Precedence.
func (s *Store) Resolve(ctx context.Context, email string) (*Registration, error) {
	return s.ResolveAmong(ctx, email, Precedence...)
}

// ResolveAmong is Resolve restricted to the given kinds, tried in order.
func (s *Store) ResolveAmong(ctx context.Context, email string, kinds ...models.RegistrationKind) (*Registration, error) {
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation("email is required")
	}

	db := s.db.WithContext(ctx)
	for _, kind := range kinds {
		reg, err := lookup(db, kind, email)
		if err != nil {
			if database.IsNotFound(err) {
				continue
			}
			return nil, apperr.Internal("resolve email", err)
		}
		return reg, nil
	}
	return nil, apperr.NotFound("email is not registered for this event")
}

func lookup(db *gorm.DB, kind models.RegistrationKind, email string) (*Registration, error) {
	switch kind {
	case models.KindCommittee:
		var m models.CommitteeMember
		if err := db.Where("email = ?", email).First(&m).Error; err != nil {
			return nil, err
		}
		return &Registration{Kind: kind, ID: m.ID, Email: email, Name: m.Name}, nil
	case models.KindPlayer:
		var p models.Player
		if err := db.Where("email = ?", email).First(&p).Error; err != nil {
			return nil, err
		}
		return &Registration{Kind: kind, ID: p.ID, Email: email, Name: p.Name}, nil
	case models.KindFood:
		var f models.FoodRegistrant
		if err := db.Where("email = ?", email).First(&f).Error; err != nil {
			return nil, err
		}
		return &Registration{Kind: kind, ID: f.ID, Email: email, Name: f.Name}, nil
	}
	return nil, fmt.Errorf("unknown registration kind %q", kind)
}

// SetApproved flips the public visibility flag of a registration record
// inside the caller's transaction.
func SetApproved(tx *gorm.DB, kind models.RegistrationKind, id uint) error {
	var model any
	switch kind {
	case models.KindCommittee:
		model = &models.CommitteeMember{}
	case models.KindPlayer:
		model = &models.Player{}
	case models.KindFood:
		model = &models.FoodRegistrant{}
	default:
		return fmt.Errorf("unknown registration kind %q", kind)
	}
	res := tx.Model(model).Where("id = ?", id).Update("is_approved", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("registration record not found")
	}
	return nil
}

// CheckIn marks a committee member as present.
func (s *Store) CheckIn(ctx context.Context, memberID uint) (*models.CommitteeMember, error) {
	return s.checkIn(s.db.WithContext(ctx), memberID)
}

// CheckInTx is CheckIn inside an existing transaction.
func (s *Store) CheckInTx(tx *gorm.DB, memberID uint) (*models.CommitteeMember, error) {
	return s.checkIn(tx, memberID)
}

func (s *Store) checkIn(db *gorm.DB, memberID uint) (*models.CommitteeMember, error) {
	now := s.clock.Now()
	res := db.Model(&models.CommitteeMember{}).Where("id = ?", memberID).
		Updates(map[string]any{"checked_in": true, "checked_in_at": now})
	if res.Error != nil {
		return nil, apperr.Internal("check in committee member", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("committee member not found")
	}
	var m models.CommitteeMember
	if err := db.First(&m, memberID).Error; err != nil {
		return nil, apperr.Internal("load committee member", err)
	}
	return &m, nil
}

// MarkCollected records that a food registrant picked up their meal. A second
// collection is refused.
func (s *Store) MarkCollected(ctx context.Context, registrantID uint) (*models.FoodRegistrant, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.FoodRegistrant{}).
		Where("id = ? AND collected = ?", registrantID, false).
		Updates(map[string]any{"collected": true, "collected_at": s.clock.Now()})
	if res.Error != nil {
		return nil, apperr.Internal("mark food collected", res.Error)
	}

	var f models.FoodRegistrant
	if err := db.First(&f, registrantID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("food registrant not found")
		}
		return nil, apperr.Internal("load food registrant", err)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.AlreadyProcessed("food already collected")
	}
	return &f, nil
}

// AssignTeam puts a player on a team, or removes them when teamID is nil.
func (s *Store) AssignTeam(ctx context.Context, playerID uint, teamID *uint) (*models.Player, error) {
	db := s.db.WithContext(ctx)
	if teamID != nil {
		var count int64
		if err := db.Model(&models.Team{}).Where("id = ?", *teamID).Count(&count).Error; err != nil {
			return nil, apperr.Internal("check team", err)
		}
		if count == 0 {
			return nil, apperr.NotFound("team not found")
		}
	}
	res := db.Model(&models.Player{}).Where("id = ?", playerID).Update("team_id", teamID)
	if res.Error != nil {
		return nil, apperr.Internal("assign team", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("player not found")
	}
	var p models.Player
	if err := db.Preload("Team").First(&p, playerID).Error; err != nil {
		return nil, apperr.Internal("load player", err)
	}
	return &p, nil
}

// ListPlayers returns players; approvedOnly restricts to publicly listed ones.
func (s *Store) ListPlayers(ctx context.Context, approvedOnly bool) ([]models.Player, error) {
	var out []models.Player
	q := s.db.WithContext(ctx).Preload("Team").Order("name")
	if approvedOnly {
		q = q.Where("is_approved = ?", true)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Internal("list players", err)
	}
	return out, nil
}

func (s *Store) ListFood(ctx context.Context, approvedOnly bool) ([]models.FoodRegistrant, error) {
	var out []models.FoodRegistrant
	q := s.db.WithContext(ctx).Order("name")
	if approvedOnly {
		q = q.Where("is_approved = ?", true)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Internal("list food registrants", err)
	}
	return out, nil
}

func (s *Store) ListCommittee(ctx context.Context, approvedOnly bool) ([]models.CommitteeMember, error) {
	var out []models.CommitteeMember
	q := s.db.WithContext(ctx).Order("name")
	if approvedOnly {
		q = q.Where("is_approved = ?", true)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Internal("list committee", err)
	}
	return out, nil
}

// FoodSummary counts registrants by preference and collection state.
type FoodSummary struct {
	Preference string `json:"preference"`
	Total      int64  `json:"total"`
	Collected  int64  `json:"collected"`
}

func (s *Store) FoodSummary(ctx context.Context) ([]FoodSummary, error) {
	var out []FoodSummary
	err := s.db.WithContext(ctx).Model(&models.FoodRegistrant{}).
		Select("food_preference AS preference, COUNT(*) AS total, SUM(CASE WHEN collected THEN 1 ELSE 0 END) AS collected").
		Group("food_preference").
		Order("food_preference").
		Scan(&out).Error
	if err != nil {
		return nil, apperr.Internal("summarise food", err)
	}
	return out, nil
}

// upsert inserts rows, updating every column except the key on conflict.
func upsert[T any](ctx context.Context, db *gorm.DB, rows []T, key string, update []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: key}},
		DoUpdates: clause.AssignmentColumns(update),
	}).CreateInBatches(rows, 200)
	return res.RowsAffected, res.Error
}
