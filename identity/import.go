package identity

import (
	"context"
	"strings"

	"eventhub/apperr"
	"eventhub/models"
)

// ImportResult reports how many rows a bulk import touched.
type ImportResult struct {
	Received int   `json:"received"`
	Written  int64 `json:"written"`
}

// ImportPlayers upserts players keyed on trainee id. Approval flags are never
// changed by an import.
func (s *Store) ImportPlayers(ctx context.Context, rows []models.Player) (*ImportResult, error) {
	for i := range rows {
		rows[i].ID = 0
		rows[i].Email = models.NormalizeEmail(rows[i].Email)
		rows[i].TraineeID = strings.TrimSpace(rows[i].TraineeID)
		rows[i].IsApproved = false
		if rows[i].TraineeID == "" || rows[i].Email == "" || rows[i].Name == "" {
			return nil, apperr.Validation("each player needs trainee_id, email and name")
		}
	}
	n, err := upsert(ctx, s.db, rows, "trainee_id", []string{"email", "name", "department", "player_role", "updated_at"})
	if err != nil {
		return nil, apperr.Internal("import players", err)
	}
	return &ImportResult{Received: len(rows), Written: n}, nil
}

// ImportFood upserts food registrants keyed on trainee id. Food registrants
// are vetted by the import itself, so they are listed on arrival.
func (s *Store) ImportFood(ctx context.Context, rows []models.FoodRegistrant) (*ImportResult, error) {
	for i := range rows {
		rows[i].ID = 0
		rows[i].Email = models.NormalizeEmail(rows[i].Email)
		rows[i].TraineeID = strings.TrimSpace(rows[i].TraineeID)
		rows[i].IsApproved = true
		if rows[i].TraineeID == "" || rows[i].Email == "" || rows[i].Name == "" {
			return nil, apperr.Validation("each food registrant needs trainee_id, email and name")
		}
	}
	n, err := upsert(ctx, s.db, rows, "trainee_id", []string{"email", "name", "food_preference", "updated_at"})
	if err != nil {
		return nil, apperr.Internal("import food registrants", err)
	}
	return &ImportResult{Received: len(rows), Written: n}, nil
}

// ImportCommittee upserts committee members keyed on email.
func (s *Store) ImportCommittee(ctx context.Context, rows []models.CommitteeMember) (*ImportResult, error) {
	for i := range rows {
		rows[i].ID = 0
		rows[i].Email = models.NormalizeEmail(rows[i].Email)
		rows[i].IsApproved = false
		if rows[i].Email == "" || rows[i].Name == "" {
			return nil, apperr.Validation("each committee member needs email and name")
		}
	}
	n, err := upsert(ctx, s.db, rows, "email", []string{"name", "designation", "phone", "updated_at"})
	if err != nil {
		return nil, apperr.Internal("import committee", err)
	}
	return &ImportResult{Received: len(rows), Written: n}, nil
}
