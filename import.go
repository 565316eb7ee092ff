package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"eventhub/identity"
	"eventhub/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

func runImport(ctx context.Context, kind, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	_, logger, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store := identity.NewStore(db, clockwork.NewRealClock())
	res, err := importRows(ctx, store, kind, raw)
	if err != nil {
		return err
	}

	logger.Info("import finished",
		zap.String("kind", kind),
		zap.String("file", path),
		zap.Int("received", res.Received),
		zap.Int64("written", res.Written))
	return nil
}

func importRows(ctx context.Context, store *identity.Store, kind string, raw []byte) (*identity.ImportResult, error) {
	switch kind {
	case "players":
		var rows []models.Player
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("parse players: %w", err)
		}
		return store.ImportPlayers(ctx, rows)
	case "food":
		var rows []models.FoodRegistrant
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("parse food registrants: %w", err)
		}
		return store.ImportFood(ctx, rows)
	case "committee":
		var rows []models.CommitteeMember
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("parse committee: %w", err)
		}
		return store.ImportCommittee(ctx, rows)
	default:
		return nil, fmt.Errorf("unknown import kind %q, want players, food or committee", kind)
	}
}
