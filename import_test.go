package main

import (
	"context"
	"testing"

	"eventhub/database"
	"eventhub/identity"
	"eventhub/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportRows(t *testing.T) {
	db, err := database.OpenInMemory(uuid.NewString())
	require.NoError(t, err)
	store := identity.NewStore(db, clockwork.NewFakeClock())
	ctx := context.Background()

	res, err := importRows(ctx, store, "food", []byte(`[{"trainee_id":"F1","email":"F@Example.com","name":"F","food_preference":"VEG"}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Received)

	var f models.FoodRegistrant
	require.NoError(t, db.First(&f).Error)
	assert.Equal(t, "f@example.com", f.Email)

	_, err = importRows(ctx, store, "committee", []byte(`[{"email":"c@example.com","name":"C"}]`))
	require.NoError(t, err)

	_, err = importRows(ctx, store, "players", []byte(`{"not":"an array"}`))
	assert.Error(t, err)

	_, err = importRows(ctx, store, "sponsors", []byte(`[]`))
	assert.ErrorContains(t, err, "unknown import kind")
}
