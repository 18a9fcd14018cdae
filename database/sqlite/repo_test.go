package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clayloft/kilncat"
)

func floatPtr(f float64) *float64 { return &f }

func sampleItem(id, ownerID string) kilncat.Item {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	return kilncat.Item{
		ID:           id,
		OwnerID:      ownerID,
		Title:        "tall vase",
		ClayType:     "stoneware",
		Glaze:        "celadon",
		Location:     "shelf 3",
		Notes:        "thrown off the hump",
		CurrentStage: kilncat.StageGreenware,
		Measurements: &kilncat.Measurements{
			Greenware: &kilncat.MeasurementDetail{Height: floatPtr(220), Width: floatPtr(110)},
		},
		CreatedAt: now,
		CreatedTZ: "+05:30",
		UpdatedAt: now,
	}
}

func samplePhoto(id, itemID, ownerID string) kilncat.Photo {
	return kilncat.Photo{
		ID:          id,
		ItemID:      itemID,
		OwnerID:     ownerID,
		Stage:       kilncat.StageBisque,
		Note:        "front view",
		FileName:    "front.jpg",
		BlobRef:     "items/" + itemID + "/" + id + ".jpg",
		ContentType: "image/jpeg",
		SizeBytes:   2048,
		UploadedAt:  time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC),
	}
}

func TestRepo_ItemCRUD(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	item := sampleItem("item-1", "user-1")

	t.Run("put and get round trip", func(t *testing.T) {
		require.NoError(t, repo.PutItem(ctx, item))

		got, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, item.Title, got.Title)
		assert.Equal(t, item.CurrentStage, got.CurrentStage)
		assert.Equal(t, item.CreatedTZ, got.CreatedTZ)
		require.NotNil(t, got.Measurements)
		require.NotNil(t, got.Measurements.Greenware)
		assert.Equal(t, 220.0, *got.Measurements.Greenware.Height)
		assert.True(t, got.CreatedAt.Equal(item.CreatedAt))
	})

	t.Run("duplicate id is a conflict", func(t *testing.T) {
		assert.ErrorIs(t, repo.PutItem(ctx, item), kilncat.ErrConflict)
	})

	t.Run("get missing is not found", func(t *testing.T) {
		_, err := repo.GetItem(ctx, "nope")
		assert.ErrorIs(t, err, kilncat.ErrNotFound)
	})

	t.Run("update", func(t *testing.T) {
		updated := item
		updated.Glaze = "tenmoku"
		updated.CurrentStage = kilncat.StageFinal
		updated.Measurements = nil
		updated.UpdatedAt = item.UpdatedAt.Add(time.Hour)

		require.NoError(t, repo.UpdateItem(ctx, updated))

		got, err := repo.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "tenmoku", got.Glaze)
		assert.Equal(t, kilncat.StageFinal, got.CurrentStage)
		assert.Nil(t, got.Measurements)
	})

	t.Run("update missing is not found", func(t *testing.T) {
		missing := sampleItem("nope", "user-1")
		assert.ErrorIs(t, repo.UpdateItem(ctx, missing), kilncat.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.DeleteItem(ctx, item.ID))

		_, err := repo.GetItem(ctx, item.ID)
		assert.ErrorIs(t, err, kilncat.ErrNotFound)
	})

	t.Run("delete missing is not found", func(t *testing.T) {
		assert.ErrorIs(t, repo.DeleteItem(ctx, item.ID), kilncat.ErrNotFound)
	})
}

func TestRepo_ListItems(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	a1 := sampleItem("item-a1", "user-a")
	a2 := sampleItem("item-a2", "user-a")
	a2.CreatedAt = a1.CreatedAt.Add(time.Hour)
	b1 := sampleItem("item-b1", "user-b")

	require.NoError(t, repo.PutItem(ctx, a1))
	require.NoError(t, repo.PutItem(ctx, a2))
	require.NoError(t, repo.PutItem(ctx, b1))

	t.Run("by owner, newest first", func(t *testing.T) {
		items, err := repo.ListItems(ctx, "user-a")
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "item-a2", items[0].ID)
		assert.Equal(t, "item-a1", items[1].ID)
	})

	t.Run("empty owner lists everything", func(t *testing.T) {
		items, err := repo.ListItems(ctx, "")
		require.NoError(t, err)
		assert.Len(t, items, 3)
	})

	t.Run("unknown owner lists nothing", func(t *testing.T) {
		items, err := repo.ListItems(ctx, "user-z")
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestRepo_PhotoCRUD(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	photo := samplePhoto("photo-1", "item-1", "user-1")

	t.Run("put and get round trip", func(t *testing.T) {
		require.NoError(t, repo.PutPhoto(ctx, photo))

		got, err := repo.GetPhoto(ctx, photo.ID)
		require.NoError(t, err)
		assert.Equal(t, photo.BlobRef, got.BlobRef)
		assert.Equal(t, photo.Stage, got.Stage)
		assert.Equal(t, photo.SizeBytes, got.SizeBytes)
		assert.True(t, got.UploadedAt.Equal(photo.UploadedAt))
	})

	t.Run("duplicate id is a conflict", func(t *testing.T) {
		assert.ErrorIs(t, repo.PutPhoto(ctx, photo), kilncat.ErrConflict)
	})

	t.Run("update stage and note only", func(t *testing.T) {
		updated := photo
		updated.Stage = kilncat.StageFinal
		updated.Note = "after glaze firing"

		require.NoError(t, repo.UpdatePhoto(ctx, updated))

		got, err := repo.GetPhoto(ctx, photo.ID)
		require.NoError(t, err)
		assert.Equal(t, kilncat.StageFinal, got.Stage)
		assert.Equal(t, "after glaze firing", got.Note)
		assert.Equal(t, photo.BlobRef, got.BlobRef)
	})

	t.Run("delete then delete again", func(t *testing.T) {
		require.NoError(t, repo.DeletePhoto(ctx, photo.ID))
		assert.ErrorIs(t, repo.DeletePhoto(ctx, photo.ID), kilncat.ErrNotFound)
	})
}

func TestRepo_SetPrimaryPhoto(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	p1 := samplePhoto("photo-1", "item-1", "user-1")
	p2 := samplePhoto("photo-2", "item-1", "user-1")
	other := samplePhoto("photo-3", "item-2", "user-1")

	require.NoError(t, repo.PutPhoto(ctx, p1))
	require.NoError(t, repo.PutPhoto(ctx, p2))
	require.NoError(t, repo.PutPhoto(ctx, other))

	primaries := func(itemID string) []string {
		photos, err := repo.ListPhotos(ctx, itemID)
		require.NoError(t, err)
		var ids []string
		for _, p := range photos {
			if p.IsPrimary {
				ids = append(ids, p.ID)
			}
		}
		return ids
	}

	t.Run("promote first photo", func(t *testing.T) {
		require.NoError(t, repo.SetPrimaryPhoto(ctx, "item-1", "photo-1"))
		assert.Equal(t, []string{"photo-1"}, primaries("item-1"))
	})

	t.Run("promoting a sibling clears the old primary", func(t *testing.T) {
		require.NoError(t, repo.SetPrimaryPhoto(ctx, "item-1", "photo-2"))
		assert.Equal(t, []string{"photo-2"}, primaries("item-1"))
	})

	t.Run("other items untouched", func(t *testing.T) {
		assert.Empty(t, primaries("item-2"))
	})

	t.Run("missing photo is not found", func(t *testing.T) {
		assert.ErrorIs(t, repo.SetPrimaryPhoto(ctx, "item-1", "nope"), kilncat.ErrNotFound)
	})

	t.Run("photo under another item is not found", func(t *testing.T) {
		assert.ErrorIs(t, repo.SetPrimaryPhoto(ctx, "item-1", "photo-3"), kilncat.ErrNotFound)
		assert.Equal(t, []string{"photo-2"}, primaries("item-1"))
	})
}

func TestRepo_ListPhotos(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	p1 := samplePhoto("photo-1", "item-1", "user-1")
	p2 := samplePhoto("photo-2", "item-1", "user-1")
	p2.UploadedAt = p1.UploadedAt.Add(time.Hour)
	other := samplePhoto("photo-3", "item-2", "user-1")

	require.NoError(t, repo.PutPhoto(ctx, p1))
	require.NoError(t, repo.PutPhoto(ctx, p2))
	require.NoError(t, repo.PutPhoto(ctx, other))

	photos, err := repo.ListPhotos(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, "photo-1", photos[0].ID, "oldest first")
	assert.Equal(t, "photo-2", photos[1].ID)
}

func TestRepo_Profiles(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	t.Run("upsert inserts without admin flag", func(t *testing.T) {
		stored, err := repo.UpsertProfile(ctx, kilncat.Profile{
			UID:         "user-1",
			Email:       "alice@example.com",
			DisplayName: "Alice",
		})
		require.NoError(t, err)
		assert.False(t, stored.IsAdmin)
		assert.False(t, stored.CreatedAt.IsZero())
		assert.False(t, stored.LastLoginAt.IsZero())
	})

	t.Run("upsert preserves granted admin flag", func(t *testing.T) {
		require.NoError(t, repo.SetAdmin(ctx, "user-1", true))

		stored, err := repo.UpsertProfile(ctx, kilncat.Profile{
			UID:   "user-1",
			Email: "alice@new.example.com",
		})
		require.NoError(t, err)
		assert.True(t, stored.IsAdmin, "sync must not strip the admin flag")
		assert.Equal(t, "alice@new.example.com", stored.Email)
	})

	t.Run("get missing profile", func(t *testing.T) {
		_, err := repo.GetProfile(ctx, "nope")
		assert.ErrorIs(t, err, kilncat.ErrNotFound)
	})

	t.Run("set admin on missing profile", func(t *testing.T) {
		assert.ErrorIs(t, repo.SetAdmin(ctx, "nope", true), kilncat.ErrNotFound)
	})
}
