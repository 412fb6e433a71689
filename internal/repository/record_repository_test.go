package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tree-census/internal/config"
	"tree-census/internal/db"
	"tree-census/internal/model"
	"tree-census/internal/sample"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.Config{
		Environment: "test",
		DB: config.DBConfig{
			Driver:       "sqlite",
			DSN:          "file:" + name + "?mode=memory&cache=shared",
			MaxIdleConns: 1,
		},
	}
	database, err := db.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return database
}

func TestReplaceAndLoad(t *testing.T) {
	repo := NewRecordRepository(setupTestDB(t))
	ctx := context.Background()

	ds := sample.Generate(25, model.LatLng{Lat: 19.07, Lng: 72.87}, 3)
	ds.Records = append(ds.Records, model.Record{ID: 99})
	require.NoError(t, repo.Replace(ctx, "s1", ds))

	got, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, ds.Source, got.Source)
	assert.Equal(t, ds.Columns, got.Columns)
	require.Len(t, got.Records, len(ds.Records))
	for i := range ds.Records {
		assert.Equal(t, ds.Records[i].ID, got.Records[i].ID)
		assert.Equal(t, ds.Records[i].Species, got.Records[i].Species)
		assert.Equal(t, ds.Records[i].Lat, got.Records[i].Lat)
		assert.Equal(t, ds.Records[i].Attributes, got.Records[i].Attributes)
	}
	assert.False(t, got.Records[25].HasCoordinates())
}

func TestReplaceOverwrites(t *testing.T) {
	repo := NewRecordRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, "s1", sample.Generate(10, model.LatLng{}, 1)))
	require.NoError(t, repo.Replace(ctx, "s1", &model.Dataset{
		Source:  "trees.csv",
		Records: []model.Record{{ID: 5, Species: model.StringPtr("Oak")}},
	}))

	got, err := repo.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "trees.csv", got.Source)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "Oak", got.Records[0].SpeciesLabel())
}

func TestLoadMissing(t *testing.T) {
	repo := NewRecordRepository(setupTestDB(t))

	got, err := repo.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteAndPurge(t *testing.T) {
	database := setupTestDB(t)
	repo := NewRecordRepository(database)
	ctx := context.Background()

	require.NoError(t, repo.Replace(ctx, "old", sample.Generate(3, model.LatLng{}, 1)))
	require.NoError(t, repo.Replace(ctx, "gone", sample.Generate(3, model.LatLng{}, 1)))
	require.NoError(t, repo.Replace(ctx, "new", sample.Generate(3, model.LatLng{}, 1)))

	require.NoError(t, repo.Delete(ctx, "gone"))
	got, err := repo.Load(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, got)

	past := time.Now().UTC().Add(-3 * time.Hour)
	require.NoError(t, database.Model(&model.DatasetRow{}).
		Where("session_id = ?", "old").
		UpdateColumn("updated_at", past).Error)

	purged, err := repo.PurgeBefore(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	var orphans int64
	require.NoError(t, database.Model(&model.RecordRow{}).Where("session_id = ?", "old").Count(&orphans).Error)
	assert.Zero(t, orphans)

	got, err = repo.Load(ctx, "new")
	require.NoError(t, err)
	assert.Len(t, got.Records, 3)
}
