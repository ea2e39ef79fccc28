package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/nextrun/internal/model"
)

func newTestStore(t *testing.T) *SQLiteScheduleStore {
	t.Helper()
	store, err := NewSQLiteScheduleStore(zaptest.NewLogger(t), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteScheduleStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2020, 1, 1, 5, 0, 0, 0, time.UTC)

	t.Run("Save and Get", func(t *testing.T) {
		job := &model.ScheduledJob{
			ID:            "weekly",
			Name:          "weekly digest",
			Spec:          model.NewScheduleSpec(model.Weekly{Days: []int{1, 3}, Hours: []int{8}}),
			Payload:       json.RawMessage(`{"a":1}`),
			Status:        model.ScheduleStatusActive,
			NextRunMarker: "2020010108",
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		require.NoError(t, store.Save(ctx, job))

		got, err := store.Get(ctx, "weekly")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, job.Name, got.Name)
		assert.Equal(t, job.Spec, got.Spec)
		assert.JSONEq(t, `{"a":1}`, string(got.Payload))
		assert.Equal(t, "2020010108", got.NextRunMarker)
		assert.Nil(t, got.LastRunTime)
		assert.True(t, now.Equal(got.CreatedAt))
		assert.Equal(t, model.Weekly{Days: []int{1, 3}, Hours: []int{8}}, got.Schedule())
	})

	t.Run("Get Missing", func(t *testing.T) {
		got, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Save Updates", func(t *testing.T) {
		lastRun := now.Add(time.Hour)
		job := &model.ScheduledJob{
			ID:            "weekly",
			Name:          "renamed",
			Spec:          model.NewScheduleSpec(model.Hourly{Interval: 4}),
			Status:        model.ScheduleStatusActive,
			LastRunTime:   &lastRun,
			NextRunMarker: "2020010110",
			CreatedAt:     now,
			UpdatedAt:     lastRun,
		}
		require.NoError(t, store.Save(ctx, job))

		got, err := store.Get(ctx, "weekly")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "renamed", got.Name)
		assert.Equal(t, model.Hourly{Interval: 4}, got.Schedule())
		assert.Empty(t, got.Payload)
		require.NotNil(t, got.LastRunTime)
		assert.True(t, lastRun.Equal(*got.LastRunTime))
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, &model.ScheduledJob{
			ID:            "daily",
			Name:          "daily",
			Spec:          model.NewScheduleSpec(model.Daily{Hours: []int{2}}),
			Status:        model.ScheduleStatusActive,
			NextRunMarker: "2020010102",
			CreatedAt:     now,
			UpdatedAt:     now,
		}))

		jobs, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "daily", jobs[0].ID)
		assert.Equal(t, "weekly", jobs[1].ID)
	})

	t.Run("Delete", func(t *testing.T) {
		deleted, err := store.Delete(ctx, "daily")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = store.Delete(ctx, "daily")
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestSQLiteScheduleStoreTriggers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	records := []*model.TriggerRecord{
		{ID: "t1", ScheduleID: "a", Name: "a", Marker: "2020010100", Status: model.TriggerStatusPublished, FiredAt: base},
		{ID: "t2", ScheduleID: "a", Name: "a", Marker: "2020010102", Status: model.TriggerStatusFailed, Error: "no responders", FiredAt: base.Add(2 * time.Hour)},
		{ID: "t3", ScheduleID: "b", Name: "b", Marker: "2020010104", Status: model.TriggerStatusPublished, FiredAt: base.Add(4 * time.Hour)},
	}
	for _, r := range records {
		require.NoError(t, store.RecordTrigger(ctx, r))
	}

	t.Run("List By Schedule", func(t *testing.T) {
		got, err := store.ListTriggers(ctx, "a", 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "t2", got[0].ID)
		assert.Equal(t, "no responders", got[0].Error)
		assert.Equal(t, model.TriggerStatusFailed, got[0].Status)
		assert.Equal(t, "t1", got[1].ID)
		assert.Empty(t, got[1].Error)
	})

	t.Run("List All With Limit", func(t *testing.T) {
		got, err := store.ListTriggers(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "t3", got[0].ID)
		assert.Equal(t, "t2", got[1].ID)
	})

	t.Run("Delete Before", func(t *testing.T) {
		deleted, err := store.DeleteTriggersBefore(ctx, base.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		got, err := store.ListTriggers(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "t3", got[0].ID)
	})
}
