package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"attendance-reconciler/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runAt := time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC)

	run := model.RunRecord{
		ID:        "run-1",
		OutPrefix: "CSE20",
		JoinMode:  model.JoinAuto,
		StartDate: "2024-01-01",
		EndDate:   "2024-01-15",
		Status:    model.RunSuccess,
		Summary: &model.RunSummary{
			StudentsTotal:          2,
			StudentsWithAttendance: 1,
			CoveragePct:            50,
			LectureDates:           []string{"2024-01-08", "2024-01-10"},
			GeneratedAt:            runAt,
		},
		Diagnostics: model.Diagnostics{SkippedRows: 1, AmbiguousCount: 2},
		Artifacts: []model.Artifact{
			{Filename: "CSE20_counts.csv", RelativePath: "run-1/CSE20_counts.csv"},
			{Filename: "CSE20_matrix.csv", RelativePath: "run-1/CSE20_matrix.csv"},
		},
		RunAt: runAt,
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "CSE20", got.OutPrefix)
	assert.Equal(t, model.JoinAuto, got.JoinMode)
	require.NotNil(t, got.Summary)
	assert.Equal(t, []string{"2024-01-08", "2024-01-10"}, got.Summary.LectureDates)
	assert.Equal(t, 50.0, got.Summary.CoveragePct)
	assert.Equal(t, 2, got.Diagnostics.AmbiguousCount)
	assert.Equal(t, run.Artifacts, got.Artifacts)
	assert.True(t, runAt.Equal(got.RunAt))
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(ctx, model.RunRecord{
			ID:     id,
			Status: model.RunError,
			Notes:  "failed",
			RunAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.Nil(t, runs[0].Summary)
	assert.Equal(t, "failed", runs[0].Notes)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSaveRunReplacesArtifacts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := model.RunRecord{ID: "r", Status: model.RunPending, Artifacts: []model.Artifact{{Filename: "x.csv", RelativePath: "r/x.csv"}}}
	require.NoError(t, s.SaveRun(ctx, run))
	run.Status = model.RunSuccess
	run.Artifacts = []model.Artifact{{Filename: "y.csv", RelativePath: "r/y.csv"}}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, model.RunSuccess, got.Status)
	assert.Equal(t, run.Artifacts, got.Artifacts)
}
