package rules

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/flowcheck/flowcheck/internal/errors"
	"github.com/flowcheck/flowcheck/internal/gitlog"
)

func intPtr(n int) *int { return &n }

func TestEvaluate_StatusThresholds(t *testing.T) {
	e := NewEngine("", DefaultThresholds())

	tests := []struct {
		name    string
		minutes int
		lines   int
		want    string
	}{
		{"fresh work is ok", 10, 50, StatusOK},
		{"at the limit is still ok", 60, 500, StatusOK},
		{"past the minute limit warns", 61, 0, StatusWarning},
		{"past the line limit warns", 0, 501, StatusWarning},
		{"at the danger limit still warns", 90, 750, StatusWarning},
		{"past 1.5x minutes is danger", 91, 0, StatusDanger},
		{"past 1.5x lines is danger", 0, 751, StatusDanger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := e.Evaluate(gitlog.WorktreeMetrics{
				MinutesSinceLastCommit: tt.minutes,
				UncommittedLines:       tt.lines,
			})
			assert.Equal(t, tt.want, state.Status)
		})
	}
}

func TestRecommendations_HealthyState(t *testing.T) {
	e := NewEngine("", DefaultThresholds())

	recs := e.Recommendations(e.Evaluate(gitlog.WorktreeMetrics{
		BranchName:             "main",
		MinutesSinceLastCommit: 5,
	}))

	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "healthy")
}

func TestRecommendations_CoverEachSignal(t *testing.T) {
	e := NewEngine("", DefaultThresholds())

	recs := e.Recommendations(e.Evaluate(gitlog.WorktreeMetrics{
		BranchName:             "feature/big",
		MinutesSinceLastCommit: 125,
		UncommittedLines:       1200,
		UncommittedFiles:       15,
		BranchAgeDays:          12,
		BehindMainByCommits:    20,
	}))

	require.Len(t, recs, 6)
	assert.Contains(t, recs[0], "2h 5m")
	assert.Contains(t, recs[0], "checkpoint commit")
	assert.Contains(t, recs[1], "1200 uncommitted lines")
	assert.Contains(t, recs[2], "split by domain")
	assert.Contains(t, recs[3], "changes in 15 files")
	assert.Contains(t, recs[4], "12 days old")
	assert.Contains(t, recs[5], "behind main by 20 commits")
}

func TestRecommendations_SubHourTimeFormat(t *testing.T) {
	e := NewEngine("", Thresholds{MaxMinutesWithoutCommit: 10, MaxLinesUncommitted: 500})

	recs := e.Recommendations(e.Evaluate(gitlog.WorktreeMetrics{MinutesSinceLastCommit: 45}))
	assert.Contains(t, recs[0], "45 minutes")
}

func TestUpdate_AppliesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	e := NewEngine(path, DefaultThresholds())

	updated, err := e.Update(Patch{MaxMinutesWithoutCommit: intPtr(30)})
	require.NoError(t, err)
	assert.Equal(t, 30, updated.MaxMinutesWithoutCommit)
	assert.Equal(t, 500, updated.MaxLinesUncommitted)

	// A fresh engine over the same path sees the persisted override.
	reloaded := NewEngine(path, DefaultThresholds())
	assert.Equal(t, 30, reloaded.Thresholds().MaxMinutesWithoutCommit)
	assert.Equal(t, 500, reloaded.Thresholds().MaxLinesUncommitted)
}

func TestUpdate_ChangesEvaluation(t *testing.T) {
	e := NewEngine("", DefaultThresholds())
	metrics := gitlog.WorktreeMetrics{MinutesSinceLastCommit: 45}

	assert.Equal(t, StatusOK, e.Evaluate(metrics).Status)

	_, err := e.Update(Patch{MaxMinutesWithoutCommit: intPtr(20)})
	require.NoError(t, err)
	assert.Equal(t, StatusDanger, e.Evaluate(metrics).Status)
}

func TestUpdate_RejectsEmptyPatch(t *testing.T) {
	e := NewEngine("", DefaultThresholds())

	_, err := e.Update(Patch{})
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeInvalidInput, ferrors.GetCode(err))
}

func TestUpdate_RejectsNonPositiveValues(t *testing.T) {
	e := NewEngine("", DefaultThresholds())

	_, err := e.Update(Patch{MaxLinesUncommitted: intPtr(0)})
	require.Error(t, err)
	assert.Equal(t, ferrors.ErrCodeInvalidInput, ferrors.GetCode(err))

	_, err = e.Update(Patch{MaxMinutesWithoutCommit: intPtr(-5)})
	require.Error(t, err)

	// A failed update leaves the thresholds untouched.
	assert.Equal(t, DefaultThresholds(), e.Thresholds())
}

func TestNewEngine_IgnoresUnreadableOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	e := NewEngine(path, DefaultThresholds())
	assert.Equal(t, DefaultThresholds(), e.Thresholds())
}
