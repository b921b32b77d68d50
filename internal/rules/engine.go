// Package rules evaluates repository flow health: a thresholded status
// over working-tree metrics plus human-readable recommendations.
package rules

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	ferrors "github.com/flowcheck/flowcheck/internal/errors"
	"github.com/flowcheck/flowcheck/internal/gitlog"
)

// Flow health status values.
const (
	StatusOK      = "ok"
	StatusWarning = "warning"
	StatusDanger  = "danger"
)

// dangerFactor scales the warning thresholds up to the danger level.
const dangerFactor = 1.5

// Thresholds are the tunable limits that trigger warnings.
type Thresholds struct {
	MaxMinutesWithoutCommit int `yaml:"max_minutes_without_commit" json:"max_minutes_without_commit"`
	MaxLinesUncommitted     int `yaml:"max_lines_uncommitted" json:"max_lines_uncommitted"`
}

// DefaultThresholds returns the built-in threshold values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxMinutesWithoutCommit: 60,
		MaxLinesUncommitted:     500,
	}
}

// FlowState is one repository's health snapshot.
type FlowState struct {
	gitlog.WorktreeMetrics
	Status string `json:"status"`
}

// Patch is a partial threshold update. Nil fields are left unchanged.
type Patch struct {
	MaxMinutesWithoutCommit *int `json:"max_minutes_without_commit,omitempty"`
	MaxLinesUncommitted     *int `json:"max_lines_uncommitted,omitempty"`
}

// Engine evaluates flow health against persisted thresholds. Safe for
// concurrent use.
type Engine struct {
	mu   sync.Mutex
	path string
	t    Thresholds
}

// NewEngine creates an engine with the given defaults, overlaid with any
// thresholds previously persisted at path. An empty path disables
// persistence; an unreadable override file falls back to the defaults.
func NewEngine(path string, defaults Thresholds) *Engine {
	e := &Engine{path: path, t: defaults}
	if path == "" {
		return e
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return e
	}
	var saved Thresholds
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return e
	}
	if saved.MaxMinutesWithoutCommit > 0 {
		e.t.MaxMinutesWithoutCommit = saved.MaxMinutesWithoutCommit
	}
	if saved.MaxLinesUncommitted > 0 {
		e.t.MaxLinesUncommitted = saved.MaxLinesUncommitted
	}
	return e
}

// Thresholds returns the current threshold values.
func (e *Engine) Thresholds() Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t
}

// Update applies a patch, persists the result, and returns the updated
// thresholds. An empty patch or a non-positive value is rejected.
func (e *Engine) Update(patch Patch) (Thresholds, error) {
	if patch.MaxMinutesWithoutCommit == nil && patch.MaxLinesUncommitted == nil {
		return Thresholds{}, ferrors.ValidationError(
			"no supported threshold provided (max_minutes_without_commit, max_lines_uncommitted)", nil)
	}
	for name, v := range map[string]*int{
		"max_minutes_without_commit": patch.MaxMinutesWithoutCommit,
		"max_lines_uncommitted":      patch.MaxLinesUncommitted,
	} {
		if v != nil && *v <= 0 {
			return Thresholds{}, ferrors.ValidationError(
				fmt.Sprintf("%s must be a positive integer, got %d", name, *v), nil)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	updated := e.t
	if patch.MaxMinutesWithoutCommit != nil {
		updated.MaxMinutesWithoutCommit = *patch.MaxMinutesWithoutCommit
	}
	if patch.MaxLinesUncommitted != nil {
		updated.MaxLinesUncommitted = *patch.MaxLinesUncommitted
	}

	if e.path != "" {
		data, err := yaml.Marshal(updated)
		if err != nil {
			return Thresholds{}, ferrors.InternalError("failed to encode thresholds", err)
		}
		if err := os.WriteFile(e.path, data, 0o644); err != nil {
			return Thresholds{}, ferrors.Wrap(ferrors.ErrCodeInternal, err)
		}
	}

	e.t = updated
	return updated, nil
}

// Evaluate computes the flow state for the given metrics.
func (e *Engine) Evaluate(m gitlog.WorktreeMetrics) FlowState {
	t := e.Thresholds()

	status := StatusOK
	dangerMinutes := float64(t.MaxMinutesWithoutCommit) * dangerFactor
	dangerLines := float64(t.MaxLinesUncommitted) * dangerFactor

	switch {
	case float64(m.MinutesSinceLastCommit) > dangerMinutes || float64(m.UncommittedLines) > dangerLines:
		status = StatusDanger
	case m.MinutesSinceLastCommit > t.MaxMinutesWithoutCommit || m.UncommittedLines > t.MaxLinesUncommitted:
		status = StatusWarning
	}

	return FlowState{WorktreeMetrics: m, Status: status}
}

// Recommendations renders actionable suggestions for a flow state. A
// healthy state gets a single confirmation message.
func (e *Engine) Recommendations(state FlowState) []string {
	t := e.Thresholds()
	var recs []string

	if state.MinutesSinceLastCommit > t.MaxMinutesWithoutCommit {
		recs = append(recs, fmt.Sprintf(
			"You've been working for %s without a commit. Consider making a checkpoint commit to save your progress.",
			formatMinutes(state.MinutesSinceLastCommit)))
	}

	if state.UncommittedLines > t.MaxLinesUncommitted {
		recs = append(recs, fmt.Sprintf(
			"You have %d uncommitted lines. Consider splitting your work into smaller, focused commits to ease future review.",
			state.UncommittedLines))
		if state.UncommittedLines > t.MaxLinesUncommitted*2 {
			recs = append(recs,
				"Tip: large changesets can be split by domain (e.g., backend vs. frontend) or by feature to create a more readable git history.")
		}
	}

	if state.UncommittedFiles > 10 {
		recs = append(recs, fmt.Sprintf(
			"You have changes in %d files. Consider grouping related changes into separate commits.",
			state.UncommittedFiles))
	}

	if state.BranchAgeDays > 7 {
		recs = append(recs, fmt.Sprintf(
			"This branch is %d days old. Consider finishing up or merging to avoid long-lived branches.",
			state.BranchAgeDays))
	}

	if state.BehindMainByCommits > 10 {
		recs = append(recs, fmt.Sprintf(
			"You are behind main by %d commits. Consider merging main into your branch to stay up to date and avoid conflicts.",
			state.BehindMainByCommits))
	}

	if len(recs) == 0 {
		recs = append(recs, "Your flow state looks healthy! Keep up the good work.")
	}
	return recs
}

func formatMinutes(minutes int) string {
	if minutes >= 60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%d minutes", minutes)
}
