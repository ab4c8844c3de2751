package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestModelInitReturnsPollCmd(t *testing.T) {
	m := New(func() Snapshot { return Snapshot{} })
	cmd := m.Init()
	assert.NotNil(t, cmd, "Init should schedule the first poll")
}

func TestModelViewRendersCounters(t *testing.T) {
	m := New(func() Snapshot {
		return Snapshot{
			Executions:    42,
			StageFinds:    3,
			StageCycles:   7,
			QueueLen:      5,
			RareBranchExp: 2,
			BlacklistSize: 1,
			Buckets: []BucketState{
				{Label: "0-100", OpArms: 23, BatchArms: 8},
			},
		}
	})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = updated.(Model)
	m.current = m.snapshot()

	view := m.View()
	assert.Contains(t, view, "42", "executions counter should render")
	assert.Contains(t, view, "0-100", "bucket label should render")
	assert.Contains(t, view, "branchfuzz", "header banner should render")
}

func TestModelPauseTogglesStatus(t *testing.T) {
	m := New(func() Snapshot { return Snapshot{} })
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = updated.(Model)
	assert.True(t, m.paused, "pressing p should pause the dashboard")
	assert.Contains(t, m.View(), "paused")
}

func TestModelQuitOnCtrlC(t *testing.T) {
	m := New(func() Snapshot { return Snapshot{} })
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.NotNil(t, cmd, "ctrl+c should return a quit command")
}

func TestModelTickRefreshesSnapshotUnlessPaused(t *testing.T) {
	calls := 0
	m := New(func() Snapshot {
		calls++
		return Snapshot{Executions: calls}
	})

	updated, _ := m.Update(tickMsg(time.Now()))
	m = updated.(Model)
	assert.Equal(t, 1, m.current.Executions)

	m.paused = true
	updated, _ = m.Update(tickMsg(time.Now()))
	m = updated.(Model)
	assert.Equal(t, 1, m.current.Executions, "paused model should not refresh on tick")
}
