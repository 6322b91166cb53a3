package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bakery/internal/bakery"
)

type fakeRunner struct {
	actions  []bakery.Action
	triggers []string
}

func (f *fakeRunner) Run(_ context.Context, action bakery.Action, trigger string, _ bakery.EmitFunc) *bakery.Result {
	f.actions = append(f.actions, action)
	f.triggers = append(f.triggers, trigger)
	return &bakery.Result{Success: true, Action: action}
}

func TestExecuteRunUsesScheduleTrigger(t *testing.T) {
	runner := &fakeRunner{}
	s, err := NewScheduler(runner)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	s.executeRun(bakery.ActionBuildPublish)

	require.Len(t, runner.actions, 1)
	assert.Equal(t, bakery.ActionBuildPublish, runner.actions[0])
	assert.Equal(t, []string{bakery.TriggerSchedule}, runner.triggers)
}

func TestSchedulePeriodicRunRegistersJob(t *testing.T) {
	s, err := NewScheduler(&fakeRunner{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	id, err := s.SchedulePeriodicRun(time.Minute, bakery.ActionBuild)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
