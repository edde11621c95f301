package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterState struct {
	trace []string
}

func TestRunFollowsStepChainToEnd(t *testing.T) {
	w := New("first")
	w.AddStep("first", func(s interface{}) (string, error) {
		st := s.(*counterState)
		st.trace = append(st.trace, "first")
		return "second", nil
	})
	w.AddStep("second", func(s interface{}) (string, error) {
		st := s.(*counterState)
		st.trace = append(st.trace, "second")
		return End, nil
	})

	state := &counterState{}
	err := Run(w, state)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, state.trace)
}

func TestRunFailsFatallyOnUnknownStep(t *testing.T) {
	w := New("first")
	w.AddStep("first", func(s interface{}) (string, error) {
		return "missing", nil
	})

	err := Run(w, &counterState{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestRunPropagatesStepError(t *testing.T) {
	boom := errors.New("boom")
	w := New("first")
	w.AddStep("first", func(s interface{}) (string, error) {
		return "", boom
	})

	err := Run(w, &counterState{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestAddStepPanicsOnDuplicateRegistration(t *testing.T) {
	w := New("first")
	w.AddStep("first", func(s interface{}) (string, error) { return End, nil })
	assert.Panics(t, func() {
		w.AddStep("first", func(s interface{}) (string, error) { return End, nil })
	})
}
