package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: ping
steps:
  - message: {author: alice, channel: general, content: "!ping"}
assertions:
  - type: sent_contains
    text: Pong
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Steps, 1)
	require.NotNil(t, s.Steps[0].Message)
	assert.Equal(t, "!ping", s.Steps[0].Message.Content)
	assert.Equal(t, AssertSentContains, s.Assertions[0].Type)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: minimalScenario + "assertion: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: "description: x\nsteps: [{advance: 1s}]\nassertions: [{type: sent_count}]\n",
			want: "name is required",
		},
		{
			name: "no steps",
			yaml: "name: x\ndescription: x\nsteps: []\nassertions: [{type: sent_count}]\n",
			want: "steps list is required",
		},
		{
			name: "no assertions",
			yaml: "name: x\ndescription: x\nsteps: [{advance: 1s}]\nassertions: []\n",
			want: "assertions list is required",
		},
		{
			name: "two actions in one step",
			yaml: "name: x\ndescription: x\nsteps: [{advance: 1s, fail_delivery: true}]\nassertions: [{type: sent_count}]\n",
			want: "exactly one of",
		},
		{
			name: "bad advance",
			yaml: "name: x\ndescription: x\nsteps: [{advance: soon}]\nassertions: [{type: sent_count}]\n",
			want: "not a positive duration",
		},
		{
			name: "message without author",
			yaml: "name: x\ndescription: x\nsteps: [{message: {channel: c, content: hi}}]\nassertions: [{type: sent_count}]\n",
			want: "author and channel are required",
		},
		{
			name: "bad start",
			yaml: "name: x\ndescription: x\nstart: yesterday\nsteps: [{advance: 1s}]\nassertions: [{type: sent_count}]\n",
			want: "start",
		},
		{
			name: "unknown assertion",
			yaml: "name: x\ndescription: x\nsteps: [{advance: 1s}]\nassertions: [{type: vibes}]\n",
			want: "unknown assertion type",
		},
		{
			name: "sent_order with one text",
			yaml: "name: x\ndescription: x\nsteps: [{advance: 1s}]\nassertions: [{type: sent_order, texts: [a]}]\n",
			want: "at least 2 texts",
		},
		{
			name: "journal without kind",
			yaml: "name: x\ndescription: x\nsteps: [{advance: 1s}]\nassertions: [{type: journal_count}]\n",
			want: "requires kind",
		},
		{
			name: "unknown state key",
			yaml: "name: x\ndescription: x\nsteps: [{advance: 1s}]\nassertions: [{type: final_state, key: mood, value: 1}]\n",
			want: "final_state key",
		},
		{
			name: "state key without subject",
			yaml: "name: x\ndescription: x\nsteps: [{advance: 1s}]\nassertions: [{type: final_state, key: xp, value: 1}]\n",
			want: "requires user or channel",
		},
		{
			name: "state without value",
			yaml: "name: x\ndescription: x\nsteps: [{advance: 1s}]\nassertions: [{type: final_state, key: timers}]\n",
			want: "requires value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario("testdata/does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestStateKeys(t *testing.T) {
	keys := StateKeys()
	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, "xp")
	assert.Contains(t, keys, "counting")
	assert.Contains(t, keys, "timers")
}
