package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/guildkeeper/internal/journal"
)

func seedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guildkeeper.db")
	jr, err := journal.Open(path)
	require.NoError(t, err)
	defer jr.Close()

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []journal.Entry{
		{Seq: 3, Kind: journal.KindLevelUp, Subject: "1001", ChannelID: "500", Detail: map[string]any{"new_level": 1}},
		{Seq: 5, Kind: journal.KindGiveawayEnded, Subject: "g-1", ChannelID: "500", Detail: map[string]any{"prize": "Nitro", "winner": "1001"}},
		{Seq: 9, Kind: journal.KindLevelUp, Subject: "1002", ChannelID: "501", Detail: map[string]any{"new_level": 2}},
	}
	for _, e := range entries {
		e.RecordedAt = at
		require.NoError(t, jr.Record(context.Background(), e))
	}
	return path
}

func executeTrace(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTrace_Text(t *testing.T) {
	path := seedJournal(t)

	out, err := executeTrace(t, "text", "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, "(last seq 9)")
	assert.Contains(t, out, "[5] 2024-01-01T12:00:00Z giveaway_ended g-1 #500")
	assert.Contains(t, out, "{prize=Nitro, winner=1001}")
	assert.Contains(t, out, "level_up")
	assert.Regexp(t, `level_up\s+2`, out)
}

func TestTrace_Filters(t *testing.T) {
	path := seedJournal(t)

	out, err := executeTrace(t, "json", "--journal", path, "--kind", "level_up", "--subject", "1002")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, int64(9), resp.Data.Timeline[0].Seq)
	assert.Equal(t, float64(2), resp.Data.Timeline[0].Detail["new_level"])
	assert.Equal(t, map[string]int{"giveaway_ended": 1, "level_up": 2}, resp.Data.Counts)
}

func TestTrace_Limit(t *testing.T) {
	path := seedJournal(t)

	out, err := executeTrace(t, "json", "--journal", path, "--limit", "2")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Timeline, 2)
	assert.Equal(t, int64(5), resp.Data.Timeline[0].Seq)
	assert.Equal(t, int64(9), resp.Data.Timeline[1].Seq)
}

func TestTrace_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	jr, err := journal.Open(path)
	require.NoError(t, err)
	require.NoError(t, jr.Close())

	out, err := executeTrace(t, "text", "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No matching entries.")
}

func TestTrace_MissingJournal(t *testing.T) {
	_, err := executeTrace(t, "text", "--journal", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTrace_RequiresJournalFlag(t *testing.T) {
	_, err := executeTrace(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
