package leveling

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/guildkeeper/internal/random"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		xp    int64
		level int
	}{
		{0, 0},
		{-5, 0},
		{99, 0},
		{100, 1},
		{399, 1},
		{400, 2},
		{899, 2},
		{900, 3},
		{10_000, 10},
		{9_999, 9},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.level, Level(tt.xp), "xp=%d", tt.xp)
	}
}

func TestLevel_Monotonic(t *testing.T) {
	prev := 0
	for xp := int64(0); xp <= 50_000; xp += 7 {
		l := Level(xp)
		require.GreaterOrEqual(t, l, prev, "level decreased at xp=%d", xp)
		prev = l
	}
}

func TestThreshold_StrictlyIncreasing(t *testing.T) {
	for l := 1; l < 200; l++ {
		require.Greater(t, Threshold(l+1), Threshold(l))
		assert.Equal(t, l, Level(Threshold(l)), "threshold must land exactly on the level")
		assert.Equal(t, l-1, Level(Threshold(l)-1))
	}
	assert.Equal(t, int64(0), Threshold(0))
}

func TestRecordActivity_LevelUp(t *testing.T) {
	tr := New(DefaultConfig(), nil)

	p := tr.RecordActivity("u1", 99)
	assert.False(t, p.LeveledUp())
	assert.Equal(t, 0, p.NewLevel)

	p = tr.RecordActivity("u1", 1)
	assert.True(t, p.LeveledUp())
	assert.Equal(t, 0, p.OldLevel)
	assert.Equal(t, 1, p.NewLevel)
	assert.Equal(t, int64(100), p.XP)

	p = tr.RecordActivity("u1", 1)
	assert.False(t, p.LeveledUp(), "level-up is reported once")
}

func TestRecordActivity_MultiLevelJump(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	p := tr.RecordActivity("u1", 950)
	assert.Equal(t, 0, p.OldLevel)
	assert.Equal(t, 3, p.NewLevel)
	assert.True(t, p.LeveledUp())
}

func TestRecordActivity_NegativeClamped(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	tr.RecordActivity("u1", 10)
	p := tr.RecordActivity("u1", -50)
	assert.Equal(t, int64(10), p.XP)
	assert.Equal(t, int64(0), p.Awarded)
}

func TestRecordActivity_ConcurrentLevelUpOnce(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	const goroutines = 100

	var mu sync.Mutex
	levelUps := 0
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.RecordActivity("u1", 1).LeveledUp() {
				mu.Lock()
				levelUps++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, levelUps)
	assert.Equal(t, int64(100), tr.Rank("u1").XP)
}

func TestRecordMessage_AwardWithinBounds(t *testing.T) {
	tr := New(DefaultConfig(), random.NewSeeded(1, 1))
	for i := 0; i < 100; i++ {
		p := tr.RecordMessage("u1")
		assert.GreaterOrEqual(t, p.Awarded, int64(1))
		assert.LessOrEqual(t, p.Awarded, int64(5))
	}
}

func TestRecordMessage_FixedSource(t *testing.T) {
	tr := New(Config{MinAward: 1, MaxAward: 5}, random.Fixed(4))
	assert.Equal(t, int64(5), tr.RecordMessage("u").Awarded)
}

func TestRank(t *testing.T) {
	tr := New(DefaultConfig(), nil)

	r := tr.Rank("ghost")
	assert.Equal(t, int64(0), r.XP)
	assert.Equal(t, 0, r.Level)
	assert.Equal(t, int64(100), r.XPToNext)
	assert.Equal(t, 0, tr.Users(), "rank lookups must not materialise users")

	tr.RecordActivity("u1", 450)
	r = tr.Rank("u1")
	assert.Equal(t, 2, r.Level)
	assert.Equal(t, int64(450), r.XP)
	assert.Equal(t, int64(900-450), r.XPToNext)
}

func TestLeaderboard_SortedAndStable(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	tr.RecordActivity("a", 50)
	tr.RecordActivity("b", 200)
	tr.RecordActivity("c", 50)
	tr.RecordActivity("d", 0)
	tr.RecordActivity("e", 300)

	rows := tr.Leaderboard(10)
	require.Len(t, rows, 4, "zero-xp users are excluded")

	var order []string
	for _, r := range rows {
		order = append(order, r.UserID)
	}
	assert.Equal(t, []string{"e", "b", "a", "c"}, order, "ties keep first-seen order")

	for i := 1; i < len(rows); i++ {
		assert.GreaterOrEqual(t, rows[i-1].XP, rows[i].XP)
	}
}

func TestLeaderboard_Truncates(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	for i := 0; i < 15; i++ {
		tr.RecordActivity(string(rune('a'+i)), int64(i+1))
	}

	assert.Len(t, tr.Leaderboard(3), 3)
	assert.Len(t, tr.Leaderboard(50), DefaultLeaderboardSize)
	assert.Len(t, tr.LeaderboardAll(0), 15)
	assert.Equal(t, "o", tr.Leaderboard(1)[0].UserID)
}

func TestLeaderboard_NonPositiveIsEmpty(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	tr.RecordActivity("a", 10)
	tr.RecordActivity("b", 20)

	assert.Empty(t, tr.Leaderboard(0))
	assert.Empty(t, tr.Leaderboard(-3))
	assert.Len(t, tr.Leaderboard(2), 2)
}

func TestReset(t *testing.T) {
	tr := New(DefaultConfig(), nil)
	tr.RecordActivity("a", 10)
	tr.RecordActivity("b", 10)

	assert.True(t, tr.Reset("a"))
	assert.False(t, tr.Reset("a"))
	assert.Equal(t, int64(0), tr.Rank("a").XP)

	assert.Equal(t, 1, tr.ResetAll())
	assert.Empty(t, tr.Leaderboard(10))
}
