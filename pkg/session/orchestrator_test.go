package session

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackquest/hackquest/pkg/authentication"
	"github.com/hackquest/hackquest/pkg/logging"
	"github.com/hackquest/hackquest/pkg/quests"
	"github.com/hackquest/hackquest/pkg/retry"
	"github.com/hackquest/hackquest/pkg/teams"
)

var testParams = authentication.Argon2Params{Memory: 64, Time: 1, Threads: 1}

type countingSink struct {
	tags []string
	err  error
}

func (s *countingSink) RecordCount(ctx context.Context, name string, tags []string, count int, ts time.Time) error {
	s.tags = append(s.tags, tags...)
	return s.err
}

type harness struct {
	rows *teams.MemorySource
	sink *countingSink
	pins *authentication.Credentials
	orch *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		rows: teams.NewMemorySource(),
		sink: &countingSink{},
		pins: authentication.NewCredentials(testParams),
	}
	exec := retry.NewExecutor(retry.Config{MaxAttempts: 3}).
		WithSleeper(func(ctx context.Context, d time.Duration) error { return nil })
	store, err := teams.NewStore(h.rows, exec)
	require.NoError(t, err)

	h.orch = NewOrchestrator(store, h.pins, h.sink, Config{})
	h.orch.now = func() time.Time { return time.Date(2024, 5, 4, 10, 30, 0, 0, time.UTC) }
	return h
}

// seed stores a team with the given PIN, progress and artifacts in quest order
func (h *harness) seed(t *testing.T, name, pin string, stage, xp int, artifacts ...string) {
	t.Helper()
	hash, err := h.pins.Hash(pin)
	require.NoError(t, err)
	row := []string{name, hash, strconv.Itoa(stage), strconv.Itoa(xp), "", "", "", "", ""}
	copy(row[teams.ColIdea-1:teams.ColPitchLink], artifacts)
	require.NoError(t, h.rows.AppendRow(context.Background(), row))
}

func (h *harness) row(t *testing.T, name string) []string {
	t.Helper()
	for _, row := range h.rows.Rows() {
		if row[teams.ColTeamName-1] == name {
			return row
		}
	}
	t.Fatalf("no row for %q", name)
	return nil
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("registers an unknown team", func(t *testing.T) {
		h := newHarness(t)

		s, err := h.orch.Login(ctx, "  Falcons ", " 9090 ")
		require.NoError(t, err)
		assert.Equal(t, Session{Authenticated: true, TeamName: "Falcons", Stage: 1, XP: 0, Level: 0}, s)

		row := h.row(t, "Falcons")
		assert.NotEqual(t, "9090", row[teams.ColPINHash-1])
		assert.True(t, h.pins.Verify("9090", row[teams.ColPINHash-1]))
		created, err := time.Parse(teams.TimestampLayout, row[teams.ColTimestamp-1])
		require.NoError(t, err)
		assert.Equal(t, time.UTC, created.Location())
	})

	t.Run("existing team with correct PIN", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "Owls", "1111", 3, 200, "idea", "roles")
		appends := h.rows.Calls("append")

		s, err := h.orch.Login(ctx, "Owls", "1111")
		require.NoError(t, err)
		assert.Equal(t, Session{
			Authenticated: true,
			TeamName:      "Owls",
			Stage:         3,
			XP:            200,
			Level:         2,
			Artifacts:     Artifacts{Idea: "idea", Roles: "roles"},
		}, s)
		assert.Equal(t, 1, h.rows.Calls("list"))
		assert.Equal(t, appends, h.rows.Calls("append"), "login does not register")
	})

	t.Run("wrong PIN", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "Owls", "1111", 1, 0)

		s, err := h.orch.Login(ctx, "Owls", "2222")
		assert.ErrorIs(t, err, ErrAuthentication)
		assert.False(t, s.Authenticated)
		assert.Len(t, h.rows.Rows(), 1)
	})

	t.Run("names are case sensitive", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "Owls", "1111", 2, 100, "idea")

		s, err := h.orch.Login(ctx, "owls", "3333")
		require.NoError(t, err)
		assert.Equal(t, "owls", s.TeamName)
		assert.Equal(t, 1, s.Stage)
		assert.Empty(t, s.Artifacts.Idea)
		assert.Len(t, h.rows.Rows(), 2)
	})

	t.Run("empty inputs", func(t *testing.T) {
		h := newHarness(t)
		for _, tc := range []struct{ name, pin string }{{"", "1"}, {"team", ""}, {"   ", "  "}} {
			_, err := h.orch.Login(ctx, tc.name, tc.pin)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, "Please enter both team name and PIN", UserMessage(err))
		}
		assert.Zero(t, h.rows.Calls("list"))
	})

	t.Run("store failure is not an auth failure", func(t *testing.T) {
		h := newHarness(t)
		h.rows.FailWith = func(op string) error { return errors.New("connection reset") }

		_, err := h.orch.Login(ctx, "Owls", "1111")
		assert.ErrorIs(t, err, retry.ErrPersistence)
		assert.NotErrorIs(t, err, ErrAuthentication)
		assert.Zero(t, h.rows.Calls("append"))
	})

	t.Run("throttled registration", func(t *testing.T) {
		h := newHarness(t)
		h.rows.FailWith = func(op string) error {
			if op == "append" {
				return errors.New("429 Too Many Requests")
			}
			return nil
		}

		_, err := h.orch.Login(ctx, "Owls", "1111")
		assert.ErrorIs(t, err, retry.ErrRateLimitExceeded)
		assert.Equal(t, "System is busy. Please wait a moment and try again.", UserMessage(err))
	})

	t.Run("access log records outcome", func(t *testing.T) {
		_, access, restore := logging.NewObserved()
		defer restore()

		h := newHarness(t)
		_, err := h.orch.Login(ctx, "Owls", "1111")
		require.NoError(t, err)
		_, err = h.orch.Login(ctx, "Owls", "0000")
		require.Error(t, err)

		entries := access.All()
		require.Len(t, entries, 2)
		assert.Equal(t, "register", entries[0].Message)
		assert.Equal(t, "success", entries[0].ContextMap()["status"])
		assert.Equal(t, "login", entries[1].Message)
		assert.Equal(t, "failure", entries[1].ContextMap()["status"])
		for _, e := range entries {
			for _, v := range e.ContextMap() {
				assert.NotEqual(t, "1111", v)
				assert.NotEqual(t, "0000", v)
			}
		}
	})
}

type isolationBreakingStore struct {
	TeamStore
}

func (isolationBreakingStore) Fetch(ctx context.Context, name string) (*teams.Record, error) {
	return &teams.Record{TeamName: "Intruders", PINHash: "x", Stage: 4, XP: 300}, nil
}

type acceptAll struct{}

func (acceptAll) Hash(pin string) (string, error) { return "h", nil }
func (acceptAll) Verify(pin, hash string) bool    { return true }

func TestLogin_IsolationGuard(t *testing.T) {
	appLogs, _, restore := logging.NewObserved()
	defer restore()

	orch := NewOrchestrator(isolationBreakingStore{}, acceptAll{}, nil, Config{})
	s, err := orch.Login(context.Background(), "Falcons", "9090")

	assert.ErrorIs(t, err, teams.ErrIsolationViolation)
	assert.Equal(t, Session{}, s)
	assert.Equal(t, 1, appLogs.FilterMessage("Refusing session for another team's record").Len())
}

func TestSubmitQuest(t *testing.T) {
	ctx := context.Background()

	login := func(t *testing.T, h *harness, name string) Session {
		t.Helper()
		s, err := h.orch.Login(ctx, name, "1234")
		require.NoError(t, err)
		return s
	}

	t.Run("advances stage and XP", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "Owls", "1234", 2, 100, "idea")
		s := login(t, h, "Owls")

		next, outcome, err := h.orch.SubmitQuest(ctx, s, 2, "Alice: PM, Bob: dev")
		require.NoError(t, err)
		assert.Equal(t, Outcome{Quest: 2, XPReward: 100, MetricRecorded: true}, outcome)
		assert.Equal(t, 3, next.Stage)
		assert.Equal(t, 200, next.XP)
		assert.Equal(t, 2, next.Level)
		assert.Equal(t, "Alice: PM, Bob: dev", next.Artifacts.Roles)
		assert.Equal(t, "idea", next.Artifacts.Idea)

		assert.Equal(t, 2, s.Stage, "input session is not modified")
		assert.Equal(t, []string{"stage:team"}, h.sink.tags)

		row := h.row(t, "Owls")
		assert.Equal(t, "3", row[teams.ColStage-1])
		assert.Equal(t, "200", row[teams.ColXP-1])
		assert.Equal(t, "Alice: PM, Bob: dev", row[teams.ColRoles-1])
		assert.Equal(t, "2024-05-04T10:30:00.000000Z", row[teams.ColTimestamp-1])
	})

	t.Run("log entries share one transaction id", func(t *testing.T) {
		appLogs, access, restore := logging.NewObserved()
		defer restore()

		h := newHarness(t)
		h.seed(t, "Owls", "1234", 2, 100, "idea")
		s := login(t, h, "Owls")

		_, _, err := h.orch.SubmitQuest(ctx, s, 2, "Alice: PM")
		require.NoError(t, err)

		done := appLogs.FilterMessage("Quest completed").All()
		require.Len(t, done, 1)
		fields := done[0].ContextMap()
		assert.Equal(t, "Owls", fields["team"])
		assert.EqualValues(t, 2, fields["quest"])
		tx, ok := fields["tx"].(string)
		require.True(t, ok)
		assert.NotEmpty(t, tx)

		quests := access.FilterField(zap.String("tx", tx)).All()
		require.Len(t, quests, 1)
		assert.Equal(t, "success", quests[0].ContextMap()["status"])
	})

	t.Run("final quest keeps the stage cap", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "Owls", "1234", 4, 300, "i", "r", "https://github.com/owls")
		s := login(t, h, "Owls")

		next, _, err := h.orch.SubmitQuest(ctx, s, 4, "https://slides.example/owls")
		require.NoError(t, err)
		assert.Equal(t, quests.MaxStage, next.Stage)
		assert.Equal(t, 400, next.XP)
		assert.Equal(t, 4, next.Level)
		assert.Equal(t, []string{"stage:pitch"}, h.sink.tags)
	})

	t.Run("validation failure changes nothing", func(t *testing.T) {
		h := newHarness(t)
		s := login(t, h, "Owls")

		for _, artifact := range []string{"", strings.Repeat("x", quests.DefaultMaxLength+1)} {
			next, _, err := h.orch.SubmitQuest(ctx, s, 1, artifact)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, s, next)
		}
		_, _, err := h.orch.SubmitQuest(ctx, s, 1, "")
		assert.Equal(t, "Artifact cannot be empty", UserMessage(err))
		assert.Zero(t, h.rows.Calls("update"))
	})

	t.Run("exactly max length is accepted", func(t *testing.T) {
		h := newHarness(t)
		s := login(t, h, "Owls")
		_, _, err := h.orch.SubmitQuest(ctx, s, 1, strings.Repeat("é", quests.DefaultMaxLength))
		assert.NoError(t, err)
	})

	t.Run("locked quest", func(t *testing.T) {
		h := newHarness(t)
		s := login(t, h, "Owls")

		next, _, err := h.orch.SubmitQuest(ctx, s, 3, "https://github.com/owls")
		assert.ErrorIs(t, err, ErrQuestLocked)
		assert.Equal(t, s, next)
		assert.Zero(t, h.rows.Calls("update"))
		assert.Empty(t, h.sink.tags)
	})

	t.Run("completed quest is not resubmitted", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "Owls", "1234", 2, 100, "first idea")
		s := login(t, h, "Owls")
		lists := h.rows.Calls("list")

		next, _, err := h.orch.SubmitQuest(ctx, s, 1, "second idea")
		assert.ErrorIs(t, err, ErrQuestCompleted)
		assert.Equal(t, s, next)
		assert.Equal(t, lists, h.rows.Calls("list"))
		assert.Equal(t, "first idea", h.row(t, "Owls")[teams.ColIdea-1])
	})

	t.Run("unknown quest", func(t *testing.T) {
		h := newHarness(t)
		s := login(t, h, "Owls")
		for _, n := range []int{0, 5, -1} {
			_, _, err := h.orch.SubmitQuest(ctx, s, n, "x")
			assert.ErrorIs(t, err, ErrUnknownQuest)
		}
	})

	t.Run("logged out", func(t *testing.T) {
		h := newHarness(t)
		s := login(t, h, "Owls").Logout()
		_, _, err := h.orch.SubmitQuest(ctx, s, 1, "x")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("store failure rolls back", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "Owls", "1234", 2, 100, "idea")
		s := login(t, h, "Owls")
		before := h.rows.Rows()

		h.rows.FailWith = func(op string) error {
			if op == "update" {
				return errors.New("backend unavailable")
			}
			return nil
		}
		next, outcome, err := h.orch.SubmitQuest(ctx, s, 2, "roles")

		assert.ErrorIs(t, err, retry.ErrPersistence)
		assert.Equal(t, "Unable to connect to database. Please try again.", UserMessage(err))
		assert.Equal(t, Outcome{}, outcome)
		assert.Equal(t, s, next)
		assert.Equal(t, 2, next.Stage)
		assert.Equal(t, 100, next.XP)
		assert.Equal(t, 1, next.Level)
		assert.Empty(t, next.Artifacts.Roles)
		assert.Equal(t, before, h.rows.Rows())
		assert.Empty(t, h.sink.tags)
	})

	t.Run("throttling exhausted rolls back", func(t *testing.T) {
		h := newHarness(t)
		s := login(t, h, "Owls")
		h.rows.FailWith = func(op string) error { return errors.New("Rate limit exceeded") }

		next, _, err := h.orch.SubmitQuest(ctx, s, 1, "idea")
		assert.ErrorIs(t, err, retry.ErrRateLimitExceeded)
		assert.Equal(t, "System is busy. Please wait a moment and try again.", UserMessage(err))
		assert.Equal(t, s, next)
	})

	t.Run("team removed from store", func(t *testing.T) {
		h := newHarness(t)
		s := Session{Authenticated: true, TeamName: "Ghosts", Stage: 1}

		next, _, err := h.orch.SubmitQuest(ctx, s, 1, "idea")
		assert.ErrorIs(t, err, retry.ErrPersistence)
		assert.Equal(t, s, next)
	})

	t.Run("metrics failure keeps the submission", func(t *testing.T) {
		h := newHarness(t)
		h.sink.err = errors.New("datadog down")
		s := login(t, h, "Owls")

		next, outcome, err := h.orch.SubmitQuest(ctx, s, 1, "idea")
		require.NoError(t, err)
		assert.False(t, outcome.MetricRecorded)
		assert.Equal(t, 2, next.Stage)
		assert.Equal(t, 100, next.XP)
		assert.Equal(t, "2", h.row(t, "Owls")[teams.ColStage-1])
	})
}

func TestFalconsJourney(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	s, err := h.orch.Login(ctx, "Falcons", "9090")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Stage)
	assert.Equal(t, 0, s.XP)
	row := h.row(t, "Falcons")
	assert.Equal(t, "1", row[teams.ColStage-1])
	assert.Equal(t, "0", row[teams.ColXP-1])

	s, outcome, err := h.orch.SubmitQuest(ctx, s, 1, "Build a drone")
	require.NoError(t, err)
	assert.Equal(t, 100, outcome.XPReward)
	assert.Equal(t, 2, s.Stage)
	assert.Equal(t, 100, s.XP)
	assert.Equal(t, 1, s.Level)
	assert.Equal(t, "Build a drone", s.Artifacts.Idea)

	locked, _, err := h.orch.SubmitQuest(ctx, s, 3, "https://github.com/falcons/drone")
	assert.ErrorIs(t, err, ErrQuestLocked)
	assert.Equal(t, s, locked)

	// A fresh login sees what was persisted
	again, err := h.orch.Login(ctx, "Falcons", "9090")
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestRecoverPIN(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the PIN", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "Owls", "1111", 3, 200, "idea", "roles")

		ok, err := h.orch.RecoverPIN(ctx, "Owls", "2222")
		require.NoError(t, err)
		assert.True(t, ok)

		_, err = h.orch.Login(ctx, "Owls", "1111")
		assert.ErrorIs(t, err, ErrAuthentication)

		s, err := h.orch.Login(ctx, "Owls", "2222")
		require.NoError(t, err)
		assert.Equal(t, 3, s.Stage)
		assert.Equal(t, "roles", s.Artifacts.Roles)
	})

	t.Run("unknown team", func(t *testing.T) {
		h := newHarness(t)
		ok, err := h.orch.RecoverPIN(ctx, "Nobody", "2222")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, h.rows.Rows())
	})

	t.Run("empty PIN", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.RecoverPIN(ctx, "Owls", " ")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("store failure", func(t *testing.T) {
		h := newHarness(t)
		h.seed(t, "Owls", "1111", 1, 0)
		h.rows.FailWith = func(op string) error { return errors.New("timeout") }

		ok, err := h.orch.RecoverPIN(ctx, "Owls", "2222")
		assert.False(t, ok)
		assert.ErrorIs(t, err, retry.ErrPersistence)
	})
}
