package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackquest/hackquest/pkg/logging"
	"github.com/hackquest/hackquest/pkg/metrics"
	"github.com/hackquest/hackquest/pkg/quests"
	"github.com/hackquest/hackquest/pkg/retry"
	"github.com/hackquest/hackquest/pkg/teams"
)

// TeamStore is the persistence the orchestrator needs. *teams.Store implements it.
type TeamStore interface {
	Fetch(ctx context.Context, name string) (*teams.Record, error)
	Create(ctx context.Context, name, pinHash string) (*teams.Record, error)
	UpdateQuest(ctx context.Context, u teams.QuestUpdate) (bool, error)
	UpdatePIN(ctx context.Context, name, pinHash string) (bool, error)
}

// PINHasher hashes and verifies PINs. *authentication.Credentials implements it.
type PINHasher interface {
	Hash(pin string) (string, error)
	Verify(pin, hash string) bool
}

// Outcome describes a successful quest submission
type Outcome struct {
	Quest          int
	XPReward       int
	MetricRecorded bool
}

// Config configures an Orchestrator
type Config struct {
	// MaxArtifactLength defaults to quests.DefaultMaxLength
	MaxArtifactLength int
	// MetricsTimeout bounds the analytics call after a successful submission
	MetricsTimeout time.Duration
}

// Orchestrator runs session transactions against a team store
type Orchestrator struct {
	store          TeamStore
	pins           PINHasher
	sink           metrics.Sink
	maxLength      int
	metricsTimeout time.Duration
	now            func() time.Time
}

// NewOrchestrator creates an Orchestrator. A nil sink discards metrics.
func NewOrchestrator(store TeamStore, pins PINHasher, sink metrics.Sink, config Config) *Orchestrator {
	if sink == nil {
		sink = metrics.Nop{}
	}
	if config.MaxArtifactLength <= 0 {
		config.MaxArtifactLength = quests.DefaultMaxLength
	}
	if config.MetricsTimeout <= 0 {
		config.MetricsTimeout = metrics.DefaultTimeout
	}
	return &Orchestrator{
		store:          store,
		pins:           pins,
		sink:           sink,
		maxLength:      config.MaxArtifactLength,
		metricsTimeout: config.MetricsTimeout,
		now:            time.Now,
	}
}

// Login authenticates name with pin. An unknown name is registered with pin
// and logged in at stage 1.
func (o *Orchestrator) Login(ctx context.Context, name, pin string) (Session, error) {
	name = strings.TrimSpace(name)
	pin = strings.TrimSpace(pin)
	if name == "" || pin == "" {
		return Session{}, invalid("Please enter both team name and PIN")
	}

	record, err := o.store.Fetch(ctx, name)
	switch {
	case errors.Is(err, teams.ErrTeamNotFound):
		return o.register(ctx, name, pin)
	case err != nil:
		logging.App.Error("Login lookup failed", "team", name, "error", err)
		logging.Access.LogAuth("login", name, "error")
		return Session{}, err
	}

	if !o.pins.Verify(pin, record.PINHash) {
		logging.App.Info("Login rejected", "team", name)
		logging.Access.LogAuth("login", name, "failure")
		return Session{}, ErrAuthentication
	}

	s, err := o.open(name, record)
	if err != nil {
		return Session{}, err
	}
	logging.App.Info("Team logged in", "team", name, "stage", s.Stage, "xp", s.XP)
	logging.Access.LogAuth("login", name, "success")
	return s, nil
}

func (o *Orchestrator) register(ctx context.Context, name, pin string) (Session, error) {
	hash, err := o.pins.Hash(pin)
	if err != nil {
		logging.App.Error("Failed to hash PIN", "team", name, "error", err)
		return Session{}, fmt.Errorf("hashing PIN: %w", err)
	}

	record, err := o.store.Create(ctx, name, hash)
	if err != nil {
		logging.App.Error("Registration failed", "team", name, "error", err)
		logging.Access.LogAuth("register", name, "error")
		return Session{}, err
	}

	s, err := o.open(name, record)
	if err != nil {
		return Session{}, err
	}
	logging.App.Info("Team registered", "team", name)
	logging.Access.LogAuth("register", name, "success")
	return s, nil
}

// open builds the session for name, refusing any record that belongs to
// another team
func (o *Orchestrator) open(name string, record *teams.Record) (Session, error) {
	if record == nil || record.TeamName != name {
		got := ""
		if record != nil {
			got = record.TeamName
		}
		logging.App.Error("Refusing session for another team's record", "requested", name, "got", got)
		return Session{}, fmt.Errorf("%w: requested %q, got %q", teams.ErrIsolationViolation, name, got)
	}
	return fromRecord(record), nil
}

// SubmitQuest records artifact as the submission for quest. On any failure
// the returned session equals s and nothing has been written.
func (o *Orchestrator) SubmitQuest(ctx context.Context, s Session, quest int, artifact string) (Session, Outcome, error) {
	if !s.Authenticated {
		return s, Outcome{}, ErrNotAuthenticated
	}
	q, ok := quests.Lookup(quest)
	if !ok {
		return s, Outcome{}, fmt.Errorf("%w: %d", ErrUnknownQuest, quest)
	}
	if valid, message := quests.ValidateArtifact(artifact, o.maxLength); !valid {
		return s, Outcome{}, invalid(message)
	}
	if !quests.IsUnlocked(s.Stage, quest) {
		logging.App.Debug("Locked quest submitted", "team", s.TeamName, "quest", quest, "stage", s.Stage)
		return s, Outcome{}, ErrQuestLocked
	}
	if s.Artifacts.Get(q.Field) != "" {
		return s, Outcome{}, ErrQuestCompleted
	}

	tx := uuid.NewString()
	log := logging.App.With("tx", tx, "team", s.TeamName, "quest", quest)
	snapshot := s

	next := s
	next.Stage = min(s.Stage+1, quests.MaxStage)
	next.XP = s.XP + q.XPReward
	next.Level = quests.CalculateLevel(next.XP)
	next.Artifacts.set(q.Field, artifact)

	log.Debug("Submitting quest", "stage", next.Stage, "xp", next.XP)
	written, err := o.store.UpdateQuest(ctx, teams.QuestUpdate{
		TeamName:  s.TeamName,
		Stage:     next.Stage,
		XP:        next.XP,
		Field:     q.Field,
		Value:     artifact,
		Timestamp: teams.FormatTimestamp(o.now()),
	})
	if !written {
		err = classify(err)
		log.Error("Quest submission failed", "error", err)
		logging.Access.LogQuest(s.TeamName, quest, "error", "tx", tx)
		return snapshot, Outcome{}, err
	}

	recorded := metrics.NotifyStageCompleted(ctx, o.sink, q.Tag, o.metricsTimeout)

	log.Info("Quest completed", "stage", next.Stage, "xp", next.XP)
	logging.Access.LogQuest(s.TeamName, quest, "success", "tx", tx, "xp", next.XP)
	return next, Outcome{Quest: quest, XPReward: q.XPReward, MetricRecorded: recorded}, nil
}

// classify makes sure a failed write matches retry.ErrRateLimitExceeded or
// retry.ErrPersistence
func classify(err error) error {
	switch {
	case err == nil:
		return fmt.Errorf("%w: quest update not written", retry.ErrPersistence)
	case errors.Is(err, retry.ErrRateLimitExceeded), errors.Is(err, retry.ErrPersistence):
		return err
	}
	return fmt.Errorf("%w: %w", retry.ErrPersistence, err)
}

// RecoverPIN replaces the PIN of name. It is an administrator operation and
// performs no authentication of its own. It reports false when the team does
// not exist.
func (o *Orchestrator) RecoverPIN(ctx context.Context, name, newPIN string) (bool, error) {
	name = strings.TrimSpace(name)
	newPIN = strings.TrimSpace(newPIN)
	if name == "" || newPIN == "" {
		return false, invalid("Please enter both team name and new PIN")
	}

	hash, err := o.pins.Hash(newPIN)
	if err != nil {
		logging.App.Error("Failed to hash PIN", "team", name, "error", err)
		return false, fmt.Errorf("hashing PIN: %w", err)
	}

	ok, err := o.store.UpdatePIN(ctx, name, hash)
	switch {
	case err != nil:
		logging.Access.LogAuth("recover_pin", name, "error")
		return false, err
	case !ok:
		logging.Access.LogAuth("recover_pin", name, "not_found")
		return false, nil
	}
	logging.App.Info("PIN recovered", "team", name)
	logging.Access.LogAuth("recover_pin", name, "success")
	return true, nil
}
