package teams

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hackquest/hackquest/pkg/logging"
	"github.com/hackquest/hackquest/pkg/quests"
	"github.com/hackquest/hackquest/pkg/retry"
)

// Store reads and writes team records on a RowStore. Every operation runs
// through the retry executor.
type Store struct {
	rows RowStore
	exec *retry.Executor
	now  func() time.Time
}

// NewStore creates a Store
func NewStore(rows RowStore, exec *retry.Executor) (*Store, error) {
	if rows == nil {
		return nil, fmt.Errorf("row store is required")
	}
	if exec == nil {
		exec = retry.NewExecutor(retry.Config{})
	}
	return &Store{rows: rows, exec: exec, now: time.Now}, nil
}

// Fetch returns the record whose team name equals name exactly, or
// ErrTeamNotFound. Store failures carry retry.ErrPersistence or
// retry.ErrRateLimitExceeded.
func (s *Store) Fetch(ctx context.Context, name string) (*Record, error) {
	record, err := retry.Value(ctx, s.exec, func(ctx context.Context) (*Record, error) {
		rows, err := s.rows.ListRows(ctx)
		if err != nil {
			return nil, err
		}
		idx := findRow(rows, name)
		if idx < 0 {
			return nil, nil
		}
		return parseRow(rows[idx])
	})
	if err != nil {
		logging.App.Debug("Failed to fetch team", "team", name, "error", err)
		return nil, err
	}
	if record == nil {
		return nil, ErrTeamNotFound
	}
	if record.TeamName != name {
		logging.App.Error("Fetched record for another team", "requested", name, "got", record.TeamName)
		return nil, fmt.Errorf("%w: fetched %q for %q", ErrIsolationViolation, record.TeamName, name)
	}
	return record, nil
}

// Create appends a new record at stage 1 with no XP and no artifacts.
// The caller must already have established that name is not taken.
func (s *Store) Create(ctx context.Context, name, pinHash string) (*Record, error) {
	record := &Record{
		TeamName:  name,
		PINHash:   pinHash,
		Stage:     quests.FirstStage,
		XP:        0,
		UpdatedAt: FormatTimestamp(s.now()),
	}

	err := s.exec.Do(ctx, func(ctx context.Context) error {
		return s.rows.AppendRow(ctx, newRow(record))
	})
	if err != nil {
		logging.App.Debug("Failed to create team", "team", name, "error", err)
		return nil, err
	}

	logging.App.Info("Created team", "team", name)
	return record, nil
}

// UpdateQuest writes the stage, XP, one artifact and the timestamp of the
// named team. Nothing else in the row is touched. Failures are caught: ok is
// false and err holds the classified cause, which callers only need for
// choosing a message.
func (s *Store) UpdateQuest(ctx context.Context, u QuestUpdate) (ok bool, err error) {
	col, known := ArtifactColumn(u.Field)
	if !known {
		logging.App.Error("Quest update for unknown artifact field", "team", u.TeamName, "field", u.Field)
		return false, fmt.Errorf("%w: %q", ErrUnknownField, u.Field)
	}

	cells := []Cell{
		{Column: ColStage, Value: strconv.Itoa(u.Stage)},
		{Column: ColXP, Value: strconv.Itoa(u.XP)},
		{Column: col, Value: u.Value},
		{Column: ColTimestamp, Value: u.Timestamp},
	}

	err = s.exec.Do(ctx, func(ctx context.Context) error {
		row, err := s.locate(ctx, u.TeamName)
		if err != nil {
			return err
		}
		if row == 0 {
			return fmt.Errorf("%w: %q", ErrTeamNotFound, u.TeamName)
		}
		return s.writeCells(ctx, row, cells)
	})
	if err != nil {
		logging.App.Warn("Quest update failed", "team", u.TeamName, "stage", u.Stage, "field", u.Field, "error", err)
		return false, err
	}

	logging.App.Debug("Quest update written", "team", u.TeamName, "stage", u.Stage, "xp", u.XP, "field", u.Field)
	return true, nil
}

// UpdatePIN overwrites the PIN hash of the named team. A missing team
// returns false with a nil error; store failures return false and the cause.
func (s *Store) UpdatePIN(ctx context.Context, name, pinHash string) (bool, error) {
	errMissing := errors.New("team missing")

	err := s.exec.Do(ctx, func(ctx context.Context) error {
		row, err := s.locate(ctx, name)
		if err != nil {
			return err
		}
		if row == 0 {
			return errMissing
		}
		return s.rows.UpdateCell(ctx, row, ColPINHash, pinHash)
	})
	if errors.Is(err, errMissing) {
		logging.App.Info("PIN update for unknown team", "team", name)
		return false, nil
	}
	if err != nil {
		logging.App.Warn("PIN update failed", "team", name, "error", err)
		return false, err
	}

	logging.App.Info("Updated team PIN", "team", name)
	return true, nil
}

// locate returns the sheet row of the named team, or 0 when absent
func (s *Store) locate(ctx context.Context, name string) (int, error) {
	rows, err := s.rows.ListRows(ctx)
	if err != nil {
		return 0, err
	}
	idx := findRow(rows, name)
	if idx < 0 {
		return 0, nil
	}
	return idx + 1 + HeaderRows, nil
}

func (s *Store) writeCells(ctx context.Context, row int, cells []Cell) error {
	if b, ok := s.rows.(CellBatcher); ok {
		return b.UpdateCells(ctx, row, cells)
	}
	for _, c := range cells {
		if err := s.rows.UpdateCell(ctx, row, c.Column, c.Value); err != nil {
			return err
		}
	}
	return nil
}

// findRow returns the index of the first row whose name cell equals name
// exactly, or -1
func findRow(rows [][]string, name string) int {
	for i, row := range rows {
		if len(row) >= ColTeamName && row[ColTeamName-1] == name {
			return i
		}
	}
	return -1
}
