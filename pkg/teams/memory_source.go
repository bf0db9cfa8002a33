package teams

import (
	"context"
	"fmt"
	"sync"
)

// MemorySource implements RowStore and CellBatcher with in-process rows.
// FailWith lets tests simulate remote failures per operation.
type MemorySource struct {
	mu    sync.RWMutex
	rows  [][]string
	calls map[string]int

	// FailWith, when set, is consulted before every operation ("list",
	// "append", "update"); a non-nil result fails that call.
	FailWith func(op string) error
}

// NewMemorySource creates a MemorySource holding copies of rows
func NewMemorySource(rows ...[]string) *MemorySource {
	s := &MemorySource{calls: make(map[string]int)}
	for _, row := range rows {
		s.rows = append(s.rows, copyRow(row))
	}
	return s
}

// ListRows implements RowStore
func (s *MemorySource) ListRows(ctx context.Context) ([][]string, error) {
	if err := s.before(ctx, "list"); err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// AppendRow implements RowStore
func (s *MemorySource) AppendRow(ctx context.Context, values []string) error {
	if err := s.before(ctx, "append"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, copyRow(values))
	return nil
}

// UpdateCell implements RowStore
func (s *MemorySource) UpdateCell(ctx context.Context, row, col int, value string) error {
	if err := s.before(ctx, "update"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := row - HeaderRows - 1
	if idx < 0 || idx >= len(s.rows) || col < 1 || col > NumColumns {
		return fmt.Errorf("%w: row %d col %d", ErrCellOutOfRange, row, col)
	}
	for len(s.rows[idx]) < col {
		s.rows[idx] = append(s.rows[idx], "")
	}
	s.rows[idx][col-1] = value
	return nil
}

// UpdateCells implements CellBatcher. Every cell is checked before any is
// written, so a rejected batch leaves the row unchanged.
func (s *MemorySource) UpdateCells(ctx context.Context, row int, cells []Cell) error {
	if err := s.before(ctx, "update"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := row - HeaderRows - 1
	if idx < 0 || idx >= len(s.rows) {
		return fmt.Errorf("%w: row %d", ErrCellOutOfRange, row)
	}
	for _, c := range cells {
		if c.Column < 1 || c.Column > NumColumns {
			return fmt.Errorf("%w: column %d", ErrCellOutOfRange, c.Column)
		}
	}
	for _, c := range cells {
		for len(s.rows[idx]) < c.Column {
			s.rows[idx] = append(s.rows[idx], "")
		}
		s.rows[idx][c.Column-1] = c.Value
	}
	return nil
}

// Rows returns a copy of the stored data rows
func (s *MemorySource) Rows() [][]string {
	return s.snapshot()
}

// Calls returns how many times op was attempted
func (s *MemorySource) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

func (s *MemorySource) snapshot() [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]string, len(s.rows))
	for i, row := range s.rows {
		out[i] = copyRow(row)
	}
	return out
}

func (s *MemorySource) before(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	fail := s.FailWith
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if fail != nil {
		return fail(op)
	}
	return nil
}

func copyRow(row []string) []string {
	out := make([]string, len(row))
	copy(out, row)
	return out
}
