package teams

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"

	"github.com/hackquest/hackquest/pkg/logging"
)

// DefaultSheetName is the worksheet holding team rows
const DefaultSheetName = "Teams"

// FileSource implements RowStore on a local XLSX workbook. The workbook is
// read on every call and written back atomically (temp file + rename), so
// the file can be opened in a spreadsheet application between runs.
type FileSource struct {
	fs    afero.Fs
	path  string
	sheet string

	mu sync.Mutex
}

// NewFileSource creates a FileSource. An empty sheet selects DefaultSheetName.
func NewFileSource(fs afero.Fs, path, sheet string) *FileSource {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &FileSource{fs: fs, path: path, sheet: sheet}
}

// ListRows implements RowStore
func (s *FileSource) ListRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wb, err := s.open()
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	rows, err := wb.GetRows(s.sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", s.sheet, err)
	}
	if len(rows) <= HeaderRows {
		return [][]string{}, nil
	}

	out := make([][]string, 0, len(rows)-HeaderRows)
	for _, row := range rows[HeaderRows:] {
		// GetRows drops trailing empty cells
		padded := make([]string, NumColumns)
		copy(padded, row)
		out = append(out, padded)
	}
	return out, nil
}

// AppendRow implements RowStore
func (s *FileSource) AppendRow(ctx context.Context, values []string) error {
	return s.mutate(ctx, func(wb *excelize.File) error {
		rows, err := wb.GetRows(s.sheet)
		if err != nil {
			return fmt.Errorf("reading sheet %q: %w", s.sheet, err)
		}
		next := len(rows) + 1
		if next <= HeaderRows {
			next = HeaderRows + 1
		}
		return setRow(wb, s.sheet, next, values)
	})
}

// UpdateCell implements RowStore
func (s *FileSource) UpdateCell(ctx context.Context, row, col int, value string) error {
	return s.UpdateCells(ctx, row, []Cell{{Column: col, Value: value}})
}

// UpdateCells implements CellBatcher; all cells land in a single write
func (s *FileSource) UpdateCells(ctx context.Context, row int, cells []Cell) error {
	return s.mutate(ctx, func(wb *excelize.File) error {
		rows, err := wb.GetRows(s.sheet)
		if err != nil {
			return fmt.Errorf("reading sheet %q: %w", s.sheet, err)
		}
		if row <= HeaderRows || row > len(rows) {
			return fmt.Errorf("%w: row %d", ErrCellOutOfRange, row)
		}
		for _, c := range cells {
			if c.Column < 1 || c.Column > NumColumns {
				return fmt.Errorf("%w: column %d", ErrCellOutOfRange, c.Column)
			}
			name, err := excelize.CoordinatesToCellName(c.Column, row)
			if err != nil {
				return err
			}
			if err := wb.SetCellStr(s.sheet, name, c.Value); err != nil {
				return fmt.Errorf("writing cell %s: %w", name, err)
			}
		}
		return nil
	})
}

func (s *FileSource) mutate(ctx context.Context, fn func(wb *excelize.File) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wb, err := s.open()
	if err != nil {
		return err
	}
	defer wb.Close()

	if err := fn(wb); err != nil {
		return err
	}
	return s.save(wb)
}

// open loads the workbook, creating it with a header row when absent
func (s *FileSource) open() (*excelize.File, error) {
	f, err := s.fs.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		logging.App.Info("Creating team workbook", "path", s.path, "sheet", s.sheet)
		return s.newWorkbook()
	}
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	wb, err := excelize.OpenReader(f)
	if err != nil {
		return nil, fmt.Errorf("parsing workbook: %w", err)
	}

	idx, err := wb.GetSheetIndex(s.sheet)
	if err != nil {
		wb.Close()
		return nil, fmt.Errorf("looking up sheet %q: %w", s.sheet, err)
	}
	if idx == -1 {
		if _, err := wb.NewSheet(s.sheet); err != nil {
			wb.Close()
			return nil, fmt.Errorf("adding sheet %q: %w", s.sheet, err)
		}
		if err := setRow(wb, s.sheet, 1, Header); err != nil {
			wb.Close()
			return nil, err
		}
	}
	return wb, nil
}

func (s *FileSource) newWorkbook() (*excelize.File, error) {
	wb := excelize.NewFile()
	if s.sheet != "Sheet1" {
		if err := wb.SetSheetName("Sheet1", s.sheet); err != nil {
			wb.Close()
			return nil, fmt.Errorf("naming sheet: %w", err)
		}
	}
	if err := setRow(wb, s.sheet, 1, Header); err != nil {
		wb.Close()
		return nil, err
	}
	return wb, nil
}

// save writes to a temp file and renames it over the workbook so readers
// never see a partial file
func (s *FileSource) save(wb *excelize.File) error {
	tmpPath := s.path + ".tmp"

	out, err := s.fs.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp workbook: %w", err)
	}
	if err := wb.Write(out); err != nil {
		out.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("writing workbook: %w", err)
	}
	if err := out.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("closing temp workbook: %w", err)
	}
	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("replacing workbook: %w", err)
	}
	return nil
}

func setRow(wb *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := wb.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("writing row %d: %w", row, err)
	}
	return nil
}
