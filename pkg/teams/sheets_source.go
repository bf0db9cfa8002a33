package teams

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/hackquest/hackquest/pkg/logging"
)

// DefaultRequestsPerMinute keeps a single process under the Sheets
// per-user read/write quota
const DefaultRequestsPerMinute = 60

// SheetsConfig configures a SheetsSource
type SheetsConfig struct {
	SpreadsheetID     string
	SheetName         string
	CredentialsFile   string // service account JSON key
	RequestsPerMinute int
	// ClientOptions are appended after the credentials option, tests use
	// them to point the client at a local server
	ClientOptions []option.ClientOption
}

// SheetsSource implements RowStore on a Google Sheets worksheet. Values are
// written RAW so artifact text is never interpreted as a formula.
type SheetsSource struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	sheet         string
	limiter       *rate.Limiter
}

// NewSheetsSource authenticates with the service account in
// config.CredentialsFile and returns a SheetsSource
func NewSheetsSource(ctx context.Context, config SheetsConfig) (*SheetsSource, error) {
	if config.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		data, err := os.ReadFile(config.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parsing credentials file: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	opts = append(opts, config.ClientOptions...)

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets client: %w", err)
	}

	rpm := config.RequestsPerMinute
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	sheet := config.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}

	logging.App.Info("Connected to Google Sheets", "spreadsheet", config.SpreadsheetID, "sheet", sheet, "requests_per_minute", rpm)
	return &SheetsSource{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: config.SpreadsheetID,
		sheet:         sheet,
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
	}, nil
}

// ListRows implements RowStore
func (s *SheetsSource) ListRows(ctx context.Context) ([][]string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	rng := fmt.Sprintf("%s!A%d:%s", s.quotedSheet(), HeaderRows+1, columnLetter(NumColumns))
	resp, err := s.values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rng, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, NumColumns)
		for i := 0; i < len(raw) && i < NumColumns; i++ {
			if raw[i] != nil {
				row[i] = fmt.Sprint(raw[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AppendRow implements RowStore
func (s *SheetsSource) AppendRow(ctx context.Context, values []string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!A1", s.quotedSheet())
	vr := &sheets.ValueRange{Values: [][]interface{}{toInterfaces(values)}}
	_, err := s.values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("appending row: %w", err)
	}
	return nil
}

// UpdateCell implements RowStore
func (s *SheetsSource) UpdateCell(ctx context.Context, row, col int, value string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	rng, err := s.cellRange(row, col)
	if err != nil {
		return err
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{{value}}}
	if _, err := s.values.Update(s.spreadsheetID, rng, vr).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("updating %s: %w", rng, err)
	}
	return nil
}

// UpdateCells implements CellBatcher with a single batchUpdate request
func (s *SheetsSource) UpdateCells(ctx context.Context, row int, cells []Cell) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: "RAW"}
	for _, c := range cells {
		rng, err := s.cellRange(row, c.Column)
		if err != nil {
			return err
		}
		req.Data = append(req.Data, &sheets.ValueRange{
			Range:  rng,
			Values: [][]interface{}{{c.Value}},
		})
	}
	if _, err := s.values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("updating row %d: %w", row, err)
	}
	return nil
}

func (s *SheetsSource) cellRange(row, col int) (string, error) {
	if row <= HeaderRows || col < 1 || col > NumColumns {
		return "", fmt.Errorf("%w: row %d col %d", ErrCellOutOfRange, row, col)
	}
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	return s.quotedSheet() + "!" + name, nil
}

// quotedSheet quotes the sheet name for A1 notation when it is not a bare word
func (s *SheetsSource) quotedSheet() string {
	for _, r := range s.sheet {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "'" + strings.ReplaceAll(s.sheet, "'", "''") + "'"
		}
	}
	return s.sheet
}

func columnLetter(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return name
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
