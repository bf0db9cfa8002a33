package teams

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hackquest/hackquest/pkg/quests"
)

// Column positions, 1-based, of the team sheet
const (
	ColTeamName = iota + 1
	ColPINHash
	ColStage
	ColXP
	ColIdea
	ColRoles
	ColRepoLink
	ColPitchLink
	ColTimestamp

	NumColumns = ColTimestamp
)

// HeaderRows is the number of header rows above the first record. Record N
// (1-based) lives on sheet row N+HeaderRows.
const HeaderRows = 1

// Header is the header row written to new sheets
var Header = []string{
	"Team_Name", "PIN_Hash", "Stage", "XP",
	"Idea_Text", "Roles_Text", "GitHub_Link", "Pitch_Link",
	"Timestamp",
}

// TimestampLayout is ISO-8601 in UTC with microseconds and a Z suffix
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTimestamp renders t the way the Timestamp column stores it
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Record is one team row
type Record struct {
	TeamName  string
	PINHash   string
	Stage     int
	XP        int
	Idea      string
	Roles     string
	RepoLink  string
	PitchLink string
	UpdatedAt string
}

// Artifact returns the value stored for field
func (r *Record) Artifact(field quests.ArtifactField) string {
	switch field {
	case quests.FieldIdea:
		return r.Idea
	case quests.FieldRoles:
		return r.Roles
	case quests.FieldRepoLink:
		return r.RepoLink
	case quests.FieldPitchLink:
		return r.PitchLink
	}
	return ""
}

// ArtifactColumn maps an artifact field to its sheet column
func ArtifactColumn(field quests.ArtifactField) (int, bool) {
	switch field {
	case quests.FieldIdea:
		return ColIdea, true
	case quests.FieldRoles:
		return ColRoles, true
	case quests.FieldRepoLink:
		return ColRepoLink, true
	case quests.FieldPitchLink:
		return ColPitchLink, true
	}
	return 0, false
}

// QuestUpdate carries the cells written when a quest is completed
type QuestUpdate struct {
	TeamName  string
	Stage     int
	XP        int
	Field     quests.ArtifactField
	Value     string
	Timestamp string
}

// RowStore is the remote spreadsheet the team store sits on.
// Rows and columns are 1-based; row numbers include the header rows.
type RowStore interface {
	// ListRows returns every data row below the header, in sheet order
	ListRows(ctx context.Context) ([][]string, error)
	// AppendRow adds a row after the last data row
	AppendRow(ctx context.Context, values []string) error
	// UpdateCell overwrites one cell
	UpdateCell(ctx context.Context, row, col int, value string) error
}

// Cell is a single column value within a row
type Cell struct {
	Column int
	Value  string
}

// CellBatcher is implemented by row stores that can write several cells of a
// row in one request. The store prefers it over repeated UpdateCell calls.
type CellBatcher interface {
	UpdateCells(ctx context.Context, row int, cells []Cell) error
}

// newRow builds the cell values for a freshly created team
func newRow(r *Record) []string {
	return []string{
		r.TeamName,
		r.PINHash,
		strconv.Itoa(r.Stage),
		strconv.Itoa(r.XP),
		r.Idea,
		r.Roles,
		r.RepoLink,
		r.PitchLink,
		r.UpdatedAt,
	}
}

// parseRow decodes a data row. Missing trailing cells read as empty.
func parseRow(row []string) (*Record, error) {
	cell := func(col int) string {
		if col-1 < len(row) {
			return row[col-1]
		}
		return ""
	}

	stage, err := parseInt(cell(ColStage), quests.FirstStage)
	if err != nil {
		return nil, fmt.Errorf("%w: stage: %v", ErrMalformedRow, err)
	}
	xp, err := parseInt(cell(ColXP), 0)
	if err != nil {
		return nil, fmt.Errorf("%w: xp: %v", ErrMalformedRow, err)
	}

	return &Record{
		TeamName:  cell(ColTeamName),
		PINHash:   cell(ColPINHash),
		Stage:     stage,
		XP:        xp,
		Idea:      cell(ColIdea),
		Roles:     cell(ColRoles),
		RepoLink:  cell(ColRepoLink),
		PitchLink: cell(ColPitchLink),
		UpdatedAt: cell(ColTimestamp),
	}, nil
}

func parseInt(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
