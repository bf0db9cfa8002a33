package teams

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hackquest/hackquest/pkg/quests"
	"github.com/hackquest/hackquest/pkg/retry"
)

func TestFileSource(t *testing.T) {
	ctx := context.Background()

	t.Run("missing workbook reads as empty", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		src := NewFileSource(fs, "/data/teams.xlsx", "")

		rows, err := src.ListRows(ctx)
		require.NoError(t, err)
		assert.Empty(t, rows)

		exists, err := afero.Exists(fs, "/data/teams.xlsx")
		require.NoError(t, err)
		assert.False(t, exists, "reads must not create the file")
	})

	t.Run("append creates workbook with header", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		src := NewFileSource(fs, "/teams.xlsx", "")

		require.NoError(t, src.AppendRow(ctx, []string{"alpha", "h", "1", "0"}))
		require.NoError(t, src.AppendRow(ctx, []string{"beta", "h2", "1", "0"}))

		f, err := fs.Open("/teams.xlsx")
		require.NoError(t, err)
		defer f.Close()
		wb, err := excelize.OpenReader(f)
		require.NoError(t, err)
		defer wb.Close()

		raw, err := wb.GetRows(DefaultSheetName)
		require.NoError(t, err)
		require.Len(t, raw, 3)
		assert.Equal(t, Header, raw[0])
		assert.Equal(t, "beta", raw[2][0])

		exists, _ := afero.Exists(fs, "/teams.xlsx.tmp")
		assert.False(t, exists)
	})

	t.Run("rows are padded", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		src := NewFileSource(fs, "/teams.xlsx", "Roster")
		require.NoError(t, src.AppendRow(ctx, []string{"alpha", "h"}))

		rows, err := src.ListRows(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Len(t, rows[0], NumColumns)
		assert.Equal(t, "alpha", rows[0][0])
	})

	t.Run("update cells", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		src := NewFileSource(fs, "/teams.xlsx", "")
		require.NoError(t, src.AppendRow(ctx, []string{"alpha", "h", "1", "0", "", "", "", "", ""}))
		require.NoError(t, src.AppendRow(ctx, []string{"beta", "h", "1", "0", "", "", "", "", ""}))

		require.NoError(t, src.UpdateCells(ctx, 3, []Cell{
			{Column: ColStage, Value: "2"},
			{Column: ColIdea, Value: "=SUM(A1:A2)"},
		}))

		rows, err := src.ListRows(ctx)
		require.NoError(t, err)
		assert.Equal(t, "1", rows[0][ColStage-1])
		assert.Equal(t, "2", rows[1][ColStage-1])
		assert.Equal(t, "=SUM(A1:A2)", rows[1][ColIdea-1])
	})

	t.Run("update out of range", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		src := NewFileSource(fs, "/teams.xlsx", "")
		require.NoError(t, src.AppendRow(ctx, []string{"alpha"}))

		assert.ErrorIs(t, src.UpdateCell(ctx, 1, 1, "x"), ErrCellOutOfRange)
		assert.ErrorIs(t, src.UpdateCell(ctx, 5, 1, "x"), ErrCellOutOfRange)
		assert.ErrorIs(t, src.UpdateCell(ctx, 2, NumColumns+1, "x"), ErrCellOutOfRange)
	})

	t.Run("missing sheet is added", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, NewFileSource(fs, "/teams.xlsx", "Other").AppendRow(ctx, []string{"x"}))

		src := NewFileSource(fs, "/teams.xlsx", "")
		require.NoError(t, src.AppendRow(ctx, []string{"alpha"}))

		rows, err := src.ListRows(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "alpha", rows[0][0])
	})

	t.Run("store round trip", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		exec := retry.NewExecutor(retry.Config{}).WithSleeper(noSleep)
		store, err := NewStore(NewFileSource(fs, "/teams.xlsx", ""), exec)
		require.NoError(t, err)

		_, err = store.Create(ctx, "alpha", "hash-a")
		require.NoError(t, err)
		_, err = store.Create(ctx, "beta", "hash-b")
		require.NoError(t, err)

		ok, err := store.UpdateQuest(ctx, QuestUpdate{
			TeamName:  "beta",
			Stage:     2,
			XP:        100,
			Field:     quests.FieldIdea,
			Value:     "AI tutor",
			Timestamp: "2024-05-04T10:30:00.000000Z",
		})
		require.NoError(t, err)
		require.True(t, ok)

		alpha, err := store.Fetch(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, 1, alpha.Stage)
		assert.Empty(t, alpha.Idea)

		beta, err := store.Fetch(ctx, "beta")
		require.NoError(t, err)
		assert.Equal(t, 2, beta.Stage)
		assert.Equal(t, 100, beta.XP)
		assert.Equal(t, "AI tutor", beta.Idea)
		assert.Equal(t, "hash-b", beta.PINHash)
	})
}
