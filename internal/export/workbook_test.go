package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"wisefido-exercise/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testSession() models.Session {
	return models.Session{
		ID: "s-42",
		PulseSeries: []models.TimeSeriesPoint{
			{Time: 0, Value: 92},
			{Time: 2.5, Value: 101},
			{Time: 725.9, Value: 143},
		},
		StepSeries: []models.TimeSeriesPoint{
			{Time: 1, Value: 120},
		},
		Stats: models.SessionStats{
			AvgPulse:    118,
			MinPulse:    88,
			MaxPulse:    151,
			AvgStepRate: 131,
			TotalSteps:  4210,
		},
	}
}

var exportedAt = time.Date(2026, 3, 7, 18, 30, 0, 0, time.UTC)

func TestSaveWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.xlsx")
	require.NoError(t, SaveWorkbook(path, testSession(), exportedAt))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetPulse, SheetSteps}, f.GetSheetList())

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 10)
	assert.Equal(t, []string{"Session", "s-42"}, summary[0])
	assert.Equal(t, []string{"Date", "07.03.2026"}, summary[1])
	assert.Equal(t, []string{"Duration (s)", "725"}, summary[2])
	assert.Equal(t, []string{"Total steps", "4210"}, summary[7])
	assert.Equal(t, []string{"Pulse points", "3"}, summary[8])

	pulse, err := f.GetRows(SheetPulse)
	require.NoError(t, err)
	require.Len(t, pulse, 4)
	assert.Equal(t, []string{"Time (s)", "Heart rate (bpm)"}, pulse[0])
	assert.Equal(t, []string{"2.5", "101"}, pulse[2])

	steps, err := f.GetRows(SheetSteps)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, []string{"1", "120"}, steps[1])
}

func TestWriteWorkbook_EmptySession(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, models.Session{ID: "empty"}, exportedAt))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetPulse)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	v, err := f.GetCellValue(SheetSummary, "B3")
	require.NoError(t, err)
	assert.Equal(t, "0", v)
}
