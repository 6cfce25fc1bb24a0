package export

import (
	"fmt"
	"io"
	"time"

	"wisefido-exercise/internal/models"

	"github.com/xuri/excelize/v2"
)

// 工作表名称
const (
	SheetSummary = "Summary"
	SheetPulse   = "Pulse"
	SheetSteps   = "Steps"
)

// BuildWorkbook 把会话序列和统计写入工作簿（心率、步频各一张表并附折线图）
func BuildWorkbook(session models.Session, exportedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rename summary sheet: %w", err)
	}
	if err := writeSummarySheet(f, session, exportedAt); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write summary sheet: %w", err)
	}
	if err := writeSeriesSheet(f, SheetPulse, "Heart rate (bpm)", session.PulseSeries); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write pulse sheet: %w", err)
	}
	if err := writeSeriesSheet(f, SheetSteps, "Step rate (spm)", session.StepSeries); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write steps sheet: %w", err)
	}

	f.SetActiveSheet(0)
	return f, nil
}

// WriteWorkbook 构建工作簿并写入 w
func WriteWorkbook(w io.Writer, session models.Session, exportedAt time.Time) error {
	f, err := BuildWorkbook(session, exportedAt)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveWorkbook 构建工作簿并保存到 path
func SaveWorkbook(path string, session models.Session, exportedAt time.Time) error {
	f, err := BuildWorkbook(session, exportedAt)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, session models.Session, exportedAt time.Time) error {
	sheet := SheetSummary

	labelStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"E2EFDA"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	var duration int64
	if last, ok := session.LastPulse(); ok {
		duration = int64(last.Time)
	}

	rows := [][]any{
		{"Session", session.ID},
		{"Date", exportedAt.Format("02.01.2006")},
		{"Duration (s)", duration},
		{"Avg pulse", session.Stats.AvgPulse},
		{"Min pulse", session.Stats.MinPulse},
		{"Max pulse", session.Stats.MaxPulse},
		{"Avg step rate", session.Stats.AvgStepRate},
		{"Total steps", session.Stats.TotalSteps},
		{"Pulse points", len(session.PulseSeries)},
		{"Step points", len(session.StepSeries)},
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, labelStyle); err != nil {
			return err
		}
	}

	return f.SetColWidth(sheet, "A", "B", 20)
}

func writeSeriesSheet(f *excelize.File, sheet, valueHeader string, series []models.TimeSeriesPoint) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"1F4E79"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(sheet, "A1", &[]any{"Time (s)", valueHeader}); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", headerStyle); err != nil {
		return err
	}

	for i, p := range series {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &[]any{p.Time, p.Value}); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "B", 18); err != nil {
		return err
	}

	// 空序列不画图
	if len(series) == 0 {
		return nil
	}
	last := len(series) + 1
	return f.AddChart(sheet, "D2", &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s!$B$1", sheet),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheet, last),
				Values:     fmt.Sprintf("%s!$B$2:$B$%d", sheet, last),
				Line:       excelize.ChartLine{Smooth: true},
			},
		},
		Title:     []excelize.RichTextRun{{Text: valueHeader}},
		Legend:    excelize.ChartLegend{Position: "bottom"},
		Dimension: excelize.ChartDimension{Width: 640, Height: 320},
	})
}
