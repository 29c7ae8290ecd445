// Package export renders a batch's job statuses to a downloadable
// spreadsheet, grounded on the teacher's internal/export DataExporter
// (excelize.NewFile, header styling, column widths, auto-filter, frozen
// header row) narrowed from the teacher's video/author catalog export to
// this pipeline's one row shape: one ConversionJob projection per row.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"video-pipeline/internal/pipeline"
)

var columns = []string{
	"Job ID", "Status", "Video URL", "New Video URL", "MP3 URL",
	"Progress", "Keyframe Count", "BPM", "Error",
}

// BatchToXLSX renders batch's jobs to an in-memory XLSX workbook.
func BatchToXLSX(batch *pipeline.BatchStatusResponse) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Batch " + batch.BatchID
	if len(sheetName) > 31 {
		sheetName = sheetName[:31]
	}
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6E6FA"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, col := range columns {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, job := range batch.Jobs {
		row := i + 2
		values := jobToRow(job)
		for j, v := range values {
			cell := fmt.Sprintf("%c%d", 'A'+j, row)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	endCol := string(rune('A' + len(columns) - 1))
	endRange := fmt.Sprintf("%s%d", endCol, len(batch.Jobs)+1)
	if err := f.AutoFilter(sheetName, "A1:"+endRange, []excelize.AutoFilterOptions{}); err != nil {
		return nil, fmt.Errorf("set auto-filter: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, Split: false, XSplit: 0, YSplit: 1}); err != nil {
		return nil, fmt.Errorf("freeze header row: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func jobToRow(job pipeline.JobStatusResponse) []interface{} {
	bpm := ""
	if job.AudioAnalysis != nil {
		bpm = fmt.Sprintf("%.1f", job.AudioAnalysis.BPM)
	}
	return []interface{}{
		job.JobID,
		string(job.Status),
		job.VideoURL,
		job.NewVideoURL,
		job.Mp3URL,
		fmt.Sprintf("%d%%", job.Progress),
		len(job.Keyframes),
		bpm,
		job.ErrorMessage,
	}
}
