package districts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	sheetName       = "Audit"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportPrefix    = "exports/districts"
)

var exportHeader = []string{
	"Venue ID", "Name", "Address", "Old District", "New District", "Rule", "Changed", "Outside City",
}

var columnWidths = []float64{38, 30, 45, 18, 18, 16, 10, 14}

// ObjectStore stores export files.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignDownload(ctx context.Context, key string) (string, error)
}

// Export is a written audit spreadsheet.
type Export struct {
	Key  string `json:"key"`
	URL  string `json:"url,omitempty"`
	Size int    `json:"size"`
}

// Exporter renders audits as XLSX and optionally uploads them.
type Exporter struct {
	store  ObjectStore
	now    func() time.Time
	logger *zap.Logger
}

// NewExporter creates an exporter. A nil store disables uploading.
func NewExporter(store ObjectStore, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, now: time.Now, logger: logger}
}

// Upload renders the report and stores it under exports/districts.
func (e *Exporter) Upload(ctx context.Context, report *Report) (*Export, error) {
	if e.store == nil {
		return nil, fmt.Errorf("export storage is not configured")
	}
	data, err := RenderXLSX(report)
	if err != nil {
		return nil, err
	}
	key := path.Join(exportPrefix, "audit-"+e.now().UTC().Format("20060102T150405Z")+".xlsx")
	if err := e.store.Upload(ctx, key, xlsxContentType, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("upload audit export: %w", err)
	}
	url, err := e.store.PresignDownload(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("presign audit export: %w", err)
	}
	e.logger.Info("district audit exported", zap.String("key", key), zap.Int("bytes", len(data)))
	return &Export{Key: key, URL: url, Size: len(data)}, nil
}

// RenderXLSX writes the audit as a single-sheet workbook.
func RenderXLSX(report *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeader), 1)
	if err := f.SetCellStyle(sheetName, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	for i, w := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, w); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	for i, entry := range report.Entries {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			entry.VenueID.String(),
			entry.Name,
			entry.Address,
			str(entry.OldDistrict),
			str(entry.NewDistrict),
			string(entry.Rule),
			yesNo(entry.Changed),
			yesNo(entry.OutsideCity),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
