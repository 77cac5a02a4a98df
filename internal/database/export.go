package database

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

var exportHeaders = []string{
	"Token", "Service", "Status", "Position", "Waiting (min)", "Service (min)",
	"Joined At", "Started At", "Completed At", "No-Show",
}

// ExportQueueXLSX writes the full queue history as an Excel workbook, one
// row per entry in FIFO order.
func (db *DB) ExportQueueXLSX(ctx context.Context, w io.Writer) error {
	entries, err := db.ListQueue(ctx)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Queue"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	formatTime := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format(time.RFC3339)
	}

	for i, entry := range entries {
		values := []any{
			entry.Token,
			entry.Service,
			entry.Status,
			entry.PositionInQueue,
			entry.WaitingTimeMinutes,
			entry.ServiceTimeMinutes,
			entry.JoinedAt.Format(time.RFC3339),
			formatTime(entry.StartedAt),
			formatTime(entry.CompletedAt),
			entry.NoShow,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", i+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
