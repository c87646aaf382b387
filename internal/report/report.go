// Package report renders the admin conversation board as a spreadsheet.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

const SheetName = "Conversations"

var headers = []string{"User ID", "Name", "Phone", "Status", "Last message", "Admin last read", "Online", "Last online", "Blocked"}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Conversations writes one row per conversation and returns the xlsx bytes.
func Conversations(list []models.Conversation) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(SheetName, cell, header)
	}

	for i, c := range list {
		row := []any{
			c.UserID, c.UserName, c.Phone, string(c.Status),
			stamp(c.LastMessageAt), stamp(c.AdminLastReadAt),
			c.IsOnline, stamp(c.LastOnlineAt), c.IsBlocked,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
