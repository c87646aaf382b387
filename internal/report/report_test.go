package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ageniuscoder/shopdesk/backend/internal/chatstatus"
	"github.com/ageniuscoder/shopdesk/backend/internal/models"
)

func TestConversationsSheet(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b, err := Conversations([]models.Conversation{
		{UserID: 7, UserName: "Ana", Phone: "+12015550101", Status: chatstatus.Missed, LastMessageAt: t0},
		{UserID: 8, UserName: "Ben", Status: chatstatus.Done, IsBlocked: true},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, headers, rows[0])
	assert.Equal(t, []string{"7", "Ana", "+12015550101", "missed", "2026-03-01T12:00:00Z"}, rows[1][:5])
	assert.Equal(t, "Ben", rows[2][1])
	assert.Equal(t, "TRUE", rows[2][8])
	assert.Equal(t, []string{SheetName}, f.GetSheetList())
}
