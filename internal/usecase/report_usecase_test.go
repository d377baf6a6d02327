package usecase

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newReportFixture(t *testing.T) (*ticketFixture, ReportUsecase) {
	t.Helper()
	f := newTicketFixture(t)
	f.register(t, "Juan Pérez")
	f.register(t, "María López")
	f.register(t, "Juan Pérez")
	return f, NewReportUsecase(f.db, f.log, f.tickets, f.turns, time.UTC)
}

func TestDailyStats(t *testing.T) {
	f, uc := newReportFixture(t)

	stats, err := uc.DailyStats(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), stats.Date)
	assert.Equal(t, int64(2), stats.Tickets)
	assert.Equal(t, int64(3), stats.Issued)
	assert.True(t, decimal.RequireFromString("0.3333").Equal(stats.ReissueRate), stats.ReissueRate.String())

	require.Len(t, stats.Doctors, 1)
	row := stats.Doctors[0]
	assert.Equal(t, f.doctor.ID, row.DoctorID)
	assert.Equal(t, "Ana Pérez", row.Doctor)
	assert.Equal(t, int64(1), row.Reissued)
	assert.True(t, decimal.NewFromInt(1).Equal(row.Share))
}

func TestDailyStatsForQuietDay(t *testing.T) {
	_, uc := newReportFixture(t)

	stats, err := uc.DailyStats(context.Background(), "2020-01-01")
	require.NoError(t, err)
	assert.Zero(t, stats.Tickets)
	assert.Empty(t, stats.Doctors)
	assert.True(t, stats.ReissueRate.IsZero())
}

func TestDailyStatsRejectsBadDate(t *testing.T) {
	_, uc := newReportFixture(t)

	_, err := uc.DailyStats(context.Background(), "14/10/2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestExportDailyWritesWorkbook(t *testing.T) {
	_, uc := newReportFixture(t)

	var buf bytes.Buffer
	require.NoError(t, uc.ExportDaily(context.Background(), "", &buf))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	assert.Equal(t, []string{"Resumen", "Pacientes"}, book.GetSheetList())

	total, err := book.GetCellValue("Resumen", "B2")
	require.NoError(t, err)
	assert.Equal(t, "2", total)

	rows, err := book.GetRows("Pacientes")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Código", rows[0][0])
	assert.Equal(t, "Juan Pérez", rows[1][2])
	assert.Equal(t, "A-C-003", rows[1][0])
}
