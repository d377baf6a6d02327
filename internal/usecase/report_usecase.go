package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/domain/entity"
	"clinic-queue/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type ReportUsecase interface {
	DailyStats(ctx context.Context, date string) (*dto.DailyStatsResponse, error)
	ExportDaily(ctx context.Context, date string, w io.Writer) error
}

type reportUsecase struct {
	db         *gorm.DB
	log        *logrus.Logger
	ticketRepo repository.TicketRepository
	turnRepo   repository.TurnRepository
	location   *time.Location
}

func NewReportUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	ticketRepo repository.TicketRepository,
	turnRepo repository.TurnRepository,
	location *time.Location,
) ReportUsecase {
	if location == nil {
		location = time.UTC
	}
	return &reportUsecase{
		db:         db,
		log:        log,
		ticketRepo: ticketRepo,
		turnRepo:   turnRepo,
		location:   location,
	}
}

func (u *reportUsecase) DailyStats(ctx context.Context, date string) (*dto.DailyStatsResponse, error) {
	stats, _, err := u.collect(ctx, date)
	return stats, err
}

func (u *reportUsecase) collect(ctx context.Context, date string) (*dto.DailyStatsResponse, []entity.Ticket, error) {
	day, err := u.parseDay(date)
	if err != nil {
		return nil, nil, err
	}
	from, to := day, day.AddDate(0, 0, 1)
	db := u.db.WithContext(ctx)

	tickets, err := u.ticketRepo.FindCreatedBetween(db, from, to)
	if err != nil {
		u.log.Warnf("Failed to find tickets for report: %+v", err)
		return nil, nil, storeError(err)
	}
	counts, err := u.turnRepo.CountByDoctorBetween(db, from, to)
	if err != nil {
		u.log.Warnf("Failed to count turns for report: %+v", err)
		return nil, nil, storeError(err)
	}

	stats := &dto.DailyStatsResponse{
		Date:    day.Format(dateLayout),
		Tickets: int64(len(tickets)),
		Doctors: []dto.DoctorStatsResponse{},
	}

	perDoctor := map[uuid.UUID]*dto.DoctorStatsResponse{}
	var order []uuid.UUID
	row := func(id uuid.UUID) *dto.DoctorStatsResponse {
		if r, ok := perDoctor[id]; ok {
			return r
		}
		r := &dto.DoctorStatsResponse{DoctorID: id}
		perDoctor[id] = r
		order = append(order, id)
		return r
	}

	for i := range tickets {
		t := &tickets[i]
		r := row(t.DoctorID)
		r.Tickets++
		if t.Doctor != nil {
			r.Doctor = t.Doctor.FullName
		}
		switch t.Status {
		case entity.TicketStatusTrashed:
			stats.Trashed++
		case entity.TicketStatusDeleted:
			stats.Deleted++
		}
	}

	var replaced int64
	for _, c := range counts {
		r := row(c.DoctorID)
		r.Issued = c.Issued
		r.Reissued = c.Replaced
		r.Cancelled = c.Cancelled
		stats.Issued += c.Issued
		replaced += c.Replaced
	}

	for _, id := range order {
		r := perDoctor[id]
		r.ReissueRate = ratio(r.Reissued, r.Issued)
		r.Share = ratio(r.Tickets, stats.Tickets)
		stats.Doctors = append(stats.Doctors, *r)
	}
	stats.ReissueRate = ratio(replaced, stats.Issued)

	return stats, tickets, nil
}

// ExportDaily writes a workbook with a per-doctor summary and the day's tickets
func (u *reportUsecase) ExportDaily(ctx context.Context, date string, w io.Writer) error {
	stats, tickets, err := u.collect(ctx, date)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const summary, patients = "Resumen", "Pacientes"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return err
	}
	if _, err := f.NewSheet(patients); err != nil {
		return err
	}

	summaryRows := [][]interface{}{
		{"Fecha", stats.Date},
		{"Pacientes", stats.Tickets},
		{"Turnos emitidos", stats.Issued},
		{"En papelera", stats.Trashed},
		{"Eliminados", stats.Deleted},
		{"Tasa de reimpresión", stats.ReissueRate.InexactFloat64()},
		{},
		{"Médico", "Pacientes", "Turnos", "Reimpresiones", "Cancelados", "Tasa reimpresión", "Participación"},
	}
	for _, d := range stats.Doctors {
		summaryRows = append(summaryRows, []interface{}{
			d.Doctor, d.Tickets, d.Issued, d.Reissued, d.Cancelled,
			d.ReissueRate.InexactFloat64(), d.Share.InexactFloat64(),
		})
	}
	if err := writeRows(f, summary, summaryRows); err != nil {
		return err
	}

	patientRows := [][]interface{}{{"Código", "Código paciente", "Nombre", "Motivo", "Médico", "Estado", "Registrado"}}
	for _, t := range tickets {
		doctor := ""
		if t.Doctor != nil {
			doctor = t.Doctor.FullName
		}
		patientRows = append(patientRows, []interface{}{
			t.Code, t.PatientCode, t.Name, t.Motive, doctor, string(t.Status),
			t.CreatedAt.In(u.location).Format("15:04:05"),
		})
	}
	if err := writeRows(f, patients, patientRows); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		u.log.Warnf("Failed to write report: %+v", err)
		return err
	}
	return nil
}

func (u *reportUsecase) parseDay(date string) (time.Time, error) {
	if date == "" {
		now := time.Now().In(u.location)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, u.location), nil
	}
	day, err := time.ParseInLocation(dateLayout, date, u.location)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return day, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, values := range rows {
		if len(values) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// ratio returns part/total rounded to four places, zero when total is zero
func ratio(part, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Div(decimal.NewFromInt(total)).Round(4)
}
