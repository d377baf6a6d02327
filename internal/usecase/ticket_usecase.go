package usecase

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"clinic-queue/config"
	"clinic-queue/internal/converter"
	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/delivery/http/middleware"
	"clinic-queue/internal/domain/entity"
	"clinic-queue/internal/domain/repository"
	"clinic-queue/internal/realtime"
	"clinic-queue/internal/service"
	"clinic-queue/pkg/ticketpdf"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// maxCodeAttempts bounds retries after a turn code collides with one already stored
const maxCodeAttempts = 3

type TicketUsecase interface {
	RegisterTicket(ctx context.Context, req *dto.RegisterTicketRequest) (*dto.RegisterTicketResponse, error)
	ListActiveByDoctor(ctx context.Context) (*dto.BoardResponse, error)
	FindByCode(ctx context.Context, code string) (*dto.TicketResponse, error)
	GetTicket(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error)
	PermanentlyDelete(ctx context.Context, id uuid.UUID) (*dto.DeleteTicketResponse, error)
	RenderSlip(ctx context.Context, id uuid.UUID, w io.Writer) error
	PurgeExpiredTombstones(ctx context.Context) (int64, error)
}

type ticketUsecase struct {
	db         *gorm.DB
	log        *logrus.Logger
	ticketRepo repository.TicketRepository
	turnRepo   repository.TurnRepository
	doctorRepo repository.DoctorRepository
	codes      *service.CodeGenerator
	locker     service.DoctorLocker
	audit      service.AuditService
	events     service.EventPublisher
	motives    map[string]bool
	history    int
	retention  time.Duration
	clinicName string
}

func NewTicketUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	ticketRepo repository.TicketRepository,
	turnRepo repository.TurnRepository,
	doctorRepo repository.DoctorRepository,
	codes *service.CodeGenerator,
	locker service.DoctorLocker,
	audit service.AuditService,
	events service.EventPublisher,
	cfg config.QueueConfig,
	clinicName string,
) TicketUsecase {
	motives := make(map[string]bool, len(cfg.Motives))
	for _, m := range cfg.Motives {
		motives[strings.ToLower(m)] = true
	}
	return &ticketUsecase{
		db:         db,
		log:        log,
		ticketRepo: ticketRepo,
		turnRepo:   turnRepo,
		doctorRepo: doctorRepo,
		codes:      codes,
		locker:     locker,
		audit:      audit,
		events:     events,
		motives:    motives,
		history:    cfg.HistoryLimit,
		retention:  cfg.TombstoneRetention,
		clinicName: clinicName,
	}
}

// RegisterTicket issues a new code for the patient. A patient who already holds an open
// ticket with the doctor gets a replacement code on the same ticket.
func (u *ticketUsecase) RegisterTicket(ctx context.Context, req *dto.RegisterTicketRequest) (*dto.RegisterTicketResponse, error) {
	doctorID, ok := req.Doctor()
	if !ok {
		return nil, ErrDoctorRequired
	}

	name := entity.CleanName(req.FullName())
	if n := utf8.RuneCountInString(name); n < 2 || n > 120 {
		return nil, ErrInvalidName
	}
	motive := strings.ToLower(strings.TrimSpace(req.Motive))
	if !u.motives[motive] {
		return nil, ErrInvalidMotive
	}
	document := strings.TrimSpace(req.Document)

	doctor, err := u.doctorRepo.FindByID(u.db.WithContext(ctx), doctorID)
	if err != nil {
		u.log.Warnf("Failed to find doctor by ID: %+v", err)
		return nil, storeError(err)
	}
	if doctor == nil || !doctor.IsActive {
		return nil, ErrDoctorNotFound
	}

	var ticket *entity.Ticket
	var kind string
	err = u.locker.WithDoctorLock(ctx, doctor.ID, func(ctx context.Context) error {
		for attempt := 1; ; attempt++ {
			var regErr error
			ticket, kind, regErr = u.registerOnce(ctx, doctor, name, motive, document)
			if regErr == nil || !isCodeCollision(regErr) || attempt >= maxCodeAttempts {
				return regErr
			}
			u.log.Warnf("Turn code collision for doctor %s, retrying (%d/%d)", doctor.ID, attempt, maxCodeAttempts)
			if err := u.codes.Resync(ctx, doctor.ID); err != nil {
				return storeError(err)
			}
		}
	})
	if err != nil {
		if isCodeCollision(err) {
			return nil, ErrCodeExhausted
		}
		return nil, err
	}

	event := realtime.NewTicketEvent(realtime.EventNewCode, ticket)
	event.Type = kind
	u.events.Publish(ctx, event)

	return &dto.RegisterTicketResponse{
		Type:         kind,
		Code:         ticket.Code,
		PreviousCode: ticket.PreviousCode,
		Patient:      converter.TicketToPatientResponse(ticket),
	}, nil
}

func (u *ticketUsecase) registerOnce(ctx context.Context, doctor *entity.Doctor, name, motive, document string) (*entity.Ticket, string, error) {
	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback()

	identity := entity.IdentityKey(name, document)
	existing, err := u.ticketRepo.FindOpenByIdentity(tx, doctor.ID, identity)
	if err != nil {
		u.log.Warnf("Failed to find open ticket: %+v", err)
		return nil, "", storeError(err)
	}

	seq, err := u.codes.Next(ctx, doctor.ID)
	if err != nil {
		return nil, "", err
	}
	code := u.codes.Format(doctor.CodePrefix, seq)
	actor := middleware.ActorFromContext(ctx)

	var ticket *entity.Ticket
	var before interface{}
	kind := entity.RegistrationNew
	action := entity.AuditActionTicketRegister

	if existing == nil {
		ticket = &entity.Ticket{
			ID:           uuid.New(),
			Name:         name,
			IdentityKey:  identity,
			Document:     document,
			Motive:       motive,
			DoctorID:     doctor.ID,
			Code:         code,
			PatientCode:  code,
			CodeSeq:      seq,
			Status:       entity.TicketStatusActive,
			Version:      1,
			RegisteredBy: actor,
		}
		if err := u.ticketRepo.Create(tx, ticket); err != nil {
			if isDuplicateKeyError(err, "open_identity") {
				return nil, "", ErrDuplicateOpen
			}
			u.log.Warnf("Failed to create ticket: %+v", err)
			return nil, "", storeError(err)
		}
	} else {
		kind = entity.RegistrationReissue
		action = entity.AuditActionTicketReissue
		before = ticketSnapshot(existing)

		if err := u.turnRepo.MarkPending(tx, existing.ID, entity.TurnStatusReplaced); err != nil {
			u.log.Warnf("Failed to mark replaced turn: %+v", err)
			return nil, "", storeError(err)
		}

		previous := existing.Code
		existing.PreviousCode = &previous
		existing.Code = code
		existing.CodeSeq = seq
		existing.Name = name
		existing.Motive = motive
		existing.Version++
		if existing.IsTrashed() {
			existing.Status = entity.TicketStatusActive
			existing.TrashedAt = nil
			existing.TrashedBy = nil
		}
		if err := u.ticketRepo.Save(tx, existing); err != nil {
			u.log.Warnf("Failed to update ticket: %+v", err)
			return nil, "", storeError(err)
		}
		ticket = existing
	}

	turn := &entity.Turn{
		TicketID: ticket.ID,
		DoctorID: doctor.ID,
		Code:     code,
		Seq:      seq,
		Status:   entity.TurnStatusPending,
	}
	if err := u.turnRepo.Create(tx, turn); err != nil {
		u.log.Warnf("Failed to create turn: %+v", err)
		return nil, "", storeError(err)
	}

	if kind == entity.RegistrationReissue && u.history > 0 {
		if _, err := u.turnRepo.PruneHistory(tx, ticket.ID, u.history); err != nil {
			u.log.Warnf("Failed to prune turn history: %+v", err)
			return nil, "", storeError(err)
		}
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  actor,
		Action:   action,
		Entity:   "ticket",
		EntityID: ticket.ID.String(),
		Before:   before,
		After:    ticketSnapshot(ticket),
	}); err != nil {
		return nil, "", err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, "", storeError(err)
	}

	ticket.Doctor = doctor
	return ticket, kind, nil
}

// ListActiveByDoctor groups active tickets under every active doctor, plus inactive
// doctors that still hold tickets.
func (u *ticketUsecase) ListActiveByDoctor(ctx context.Context) (*dto.BoardResponse, error) {
	db := u.db.WithContext(ctx)

	doctors, err := u.doctorRepo.FindAll(db, true)
	if err != nil {
		u.log.Warnf("Failed to find doctors: %+v", err)
		return nil, storeError(err)
	}
	tickets, err := u.ticketRepo.FindByStatus(db, entity.TicketStatusActive)
	if err != nil {
		u.log.Warnf("Failed to find active tickets: %+v", err)
		return nil, storeError(err)
	}

	board := &dto.BoardResponse{
		Doctors:     make([]dto.BoardDoctorResponse, 0, len(doctors)),
		GeneratedAt: time.Now().UTC(),
	}
	index := make(map[uuid.UUID]int, len(doctors))
	addDoctor := func(d *entity.Doctor) int {
		index[d.ID] = len(board.Doctors)
		board.Doctors = append(board.Doctors, dto.BoardDoctorResponse{
			ID:       d.ID,
			FullName: d.FullName,
			Initial:  d.Initial,
			Type:     string(d.Type),
			Status:   string(d.Status),
			Patients: []dto.BoardPatientResponse{},
		})
		return index[d.ID]
	}
	for i := range doctors {
		addDoctor(&doctors[i])
	}

	for i := range tickets {
		t := &tickets[i]
		pos, ok := index[t.DoctorID]
		if !ok {
			doctor := t.Doctor
			if doctor == nil {
				doctor = &entity.Doctor{ID: t.DoctorID}
			}
			pos = addDoctor(doctor)
		}
		board.Doctors[pos].Patients = append(board.Doctors[pos].Patients, converter.TicketToBoardPatient(t))
	}

	return board, nil
}

func (u *ticketUsecase) FindByCode(ctx context.Context, code string) (*dto.TicketResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrTicketNotFound
	}

	db := u.db.WithContext(ctx)
	ticket, err := u.ticketRepo.FindOpenByCode(db, code)
	if err != nil {
		u.log.Warnf("Failed to find ticket by code: %+v", err)
		return nil, storeError(err)
	}
	if ticket == nil {
		return nil, ErrTicketNotFound
	}
	return u.withHistory(db, ticket)
}

func (u *ticketUsecase) GetTicket(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error) {
	db := u.db.WithContext(ctx)
	ticket, err := u.ticketRepo.FindByID(db, id)
	if err != nil {
		u.log.Warnf("Failed to find ticket by ID: %+v", err)
		return nil, storeError(err)
	}
	if ticket == nil || ticket.IsDeleted() {
		return nil, ErrTicketNotFound
	}
	return u.withHistory(db, ticket)
}

func (u *ticketUsecase) withHistory(db *gorm.DB, ticket *entity.Ticket) (*dto.TicketResponse, error) {
	turns, err := u.turnRepo.FindByTicket(db, ticket.ID)
	if err != nil {
		u.log.Warnf("Failed to find turn history: %+v", err)
		return nil, storeError(err)
	}
	return converter.TicketToResponse(ticket, turns), nil
}

// PermanentlyDelete tombstones the ticket and cancels its pending turn.
// Absent or already deleted tickets report deleted=false.
func (u *ticketUsecase) PermanentlyDelete(ctx context.Context, id uuid.UUID) (*dto.DeleteTicketResponse, error) {
	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	actor := middleware.ActorFromContext(ctx)
	ticket, err := u.ticketRepo.FindByIDForUpdate(tx, id)
	if err != nil {
		u.log.Warnf("Failed to find ticket by ID: %+v", err)
		return nil, storeError(err)
	}

	if ticket == nil || ticket.IsDeleted() {
		if err := u.audit.Record(tx, service.AuditEntry{
			ActorID:  actor,
			Action:   entity.AuditActionTicketDeleteNoop,
			Entity:   "ticket",
			EntityID: id.String(),
		}); err != nil {
			return nil, err
		}
		if err := tx.Commit().Error; err != nil {
			u.log.Warnf("Failed commit transaction: %+v", err)
			return nil, storeError(err)
		}
		return &dto.DeleteTicketResponse{ID: id, Deleted: false}, nil
	}

	before := ticketSnapshot(ticket)
	now := time.Now().UTC()
	ticket.Status = entity.TicketStatusDeleted
	ticket.DeletedAt = &now
	ticket.Version++

	if err := u.ticketRepo.Save(tx, ticket); err != nil {
		u.log.Warnf("Failed to delete ticket: %+v", err)
		return nil, storeError(err)
	}
	if err := u.turnRepo.MarkPending(tx, ticket.ID, entity.TurnStatusCancelled); err != nil {
		u.log.Warnf("Failed to cancel pending turn: %+v", err)
		return nil, storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  actor,
		Action:   entity.AuditActionTicketDelete,
		Entity:   "ticket",
		EntityID: ticket.ID.String(),
		Before:   before,
		After:    ticketSnapshot(ticket),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, storeError(err)
	}

	u.events.Publish(ctx, realtime.NewTicketEvent(realtime.EventDeleted, ticket))
	return &dto.DeleteTicketResponse{ID: id, Deleted: true}, nil
}

func (u *ticketUsecase) RenderSlip(ctx context.Context, id uuid.UUID, w io.Writer) error {
	ticket, err := u.ticketRepo.FindByID(u.db.WithContext(ctx), id)
	if err != nil {
		u.log.Warnf("Failed to find ticket by ID: %+v", err)
		return storeError(err)
	}
	if ticket == nil || ticket.IsDeleted() {
		return ErrTicketNotFound
	}

	slip := ticketpdf.Slip{
		Clinic:      u.clinicName,
		Code:        ticket.Code,
		PatientName: ticket.Name,
		Motive:      ticket.Motive,
		IssuedAt:    ticket.UpdatedAt,
		Reprint:     ticket.PreviousCode != nil,
	}
	if ticket.PreviousCode != nil {
		slip.PreviousCode = *ticket.PreviousCode
	}
	if ticket.Doctor != nil {
		slip.Doctor = ticket.Doctor.FullName
	}

	if err := ticketpdf.Render(w, slip); err != nil {
		u.log.Warnf("Failed to render ticket slip: %+v", err)
		return err
	}
	return nil
}

// PurgeExpiredTombstones hard-deletes tickets deleted longer ago than the retention window
func (u *ticketUsecase) PurgeExpiredTombstones(ctx context.Context) (int64, error) {
	before := time.Now().UTC().Add(-u.retention)
	n, err := u.ticketRepo.PurgeDeletedBefore(u.db.WithContext(ctx), before)
	if err != nil {
		u.log.Warnf("Failed to purge tombstones: %+v", err)
		return 0, storeError(err)
	}
	return n, nil
}

func ticketSnapshot(t *entity.Ticket) map[string]interface{} {
	snapshot := map[string]interface{}{
		"nombre":       t.Name,
		"motivo":       t.Motive,
		"doctor_id":    t.DoctorID,
		"codigo_turno": t.Code,
		"status":       t.Status,
		"version":      t.Version,
	}
	if t.PreviousCode != nil {
		snapshot["codigo_anterior"] = *t.PreviousCode
	}
	return snapshot
}
