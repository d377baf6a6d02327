package usecase

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"clinic-queue/config"
	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/delivery/http/middleware"
	"clinic-queue/internal/domain/entity"
	"clinic-queue/internal/realtime"
	"clinic-queue/internal/service"
	"clinic-queue/internal/testutil"
	"clinic-queue/pkg/apperror"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type ticketFixture struct {
	uc      TicketUsecase
	db      *gorm.DB
	log     *logrus.Logger
	mock    sqlmock.Sqlmock
	mr      *miniredis.Miniredis
	tickets *fakeTicketRepo
	turns   *fakeTurnRepo
	doctors *fakeDoctorRepo
	audit   *fakeAudit
	events  *fakePublisher
	doctor  *entity.Doctor
	ctx     context.Context
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	db, mock := testutil.NewMockDB(t)
	mr, client := testutil.NewRedis(t)
	log := testutil.NewLogger()

	f := &ticketFixture{
		db:      db,
		log:     log,
		mock:    mock,
		mr:      mr,
		tickets: newFakeTicketRepo(),
		turns:   &fakeTurnRepo{},
		doctors: &fakeDoctorRepo{},
		audit:   &fakeAudit{},
		events:  &fakePublisher{},
	}

	cfg := config.QueueConfig{
		CodePattern:        "{prefix}-{seq}",
		CodePad:            3,
		Motives:            []string{"consulta", "control", "urgencia"},
		LockTTL:            time.Second,
		LockRetries:        3,
		LockRetryWait:      time.Millisecond,
		HistoryLimit:       3,
		TombstoneRetention: time.Hour,
	}
	codes := service.NewCodeGenerator(db, client, log, f.turns, cfg)
	locker := service.NewDoctorLocker(client, log, cfg)
	t.Cleanup(locker.Stop)

	f.doctor = f.doctors.add(&entity.Doctor{
		FullName:   "Ana Pérez",
		Initial:    "A",
		Type:       entity.DoctorTypeConsultation,
		CodePrefix: "A-C",
		Status:     entity.DoctorStatusAvailable,
		IsActive:   true,
	})
	f.tickets.doctors[f.doctor.ID] = f.doctor

	f.uc = NewTicketUsecase(db, log, f.tickets, f.turns, f.doctors, codes, locker, f.audit, f.events, cfg, "Clínica")
	f.ctx = middleware.WithIdentity(context.Background(), uuid.New(), "registro", entity.RoleRegistry)
	return f
}

func (f *ticketFixture) expectTx() {
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
}

func (f *ticketFixture) register(t *testing.T, name string) *dto.RegisterTicketResponse {
	t.Helper()
	f.expectTx()
	resp, err := f.uc.RegisterTicket(f.ctx, &dto.RegisterTicketRequest{
		Name:     name,
		DoctorID: &f.doctor.ID,
		Motive:   "consulta",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterTicketIssuesFirstCode(t *testing.T) {
	f := newTicketFixture(t)

	resp := f.register(t, "  Juan   Pérez ")

	assert.Equal(t, entity.RegistrationNew, resp.Type)
	assert.Equal(t, "A-C-001", resp.Code)
	assert.Nil(t, resp.PreviousCode)
	assert.Equal(t, "Juan Pérez", resp.Patient.Name)
	assert.Equal(t, "A-C-001", resp.Patient.PatientCode)
	assert.Equal(t, "Ana Pérez", resp.Patient.Doctor)

	events := f.events.all()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventNewCode, events[0].Event)
	assert.Equal(t, entity.RegistrationNew, events[0].Type)
	assert.Equal(t, int64(1), events[0].Version)
	assert.Equal(t, []string{entity.AuditActionTicketRegister}, f.audit.actions())

	require.Len(t, f.turns.turns, 1)
	assert.Equal(t, entity.TurnStatusPending, f.turns.turns[0].Status)
}

func TestRegisterTicketAcceptsMedicoID(t *testing.T) {
	f := newTicketFixture(t)
	f.expectTx()

	resp, err := f.uc.RegisterTicket(f.ctx, &dto.RegisterTicketRequest{
		Name:     "Lucía",
		LastName: "Gómez",
		MedicoID: &f.doctor.ID,
		Motive:   "Control",
	})
	require.NoError(t, err)
	assert.Equal(t, "Lucía Gómez", resp.Patient.Name)
	assert.Equal(t, "control", resp.Patient.Motive)
}

func TestReRegistrationReplacesCode(t *testing.T) {
	f := newTicketFixture(t)
	first := f.register(t, "Juan Pérez")

	second := f.register(t, "JUAN  pérez")

	assert.Equal(t, entity.RegistrationReissue, second.Type)
	assert.Equal(t, "A-C-002", second.Code)
	require.NotNil(t, second.PreviousCode)
	assert.Equal(t, first.Code, *second.PreviousCode)
	assert.Equal(t, first.Patient.ID, second.Patient.ID)
	assert.Equal(t, first.Patient.PatientCode, second.Patient.PatientCode)

	require.Len(t, f.turns.turns, 2)
	assert.Equal(t, entity.TurnStatusReplaced, f.turns.turns[0].Status)
	assert.Equal(t, entity.TurnStatusPending, f.turns.turns[1].Status)

	events := f.events.all()
	require.Len(t, events, 2)
	assert.Equal(t, entity.RegistrationReissue, events[1].Type)
	assert.Greater(t, events[1].Version, events[0].Version)
}

func TestReRegistrationRestoresTrashedTicket(t *testing.T) {
	f := newTicketFixture(t)
	first := f.register(t, "Juan Pérez")

	stored := f.tickets.tickets[first.Patient.ID]
	stored.Status = entity.TicketStatusTrashed
	now := time.Now()
	stored.TrashedAt = &now
	f.tickets.tickets[first.Patient.ID] = stored

	second := f.register(t, "Juan Pérez")
	assert.Equal(t, entity.RegistrationReissue, second.Type)

	ticket := f.tickets.tickets[first.Patient.ID]
	assert.Equal(t, entity.TicketStatusActive, ticket.Status)
	assert.Nil(t, ticket.TrashedAt)
}

func TestReRegistrationPrunesHistory(t *testing.T) {
	f := newTicketFixture(t)
	for i := 0; i < 5; i++ {
		f.register(t, "Juan Pérez")
	}

	assert.Len(t, f.turns.turns, 3)
	assert.Equal(t, "A-C-005", f.turns.turns[2].Code)
}

func TestRegisterTicketValidation(t *testing.T) {
	f := newTicketFixture(t)
	inactive := f.doctors.add(&entity.Doctor{FullName: "Inactivo", CodePrefix: "I-C", IsActive: false})
	unknown := uuid.New()

	tests := []struct {
		name string
		req  dto.RegisterTicketRequest
		want error
	}{
		{"missing doctor", dto.RegisterTicketRequest{Name: "Juan", Motive: "consulta"}, ErrDoctorRequired},
		{"short name", dto.RegisterTicketRequest{Name: " J ", DoctorID: &f.doctor.ID, Motive: "consulta"}, ErrInvalidName},
		{"bad motive", dto.RegisterTicketRequest{Name: "Juan", DoctorID: &f.doctor.ID, Motive: "cirugia"}, ErrInvalidMotive},
		{"unknown doctor", dto.RegisterTicketRequest{Name: "Juan", DoctorID: &unknown, Motive: "consulta"}, ErrDoctorNotFound},
		{"inactive doctor", dto.RegisterTicketRequest{Name: "Juan", DoctorID: &inactive.ID, Motive: "consulta"}, ErrDoctorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.uc.RegisterTicket(f.ctx, &req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.events.all())
}

func TestRegisterTicketRetriesAfterCodeCollision(t *testing.T) {
	f := newTicketFixture(t)

	// Redis lost its counter while A-C-001 is still open
	other := entity.Ticket{
		ID:          uuid.New(),
		Name:        "Otro",
		IdentityKey: "otro",
		DoctorID:    f.doctor.ID,
		Code:        "A-C-001",
		PatientCode: "A-C-001",
		CodeSeq:     1,
		Status:      entity.TicketStatusActive,
		Version:     1,
	}
	f.tickets.tickets[other.ID] = other
	require.NoError(t, f.turns.Create(nil, &entity.Turn{TicketID: other.ID, DoctorID: f.doctor.ID, Code: "A-C-001", Seq: 1}))

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	resp, err := f.uc.RegisterTicket(f.ctx, &dto.RegisterTicketRequest{
		Name:     "Juan",
		DoctorID: &f.doctor.ID,
		Motive:   "consulta",
	})
	require.NoError(t, err)
	assert.Equal(t, "A-C-002", resp.Code)
}

func TestConcurrentRegistrationsGetDistinctCodes(t *testing.T) {
	f := newTicketFixture(t)
	f.mock.MatchExpectationsInOrder(false)

	const n = 12
	for i := 0; i < n; i++ {
		f.expectTx()
	}

	var wg sync.WaitGroup
	codes := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.uc.RegisterTicket(f.ctx, &dto.RegisterTicketRequest{
				Name:     fmt.Sprintf("Paciente %02d", i),
				DoctorID: &f.doctor.ID,
				Motive:   "consulta",
			})
			errs[i] = err
			if err == nil {
				codes[i] = resp.Code
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[codes[i]], "code %s issued twice", codes[i])
		seen[codes[i]] = true
	}
	assert.Len(t, seen, n)
	assert.True(t, seen["A-C-001"])
	assert.True(t, seen[fmt.Sprintf("A-C-%03d", n)])
}

func TestRegisterTicketTransientWhenRedisDown(t *testing.T) {
	f := newTicketFixture(t)
	f.mr.Close()

	_, err := f.uc.RegisterTicket(f.ctx, &dto.RegisterTicketRequest{
		Name:     "Juan",
		DoctorID: &f.doctor.ID,
		Motive:   "consulta",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsRetryable(err))
}

func TestListActiveByDoctorGroupsAndOrders(t *testing.T) {
	f := newTicketFixture(t)
	f.register(t, "Carla")
	f.register(t, "Bruno")
	f.register(t, "Carla") // reissue moves Carla behind Bruno

	retired := f.doctors.add(&entity.Doctor{FullName: "Retirado", Initial: "R", CodePrefix: "R-C", IsActive: false})
	f.tickets.doctors[retired.ID] = retired
	held := entity.Ticket{ID: uuid.New(), Name: "Pendiente", IdentityKey: "pendiente", DoctorID: retired.ID,
		Code: "R-C-009", PatientCode: "R-C-009", CodeSeq: 9, Status: entity.TicketStatusActive, Version: 1}
	f.tickets.tickets[held.ID] = held

	board, err := f.uc.ListActiveByDoctor(context.Background())
	require.NoError(t, err)
	require.Len(t, board.Doctors, 2)

	ana := board.Doctors[0]
	assert.Equal(t, f.doctor.ID, ana.ID)
	require.Len(t, ana.Patients, 2)
	assert.Equal(t, "Bruno", ana.Patients[0].Name)
	assert.Equal(t, "Carla", ana.Patients[1].Name)
	assert.Equal(t, "A-C-003", ana.Patients[1].Code)

	assert.Equal(t, retired.ID, board.Doctors[1].ID)
	assert.Len(t, board.Doctors[1].Patients, 1)
}

func TestListActiveByDoctorIncludesEmptyDoctors(t *testing.T) {
	f := newTicketFixture(t)

	board, err := f.uc.ListActiveByDoctor(context.Background())
	require.NoError(t, err)
	require.Len(t, board.Doctors, 1)
	assert.NotNil(t, board.Doctors[0].Patients)
	assert.Empty(t, board.Doctors[0].Patients)
}

func TestFindByCodeMatchesActiveAndPatientCode(t *testing.T) {
	f := newTicketFixture(t)
	first := f.register(t, "Juan")
	f.register(t, "Juan")

	byActive, err := f.uc.FindByCode(context.Background(), "a-c-002")
	require.NoError(t, err)
	assert.Equal(t, first.Patient.ID, byActive.ID)
	assert.Len(t, byActive.History, 2)

	byPatient, err := f.uc.FindByCode(context.Background(), first.Code)
	require.NoError(t, err)
	assert.Equal(t, first.Patient.ID, byPatient.ID)

	_, err = f.uc.FindByCode(context.Background(), "Z-9")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestPermanentlyDeleteIsIdempotent(t *testing.T) {
	f := newTicketFixture(t)
	resp := f.register(t, "Juan")
	id := resp.Patient.ID

	f.expectTx()
	first, err := f.uc.PermanentlyDelete(f.ctx, id)
	require.NoError(t, err)
	assert.True(t, first.Deleted)

	f.expectTx()
	second, err := f.uc.PermanentlyDelete(f.ctx, id)
	require.NoError(t, err)
	assert.False(t, second.Deleted)

	f.expectTx()
	missing, err := f.uc.PermanentlyDelete(f.ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, missing.Deleted)

	assert.Equal(t, entity.TurnStatusCancelled, f.turns.turns[0].Status)
	assert.Equal(t, []string{
		entity.AuditActionTicketRegister,
		entity.AuditActionTicketDelete,
		entity.AuditActionTicketDeleteNoop,
		entity.AuditActionTicketDeleteNoop,
	}, f.audit.actions())

	events := f.events.all()
	require.Len(t, events, 2)
	assert.Equal(t, realtime.EventDeleted, events[1].Event)
	assert.Equal(t, []realtime.Room{realtime.RoomReception}, events[1].Rooms())

	_, err = f.uc.FindByCode(context.Background(), resp.Code)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestDeletedTicketFreesIdentity(t *testing.T) {
	f := newTicketFixture(t)
	first := f.register(t, "Juan")

	f.expectTx()
	_, err := f.uc.PermanentlyDelete(f.ctx, first.Patient.ID)
	require.NoError(t, err)

	again := f.register(t, "Juan")
	assert.Equal(t, entity.RegistrationNew, again.Type)
	assert.NotEqual(t, first.Patient.ID, again.Patient.ID)
}

func TestPurgeExpiredTombstones(t *testing.T) {
	f := newTicketFixture(t)
	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now()
	for _, at := range []*time.Time{&old, &recent} {
		id := uuid.New()
		f.tickets.tickets[id] = entity.Ticket{ID: id, DoctorID: f.doctor.ID, Status: entity.TicketStatusDeleted, DeletedAt: at}
	}

	n, err := f.uc.PurgeExpiredTombstones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, f.tickets.tickets, 1)
}

func TestRenderSlip(t *testing.T) {
	f := newTicketFixture(t)
	resp := f.register(t, "Juan")

	var buf bytes.Buffer
	require.NoError(t, f.uc.RenderSlip(context.Background(), resp.Patient.ID, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))

	err := f.uc.RenderSlip(context.Background(), uuid.New(), &buf)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}
