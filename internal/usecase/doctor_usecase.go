package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"clinic-queue/internal/converter"
	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/delivery/http/middleware"
	"clinic-queue/internal/domain/entity"
	"clinic-queue/internal/domain/repository"
	"clinic-queue/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// maxPrefixSuffix bounds the search for a free default prefix
const maxPrefixSuffix = 99

type DoctorUsecase interface {
	GetAllDoctors(ctx context.Context, activeOnly bool) (*dto.DoctorListResponse, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*dto.DoctorResponse, error)
	CreateDoctor(ctx context.Context, req *dto.CreateDoctorRequest) (*dto.DoctorResponse, error)
	UpdateDoctor(ctx context.Context, id uuid.UUID, req *dto.UpdateDoctorRequest) (*dto.DoctorResponse, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error

	// The medico desk works on the doctor linked to the caller's account
	MyQueue(ctx context.Context) (*dto.DoctorQueueResponse, error)
	MyStatus(ctx context.Context) (*dto.DoctorResponse, error)
	UpdateMyStatus(ctx context.Context, req *dto.UpdateDoctorStatusRequest) (*dto.DoctorResponse, error)
}

type doctorUsecase struct {
	db         *gorm.DB
	log        *logrus.Logger
	doctorRepo repository.DoctorRepository
	ticketRepo repository.TicketRepository
	audit      service.AuditService
	codes      *service.CodeGenerator
}

func NewDoctorUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	doctorRepo repository.DoctorRepository,
	ticketRepo repository.TicketRepository,
	audit service.AuditService,
	codes *service.CodeGenerator,
) DoctorUsecase {
	return &doctorUsecase{
		db:         db,
		log:        log,
		doctorRepo: doctorRepo,
		ticketRepo: ticketRepo,
		audit:      audit,
		codes:      codes,
	}
}

func (u *doctorUsecase) GetAllDoctors(ctx context.Context, activeOnly bool) (*dto.DoctorListResponse, error) {
	doctors, err := u.doctorRepo.FindAll(u.db.WithContext(ctx), activeOnly)
	if err != nil {
		u.log.Warnf("Failed to find doctors: %+v", err)
		return nil, storeError(err)
	}

	return &dto.DoctorListResponse{
		Doctors: converter.DoctorsToResponses(doctors),
		Total:   len(doctors),
	}, nil
}

func (u *doctorUsecase) GetDoctor(ctx context.Context, id uuid.UUID) (*dto.DoctorResponse, error) {
	doctor, err := u.doctorRepo.FindByID(u.db.WithContext(ctx), id)
	if err != nil {
		u.log.Warnf("Failed to find doctor by ID: %+v", err)
		return nil, storeError(err)
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}
	return converter.DoctorToResponse(doctor), nil
}

func (u *doctorUsecase) CreateDoctor(ctx context.Context, req *dto.CreateDoctorRequest) (*dto.DoctorResponse, error) {
	doctorType := entity.DoctorType(strings.ToLower(req.Type))
	if !doctorType.IsValid() {
		return nil, ErrInvalidDoctorType
	}

	name := entity.CleanName(req.FullName)
	initial := strings.ToUpper(strings.TrimSpace(req.Initial))
	if initial == "" {
		initial = InitialOf(name)
	}

	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	prefix := strings.ToUpper(strings.TrimSpace(req.CodePrefix))
	if prefix == "" {
		prefix, err = u.freePrefix(tx, initial, doctorType)
		if err != nil {
			return nil, err
		}
	}

	doctor := &entity.Doctor{
		ID:         uuid.New(),
		FullName:   name,
		Initial:    initial,
		Type:       doctorType,
		CodePrefix: prefix,
		Status:     entity.DoctorStatusAvailable,
		IsActive:   true,
		UserID:     req.UserID,
	}

	if err := u.doctorRepo.Create(tx, doctor); err != nil {
		if isDuplicateKeyError(err, "code_prefix") {
			return nil, ErrPrefixAlreadyExists
		}
		if isDuplicateKeyError(err, "user_id") {
			return nil, ErrDoctorUserTaken
		}
		if isForeignKeyError(err, "user") {
			return nil, ErrUserNotFound
		}
		u.log.Warnf("Failed to create doctor: %+v", err)
		return nil, storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  middleware.ActorFromContext(ctx),
		Action:   entity.AuditActionDoctorCreate,
		Entity:   "doctor",
		EntityID: doctor.ID.String(),
		After:    converter.DoctorToResponse(doctor),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, storeError(err)
	}

	return converter.DoctorToResponse(doctor), nil
}

func (u *doctorUsecase) UpdateDoctor(ctx context.Context, id uuid.UUID, req *dto.UpdateDoctorRequest) (*dto.DoctorResponse, error) {
	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	doctor, err := u.doctorRepo.FindByID(tx, id)
	if err != nil {
		u.log.Warnf("Failed to find doctor by ID: %+v", err)
		return nil, storeError(err)
	}
	if doctor == nil {
		return nil, ErrDoctorNotFound
	}
	before := converter.DoctorToResponse(doctor)

	if req.FullName != "" {
		doctor.FullName = entity.CleanName(req.FullName)
	}
	if req.Status != "" {
		status := entity.DoctorStatus(req.Status)
		if !status.IsValid() {
			return nil, ErrInvalidDoctorStatus
		}
		doctor.Status = status
	}
	if req.IsActive != nil {
		doctor.IsActive = *req.IsActive
	}
	if req.UserID != nil {
		doctor.UserID = req.UserID
	}

	if err := u.doctorRepo.Update(tx, doctor); err != nil {
		if isDuplicateKeyError(err, "user_id") {
			return nil, ErrDoctorUserTaken
		}
		if isForeignKeyError(err, "user") {
			return nil, ErrUserNotFound
		}
		u.log.Warnf("Failed to update doctor: %+v", err)
		return nil, storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  middleware.ActorFromContext(ctx),
		Action:   entity.AuditActionDoctorUpdate,
		Entity:   "doctor",
		EntityID: doctor.ID.String(),
		Before:   before,
		After:    converter.DoctorToResponse(doctor),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, storeError(err)
	}

	return converter.DoctorToResponse(doctor), nil
}

// DeleteDoctor refuses while the doctor has active tickets. Doctors with ticket history
// are kept by the foreign key; they can be deactivated instead.
func (u *doctorUsecase) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	tx, err := begin(ctx, u.db)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	doctor, err := u.doctorRepo.FindByID(tx, id)
	if err != nil {
		u.log.Warnf("Failed to find doctor by ID: %+v", err)
		return storeError(err)
	}
	if doctor == nil {
		return ErrDoctorNotFound
	}

	active, err := u.ticketRepo.CountActiveByDoctor(tx, id)
	if err != nil {
		u.log.Warnf("Failed to count active tickets: %+v", err)
		return storeError(err)
	}
	if active > 0 {
		return ErrDoctorHasTickets
	}

	if err := u.doctorRepo.Delete(tx, id); err != nil {
		if isForeignKeyError(err, "doctor") {
			return ErrDoctorHasTickets
		}
		u.log.Warnf("Failed to delete doctor: %+v", err)
		return storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  middleware.ActorFromContext(ctx),
		Action:   entity.AuditActionDoctorDelete,
		Entity:   "doctor",
		EntityID: id.String(),
		Before:   converter.DoctorToResponse(doctor),
	}); err != nil {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return storeError(err)
	}

	if err := u.codes.Reset(ctx, id); err != nil {
		u.log.Warnf("Failed to drop sequence of doctor %s: %+v", id, err)
	}
	return nil
}

func (u *doctorUsecase) freePrefix(tx *gorm.DB, initial string, doctorType entity.DoctorType) (string, error) {
	for n := 1; n <= maxPrefixSuffix; n++ {
		prefix := DefaultPrefix(initial, doctorType, n)
		taken, err := u.doctorRepo.PrefixExists(tx, prefix)
		if err != nil {
			u.log.Warnf("Failed to check code prefix: %+v", err)
			return "", storeError(err)
		}
		if !taken {
			return prefix, nil
		}
	}
	return "", ErrPrefixAlreadyExists
}

// DefaultPrefix builds "<INITIAL>-<C|I>"; n > 1 is appended to the initial ("A2-C")
func DefaultPrefix(initial string, doctorType entity.DoctorType, n int) string {
	if n > 1 {
		initial = fmt.Sprintf("%s%d", initial, n)
	}
	return initial + "-" + doctorType.Letter()
}

var honorifics = map[string]bool{"dr": true, "dr.": true, "dra": true, "dra.": true, "lic": true, "lic.": true}

// InitialOf returns the upper-case first letter of the first name, skipping honorifics
func InitialOf(name string) string {
	for _, word := range strings.Fields(name) {
		if honorifics[strings.ToLower(word)] {
			continue
		}
		for _, r := range word {
			if unicode.IsLetter(r) {
				return strings.ToUpper(string(r))
			}
		}
	}
	return "X"
}

func (u *doctorUsecase) linkedDoctor(ctx context.Context, db *gorm.DB) (*entity.Doctor, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrNoLinkedDoctor
	}

	doctor, err := u.doctorRepo.FindByUserID(db, userID)
	if err != nil {
		u.log.Warnf("Failed to find doctor by user: %+v", err)
		return nil, storeError(err)
	}
	if doctor == nil {
		return nil, ErrNoLinkedDoctor
	}
	return doctor, nil
}

// MyQueue lists the caller's active tickets in code order
func (u *doctorUsecase) MyQueue(ctx context.Context) (*dto.DoctorQueueResponse, error) {
	db := u.db.WithContext(ctx)
	doctor, err := u.linkedDoctor(ctx, db)
	if err != nil {
		return nil, err
	}

	tickets, err := u.ticketRepo.FindActiveByDoctor(db, doctor.ID)
	if err != nil {
		u.log.Warnf("Failed to find doctor queue: %+v", err)
		return nil, storeError(err)
	}

	patients := make([]dto.BoardPatientResponse, 0, len(tickets))
	for i := range tickets {
		patients = append(patients, converter.TicketToBoardPatient(&tickets[i]))
	}

	return &dto.DoctorQueueResponse{
		Doctor:   *converter.DoctorToResponse(doctor),
		Patients: patients,
		Total:    len(patients),
	}, nil
}

func (u *doctorUsecase) MyStatus(ctx context.Context) (*dto.DoctorResponse, error) {
	doctor, err := u.linkedDoctor(ctx, u.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return converter.DoctorToResponse(doctor), nil
}

func (u *doctorUsecase) UpdateMyStatus(ctx context.Context, req *dto.UpdateDoctorStatusRequest) (*dto.DoctorResponse, error) {
	status := entity.DoctorStatus(req.Status)
	if !status.IsValid() {
		return nil, ErrInvalidDoctorStatus
	}

	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	doctor, err := u.linkedDoctor(ctx, tx)
	if err != nil {
		return nil, err
	}
	if doctor.Status == status {
		return converter.DoctorToResponse(doctor), nil
	}
	before := doctor.Status
	doctor.Status = status

	if err := u.doctorRepo.Update(tx, doctor); err != nil {
		u.log.Warnf("Failed to update doctor status: %+v", err)
		return nil, storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  middleware.ActorFromContext(ctx),
		Action:   entity.AuditActionDoctorStatus,
		Entity:   "doctor",
		EntityID: doctor.ID.String(),
		Before:   before,
		After:    status,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, storeError(err)
	}

	return converter.DoctorToResponse(doctor), nil
}
