package usecase

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"clinic-queue/config"
	"clinic-queue/internal/converter"
	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/delivery/http/middleware"
	"clinic-queue/internal/domain/entity"
	"clinic-queue/internal/domain/repository"
	"clinic-queue/internal/service"
	"clinic-queue/pkg/validator"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ScreenUsecase interface {
	InitDevice(ctx context.Context, req *dto.DeviceRequest) (*dto.DeviceStatusResponse, error)
	DeviceStatus(ctx context.Context, req *dto.DeviceRequest) (*dto.DeviceStatusResponse, error)
	DeviceBoard(ctx context.Context, req *dto.DeviceRequest) (*dto.BoardResponse, error)
	ConfirmPairing(ctx context.Context, id uuid.UUID, req *dto.ConfirmPairingRequest) (*dto.ScreenResponse, error)
	Unpair(ctx context.Context, id uuid.UUID) (*dto.ScreenResponse, error)
	AssignReceptionist(ctx context.Context, id uuid.UUID, req *dto.AssignReceptionistRequest) (*dto.ScreenResponse, error)
	GetAllScreens(ctx context.Context) (*dto.ScreenListResponse, error)
	SeedScreens(ctx context.Context) error
	ReleaseStalePending(ctx context.Context) (int64, error)
}

type screenUsecase struct {
	db         *gorm.DB
	log        *logrus.Logger
	screenRepo repository.ScreenRepository
	userRepo   repository.UserRepository
	tickets    TicketUsecase
	audit      service.AuditService
	count      int
	pairingTTL time.Duration
}

func NewScreenUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	screenRepo repository.ScreenRepository,
	userRepo repository.UserRepository,
	tickets TicketUsecase,
	audit service.AuditService,
	cfg config.ScreenConfig,
) ScreenUsecase {
	return &screenUsecase{
		db:         db,
		log:        log,
		screenRepo: screenRepo,
		userRepo:   userRepo,
		tickets:    tickets,
		audit:      audit,
		count:      cfg.Count,
		pairingTTL: cfg.PairingTTL,
	}
}

// InitDevice returns the screen bound to the fingerprint, or reserves the lowest free
// screen and issues it a pairing code.
func (u *screenUsecase) InitDevice(ctx context.Context, req *dto.DeviceRequest) (*dto.DeviceStatusResponse, error) {
	fingerprint := strings.TrimSpace(req.DeviceFingerprint)
	if fingerprint == "" {
		return nil, ErrInvalidFingerprint
	}

	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	screen, err := u.screenRepo.FindByDevice(tx, fingerprint)
	if err != nil {
		u.log.Warnf("Failed to find screen by device: %+v", err)
		return nil, storeError(err)
	}
	if screen != nil {
		if err := u.screenRepo.TouchLastSeen(tx, screen.ID, now); err != nil {
			u.log.Warnf("Failed to touch screen: %+v", err)
			return nil, storeError(err)
		}
		if err := tx.Commit().Error; err != nil {
			u.log.Warnf("Failed commit transaction: %+v", err)
			return nil, storeError(err)
		}
		screen.LastSeenAt = &now
		return deviceStatus(screen), nil
	}

	screen, err = u.screenRepo.AcquireAvailable(tx)
	if err != nil {
		u.log.Warnf("Failed to acquire screen: %+v", err)
		return nil, storeError(err)
	}
	if screen == nil {
		return nil, ErrNoScreensAvailable
	}

	code, err := newPairingCode()
	if err != nil {
		u.log.Warnf("Failed to generate pairing code: %+v", err)
		return nil, err
	}
	screen.State = entity.ScreenStatePending
	screen.DeviceID = &fingerprint
	screen.PairingCode = &code
	screen.LinkedAt = nil
	screen.LastSeenAt = &now

	if err := u.screenRepo.Save(tx, screen); err != nil {
		if isDuplicateKeyError(err, "device_id") {
			// Another request for this device won; report its screen
			tx.Rollback()
			return u.reloadDevice(ctx, fingerprint)
		}
		u.log.Warnf("Failed to reserve screen: %+v", err)
		return nil, storeError(err)
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, storeError(err)
	}

	u.log.WithFields(logrus.Fields{"screen": screen.Number, "device": fingerprint}).Info("Screen reserved for pairing")
	return deviceStatus(screen), nil
}

func (u *screenUsecase) reloadDevice(ctx context.Context, fingerprint string) (*dto.DeviceStatusResponse, error) {
	screen, err := u.screenRepo.FindByDevice(u.db.WithContext(ctx), fingerprint)
	if err != nil {
		u.log.Warnf("Failed to find screen by device: %+v", err)
		return nil, storeError(err)
	}
	if screen == nil {
		return nil, ErrNoScreensAvailable
	}
	return deviceStatus(screen), nil
}

// DeviceStatus reports pendiente, vinculada, or desvinculada for an unknown fingerprint
func (u *screenUsecase) DeviceStatus(ctx context.Context, req *dto.DeviceRequest) (*dto.DeviceStatusResponse, error) {
	fingerprint := strings.TrimSpace(req.DeviceFingerprint)
	if fingerprint == "" {
		return nil, ErrInvalidFingerprint
	}

	db := u.db.WithContext(ctx)
	screen, err := u.screenRepo.FindByDevice(db, fingerprint)
	if err != nil {
		u.log.Warnf("Failed to find screen by device: %+v", err)
		return nil, storeError(err)
	}
	if screen == nil {
		return &dto.DeviceStatusResponse{Status: string(entity.ScreenStateUnlinked)}, nil
	}

	now := time.Now().UTC()
	if err := u.screenRepo.TouchLastSeen(db, screen.ID, now); err != nil {
		u.log.Warnf("Failed to touch screen: %+v", err)
	}
	screen.LastSeenAt = &now

	return deviceStatus(screen), nil
}

func (u *screenUsecase) DeviceBoard(ctx context.Context, req *dto.DeviceRequest) (*dto.BoardResponse, error) {
	status, err := u.DeviceStatus(ctx, req)
	if err != nil {
		return nil, err
	}
	if status.Status != string(entity.ScreenStateLinked) {
		return nil, ErrDeviceNotLinked
	}
	return u.tickets.ListActiveByDoctor(ctx)
}

func (u *screenUsecase) ConfirmPairing(ctx context.Context, id uuid.UUID, req *dto.ConfirmPairingRequest) (*dto.ScreenResponse, error) {
	code := strings.TrimSpace(req.Code)
	if !validator.IsPairingCode(code) {
		return nil, ErrInvalidPairingCode
	}

	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	screen, err := u.screenRepo.FindByIDForUpdate(tx, id)
	if err != nil {
		u.log.Warnf("Failed to find screen by ID: %+v", err)
		return nil, storeError(err)
	}
	if screen == nil {
		return nil, ErrScreenNotFound
	}
	if !screen.IsPending() || screen.PairingCode == nil {
		return nil, ErrScreenNotPending
	}
	if subtle.ConstantTimeCompare([]byte(*screen.PairingCode), []byte(code)) != 1 {
		return nil, ErrPairingCodeMismatch
	}

	now := time.Now().UTC()
	screen.State = entity.ScreenStateLinked
	screen.PairingCode = nil
	screen.LinkedAt = &now

	if err := u.screenRepo.Save(tx, screen); err != nil {
		u.log.Warnf("Failed to link screen: %+v", err)
		return nil, storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  middleware.ActorFromContext(ctx),
		Action:   entity.AuditActionScreenPair,
		Entity:   "screen",
		EntityID: screen.ID.String(),
		After:    map[string]interface{}{"numero": screen.Number, "device_id": screen.DeviceID},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, storeError(err)
	}

	return converter.ScreenToResponse(screen, false), nil
}

// Unpair frees the screen and forgets its device. The receptionist assignment is kept.
func (u *screenUsecase) Unpair(ctx context.Context, id uuid.UUID) (*dto.ScreenResponse, error) {
	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	screen, err := u.screenRepo.FindByIDForUpdate(tx, id)
	if err != nil {
		u.log.Warnf("Failed to find screen by ID: %+v", err)
		return nil, storeError(err)
	}
	if screen == nil {
		return nil, ErrScreenNotFound
	}

	before := map[string]interface{}{"estado": screen.State, "device_id": screen.DeviceID}
	screen.Release()

	if err := u.screenRepo.Save(tx, screen); err != nil {
		u.log.Warnf("Failed to unlink screen: %+v", err)
		return nil, storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  middleware.ActorFromContext(ctx),
		Action:   entity.AuditActionScreenUnpair,
		Entity:   "screen",
		EntityID: screen.ID.String(),
		Before:   before,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, storeError(err)
	}

	return converter.ScreenToResponse(screen, false), nil
}

// AssignReceptionist attaches a receptionist to a linked screen; a nil id clears it.
func (u *screenUsecase) AssignReceptionist(ctx context.Context, id uuid.UUID, req *dto.AssignReceptionistRequest) (*dto.ScreenResponse, error) {
	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	screen, err := u.screenRepo.FindByIDForUpdate(tx, id)
	if err != nil {
		u.log.Warnf("Failed to find screen by ID: %+v", err)
		return nil, storeError(err)
	}
	if screen == nil {
		return nil, ErrScreenNotFound
	}
	previous := screen.ReceptionistID

	if req.ReceptionistID == nil || *req.ReceptionistID == uuid.Nil {
		screen.ReceptionistID = nil
		screen.Receptionist = nil
	} else {
		staff, err := u.userRepo.FindByID(tx, *req.ReceptionistID)
		if err != nil {
			u.log.Warnf("Failed to find user by ID: %+v", err)
			return nil, storeError(err)
		}
		if staff == nil {
			return nil, ErrReceptionistNotFound
		}
		if entity.NormalizeRole(staff.Role) != entity.RoleReception {
			return nil, ErrNotReceptionist
		}
		if !screen.IsLinked() {
			return nil, ErrScreenNotLinked
		}
		screen.ReceptionistID = &staff.ID
		screen.Receptionist = staff
	}

	if err := u.screenRepo.Save(tx, screen); err != nil {
		u.log.Warnf("Failed to assign receptionist: %+v", err)
		return nil, storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  middleware.ActorFromContext(ctx),
		Action:   entity.AuditActionScreenReceptionist,
		Entity:   "screen",
		EntityID: screen.ID.String(),
		Before:   map[string]interface{}{"recepcionista_id": previous},
		After:    map[string]interface{}{"recepcionista_id": screen.ReceptionistID},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, storeError(err)
	}

	return converter.ScreenToResponse(screen, false), nil
}

func (u *screenUsecase) GetAllScreens(ctx context.Context) (*dto.ScreenListResponse, error) {
	screens, err := u.screenRepo.FindAll(u.db.WithContext(ctx))
	if err != nil {
		u.log.Warnf("Failed to find screens: %+v", err)
		return nil, storeError(err)
	}

	return &dto.ScreenListResponse{
		Screens: converter.ScreensToResponses(screens),
		Total:   len(screens),
	}, nil
}

// SeedScreens creates the missing "Pantalla N" slots up to the configured count
func (u *screenUsecase) SeedScreens(ctx context.Context) error {
	db := u.db.WithContext(ctx)
	screens, err := u.screenRepo.FindAll(db)
	if err != nil {
		u.log.Warnf("Failed to find screens: %+v", err)
		return storeError(err)
	}

	existing := make(map[int]bool, len(screens))
	for _, s := range screens {
		existing[s.Number] = true
	}

	created := 0
	for n := 1; n <= u.count; n++ {
		if existing[n] {
			continue
		}
		screen := &entity.Screen{
			ID:     uuid.New(),
			Number: n,
			Name:   fmt.Sprintf("Pantalla %d", n),
			State:  entity.ScreenStateAvailable,
		}
		if err := u.screenRepo.Create(db, screen); err != nil && !isDuplicateKeyError(err, "numero") {
			u.log.Warnf("Failed to seed screen %d: %+v", n, err)
			return storeError(err)
		}
		created++
	}
	if created > 0 {
		u.log.Infof("Seeded %d screens", created)
	}
	return nil
}

// ReleaseStalePending returns pending screens whose device went quiet to the free pool
func (u *screenUsecase) ReleaseStalePending(ctx context.Context) (int64, error) {
	n, err := u.screenRepo.ReleaseStalePending(u.db.WithContext(ctx), time.Now().UTC().Add(-u.pairingTTL))
	if err != nil {
		u.log.Warnf("Failed to release stale screens: %+v", err)
		return 0, storeError(err)
	}
	return n, nil
}

func deviceStatus(screen *entity.Screen) *dto.DeviceStatusResponse {
	return &dto.DeviceStatusResponse{
		Status: string(screen.State),
		Screen: converter.ScreenToResponse(screen, screen.IsPending()),
	}
}

// newPairingCode returns a uniformly random 6-digit code
func newPairingCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", entity.PairingCodeLength, n.Int64()), nil
}
