package usecase

import (
	"context"
	"time"

	"clinic-queue/internal/converter"
	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/delivery/http/middleware"
	"clinic-queue/internal/domain/entity"
	"clinic-queue/internal/domain/repository"
	"clinic-queue/internal/realtime"
	"clinic-queue/internal/service"
	"clinic-queue/pkg/apperror"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TrashUsecase keeps removed tickets recoverable until they are purged
type TrashUsecase interface {
	MoveToTrash(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error)
	Restore(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error)
	List(ctx context.Context) (*dto.TicketListResponse, error)
	Purge(ctx context.Context, id uuid.UUID) (*dto.DeleteTicketResponse, error)
	PurgeAll(ctx context.Context) (*dto.PurgeAllResponse, error)
}

type trashUsecase struct {
	db         *gorm.DB
	log        *logrus.Logger
	ticketRepo repository.TicketRepository
	tickets    TicketUsecase
	audit      service.AuditService
	events     service.EventPublisher
}

func NewTrashUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	ticketRepo repository.TicketRepository,
	tickets TicketUsecase,
	audit service.AuditService,
	events service.EventPublisher,
) TrashUsecase {
	return &trashUsecase{
		db:         db,
		log:        log,
		ticketRepo: ticketRepo,
		tickets:    tickets,
		audit:      audit,
		events:     events,
	}
}

func (u *trashUsecase) MoveToTrash(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error) {
	return u.transition(ctx, id, entity.TicketStatusTrashed)
}

func (u *trashUsecase) Restore(ctx context.Context, id uuid.UUID) (*dto.TicketResponse, error) {
	return u.transition(ctx, id, entity.TicketStatusActive)
}

// transition moves a ticket between active and trashed. Repeating a transition is a no-op.
func (u *trashUsecase) transition(ctx context.Context, id uuid.UUID, target entity.TicketStatus) (*dto.TicketResponse, error) {
	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ticket, err := u.ticketRepo.FindByIDForUpdate(tx, id)
	if err != nil {
		u.log.Warnf("Failed to find ticket by ID: %+v", err)
		return nil, storeError(err)
	}
	if ticket == nil || ticket.IsDeleted() {
		return nil, ErrTicketNotFound
	}
	if ticket.Status == target {
		return converter.TicketToResponse(ticket, nil), nil
	}

	before := ticketSnapshot(ticket)
	actor := middleware.ActorFromContext(ctx)
	action := entity.AuditActionTicketRestore
	eventName := realtime.EventRestored

	ticket.Status = target
	ticket.Version++
	if target == entity.TicketStatusTrashed {
		now := time.Now().UTC()
		ticket.TrashedAt = &now
		ticket.TrashedBy = actor
		action = entity.AuditActionTicketTrash
		eventName = realtime.EventTrashed
	} else {
		ticket.TrashedAt = nil
		ticket.TrashedBy = nil
	}

	if err := u.ticketRepo.Save(tx, ticket); err != nil {
		u.log.Warnf("Failed to update ticket: %+v", err)
		return nil, storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  actor,
		Action:   action,
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

	u.events.Publish(ctx, realtime.NewTicketEvent(eventName, ticket))
	return converter.TicketToResponse(ticket, nil), nil
}

func (u *trashUsecase) List(ctx context.Context) (*dto.TicketListResponse, error) {
	tickets, err := u.ticketRepo.FindByStatus(u.db.WithContext(ctx), entity.TicketStatusTrashed)
	if err != nil {
		u.log.Warnf("Failed to find trashed tickets: %+v", err)
		return nil, storeError(err)
	}

	return &dto.TicketListResponse{
		Tickets: converter.TicketsToResponses(tickets),
		Total:   len(tickets),
	}, nil
}

func (u *trashUsecase) Purge(ctx context.Context, id uuid.UUID) (*dto.DeleteTicketResponse, error) {
	return u.tickets.PermanentlyDelete(ctx, id)
}

// PurgeAll deletes every trashed ticket, each in its own transaction.
// A failure is reported per entry and does not stop the rest.
func (u *trashUsecase) PurgeAll(ctx context.Context) (*dto.PurgeAllResponse, error) {
	tickets, err := u.ticketRepo.FindByStatus(u.db.WithContext(ctx), entity.TicketStatusTrashed)
	if err != nil {
		u.log.Warnf("Failed to find trashed tickets: %+v", err)
		return nil, storeError(err)
	}

	result := &dto.PurgeAllResponse{
		Purged: []uuid.UUID{},
		Failed: []dto.PurgeFailure{},
	}
	for _, ticket := range tickets {
		if _, err := u.tickets.PermanentlyDelete(ctx, ticket.ID); err != nil {
			u.log.Warnf("Failed to purge ticket %s: %+v", ticket.ID, err)
			result.Failed = append(result.Failed, dto.PurgeFailure{ID: ticket.ID, Error: apperror.MessageOf(err, "purge failed")})
			continue
		}
		result.Purged = append(result.Purged, ticket.ID)
	}
	return result, nil
}
