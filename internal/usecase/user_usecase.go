package usecase

import (
	"context"
	"strings"

	"clinic-queue/internal/converter"
	"clinic-queue/internal/delivery/dto"
	"clinic-queue/internal/delivery/http/middleware"
	"clinic-queue/internal/domain/entity"
	"clinic-queue/internal/domain/repository"
	"clinic-queue/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedUser is a staff account created on first start
type SeedUser struct {
	Username string
	Password string
	FullName string
	Role     string
}

var DefaultUsers = []SeedUser{
	{Username: entity.PrimaryAdminUsername, Password: "admin123", FullName: "Administrador", Role: entity.RoleAdmin},
	{Username: "recepcion", Password: "recep123", FullName: "Recepción", Role: entity.RoleReception},
}

type UserUsecase interface {
	GetAllUsers(ctx context.Context) (*dto.UserListResponse, error)
	GetReceptionists(ctx context.Context) (*dto.UserListResponse, error)
	GetUser(ctx context.Context, id uuid.UUID) (*dto.UserResponse, error)
	CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error)
	UpdateUser(ctx context.Context, id uuid.UUID, req *dto.UpdateUserRequest) (*dto.UserResponse, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ResetPassword(ctx context.Context, id uuid.UUID, req *dto.AdminResetPasswordRequest) error
	EnsureDefaultUsers(ctx context.Context, seeds []SeedUser) error
}

type userUsecase struct {
	db       *gorm.DB
	log      *logrus.Logger
	userRepo repository.UserRepository
	audit    service.AuditService
	sessions *service.SessionStore
}

func NewUserUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	userRepo repository.UserRepository,
	audit service.AuditService,
	sessions *service.SessionStore,
) UserUsecase {
	return &userUsecase{
		db:       db,
		log:      log,
		userRepo: userRepo,
		audit:    audit,
		sessions: sessions,
	}
}

func (u *userUsecase) GetAllUsers(ctx context.Context) (*dto.UserListResponse, error) {
	users, err := u.userRepo.FindAll(u.db.WithContext(ctx))
	if err != nil {
		u.log.Warnf("Failed to find all users: %+v", err)
		return nil, storeError(err)
	}

	return &dto.UserListResponse{
		Users: converter.UsersToResponses(users),
		Total: len(users),
	}, nil
}

func (u *userUsecase) GetReceptionists(ctx context.Context) (*dto.UserListResponse, error) {
	users, err := u.userRepo.FindActiveByRole(u.db.WithContext(ctx), entity.RoleReception)
	if err != nil {
		u.log.Warnf("Failed to find receptionists: %+v", err)
		return nil, storeError(err)
	}

	return &dto.UserListResponse{
		Users: converter.UsersToResponses(users),
		Total: len(users),
	}, nil
}

func (u *userUsecase) GetUser(ctx context.Context, id uuid.UUID) (*dto.UserResponse, error) {
	user, err := u.userRepo.FindByID(u.db.WithContext(ctx), id)
	if err != nil {
		u.log.Warnf("Failed to find user by ID: %+v", err)
		return nil, storeError(err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return converter.UserToResponse(user), nil
}

func (u *userUsecase) CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	role := entity.NormalizeRole(req.Role)
	if role == "" {
		return nil, ErrInvalidRole
	}

	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		u.log.Warnf("Failed to hash password: %+v", err)
		return nil, err
	}

	user := &entity.User{
		ID:        uuid.New(),
		Username:  strings.TrimSpace(req.Username),
		Password:  string(hashedPassword),
		FullName:  entity.CleanName(req.FullName),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Role:      role,
		IsActive:  true,
		CreatedBy: middleware.ActorFromContext(ctx),
	}

	if err := u.userRepo.Create(tx, user); err != nil {
		if isDuplicateKeyError(err, "usuario") {
			return nil, ErrUsernameAlreadyExists
		}
		u.log.Warnf("Failed to create user: %+v", err)
		return nil, storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  user.CreatedBy,
		Action:   entity.AuditActionUserCreate,
		Entity:   "user",
		EntityID: user.ID.String(),
		After:    converter.UserToResponse(user),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, storeError(err)
	}

	return converter.UserToResponse(user), nil
}

func (u *userUsecase) UpdateUser(ctx context.Context, id uuid.UUID, req *dto.UpdateUserRequest) (*dto.UserResponse, error) {
	tx, err := begin(ctx, u.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	user, err := u.userRepo.FindByID(tx, id)
	if err != nil {
		u.log.Warnf("Failed to find user by ID: %+v", err)
		return nil, storeError(err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	before := converter.UserToResponse(user)

	if req.FullName != "" {
		user.FullName = entity.CleanName(req.FullName)
	}
	if req.Email != "" {
		user.Email = strings.TrimSpace(req.Email)
	}
	if req.Phone != "" {
		user.Phone = strings.TrimSpace(req.Phone)
	}
	if req.Role != "" {
		role := entity.NormalizeRole(req.Role)
		if role == "" {
			return nil, ErrInvalidRole
		}
		if user.IsPrimaryAdmin() && role != entity.RoleAdmin {
			return nil, ErrPrimaryAdminProtected
		}
		user.Role = role
	}
	deactivated := false
	if req.IsActive != nil {
		if user.IsPrimaryAdmin() && !*req.IsActive {
			return nil, ErrPrimaryAdminProtected
		}
		deactivated = user.IsActive && !*req.IsActive
		user.IsActive = *req.IsActive
	}

	if err := u.userRepo.Update(tx, user); err != nil {
		u.log.Warnf("Failed to update user: %+v", err)
		return nil, storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  middleware.ActorFromContext(ctx),
		Action:   entity.AuditActionUserUpdate,
		Entity:   "user",
		EntityID: user.ID.String(),
		Before:   before,
		After:    converter.UserToResponse(user),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return nil, storeError(err)
	}

	if deactivated || before.Role != user.Role {
		if err := u.sessions.RevokeAll(ctx, user.ID); err != nil {
			u.log.Warnf("Failed to revoke sessions of user %s: %+v", user.ID, err)
		}
	}

	return converter.UserToResponse(user), nil
}

func (u *userUsecase) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tx, err := begin(ctx, u.db)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	user, err := u.userRepo.FindByID(tx, id)
	if err != nil {
		u.log.Warnf("Failed to find user by ID: %+v", err)
		return storeError(err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.IsPrimaryAdmin() {
		return ErrPrimaryAdminProtected
	}

	if err := u.userRepo.Delete(tx, id); err != nil {
		u.log.Warnf("Failed to delete user: %+v", err)
		return storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  middleware.ActorFromContext(ctx),
		Action:   entity.AuditActionUserDelete,
		Entity:   "user",
		EntityID: id.String(),
		Before:   converter.UserToResponse(user),
	}); err != nil {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return storeError(err)
	}

	if err := u.sessions.RevokeAll(ctx, id); err != nil {
		u.log.Warnf("Failed to revoke sessions of user %s: %+v", id, err)
	}
	return nil
}

// ResetPassword sets a new password chosen by an administrator and ends the user's sessions.
// The stored hash is never returned.
func (u *userUsecase) ResetPassword(ctx context.Context, id uuid.UUID, req *dto.AdminResetPasswordRequest) error {
	tx, err := begin(ctx, u.db)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	user, err := u.userRepo.FindByID(tx, id)
	if err != nil {
		u.log.Warnf("Failed to find user by ID: %+v", err)
		return storeError(err)
	}
	if user == nil {
		return ErrUserNotFound
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		u.log.Warnf("Failed to hash password: %+v", err)
		return err
	}
	user.Password = string(hashedPassword)

	if err := u.userRepo.Update(tx, user); err != nil {
		u.log.Warnf("Failed to update user password: %+v", err)
		return storeError(err)
	}

	if err := u.audit.Record(tx, service.AuditEntry{
		ActorID:  middleware.ActorFromContext(ctx),
		Action:   entity.AuditActionPasswordReset,
		Entity:   "user",
		EntityID: id.String(),
		After:    map[string]interface{}{"via": "admin"},
	}); err != nil {
		return err
	}

	if err := tx.Commit().Error; err != nil {
		u.log.Warnf("Failed commit transaction: %+v", err)
		return storeError(err)
	}

	return u.sessions.RevokeAll(ctx, id)
}

// EnsureDefaultUsers creates each seed account whose username is not taken yet
func (u *userUsecase) EnsureDefaultUsers(ctx context.Context, seeds []SeedUser) error {
	db := u.db.WithContext(ctx)
	for _, seed := range seeds {
		existing, err := u.userRepo.FindByUsername(db, seed.Username)
		if err != nil {
			u.log.Warnf("Failed to find user by username: %+v", err)
			return storeError(err)
		}
		if existing != nil {
			continue
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		user := &entity.User{
			ID:       uuid.New(),
			Username: seed.Username,
			Password: string(hashedPassword),
			FullName: seed.FullName,
			Role:     seed.Role,
			IsActive: true,
		}
		if err := u.userRepo.Create(db, user); err != nil && !isDuplicateKeyError(err, "usuario") {
			u.log.Warnf("Failed to seed user %s: %+v", seed.Username, err)
			return storeError(err)
		}
		u.log.Infof("Seeded default user %s (%s)", seed.Username, seed.Role)
	}
	return nil
}
