package entity

import (
	"time"

	"github.com/google/uuid"
)

// PrimaryAdminUsername is the seeded administrator account that cannot be deleted
const PrimaryAdminUsername = "admin"

// User represents a staff account
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Username  string     `gorm:"column:usuario;type:varchar(80);uniqueIndex;not null" json:"usuario"`
	Password  string     `gorm:"column:password_hash;type:text;not null" json:"-"`
	FullName  string     `gorm:"column:nombre_completo;type:varchar(200);not null" json:"nombre_completo"`
	Email     string     `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone     string     `gorm:"column:telefono;type:varchar(30)" json:"telefono,omitempty"`
	Role      string     `gorm:"column:rol;type:varchar(30);not null;index" json:"rol"`
	IsActive  bool       `gorm:"column:activo;not null;default:true" json:"activo"`
	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsReceptionist() bool {
	return u.Role == RoleReception
}

func (u *User) IsPrimaryAdmin() bool {
	return u.Username == PrimaryAdminUsername
}
