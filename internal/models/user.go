package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole represents the role of a user within the organization
type UserRole string

const (
	RoleAgency   UserRole = "agency"
	RoleAdmin    UserRole = "admin"
	RoleEmployee UserRole = "employee"
	RoleTrainer  UserRole = "trainer"
)

// User represents a registered member of the organization. Name, email and
// mobile are copied by value into withdrawal request snapshots for audit.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Name         string         `gorm:"type:varchar(100);not null" json:"name"`
	Email        string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	Mobile       string         `gorm:"type:varchar(20);index" json:"mobile"`
	PasswordHash string         `gorm:"type:varchar(255)" json:"-"`
	Role         UserRole       `gorm:"type:varchar(20);default:'agency'" json:"role"`
	IsAdmin      bool           `gorm:"default:false" json:"is_admin"`
	KYCVerified  bool           `gorm:"default:false" json:"kyc_verified"`
	KYCName      string         `gorm:"type:varchar(100)" json:"kyc_name,omitempty"`
	TOTPSecret   string         `gorm:"type:varchar(64)" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate sets a UUID primary key if one was not supplied
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
