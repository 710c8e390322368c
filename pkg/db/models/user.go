package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a storefront customer or staff account.
type User struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email              string    `gorm:"column:email;not null;uniqueIndex"`
	PasswordHash       string    `gorm:"column:password_hash;not null"`
	FirstName          string    `gorm:"column:first_name;not null"`
	LastName           string    `gorm:"column:last_name;not null"`
	MustUpdatePassword bool      `gorm:"column:must_update_password;not null;default:false"`
	LegacyID           *int64    `gorm:"column:legacy_id;uniqueIndex"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// DisplayName is what confirmation emails greet the user with.
func (u User) DisplayName() string {
	if u.FirstName == "" {
		return u.Email
	}
	return u.FirstName
}
