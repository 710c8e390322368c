package users

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// CreateUserDTO carries the fields needed to insert a user.
type CreateUserDTO struct {
	Email              string
	FirstName          string
	LastName           string
	PasswordHash       string
	MustUpdatePassword bool
	LegacyID           *int64
}

// ToModel converts the DTO into a GORM model. Emails are stored lower case.
func (dto CreateUserDTO) ToModel() *models.User {
	return &models.User{
		Email:              NormalizeEmail(dto.Email),
		FirstName:          strings.TrimSpace(dto.FirstName),
		LastName:           strings.TrimSpace(dto.LastName),
		PasswordHash:       dto.PasswordHash,
		MustUpdatePassword: dto.MustUpdatePassword,
		LegacyID:           dto.LegacyID,
	}
}

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
}

func FromModel(u models.User) UserDTO {
	return UserDTO{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
