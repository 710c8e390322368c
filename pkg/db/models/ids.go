package models

import "github.com/google/uuid"

// assignID fills an unset primary key before insert so rows can be created on
// databases without gen_random_uuid().
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
