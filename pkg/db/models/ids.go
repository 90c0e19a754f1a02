package models

import "github.com/google/uuid"

// assignID fills a missing primary key before insert.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
