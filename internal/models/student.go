package models

import "time"

// Student is a learner record. LastName and Age are nullable and serialise
// as JSON null when unset.
type Student struct {
	ID        int64     `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  *string   `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	Age       *int      `db:"age" json:"age"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StudentPayload documents the accepted request body. Handlers decode bodies
// into a generic map so absent and null fields stay distinguishable.
type StudentPayload struct {
	FirstName string  `json:"first_name" example:"Ada"`
	LastName  *string `json:"last_name" example:"Lovelace"`
	Email     string  `json:"email" example:"ada@example.com"`
	Age       *int    `json:"age" example:"36"`
}
