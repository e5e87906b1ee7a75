package domain

import "time"

type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	IsStaff    bool      `json:"is_staff"`
	IsSupplier bool      `json:"is_supplier"`
	CreatedAt  time.Time `json:"created_at"`
}
