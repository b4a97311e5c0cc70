package domain

import "time"

type User struct {
	ID           uint64
	Username     string
	Name         string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
