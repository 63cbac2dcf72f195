package model

import "time"

type Role string

const (
	RoleFacilitator Role = "project_manager"
	RoleParticipant Role = "developer"
)

// User is a stored account. PasswordHash never leaves the service layer.
type User struct {
	ID           string    `json:"userId" bson:"userId"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Role         Role      `json:"role" bson:"role"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// Identity is the authenticated caller attached to every mutating operation
type Identity struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   Role   `json:"role"`
}

func (i Identity) IsFacilitator() bool {
	return i.Role == RoleFacilitator
}

func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
