package model

import "github.com/golang-jwt/jwt/v5"

// UserClaims are JWT claims carrying the caller identity
type UserClaims struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest is the request body for login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful login
type LoginResponse struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}
