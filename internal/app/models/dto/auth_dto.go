package dto

import "time"

// LoginRequest represents admin login credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"admin123"`
}

// SessionResponse describes the current admin session
type SessionResponse struct {
	Username  string    `json:"username" example:"admin"`
	ExpiresAt time.Time `json:"expiresAt"`
}
