package models

import "time"

/** --------------------ENTITIES-------------------- */
// User is an account that can open relay connections
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	// Rooms and messages go away with their owner
	CreatedRooms []ChatRoom `gorm:"foreignKey:CreatedBy;constraint:OnDelete:CASCADE" json:"-"`
	SentMessages []Message  `gorm:"foreignKey:SenderID;constraint:OnDelete:CASCADE" json:"-"`
}

/** -------------------- DTOs -------------------- */
// Request
type RegisterRequest struct {
	Username string `json:"username" form:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
}

// LoginRequest is accepted as JSON or as an OAuth2-style password form
type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// Response
type UserResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
