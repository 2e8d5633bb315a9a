package models

import "time"

/** --------------------ENTITIES-------------------- */
// Message is a persisted chat message. Rows are only ever appended.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    uint      `gorm:"not null;index:idx_messages_room_timestamp,priority:1" json:"room_id"`
	SenderID  uint      `gorm:"not null;index" json:"sender_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Timestamp time.Time `gorm:"autoCreateTime;index:idx_messages_room_timestamp,priority:2" json:"timestamp"`

	Room   ChatRoom `gorm:"foreignKey:RoomID" json:"-"`
	Sender User     `gorm:"foreignKey:SenderID" json:"-"`
}

/** -------------------- DTOs -------------------- */
// MessageResponse is a history row joined with the sender's username
type MessageResponse struct {
	ID             uint      `json:"id"`
	RoomID         uint      `json:"room_id"`
	SenderID       uint      `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
}
