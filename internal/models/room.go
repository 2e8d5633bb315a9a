package models

import "time"

/** --------------------ENTITIES-------------------- */
// ChatRoom is a named room; its id scopes relay connections and broker channels
type ChatRoom struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedBy uint      `gorm:"not null;index" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`

	Creator  User      `gorm:"foreignKey:CreatedBy" json:"-"`
	Messages []Message `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE" json:"-"`
}

/** -------------------- DTOs -------------------- */
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

type RoomResponse struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedBy uint      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *ChatRoom) ToResponse() RoomResponse {
	return RoomResponse{
		ID:        r.ID,
		Name:      r.Name,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
	}
}
