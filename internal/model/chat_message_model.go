package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatId    uuid.UUID `gorm:"type:uuid;not null;index"`
	Role      string    `gorm:"type:varchar(50);not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	// Enforces the chats.id foreign key on AutoMigrate.
	Chat *Chat `gorm:"foreignKey:ChatId;constraint:OnDelete:CASCADE"`
}

func (ChatMessage) TableName() string {
	return "messages"
}
