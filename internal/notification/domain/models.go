package domain

import "time"

// Token is the latest push token registered by a user's device.
type Token struct {
	UserID    string    `json:"user_id" gorm:"column:user_id;primaryKey;type:text"`
	Token     string    `json:"token" gorm:"column:token;type:text;not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;not null"`
}

// TableName sets the database table name.
func (Token) TableName() string { return "fcm_tokens" }
