package models

import "time"

// User is a portal user known to the ledger. Rows are created lazily the first
// time a user joins, views or rates a project.
type User struct {
	ID        uint      `gorm:"column:user_id;primaryKey" json:"user_id"`
	EntityRef string    `gorm:"column:user_entity_ref;size:255;uniqueIndex;not null" json:"user_entity_ref"`
	Avatar    string    `gorm:"column:user_avatar;type:text" json:"user_avatar"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string { return "ios_users" }
