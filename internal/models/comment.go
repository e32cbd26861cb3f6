package models

import "time"

// Comment is either a top-level comment on a project (ParentID nil) or a
// reply to one.
type Comment struct {
	ID        uint      `gorm:"column:comment_id;primaryKey" json:"comment_id"`
	ProjectID uint      `gorm:"column:project_id_ref;not null;index" json:"project_id_ref"`
	ParentID  *uint     `gorm:"column:comment_id_ref;index" json:"comment_id_ref"`
	UserRef   string    `gorm:"column:user_id_ref;size:255;not null" json:"user_id_ref"`
	Text      string    `gorm:"column:comment_text;type:text;not null" json:"comment_text"`
	Date      time.Time `gorm:"column:comment_date;not null;index" json:"comment_date"`
	Version   string    `gorm:"column:comment_version;size:100;not null" json:"comment_version"`
}

func (Comment) TableName() string { return "ios_comments" }

func (c *Comment) IsReply() bool { return c.ParentID != nil }
