package models

import "time"

// LedgerKind names one of the per-user project sets.
type LedgerKind string

const (
	KindMember LedgerKind = "member"
	KindViewed LedgerKind = "viewed"
	KindRated  LedgerKind = "rated"
)

// LedgerEntry records that a user belongs to, has viewed, or has rated a
// project. The unique index over (user, project, kind) gives each set its
// no-duplicates guarantee.
type LedgerEntry struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserRef   string     `gorm:"column:user_entity_ref;size:255;not null;uniqueIndex:idx_ledger_user_project_kind,priority:1" json:"user_entity_ref"`
	ProjectID uint       `gorm:"column:project_id;not null;uniqueIndex:idx_ledger_user_project_kind,priority:2;index" json:"project_id"`
	Kind      LedgerKind `gorm:"column:kind;size:16;not null;uniqueIndex:idx_ledger_user_project_kind,priority:3" json:"kind"`
	CreatedAt time.Time  `json:"created_at"`
}

func (LedgerEntry) TableName() string { return "ios_user_projects" }
