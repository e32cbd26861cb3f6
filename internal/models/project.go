package models

import "time"

// Lifecycle statuses offered by the catalog UI. The column is an open string,
// so other values are stored as given.
const (
	StatusConceptualization = "Conceptualization"
	StatusDevelopment       = "Development"
	StatusOnHold            = "On Hold"
	StatusLaunched          = "Launched"
	StatusArchived          = "Archived"
)

// DefaultVersion is reported for projects that were registered without a version.
const DefaultVersion = "default-version"

// Project is an internally open-sourced project registered in the catalog.
type Project struct {
	ID                uint      `gorm:"column:project_id;primaryKey" json:"project_id"`
	EntityRef         string    `gorm:"column:entity_ref;size:255;uniqueIndex;not null" json:"entity_ref"`
	Title             string    `gorm:"column:project_title;size:255;uniqueIndex;not null" json:"project_title"`
	Description       string    `gorm:"column:project_description;type:text" json:"project_description"`
	ManagerUsername   string    `gorm:"column:project_manager_username;size:255" json:"project_manager_username"`
	ManagerRef        string    `gorm:"column:project_manager_ref;size:255" json:"project_manager_ref"`
	TeamOwnerName     string    `gorm:"column:project_team_owner_name;size:255" json:"project_team_owner_name"`
	TeamOwnerRef      string    `gorm:"column:project_team_owner_ref;size:255" json:"project_team_owner_ref"`
	LifeCycleStatus   string    `gorm:"column:project_life_cycle_status;size:50;index" json:"project_life_cycle_status"`
	Rating            int       `gorm:"column:project_rating;not null;default:0" json:"project_rating"`
	Views             int       `gorm:"column:project_views;not null;default:0" json:"project_views"`
	Version           string    `gorm:"column:project_version;size:100" json:"project_version"`
	RepositoryLink    string    `gorm:"column:project_repository_link;size:500" json:"project_repository_link"`
	DocsRef           string    `gorm:"column:project_docs_ref;size:500" json:"project_docs_ref"`
	StartDate         time.Time `gorm:"column:project_start_date;not null" json:"project_start_date"`
	UpdateDate        time.Time `gorm:"column:project_update_date;not null" json:"project_update_date"`
}

func (Project) TableName() string { return "ios_projects" }

// CurrentVersion returns the version comments are tagged with.
func (p *Project) CurrentVersion() string {
	if p.Version == "" {
		return DefaultVersion
	}
	return p.Version
}
