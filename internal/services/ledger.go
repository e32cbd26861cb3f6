package services

import (
	"context"
	"errors"
	"strings"

	"github.com/ioscatalog/ios/backend/internal/models"
	"github.com/ioscatalog/ios/backend/internal/utils"
	"github.com/ioscatalog/ios/backend/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService keeps the per-user project sets: projects a user is a member
// of, has viewed, and has rated. Each set is a group of ios_user_projects rows.
type LedgerService struct {
	db *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// MemberInfo is one member of a project as shown on the project page.
type MemberInfo struct {
	UserRef string `json:"user_entity_ref"`
	Avatar  string `json:"user_avatar"`
}

// UserLedger is a user together with all three of their project sets.
type UserLedger struct {
	models.User
	MemberOf []uint `json:"user_projects_ids"`
	Viewed   []uint `json:"viewed_projects_ids"`
	Rated    []uint `json:"rated_projects_ids"`
}

func cleanUserRef(ref string) (string, error) {
	ref = utils.NormalizeUserRef(ref)
	if ref == "" {
		return "", response.NewBadRequest("user_entity_ref is required")
	}
	return ref, nil
}

// ensureUser creates the user row on first contact. A non-empty avatar
// replaces the stored one.
func ensureUser(tx *gorm.DB, ref, avatar string) error {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_entity_ref"}},
		DoNothing: true,
	}
	if avatar != "" {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_entity_ref"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_avatar", "updated_at"}),
		}
	}
	user := models.User{EntityRef: ref, Avatar: avatar}
	if err := tx.Clauses(onConflict).Create(&user).Error; err != nil {
		return storeError("register user", err)
	}
	return nil
}

// addEntry inserts the (user, project, kind) row unless it already exists and
// reports whether a row was written.
func addEntry(tx *gorm.DB, ref string, projectID uint, kind models.LedgerKind) (bool, error) {
	entry := models.LedgerEntry{UserRef: ref, ProjectID: projectID, Kind: kind}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return false, storeError("add "+string(kind)+" entry", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// removeEntry deletes the (user, project, kind) row and reports whether one existed.
func removeEntry(tx *gorm.DB, ref string, projectID uint, kind models.LedgerKind) (bool, error) {
	result := tx.Where("user_entity_ref = ? AND project_id = ? AND kind = ?", ref, projectID, kind).
		Delete(&models.LedgerEntry{})
	if result.Error != nil {
		return false, storeError("remove "+string(kind)+" entry", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func projectIDs(tx *gorm.DB, ref string, kind models.LedgerKind) ([]uint, error) {
	ids := []uint{}
	err := tx.Model(&models.LedgerEntry{}).
		Where("user_entity_ref = ? AND kind = ?", ref, kind).
		Order("project_id").
		Pluck("project_id", &ids).Error
	if err != nil {
		return nil, storeError("list "+string(kind)+" projects", err)
	}
	return ids, nil
}

// record registers the user and adds one entry in a single transaction.
func (s *LedgerService) record(ctx context.Context, ref string, projectID uint, kind models.LedgerKind, avatar string) (bool, error) {
	ref, err := cleanUserRef(ref)
	if err != nil {
		return false, err
	}

	var added bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireProject(tx, projectID); err != nil {
			return err
		}
		if err := ensureUser(tx, ref, avatar); err != nil {
			return err
		}
		added, err = addEntry(tx, ref, projectID, kind)
		return err
	})
	return added, err
}

// AddMember adds projectID to the user's member set. Adding an existing
// member again is a no-op and reports false.
func (s *LedgerService) AddMember(ctx context.Context, projectID uint, userRef, avatar string) (bool, error) {
	return s.record(ctx, userRef, projectID, models.KindMember, strings.TrimSpace(avatar))
}

func (s *LedgerService) RemoveMember(ctx context.Context, projectID uint, userRef string) (bool, error) {
	ref, err := cleanUserRef(userRef)
	if err != nil {
		return false, err
	}
	return removeEntry(s.db.WithContext(ctx), ref, projectID, models.KindMember)
}

// SetMemberProjects replaces the user's member set with ids. Duplicate ids
// collapse; unknown project ids fail the whole call.
func (s *LedgerService) SetMemberProjects(ctx context.Context, userRef string, ids []uint) ([]uint, error) {
	ref, err := cleanUserRef(userRef)
	if err != nil {
		return nil, err
	}

	unique := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	var result []uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(unique) > 0 {
			var found int64
			if err := tx.Model(&models.Project{}).Where("project_id IN ?", unique).Count(&found).Error; err != nil {
				return storeError("lookup projects", err)
			}
			if int(found) != len(unique) {
				return response.NewNotFound("one or more projects do not exist")
			}
		}
		if err := ensureUser(tx, ref, ""); err != nil {
			return err
		}
		if err := tx.Where("user_entity_ref = ? AND kind = ?", ref, models.KindMember).
			Delete(&models.LedgerEntry{}).Error; err != nil {
			return storeError("clear member projects", err)
		}
		if len(unique) > 0 {
			entries := make([]models.LedgerEntry, 0, len(unique))
			for _, id := range unique {
				entries = append(entries, models.LedgerEntry{UserRef: ref, ProjectID: id, Kind: models.KindMember})
			}
			if err := tx.Create(&entries).Error; err != nil {
				return storeError("set member projects", err)
			}
		}
		var err error
		result, err = projectIDs(tx, ref, models.KindMember)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordView adds projectID to the user's viewed set without touching the
// project's counter. EngagementService pairs the two atomically.
func (s *LedgerService) RecordView(ctx context.Context, userRef string, projectID uint) (bool, error) {
	return s.record(ctx, userRef, projectID, models.KindViewed, "")
}

func (s *LedgerService) RecordRating(ctx context.Context, userRef string, projectID uint) (bool, error) {
	return s.record(ctx, userRef, projectID, models.KindRated, "")
}

func (s *LedgerService) RemoveRating(ctx context.Context, userRef string, projectID uint) (bool, error) {
	ref, err := cleanUserRef(userRef)
	if err != nil {
		return false, err
	}
	return removeEntry(s.db.WithContext(ctx), ref, projectID, models.KindRated)
}

// GetViewed returns the ids of projects the user has viewed. Unknown users
// have an empty set.
func (s *LedgerService) GetViewed(ctx context.Context, userRef string) ([]uint, error) {
	return s.list(ctx, userRef, models.KindViewed)
}

func (s *LedgerService) GetRated(ctx context.Context, userRef string) ([]uint, error) {
	return s.list(ctx, userRef, models.KindRated)
}

func (s *LedgerService) GetMemberProjects(ctx context.Context, userRef string) ([]uint, error) {
	return s.list(ctx, userRef, models.KindMember)
}

func (s *LedgerService) list(ctx context.Context, userRef string, kind models.LedgerKind) ([]uint, error) {
	ref, err := cleanUserRef(userRef)
	if err != nil {
		return nil, err
	}
	return projectIDs(s.db.WithContext(ctx), ref, kind)
}

// GetMembersOfProject lists the members of a project with their avatars.
func (s *LedgerService) GetMembersOfProject(ctx context.Context, projectID uint) ([]MemberInfo, error) {
	members := []MemberInfo{}
	err := s.db.WithContext(ctx).
		Table("ios_user_projects AS e").
		Select("e.user_entity_ref AS user_ref, COALESCE(u.user_avatar, '') AS avatar").
		Joins("LEFT JOIN ios_users AS u ON u.user_entity_ref = e.user_entity_ref").
		Where("e.project_id = ? AND e.kind = ?", projectID, models.KindMember).
		Order("e.id").
		Scan(&members).Error
	if err != nil {
		return nil, storeError("list project members", err)
	}
	return members, nil
}

// GetUser returns the user row with all three project sets.
func (s *LedgerService) GetUser(ctx context.Context, userRef string) (*UserLedger, error) {
	ref, err := cleanUserRef(userRef)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.First(&user, "user_entity_ref = ?", ref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", ref)
		}
		return nil, storeError("get user", err)
	}

	ledger := &UserLedger{User: user}
	if ledger.MemberOf, err = projectIDs(db, ref, models.KindMember); err != nil {
		return nil, err
	}
	if ledger.Viewed, err = projectIDs(db, ref, models.KindViewed); err != nil {
		return nil, err
	}
	if ledger.Rated, err = projectIDs(db, ref, models.KindRated); err != nil {
		return nil, err
	}
	return ledger, nil
}
