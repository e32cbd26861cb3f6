package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ioscatalog/ios/backend/internal/models"
	"github.com/ioscatalog/ios/backend/pkg/logger"
	"gorm.io/gorm"
)

// AuditEntry describes one audited request.
type AuditEntry struct {
	Level     string
	Module    string
	Action    string
	Message   string
	UserRef   string
	IP        string
	UserAgent string
	Extra     interface{}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

// Record stores an audit entry. Failures are logged and swallowed so that
// auditing never fails the request being audited.
func (s *SystemLogService) Record(ctx context.Context, e AuditEntry) {
	if s == nil || s.db == nil {
		return
	}
	if e.Level == "" {
		e.Level = "info"
	}

	var extraStr string
	if e.Extra != nil {
		if b, err := json.Marshal(e.Extra); err == nil {
			extraStr = string(b)
		}
	}

	row := &models.SystemLog{
		Level:     e.Level,
		Module:    e.Module,
		Action:    e.Action,
		Message:   e.Message,
		UserRef:   e.UserRef,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Extra:     extraStr,
		CreatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		logger.Warn().Err(err).Str("module", e.Module).Str("action", e.Action).Msg("failed to write audit log")
	}
}

type SystemLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	UserRef   string `form:"user_ref"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(ctx context.Context, req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.SystemLog
	var total int64

	query := s.db.WithContext(ctx).Model(&models.SystemLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.UserRef != "" {
		query = query.Where("user_ref = ?", req.UserRef)
	}
	if req.StartDate != "" {
		query = query.Where("created_at >= ?", req.StartDate)
	}
	if req.EndDate != "" {
		query = query.Where("created_at <= ?", req.EndDate+" 23:59:59")
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, storeError("count audit logs", err)
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, storeError("list audit logs", err)
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

func (s *SystemLogService) GetModules(ctx context.Context) ([]string, error) {
	modules := []string{}
	if err := s.db.WithContext(ctx).Model(&models.SystemLog{}).Distinct("module").Order("module").Pluck("module", &modules).Error; err != nil {
		return nil, storeError("list audit modules", err)
	}
	return modules, nil
}

// CleanupOldLogs deletes audit rows older than retentionDays and returns how
// many were removed. A non-positive retention keeps everything.
func (s *SystemLogService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoffTime := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoffTime).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, storeError("cleanup audit logs", result.Error)
	}

	return result.RowsAffected, nil
}
