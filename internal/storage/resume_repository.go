package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"resume-builder-go/internal/storage/models"
)

// ErrNotFound 记录不存在，或不属于当前用户
var ErrNotFound = errors.New("记录不存在")

// ErrStaleWrite 条件写入时记录已在读取之后被修改或删除
var ErrStaleWrite = errors.New("简历已被并发修改")

// NewRowID 生成按时间有序的行ID
func NewRowID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("生成UUIDv7失败: %w", err)
	}
	return id.String(), nil
}

// newResumeEventMessage 构造与业务写入同事务落库的发件箱消息
func (m *MySQL) newResumeEventMessage(event models.ResumeEvent) (*models.OutboxMessage, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("序列化简历事件失败: %w", err)
	}
	return &models.OutboxMessage{
		AggregateID:      event.ResumeID,
		EventType:        event.EventType,
		Payload:          string(payload),
		TargetExchange:   m.eventsExchange,
		TargetRoutingKey: event.EventType,
		Status:           models.OutboxStatusPending,
	}, nil
}

func (m *MySQL) enqueueEvent(tx *gorm.DB, event models.ResumeEvent) error {
	if m.eventsExchange == "" {
		return nil
	}
	msg, err := m.newResumeEventMessage(event)
	if err != nil {
		return err
	}
	if err := tx.Create(msg).Error; err != nil {
		return fmt.Errorf("写入发件箱失败: %w", err)
	}
	return nil
}

// CreateResume 为用户创建一条尚无内容的简历记录
func (m *MySQL) CreateResume(ctx context.Context, owner string) (*models.Resume, error) {
	id, err := NewRowID()
	if err != nil {
		return nil, err
	}
	r := &models.Resume{ID: id, UserEmail: owner}
	if err := m.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, fmt.Errorf("创建简历记录失败: %w", err)
	}
	return r, nil
}

// ListResumes 按创建时间倒序列出用户的简历
func (m *MySQL) ListResumes(ctx context.Context, owner string) ([]models.Resume, error) {
	var rows []models.Resume
	err := m.db.WithContext(ctx).
		Where("user_email = ?", owner).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询简历列表失败: %w", err)
	}
	return rows, nil
}

// GetResume 读取用户的一份简历
func (m *MySQL) GetResume(ctx context.Context, owner, id string) (*models.Resume, error) {
	var r models.Resume
	err := m.db.WithContext(ctx).Where("id = ? AND user_email = ?", id, owner).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询简历失败: %w", err)
	}
	return &r, nil
}

// SaveResumeDocument 写入规范化文档，并在同一事务中记录简历事件
func (m *MySQL) SaveResumeDocument(ctx context.Context, owner, id string, doc []byte, eventType string) error {
	return m.saveDocument(ctx, owner, id, nil, doc, eventType)
}

// SaveResumeDocumentIfUnchanged 仅当 updated_at 仍等于读取时的值才写入，否则返回 ErrStaleWrite。
// 后台升级回写使用它，避免覆盖读取之后用户的保存。
func (m *MySQL) SaveResumeDocumentIfUnchanged(ctx context.Context, owner, id string, readAt time.Time, doc []byte, eventType string) error {
	return m.saveDocument(ctx, owner, id, &readAt, doc, eventType)
}

func (m *MySQL) saveDocument(ctx context.Context, owner, id string, readAt *time.Time, doc []byte, eventType string) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.Resume{}).Where("id = ? AND user_email = ?", id, owner)
		if readAt != nil {
			query = query.Where("updated_at = ?", *readAt)
		}
		res := query.Updates(map[string]any{
			"normalized_json": datatypes.JSON(doc),
			"updated_at":      time.Now().Truncate(time.Microsecond),
		})
		if res.Error != nil {
			return fmt.Errorf("更新简历失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			if readAt != nil {
				return ErrStaleWrite
			}
			return ErrNotFound
		}
		return m.enqueueEvent(tx, models.ResumeEvent{EventType: eventType, ResumeID: id, UserEmail: owner})
	})
}

// SetImportTextPath 记录导入原文在对象存储中的路径
func (m *MySQL) SetImportTextPath(ctx context.Context, owner, id, path string) error {
	res := m.db.WithContext(ctx).Model(&models.Resume{}).
		Where("id = ? AND user_email = ?", id, owner).
		Update("import_text_path", path)
	if res.Error != nil {
		return fmt.Errorf("更新导入原文路径失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteResume 删除简历及其分析记录
func (m *MySQL) DeleteResume(ctx context.Context, owner, id string) (*models.Resume, error) {
	var deleted models.Resume
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_email = ?", id, owner).First(&deleted).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("查询简历失败: %w", err)
		}
		if err := tx.Where("resume_id = ?", id).Delete(&models.ResumeAnalysis{}).Error; err != nil {
			return fmt.Errorf("删除分析记录失败: %w", err)
		}
		if err := tx.Delete(&models.Resume{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("删除简历失败: %w", err)
		}
		return m.enqueueEvent(tx, models.ResumeEvent{EventType: models.EventResumeDeleted, ResumeID: id, UserEmail: owner})
	})
	if err != nil {
		return nil, err
	}
	return &deleted, nil
}

// CreateAnalysis 保存一次分析结果
func (m *MySQL) CreateAnalysis(ctx context.Context, a *models.ResumeAnalysis) error {
	if a.ID == "" {
		id, err := NewRowID()
		if err != nil {
			return err
		}
		a.ID = id
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Resume").Create(a).Error; err != nil {
			return fmt.Errorf("保存分析结果失败: %w", err)
		}
		return m.enqueueEvent(tx, models.ResumeEvent{
			EventType:  models.EventResumeAnalyzed,
			ResumeID:   a.ResumeID,
			UserEmail:  a.UserEmail,
			AnalysisID: a.ID,
		})
	})
}

// ListAnalyses 按创建时间倒序列出某份简历的分析记录
func (m *MySQL) ListAnalyses(ctx context.Context, owner, resumeID string) ([]models.ResumeAnalysis, error) {
	var rows []models.ResumeAnalysis
	err := m.db.WithContext(ctx).
		Where("resume_id = ? AND user_email = ?", resumeID, owner).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询分析记录失败: %w", err)
	}
	return rows, nil
}

// ListResumesAfter 按ID升序分页遍历全部简历，供批量修复使用
func (m *MySQL) ListResumesAfter(ctx context.Context, afterID string, limit int) ([]models.Resume, error) {
	var rows []models.Resume
	err := m.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("分页查询简历失败: %w", err)
	}
	return rows, nil
}

// CreateSession 保存新签发的会话
func (m *MySQL) CreateSession(ctx context.Context, s *models.Session) error {
	if err := m.db.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("创建会话失败: %w", err)
	}
	return nil
}

// SessionByToken 按会话令牌查询会话
func (m *MySQL) SessionByToken(ctx context.Context, token string) (*models.Session, error) {
	var s models.Session
	err := m.db.WithContext(ctx).Where("session_token = ?", token).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询会话失败: %w", err)
	}
	return &s, nil
}

// DeleteSessionByToken 注销会话
func (m *MySQL) DeleteSessionByToken(ctx context.Context, token string) error {
	res := m.db.WithContext(ctx).Where("session_token = ?", token).Delete(&models.Session{})
	if res.Error != nil {
		return fmt.Errorf("删除会话失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
