package models

import "time"

// 发件箱消息状态
const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 简历事件类型，同时用作路由键
const (
	EventResumeImported = "resume.imported"
	EventResumeUpdated  = "resume.updated"
	EventResumeDeleted  = "resume.deleted"
	EventResumeAnalyzed = "resume.analyzed"
)

// OutboxMessage 与业务写入同一事务落库、由中继异步发布的消息
type OutboxMessage struct {
	ID               uint64     `gorm:"primaryKey;autoIncrement"`
	AggregateID      string     `gorm:"type:varchar(36);not null;index"`
	EventType        string     `gorm:"type:varchar(255);not null"`
	Payload          string     `gorm:"type:json;not null"`
	TargetExchange   string     `gorm:"type:varchar(255);not null"`
	TargetRoutingKey string     `gorm:"type:varchar(255);not null"`
	Status           string     `gorm:"type:varchar(20);default:'PENDING';not null;index:idx_outbox_status_created_at"`
	RetryCount       int        `gorm:"default:0"`
	CreatedAt        time.Time  `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_outbox_status_created_at,sort:asc"`
	ProcessedAt      *time.Time `gorm:"type:datetime(6);null"`
	ErrorMessage     string     `gorm:"type:text"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// ResumeEvent 发件箱消息体
type ResumeEvent struct {
	EventType  string    `json:"event_type"`
	ResumeID   string    `json:"resume_id"`
	UserEmail  string    `json:"user_email"`
	AnalysisID string    `json:"analysis_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
