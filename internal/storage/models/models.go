package models

import (
	"time"

	"gorm.io/datatypes"
)

// Session 登录会话，由会话接口签发
type Session struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	Email        string    `gorm:"type:varchar(255);not null;index:idx_sessions_email"`
	SessionToken string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_sessions_token"`
	OpenAIKey    string    `gorm:"column:openai_key;type:varchar(255);not null;uniqueIndex:idx_sessions_openai_key"`
	CreatedAt    time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (Session) TableName() string {
	return "sessions"
}

// Resume 用户的一份简历。NormalizedJSON 为空表示导入尚未完成
type Resume struct {
	ID             string         `gorm:"type:char(36);primaryKey"`
	UserEmail      string         `gorm:"type:varchar(255);not null;index:idx_resumes_owner_created,priority:1"`
	NormalizedJSON datatypes.JSON `gorm:"type:json"`
	ImportTextPath string         `gorm:"type:varchar(1024)"`
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_resumes_owner_created,priority:2"`
	UpdatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (Resume) TableName() string {
	return "resumes"
}

// HasContent 是否已有规范化内容
func (r *Resume) HasContent() bool {
	return len(r.NormalizedJSON) > 0 && string(r.NormalizedJSON) != "null"
}

// ResumeAnalysis 一次简历分析的结果快照
type ResumeAnalysis struct {
	ID           string         `gorm:"type:char(36);primaryKey"`
	ResumeID     string         `gorm:"type:char(36);not null;index:idx_ra_resume_created,priority:1"`
	UserEmail    string         `gorm:"type:varchar(255);not null;index:idx_ra_owner"`
	SourceJSON   datatypes.JSON `gorm:"type:json;not null"`
	AnalysisJSON datatypes.JSON `gorm:"type:json;not null"`
	Model        string         `gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_ra_resume_created,priority:2"`

	Resume *Resume `gorm:"foreignKey:ResumeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ResumeAnalysis) TableName() string {
	return "resume_analyses"
}
