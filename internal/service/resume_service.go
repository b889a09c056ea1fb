// Package service 组合简历引擎、LLM与存储，实现面向HTTP层的用例
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"resume-builder-go/internal/agent"
	"resume-builder-go/internal/analysis"
	"resume-builder-go/internal/parser"
	"resume-builder-go/internal/resume"
	"resume-builder-go/internal/storage"
	"resume-builder-go/internal/storage/models"
	"resume-builder-go/internal/tracing"
)

var tracer = otel.Tracer("resume-builder-go/service")

// ResumeStore 简历与分析记录的持久化，所有读写都按用户邮箱隔离
type ResumeStore interface {
	CreateResume(ctx context.Context, owner string) (*models.Resume, error)
	ListResumes(ctx context.Context, owner string) ([]models.Resume, error)
	GetResume(ctx context.Context, owner, id string) (*models.Resume, error)
	SaveResumeDocument(ctx context.Context, owner, id string, doc []byte, eventType string) error
	SaveResumeDocumentIfUnchanged(ctx context.Context, owner, id string, readAt time.Time, doc []byte, eventType string) error
	SetImportTextPath(ctx context.Context, owner, id, path string) error
	DeleteResume(ctx context.Context, owner, id string) (*models.Resume, error)
	CreateAnalysis(ctx context.Context, a *models.ResumeAnalysis) error
	ListAnalyses(ctx context.Context, owner, resumeID string) ([]models.ResumeAnalysis, error)
}

var _ ResumeStore = (*storage.MySQL)(nil)

// ResumeView 简历接口的响应体
type ResumeView struct {
	ResumeID string `json:"resume_id"`
	resume.Document
}

// ResumeListItem 简历列表中的一项
type ResumeListItem struct {
	ResumeID   string    `json:"resume_id"`
	CreatedAt  time.Time `json:"created_at"`
	HasContent bool      `json:"has_content"`
	Label      string    `json:"label"`
}

// ResumeService 简历的增删改查、文本导入与分析
type ResumeService struct {
	engine        *resume.Engine
	store         ResumeStore
	archive       storage.TextArchive
	models        agent.ModelFactory
	importer      *parser.TextImporter
	analyzer      *analysis.Analyzer
	importModel   string
	analysisModel string
}

// Option ResumeService 配置选项
type Option func(*ResumeService)

// WithTextArchive 归档导入原文；未设置时不归档
func WithTextArchive(a storage.TextArchive) Option {
	return func(s *ResumeService) {
		s.archive = a
	}
}

// WithModelNames 设置导入与分析使用的模型名
func WithModelNames(importModel, analysisModel string) Option {
	return func(s *ResumeService) {
		if importModel != "" {
			s.importModel = importModel
		}
		if analysisModel != "" {
			s.analysisModel = analysisModel
		}
	}
}

// WithImporter 替换默认的文本导入器
func WithImporter(imp *parser.TextImporter) Option {
	return func(s *ResumeService) {
		s.importer = imp
	}
}

// WithAnalyzer 替换默认的分析器
func WithAnalyzer(a *analysis.Analyzer) Option {
	return func(s *ResumeService) {
		s.analyzer = a
	}
}

// NewResumeService 创建简历服务
func NewResumeService(engine *resume.Engine, store ResumeStore, factory agent.ModelFactory, opts ...Option) *ResumeService {
	s := &ResumeService{
		engine:        engine,
		store:         store,
		models:        factory,
		importModel:   "gpt-4o-mini",
		analysisModel: "gpt-4o-mini",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.importer == nil {
		s.importer = parser.NewTextImporter(engine)
	}
	if s.analyzer == nil {
		s.analyzer = analysis.NewAnalyzer(engine)
	}
	return s
}

// Schema 面向前端的结构视图
func (s *ResumeService) Schema() resume.ClientSchema {
	return s.engine.Registry().ClientView()
}

// List 按创建时间倒序列出用户的简历
func (s *ResumeService) List(ctx context.Context, owner string) ([]ResumeListItem, error) {
	rows, err := s.store.ListResumes(ctx, owner)
	if err != nil {
		return nil, &OperationError{Op: "list", BaseErr: err}
	}
	items := make([]ResumeListItem, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		items = append(items, ResumeListItem{
			ResumeID:   row.ID,
			CreatedAt:  row.CreatedAt,
			HasContent: row.HasContent(),
			Label:      s.label(row, owner),
		})
	}
	return items, nil
}

// label 取个人信息中的 "名 姓"，都为空时退回邮箱
func (s *ResumeService) label(row *models.Resume, fallback string) string {
	if !row.HasContent() {
		return fallback
	}
	doc := s.engine.Upgrader().UpgradeJSON(row.NormalizedJSON)
	item, ok := doc.FirstItem(resume.SectionPersonalInformation)
	if !ok {
		return fallback
	}
	var parts []string
	for _, key := range []string{"first-name", "last-name"} {
		if v := strings.TrimSpace(item.Values[key]); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, " ")
}

// Get 读取简历并升级到当前结构；升级结果与存储不同时回写
func (s *ResumeService) Get(ctx context.Context, owner, id string) (*ResumeView, error) {
	row, err := s.loadReady(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	doc, upgraded, changed, err := UpgradeStored(s.engine.Upgrader(), row.NormalizedJSON)
	if err != nil {
		return nil, &OperationError{ResumeID: id, Op: "get", BaseErr: err}
	}

	if changed {
		log := zerolog.Ctx(ctx).With().Str("resume_id", id).Logger()
		err := s.store.SaveResumeDocumentIfUnchanged(ctx, owner, id, row.UpdatedAt, upgraded, models.EventResumeUpdated)
		switch {
		case errors.Is(err, storage.ErrStaleWrite):
			// 读取之后已有新的保存，放弃回写
			log.Info().Msg("简历已被修改，跳过升级回写")
		case err != nil:
			return nil, s.storeError(id, "upgrade", err)
		default:
			log.Info().Msg("简历结构已升级，已回写存储")
		}
	}
	return &ResumeView{ResumeID: id, Document: doc}, nil
}

// ImportSourceView 归档的导入原文
type ImportSourceView struct {
	ResumeID string `json:"resume_id"`
	Text     string `json:"text"`
}

// ImportSource 读取简历导入时归档的原文；未启用归档或该简历不是文本导入时返回 ErrImportTextNotFound
func (s *ResumeService) ImportSource(ctx context.Context, owner, id string) (*ImportSourceView, error) {
	row, err := s.store.GetResume(ctx, owner, id)
	if err != nil {
		return nil, s.storeError(id, "source", err)
	}
	if s.archive == nil || row.ImportTextPath == "" {
		return nil, &OperationError{ResumeID: id, Op: "source", BaseErr: ErrImportTextNotFound}
	}
	text, err := s.archive.GetImportText(ctx, row.ImportTextPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &OperationError{ResumeID: id, Op: "source", BaseErr: ErrImportTextNotFound}
	}
	if err != nil {
		return nil, &OperationError{ResumeID: id, Op: "source", BaseErr: fmt.Errorf("读取导入原文失败: %w", err)}
	}
	return &ImportSourceView{ResumeID: id, Text: text}, nil
}

// Save 严格校验客户端提交的文档后保存
func (s *ResumeService) Save(ctx context.Context, owner, id string, payload []byte) (*ResumeView, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.Save")
	defer span.End()

	doc, err := s.engine.Validator().ParseStrictJSON(payload)
	if err != nil {
		return nil, tracing.Fail(span, err, tracing.ErrorTypeValidation)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &OperationError{ResumeID: id, Op: "save", BaseErr: err}
	}
	if err := s.store.SaveResumeDocument(ctx, owner, id, data, models.EventResumeUpdated); err != nil {
		return nil, s.storeError(id, "save", err)
	}
	return &ResumeView{ResumeID: id, Document: doc}, nil
}

// Delete 删除简历，归档的导入原文尽力删除
func (s *ResumeService) Delete(ctx context.Context, owner, id string) error {
	row, err := s.store.DeleteResume(ctx, owner, id)
	if err != nil {
		return s.storeError(id, "delete", err)
	}
	if s.archive != nil && row.ImportTextPath != "" {
		if err := s.archive.DeleteImportText(ctx, row.ImportTextPath); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("resume_id", id).Msg("删除导入原文失败")
		}
	}
	return nil
}

// ImportText 用会话的API Key把纯文本简历导入为新简历
func (s *ResumeService) ImportText(ctx context.Context, session *models.Session, text string) (*ResumeView, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.ImportText")
	defer span.End()

	normalized, err := s.importer.CheckReadable(text)
	if err != nil {
		return nil, err
	}

	row, err := s.store.CreateResume(ctx, session.Email)
	if err != nil {
		return nil, tracing.Fail(span, &OperationError{Op: "import", BaseErr: err}, tracing.ErrorTypeDB)
	}
	span.SetAttributes(attribute.String("resume.id", row.ID), attribute.Int("import.text_chars", len([]rune(normalized))))
	log := zerolog.Ctx(ctx).With().Str("resume_id", row.ID).Logger()

	s.archiveText(ctx, &log, session.Email, row.ID, normalized)

	gen, err := s.models.NewModel(session.OpenAIKey, s.importModel)
	if err != nil {
		return nil, tracing.Fail(span, wrapLLMError(row.ID, "import", err), tracing.ErrorTypeLLM)
	}
	doc, err := s.importer.Import(ctx, gen, normalized)
	if err != nil {
		log.Warn().Err(err).Msg("简历文本导入失败")
		return nil, tracing.Fail(span, wrapLLMError(row.ID, "import", err), tracing.ErrorTypeLLM)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &OperationError{ResumeID: row.ID, Op: "import", BaseErr: err}
	}
	if err := s.store.SaveResumeDocument(ctx, session.Email, row.ID, data, models.EventResumeImported); err != nil {
		return nil, tracing.Fail(span, s.storeError(row.ID, "import", err), tracing.ErrorTypeDB)
	}
	log.Info().Int("items", len(doc.ItemIDs())).Msg("简历文本导入完成")
	return &ResumeView{ResumeID: row.ID, Document: doc}, nil
}

func (s *ResumeService) archiveText(ctx context.Context, log *zerolog.Logger, owner, id, text string) {
	if s.archive == nil {
		return
	}
	path, err := s.archive.PutImportText(ctx, id, text)
	if err != nil {
		log.Warn().Err(err).Msg("归档导入原文失败")
		return
	}
	if err := s.store.SetImportTextPath(ctx, owner, id, path); err != nil {
		log.Warn().Err(err).Msg("记录导入原文路径失败")
	}
}

// loadReady 读取简历，不存在或尚无内容时返回对应错误
func (s *ResumeService) loadReady(ctx context.Context, owner, id string) (*models.Resume, error) {
	row, err := s.store.GetResume(ctx, owner, id)
	if err != nil {
		return nil, s.storeError(id, "get", err)
	}
	if !row.HasContent() {
		return nil, &OperationError{ResumeID: id, Op: "get", BaseErr: ErrResumeNotReady}
	}
	return row, nil
}

func (s *ResumeService) storeError(id, op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &OperationError{ResumeID: id, Op: op, BaseErr: ErrResumeNotFound}
	}
	return &OperationError{ResumeID: id, Op: op, BaseErr: fmt.Errorf("存储操作失败: %w", err)}
}

// UpgradeStored 升级存储中的简历JSON，changed 表示规范形式与存储内容不同
func UpgradeStored(up *resume.Upgrader, stored []byte) (doc resume.Document, upgraded []byte, changed bool, err error) {
	doc = up.UpgradeJSON(stored)
	upgraded, err = json.Marshal(doc)
	if err != nil {
		return resume.Document{}, nil, false, err
	}
	return doc, upgraded, !sameJSON(stored, upgraded), nil
}

// sameJSON 语义比较两段JSON，忽略键顺序与空白
func sameJSON(a, b []byte) bool {
	var x, y any
	if json.Unmarshal(a, &x) != nil || json.Unmarshal(b, &y) != nil {
		return false
	}
	return cmp.Equal(x, y)
}
