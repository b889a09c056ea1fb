package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"resume-builder-go/internal/analysis"
	"resume-builder-go/internal/storage/models"
	"resume-builder-go/internal/tracing"
)

// AnalysisView 分析接口的响应体
type AnalysisView struct {
	analysis.Result
	AnalysisID string    `json:"analysis_id"`
	CreatedAt  time.Time `json:"created_at"`
	Model      string    `json:"model"`
}

// Analyze 对简历做一次分析并保存结果
func (s *ResumeService) Analyze(ctx context.Context, session *models.Session, id string) (*AnalysisView, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.Analyze")
	defer span.End()
	span.SetAttributes(attribute.String("resume.id", id), attribute.String("llm.model", s.analysisModel))

	row, err := s.loadReady(ctx, session.Email, id)
	if err != nil {
		return nil, err
	}
	doc := s.engine.Upgrader().UpgradeJSON(row.NormalizedJSON)

	gen, err := s.models.NewModel(session.OpenAIKey, s.analysisModel)
	if err != nil {
		return nil, tracing.Fail(span, wrapLLMError(id, "analyze", err), tracing.ErrorTypeLLM)
	}
	result, err := s.analyzer.Analyze(ctx, gen, doc)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("resume_id", id).Msg("简历分析失败")
		return nil, tracing.Fail(span, wrapLLMError(id, "analyze", err), tracing.ErrorTypeLLM)
	}

	source, err := json.Marshal(doc)
	if err != nil {
		return nil, &OperationError{ResumeID: id, Op: "analyze", BaseErr: err}
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, &OperationError{ResumeID: id, Op: "analyze", BaseErr: err}
	}

	record := &models.ResumeAnalysis{
		ResumeID:     id,
		UserEmail:    session.Email,
		SourceJSON:   source,
		AnalysisJSON: payload,
		Model:        s.analysisModel,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateAnalysis(ctx, record); err != nil {
		return nil, tracing.Fail(span, s.storeError(id, "analyze", err), tracing.ErrorTypeDB)
	}

	zerolog.Ctx(ctx).Info().Str("resume_id", id).Str("analysis_id", record.ID).Msg("简历分析完成")
	return &AnalysisView{
		Result:     *result,
		AnalysisID: record.ID,
		CreatedAt:  record.CreatedAt,
		Model:      record.Model,
	}, nil
}

// ListAnalyses 列出简历的历史分析，最新的在前
func (s *ResumeService) ListAnalyses(ctx context.Context, owner, id string) ([]AnalysisView, error) {
	if _, err := s.store.GetResume(ctx, owner, id); err != nil {
		return nil, s.storeError(id, "list_analyses", err)
	}
	rows, err := s.store.ListAnalyses(ctx, owner, id)
	if err != nil {
		return nil, s.storeError(id, "list_analyses", err)
	}

	views := make([]AnalysisView, 0, len(rows))
	for _, row := range rows {
		var result analysis.Result
		if err := json.Unmarshal(row.AnalysisJSON, &result); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("analysis_id", row.ID).Msg("跳过无法解析的分析记录")
			continue
		}
		views = append(views, AnalysisView{
			Result:     result,
			AnalysisID: row.ID,
			CreatedAt:  row.CreatedAt,
			Model:      row.Model,
		})
	}
	return views, nil
}
