package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"resume-builder-go/internal/agent"
	"resume-builder-go/internal/resume"
	"resume-builder-go/internal/tracing"
)

const systemPrompt = `You are an expert technical recruiter and resume editor.

Your job:
- Analyze a candidate's FULL resume (structured JSON) as a recruiter would, given their target designation.
- Identify corrections and improvements: typos, grammar, tone, clarity, formatting/consistency, and impact.
- Provide section-by-section feedback and field-level issues when possible.
- Validate URL fields (LinkedIn, GitHub, Portfolio URL): if present, they should be valid URLs (prefer https://...).

Output requirements (CRITICAL):
- Output MUST be valid JSON only (no markdown, no prose).
- Output MUST match the provided output schema exactly.
- Do NOT invent employers, degrees, dates, metrics, or URLs. If a value is unknown, comment on the gap; do not fabricate.
- Keep feedback actionable and specific. Prefer concrete rewrites for bullet/description fields.`

const outputSchema = `{"designation":"string (echo input designation if present, else infer best-fit)","overall_summary":"string","recruiter_feedback":"string","strengths":["string","..."],"risks":["string","..."],"sections":[{"sectionKey":"string","summary":"string","issues":[{"severity":"info|warning|error","category":"typo|grammar|tone|clarity|format|consistency|impact|ats|other","message":"string","suggestion":"string","sectionKey":"string","itemId":"string|null","fieldKey":"string|null","replacement":"string|null"}]}]}`

// DefaultTemperature 分析调用的采样温度
const DefaultTemperature float32 = 0.2

// Analyzer 调用LLM对简历做招聘视角的分析
type Analyzer struct {
	engine      *resume.Engine
	policy      agent.RetryPolicy
	temperature float32
}

// Option Analyzer 的配置选项
type Option func(*Analyzer)

// WithRetryPolicy 设置LLM调用的重试策略
func WithRetryPolicy(p agent.RetryPolicy) Option {
	return func(a *Analyzer) {
		a.policy = p
	}
}

// WithTemperature 设置采样温度
func WithTemperature(t float32) Option {
	return func(a *Analyzer) {
		a.temperature = t
	}
}

// NewAnalyzer 创建分析器
func NewAnalyzer(engine *resume.Engine, opts ...Option) *Analyzer {
	a := &Analyzer{
		engine:      engine,
		policy:      agent.DefaultRetryPolicy(),
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze 先升级文档，再请求模型分析并对结果做严格解码与对齐
func (a *Analyzer) Analyze(ctx context.Context, gen agent.Generator, doc resume.Document) (*Result, error) {
	upgraded := a.engine.Upgrader().UpgradeDocument(doc)

	userPrompt, err := a.buildUserPrompt(upgraded)
	if err != nil {
		return nil, err
	}

	log := zerolog.Ctx(ctx)
	log.Debug().Str("designation", Designation(upgraded)).Int("prompt_chars", len(userPrompt)).Msg("开始简历分析")

	content, err := agent.Complete(ctx, gen, a.policy, systemPrompt, userPrompt, model.WithTemperature(a.temperature))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: 模型返回空内容", ErrInvalidOutput)
	}

	var result *Result
	err = agent.DecodeObject(content, func(data []byte) error {
		r, decodeErr := Decode(data)
		if decodeErr != nil {
			return decodeErr
		}
		result = r
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("content", tracing.SafeLLMOutput(content)).Msg("分析结果解析失败")
		if errors.Is(err, agent.ErrNoJSON) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
		return nil, err
	}

	if err := Reconcile(result, upgraded, a.engine.Registry()); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Analyzer) buildUserPrompt(doc resume.Document) (string, error) {
	schemaJSON, err := marshalNoEscape(a.engine.Registry().PromptView())
	if err != nil {
		return "", fmt.Errorf("序列化简历结构失败: %w", err)
	}
	snapshot, err := marshalNoEscape(doc)
	if err != nil {
		return "", fmt.Errorf("序列化简历快照失败: %w", err)
	}

	designation := Designation(doc)
	if designation == "" {
		designation = "(missing)"
	}

	var sb strings.Builder
	sb.WriteString("Target designation:\n")
	sb.WriteString(designation)
	sb.WriteString("\n\nResume schema (input reference):\n")
	sb.WriteString(schemaJSON)
	sb.WriteString("\n\nResume snapshot (input data):\n")
	sb.WriteString(snapshot)
	sb.WriteString("\n\nOutput schema (you MUST match this exactly):\n")
	sb.WriteString(outputSchema)
	return sb.String(), nil
}

func marshalNoEscape(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
