package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"resume-builder-go/internal/agent"
	"resume-builder-go/internal/resume"
)

// MinExtractedTextChars 可用简历文本的最少字符数
const MinExtractedTextChars = 50

var (
	// ErrUnreadableText 文本过短，无法识别为简历
	ErrUnreadableText = errors.New("无法从文本中读取到有效的简历内容，请提供可复制文字的简历")
	// ErrInvalidOutput 模型输出不是合法的简历JSON
	ErrInvalidOutput = errors.New("LLM输出不是合法的简历JSON")
)

const importSystemPrompt = `You are a resume extraction engine.

Input: plain text extracted from a user's resume (may contain headers/footers, layout artifacts, and duplicated lines).
Goal: convert the resume into our application's canonical JSON structure.

Output requirements (CRITICAL):
- Output MUST be valid JSON only (no markdown, no prose).
- Output MUST match the provided schema exactly:
  - Top-level object: {"sections": [...]}
  - "sections" MUST include every section exactly once, in the exact order shown in the schema.
  - Each section object MUST be: {"sectionKey": string, "items": [{"id": string, "values": {...}} , ...]}
  - For every item, "id" MUST be present and MUST be the empty string "" (the server will assign IDs).
  - For every item, "values" MUST contain ALL field keys for that section.
  - ALL values MUST be strings. If the source is numeric (e.g., GPA), output it as a string like "3.8" (not a JSON number).
  - If a value is unknown/missing, set it to the empty string "".
  - Do not invent credentials, dates, or URLs. Keep unknowns empty.
  - Do not include any additional keys.
  - For single-entry sections, output at most one item.

Normalization guidance:
- Preserve original casing for names/companies where possible.
- Prefer ISO-like dates when clear (YYYY-MM or YYYY-MM-DD). Otherwise keep the original string.
- For rich text "Description" fields, output plain text with newlines and bullets as "-" lines.
- For URL fields (e.g., LinkedIn, GitHub, Portfolio URL), output a valid URL. Prefer full URLs starting with "https://".`

var blankLines = regexp.MustCompile(`\n{3,}`)

// TextImporter 使用LLM把纯文本简历转换为规范文档
type TextImporter struct {
	engine      *resume.Engine
	policy      agent.RetryPolicy
	minChars    int
	temperature float32
}

// TextImporterOption 导入器配置选项
type TextImporterOption func(*TextImporter)

// WithImportRetryPolicy 设置LLM调用的重试策略
func WithImportRetryPolicy(p agent.RetryPolicy) TextImporterOption {
	return func(t *TextImporter) {
		t.policy = p
	}
}

// WithMinChars 设置可用文本的最少字符数
func WithMinChars(n int) TextImporterOption {
	return func(t *TextImporter) {
		if n > 0 {
			t.minChars = n
		}
	}
}

// NewTextImporter 创建导入器，默认温度为0
func NewTextImporter(engine *resume.Engine, opts ...TextImporterOption) *TextImporter {
	t := &TextImporter{
		engine:   engine,
		policy:   agent.DefaultRetryPolicy(),
		minChars: MinExtractedTextChars,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NormalizeText 统一换行、去除首尾空白并压缩连续空行
func NormalizeText(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\x00", "")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	text = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}

// CheckReadable 规整文本并检查长度
func (t *TextImporter) CheckReadable(text string) (string, error) {
	normalized := NormalizeText(text)
	if utf8.RuneCountInString(normalized) < t.minChars {
		return "", ErrUnreadableText
	}
	return normalized, nil
}

// Import 调用模型抽取结构，升级后校验；文本必须先通过 CheckReadable
func (t *TextImporter) Import(ctx context.Context, gen agent.Generator, text string) (resume.Document, error) {
	normalized, err := t.CheckReadable(text)
	if err != nil {
		return resume.Document{}, err
	}

	userPrompt, err := t.buildUserPrompt(normalized)
	if err != nil {
		return resume.Document{}, err
	}

	log := zerolog.Ctx(ctx)
	log.Debug().Int("text_chars", utf8.RuneCountInString(normalized)).Msg("开始抽取简历结构")

	content, err := agent.Complete(ctx, gen, t.policy, importSystemPrompt, userPrompt, model.WithTemperature(t.temperature))
	if err != nil {
		return resume.Document{}, err
	}

	var raw resume.Value
	err = agent.DecodeObject(content, func(data []byte) error {
		v, parseErr := resume.ParseValue(data)
		if parseErr != nil {
			return parseErr
		}
		raw = v
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("模型输出无法解析为JSON")
		return resume.Document{}, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if raw.Kind() != resume.KindMapping {
		return resume.Document{}, fmt.Errorf("%w: 顶层必须是对象", ErrInvalidOutput)
	}
	if sections, ok := raw.Get("sections"); !ok || sections.Kind() != resume.KindSequence {
		return resume.Document{}, fmt.Errorf("%w: 缺少 sections 数组", ErrInvalidOutput)
	}

	doc, err := t.engine.UpgradeAndValidate(raw)
	if err != nil {
		return resume.Document{}, err
	}
	log.Debug().Bool("has_content", doc.HasContent()).Int("items", len(doc.ItemIDs())).Msg("简历结构抽取完成")
	return doc, nil
}

func (t *TextImporter) buildUserPrompt(text string) (string, error) {
	schemaJSON, err := json.Marshal(t.engine.Registry().PromptView())
	if err != nil {
		return "", fmt.Errorf("序列化简历结构失败: %w", err)
	}
	return "Schema:\n" + string(schemaJSON) + "\n\nResume text:\n" + text, nil
}
