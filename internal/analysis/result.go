package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Severity 问题严重程度
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Category 问题类别
type Category string

const (
	CategoryTypo        Category = "typo"
	CategoryGrammar     Category = "grammar"
	CategoryTone        Category = "tone"
	CategoryClarity     Category = "clarity"
	CategoryFormat      Category = "format"
	CategoryConsistency Category = "consistency"
	CategoryImpact      Category = "impact"
	CategoryATS         Category = "ats"
	CategoryOther       Category = "other"
)

var validSeverities = map[Severity]bool{
	SeverityInfo: true, SeverityWarning: true, SeverityError: true,
}

var validCategories = map[Category]bool{
	CategoryTypo: true, CategoryGrammar: true, CategoryTone: true,
	CategoryClarity: true, CategoryFormat: true, CategoryConsistency: true,
	CategoryImpact: true, CategoryATS: true, CategoryOther: true,
}

// ErrInvalidOutput 模型输出不符合分析结果结构
var ErrInvalidOutput = errors.New("LLM输出不符合分析结果结构")

// Issue 字段或条目级别的问题
type Issue struct {
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Message     string   `json:"message"`
	Suggestion  string   `json:"suggestion"`
	SectionKey  string   `json:"sectionKey"`
	ItemID      *string  `json:"itemId"`
	FieldKey    *string  `json:"fieldKey"`
	Replacement *string  `json:"replacement"`
}

// SectionAnalysis 单个区块的分析
type SectionAnalysis struct {
	SectionKey string  `json:"sectionKey"`
	Summary    string  `json:"summary"`
	Issues     []Issue `json:"issues"`
}

// Result 完整的简历分析结果
type Result struct {
	Designation       string            `json:"designation"`
	OverallSummary    string            `json:"overall_summary"`
	RecruiterFeedback string            `json:"recruiter_feedback"`
	Strengths         []string          `json:"strengths"`
	Risks             []string          `json:"risks"`
	Sections          []SectionAnalysis `json:"sections"`
}

// 解码用结构，必填字段用指针以区分缺失
type wireIssue struct {
	Severity    *Severity `json:"severity"`
	Category    *Category `json:"category"`
	Message     *string   `json:"message"`
	Suggestion  *string   `json:"suggestion"`
	SectionKey  *string   `json:"sectionKey"`
	ItemID      *string   `json:"itemId"`
	FieldKey    *string   `json:"fieldKey"`
	Replacement *string   `json:"replacement"`
}

type wireSection struct {
	SectionKey *string     `json:"sectionKey"`
	Summary    *string     `json:"summary"`
	Issues     []wireIssue `json:"issues"`
}

type wireResult struct {
	Designation       *string       `json:"designation"`
	OverallSummary    *string       `json:"overall_summary"`
	RecruiterFeedback *string       `json:"recruiter_feedback"`
	Strengths         []string      `json:"strengths"`
	Risks             []string      `json:"risks"`
	Sections          []wireSection `json:"sections"`
}

// Decode 严格解析分析结果: 拒绝未知键、缺失的必填字段与非法枚举值
func Decode(data []byte) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var w wireResult
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: JSON之后存在多余内容", ErrInvalidOutput)
	}
	return w.toResult()
}

func (w *wireResult) toResult() (*Result, error) {
	var missing []string
	need := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	need("designation", w.Designation != nil)
	need("overall_summary", w.OverallSummary != nil)
	need("recruiter_feedback", w.RecruiterFeedback != nil)
	need("strengths", w.Strengths != nil)
	need("risks", w.Risks != nil)
	need("sections", w.Sections != nil)
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: 缺少字段 %s", ErrInvalidOutput, strings.Join(missing, ", "))
	}

	r := &Result{
		Designation:       *w.Designation,
		OverallSummary:    *w.OverallSummary,
		RecruiterFeedback: *w.RecruiterFeedback,
		Strengths:         w.Strengths,
		Risks:             w.Risks,
		Sections:          make([]SectionAnalysis, 0, len(w.Sections)),
	}
	for i, ws := range w.Sections {
		if ws.SectionKey == nil || ws.Summary == nil || ws.Issues == nil {
			return nil, fmt.Errorf("%w: sections[%d] 缺少 sectionKey、summary 或 issues", ErrInvalidOutput, i)
		}
		sa := SectionAnalysis{SectionKey: *ws.SectionKey, Summary: *ws.Summary, Issues: make([]Issue, 0, len(ws.Issues))}
		for j, wi := range ws.Issues {
			issue, err := wi.toIssue()
			if err != nil {
				return nil, fmt.Errorf("%w: sections[%d].issues[%d]: %v", ErrInvalidOutput, i, j, err)
			}
			sa.Issues = append(sa.Issues, issue)
		}
		r.Sections = append(r.Sections, sa)
	}
	return r, nil
}

func (wi *wireIssue) toIssue() (Issue, error) {
	if wi.Severity == nil || wi.Category == nil || wi.Message == nil || wi.Suggestion == nil || wi.SectionKey == nil {
		return Issue{}, errors.New("缺少必填字段")
	}
	if !validSeverities[*wi.Severity] {
		return Issue{}, fmt.Errorf("非法的 severity %q", *wi.Severity)
	}
	if !validCategories[*wi.Category] {
		return Issue{}, fmt.Errorf("非法的 category %q", *wi.Category)
	}
	return Issue{
		Severity:    *wi.Severity,
		Category:    *wi.Category,
		Message:     *wi.Message,
		Suggestion:  *wi.Suggestion,
		SectionKey:  *wi.SectionKey,
		ItemID:      wi.ItemID,
		FieldKey:    wi.FieldKey,
		Replacement: wi.Replacement,
	}, nil
}
