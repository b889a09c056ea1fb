package analysis

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-builder-go/internal/agent"
	"resume-builder-go/internal/resume"
)

func newTestEngine() *resume.Engine {
	n := 0
	return resume.NewEngine(resume.NewDefaultRegistry(), resume.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	}))
}

func sampleDocument(e *resume.Engine) resume.Document {
	return e.Upgrader().UpgradeJSON([]byte(`{"sections":[
		{"sectionKey":"personal-information","items":[{"id":"p1","values":{"first-name":"Ada","designation":"  Backend Engineer "}}]},
		{"sectionKey":"work-experience","items":[{"id":"w1","values":{"company":"Acme"}},{"id":"w2","values":{"company":"Initech"}}]}
	]}`))
}

func strPtr(s string) *string { return &s }

const validOutput = `{
  "designation": "Backend Engineer",
  "overall_summary": "Solid profile",
  "recruiter_feedback": "Quantify impact",
  "strengths": ["Go"],
  "risks": [],
  "sections": [
    {"sectionKey": "work-experience", "summary": "ok", "issues": [
      {"severity": "warning", "category": "impact", "message": "vague", "suggestion": "add metrics",
       "sectionKey": "education", "itemId": "w1", "fieldKey": "description", "replacement": null}
    ]}
  ]
}`

func TestDecode_Valid(t *testing.T) {
	r, err := Decode([]byte(validOutput))
	require.NoError(t, err)
	assert.Equal(t, "Backend Engineer", r.Designation)
	assert.Equal(t, []string{}, r.Risks)
	require.Len(t, r.Sections, 1)
	require.Len(t, r.Sections[0].Issues, 1)
	issue := r.Sections[0].Issues[0]
	assert.Equal(t, SeverityWarning, issue.Severity)
	assert.Equal(t, CategoryImpact, issue.Category)
	assert.Nil(t, issue.Replacement)
	assert.Equal(t, "w1", *issue.ItemID)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"未知顶层字段", strings.Replace(validOutput, `"risks": [],`, `"risks": [], "score": 3,`, 1)},
		{"缺少字段", strings.Replace(validOutput, `"recruiter_feedback": "Quantify impact",`, "", 1)},
		{"strengths为null", strings.Replace(validOutput, `"strengths": ["Go"]`, `"strengths": null`, 1)},
		{"非法severity", strings.Replace(validOutput, `"warning"`, `"critical"`, 1)},
		{"非法category", strings.Replace(validOutput, `"impact"`, `"style"`, 1)},
		{"问题缺少message", strings.Replace(validOutput, `"message": "vague",`, "", 1)},
		{"问题包含未知字段", strings.Replace(validOutput, `"replacement": null`, `"replacement": null, "line": 3`, 1)},
		{"类型错误", strings.Replace(validOutput, `"overall_summary": "Solid profile"`, `"overall_summary": 5`, 1)},
		{"不是JSON", `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			assert.ErrorIs(t, err, ErrInvalidOutput)
		})
	}
}

func TestReconcile(t *testing.T) {
	e := newTestEngine()
	doc := sampleDocument(e)
	registry := e.Registry()

	result := &Result{Sections: []SectionAnalysis{{
		SectionKey: resume.SectionWorkExperience,
		Issues: []Issue{
			{SectionKey: "education", ItemID: strPtr("w1"), FieldKey: strPtr("description")},
			{SectionKey: resume.SectionWorkExperience, ItemID: strPtr("w1"), FieldKey: strPtr("gpa")},
			{SectionKey: resume.SectionWorkExperience, ItemID: strPtr("missing"), FieldKey: strPtr("company")},
			{SectionKey: resume.SectionWorkExperience, FieldKey: strPtr("company")},
		},
	}, {
		SectionKey: resume.SectionSkills,
		Issues: []Issue{
			// 区块没有条目时不校验 itemId
			{SectionKey: resume.SectionSkills, ItemID: strPtr("anything"), FieldKey: strPtr("skill")},
		},
	}}}

	require.NoError(t, Reconcile(result, doc, registry))
	issues := result.Sections[0].Issues

	assert.Equal(t, resume.SectionWorkExperience, issues[0].SectionKey, "sectionKey 应被改为所在区块")
	assert.Equal(t, "w1", *issues[0].ItemID)
	assert.Equal(t, "description", *issues[0].FieldKey)

	assert.Nil(t, issues[1].FieldKey, "未知字段应被清空")
	assert.Nil(t, issues[1].ItemID)

	assert.Nil(t, issues[2].ItemID, "未知条目应被清空")
	assert.Nil(t, issues[2].FieldKey)

	assert.Nil(t, issues[3].ItemID)
	assert.Equal(t, "company", *issues[3].FieldKey)

	skills := result.Sections[1].Issues[0]
	assert.Equal(t, "anything", *skills.ItemID)
	assert.Equal(t, "skill", *skills.FieldKey)
}

func TestReconcile_UnknownSection(t *testing.T) {
	e := newTestEngine()
	result := &Result{Sections: []SectionAnalysis{{SectionKey: "hobbies"}}}
	err := Reconcile(result, sampleDocument(e), e.Registry())
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestDesignation(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, "Backend Engineer", Designation(sampleDocument(e)))
	assert.Equal(t, "", Designation(resume.Document{}))
	assert.Equal(t, "", Designation(e.Registry().EmptyDocument()), "个人信息区块没有条目")

	reordered := resume.Document{Sections: []resume.Section{
		{SectionKey: resume.SectionSkills},
		{SectionKey: resume.SectionPersonalInformation, Items: []resume.Item{{ID: "p", Values: map[string]string{"designation": "x"}}}},
	}}
	assert.Equal(t, "", Designation(reordered), "首个区块必须是个人信息")
}

func TestAnalyzer_Analyze(t *testing.T) {
	e := newTestEngine()
	mock := agent.NewMockChatModel(agent.MockResponse{Content: "```json\n" + validOutput + "\n```"})
	a := NewAnalyzer(e, WithRetryPolicy(agent.RetryPolicy{MaxRetries: 0, CallTimeout: time.Second}))

	result, err := a.Analyze(context.Background(), mock, sampleDocument(e))
	require.NoError(t, err)
	assert.Equal(t, resume.SectionWorkExperience, result.Sections[0].Issues[0].SectionKey)

	msgs := mock.Received(0)
	require.Len(t, msgs, 2)
	user := msgs[1].Content
	assert.True(t, strings.HasPrefix(user, "Target designation:\nBackend Engineer\n\n"))
	assert.Contains(t, user, `"sectionKey":"personal-information"`)
	assert.Contains(t, user, `"company":"Initech"`)
	assert.Contains(t, user, "Output schema (you MUST match this exactly):")
}

func TestAnalyzer_MissingDesignation(t *testing.T) {
	e := newTestEngine()
	mock := agent.NewMockChatModel(agent.MockResponse{Content: validOutput})
	a := NewAnalyzer(e)

	_, err := a.Analyze(context.Background(), mock, resume.Document{})
	require.NoError(t, err)
	assert.Contains(t, mock.Received(0)[1].Content, "Target designation:\n(missing)\n")
}

func TestAnalyzer_InvalidOutput(t *testing.T) {
	e := newTestEngine()
	tests := map[string]string{
		"没有JSON":   "I cannot help with that.",
		"结构不符":     `{"designation":"x"}`,
		"未知区块":     strings.Replace(validOutput, `{"sectionKey": "work-experience"`, `{"sectionKey": "hobbies"`, 1),
		"空白输出":     "   ",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			mock := agent.NewMockChatModel(agent.MockResponse{Content: content})
			_, err := NewAnalyzer(e).Analyze(context.Background(), mock, sampleDocument(e))
			assert.ErrorIs(t, err, ErrInvalidOutput)
		})
	}
}

func TestAnalyzer_RepairsUnescapedQuotes(t *testing.T) {
	e := newTestEngine()
	broken := strings.Replace(validOutput, `"Quantify impact"`, `"Say "more" about impact"`, 1)
	mock := agent.NewMockChatModel(agent.MockResponse{Content: broken})

	result, err := NewAnalyzer(e).Analyze(context.Background(), mock, sampleDocument(e))
	require.NoError(t, err)
	assert.Equal(t, `Say "more" about impact`, result.RecruiterFeedback)
}
