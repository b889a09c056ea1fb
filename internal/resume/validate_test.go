package resume

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validDoc 构造一份可以通过校验的文档
func validDoc(t *testing.T) (Document, *Validator) {
	t.Helper()
	u := newTestUpgrader(WithIDGenerator(sequentialIDs()))
	doc := u.Upgrade(mustParse(t, `{"sections":[
		{"sectionKey":"personal-information","items":[{"id":"p1","values":{"first-name":"Ada","last-name":"Lovelace"}}]},
		{"sectionKey":"education","items":[{"id":"e1","values":{"school":"Cambridge"}}]},
		{"sectionKey":"skills","items":[{"id":"s1","values":{"skill":"Math"}},{"id":"s2","values":{"skill":"Go"}}]}
	]}`))
	return doc, NewValidator(u.Registry())
}

func requireKind(t *testing.T, err error, kind ViolationKind) *ValidationError {
	t.Helper()
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "应返回 *ValidationError，实际: %T", err)
	assert.Equal(t, kind, verr.Kind())
	assert.ErrorIs(t, err, kind.Sentinel())
	return verr
}

func TestValidate_AcceptsUpgradedDocument(t *testing.T) {
	doc, v := validDoc(t)
	assert.NoError(t, v.Validate(&doc))
}

func TestValidate_DuplicateItemIDAcrossSections(t *testing.T) {
	doc, v := validDoc(t)
	doc.Sections[1].Items[0].ID = "x"
	doc.Sections[4].Items[0].ID = "x"

	verr := requireKind(t, v.Validate(&doc), KindDuplicateItemID)
	assert.Equal(t, "x", verr.Violations[0].ItemID)
	assert.Equal(t, SectionSkills, verr.Violations[0].SectionKey)
}

func TestValidate_SectionOrder(t *testing.T) {
	doc, v := validDoc(t)
	doc.Sections[0], doc.Sections[1] = doc.Sections[1], doc.Sections[0]

	verr := requireKind(t, v.Validate(&doc), KindSectionOrder)
	assert.Equal(t, SectionEducation, verr.Violations[0].Keys[0])
}

func TestValidate_SectionViolations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Document)
		kind   ViolationKind
		keys   []string
	}{
		{
			name: "未知区块",
			mutate: func(d *Document) {
				d.Sections = append(d.Sections, Section{SectionKey: "hobbies", Items: []Item{}})
			},
			kind: KindUnknownSection,
			keys: []string{"hobbies"},
		},
		{
			name: "缺少区块",
			mutate: func(d *Document) {
				d.Sections = d.Sections[:len(d.Sections)-1]
			},
			kind: KindMissingSection,
			keys: []string{SectionLanguages},
		},
		{
			name: "重复区块",
			mutate: func(d *Document) {
				d.Sections = append(d.Sections, Section{SectionKey: SectionSkills, Items: []Item{}})
			},
			kind: KindDuplicateSection,
			keys: []string{SectionSkills},
		},
		{
			name: "未知区块优先于缺失区块",
			mutate: func(d *Document) {
				d.Sections[8].SectionKey = "hobbies"
			},
			kind: KindUnknownSection,
			keys: []string{"hobbies"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, v := validDoc(t)
			tt.mutate(&doc)
			verr := requireKind(t, v.Validate(&doc), tt.kind)
			assert.Equal(t, tt.keys, verr.Violations[0].Keys)
			assert.False(t, verr.Has(KindSectionOrder), "存在其他区块问题时不再报告顺序问题")
		})
	}
}

func TestValidate_Cardinality(t *testing.T) {
	doc, v := validDoc(t)
	pi := &doc.Sections[0]
	pi.Items = append(pi.Items, Item{ID: "p2", Values: pi.Items[0].Values})

	verr := requireKind(t, v.Validate(&doc), KindCardinality)
	assert.Equal(t, SectionPersonalInformation, verr.Violations[0].SectionKey)
}

func TestValidate_InvalidItemID(t *testing.T) {
	doc, v := validDoc(t)
	doc.Sections[4].Items[1].ID = "   "

	requireKind(t, v.Validate(&doc), KindInvalidItemID)
}

func TestValidate_ItemIDWithSurroundingWhitespace(t *testing.T) {
	doc, v := validDoc(t)
	doc.Sections[4].Items[1].ID = " s1"

	verr := requireKind(t, v.Validate(&doc), KindInvalidItemID)
	require.Len(t, verr.Violations, 1, "修剪前不同的id不按重复处理")
	assert.Equal(t, " s1", verr.Violations[0].ItemID)

	// 升级会修剪id并为冲突的条目重新生成
	upgraded := newTestUpgrader(WithIDGenerator(sequentialIDs())).UpgradeDocument(doc)
	assert.NoError(t, v.Validate(&upgraded))
}

func TestValidate_FieldViolations(t *testing.T) {
	doc, v := validDoc(t)
	values := doc.Sections[4].Items[0].Values
	delete(values, "description")
	values["level"] = "expert"

	verr := requireKind(t, v.Validate(&doc), KindMissingField)
	assert.Equal(t, []string{"description"}, verr.Violations[0].Keys)
	assert.Equal(t, "s1", verr.Violations[0].ItemID)

	require.True(t, verr.Has(KindUnknownField))
	assert.ErrorIs(t, verr, ErrUnknownField)
	assert.Equal(t, []string{"level"}, verr.Violations[1].Keys)
}

func TestValidate_CollectsAllViolationsInCategoryOrder(t *testing.T) {
	doc, v := validDoc(t)
	doc.Sections[4].Items[1].ID = "s1"
	doc.Sections[0].Items = append(doc.Sections[0].Items, Item{ID: "", Values: map[string]string{}})

	verr := requireKind(t, v.Validate(&doc), KindCardinality)
	var kinds []ViolationKind
	for _, vi := range verr.Violations {
		kinds = append(kinds, vi.Kind)
	}
	assert.Equal(t, []ViolationKind{
		KindCardinality,
		KindInvalidItemID,
		KindDuplicateItemID,
		KindMissingField,
	}, kinds)
}

func TestValidate_NormalizesURLsOnSuccess(t *testing.T) {
	doc, v := validDoc(t)
	doc.Sections[0].Items[0].Values[FieldGitHub] = "@octocat"
	doc.Sections[0].Items[0].Values[FieldLinkedIn] = "not a url!!"

	require.NoError(t, v.Validate(&doc))
	assert.Equal(t, "https://github.com/octocat", doc.Sections[0].Items[0].Values[FieldGitHub])
	assert.Equal(t, "", doc.Sections[0].Items[0].Values[FieldLinkedIn])
}

func TestValidate_DoesNotNormalizeOnFailure(t *testing.T) {
	doc, v := validDoc(t)
	doc.Sections[0].Items[0].Values[FieldGitHub] = "@octocat"
	doc.Sections[4].Items[0].ID = ""

	require.Error(t, v.Validate(&doc))
	assert.Equal(t, "@octocat", doc.Sections[0].Items[0].Values[FieldGitHub])
}

func TestValidate_NilDocument(t *testing.T) {
	v := NewValidator(NewDefaultRegistry())
	requireKind(t, v.Validate(nil), KindMalformedDocument)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Violations: []Violation{
		{Kind: KindMissingField, SectionKey: SectionSkills, ItemID: "s1", Keys: []string{"description"}},
		{Kind: KindUnknownField, SectionKey: SectionSkills, ItemID: "s1", Keys: []string{"level"}},
	}}
	assert.Contains(t, err.Error(), "条目缺少字段")
	assert.Contains(t, err.Error(), "description")
	assert.Contains(t, err.Error(), "另有1处问题")
}
