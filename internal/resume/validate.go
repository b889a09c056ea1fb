package resume

import (
	"fmt"
	"sort"
	"strings"
)

// Validator 严格校验文档是否满足规范结构，不做任何修复
type Validator struct {
	registry *Registry
}

// NewValidator 创建校验器
func NewValidator(registry *Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate 校验文档。返回的错误为 *ValidationError，违规按类别顺序排列。
// 校验通过时就地规范化URL字段，无效URL置空。
func (v *Validator) Validate(doc *Document) error {
	if doc == nil {
		return &ValidationError{Violations: []Violation{{Kind: KindMalformedDocument, Detail: "文档为空"}}}
	}

	var violations []Violation
	violations = append(violations, v.checkSections(doc)...)
	violations = append(violations, v.checkItems(doc)...)
	if len(violations) > 0 {
		sortViolations(violations)
		return &ValidationError{Violations: violations}
	}

	v.normalizeURLs(doc)
	return nil
}

func (v *Validator) checkSections(doc *Document) []Violation {
	var out []Violation
	seen := make([]string, 0, len(doc.Sections))
	counts := make(map[string]int, len(doc.Sections))
	for _, s := range doc.Sections {
		seen = append(seen, s.SectionKey)
		counts[s.SectionKey]++
	}

	var unknown []string
	for k := range counts {
		if !v.registry.HasSection(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		out = append(out, Violation{Kind: KindUnknownSection, Keys: unknown})
	}

	var missing []string
	for _, k := range v.registry.SectionKeys() {
		if counts[k] == 0 {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		out = append(out, Violation{Kind: KindMissingSection, Keys: missing})
	}

	var dups []string
	for k, n := range counts {
		if n > 1 {
			dups = append(dups, k)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		out = append(out, Violation{Kind: KindDuplicateSection, Keys: dups})
	}

	expected := v.registry.SectionKeys()
	if !equalStrings(seen, expected) && len(unknown) == 0 && len(missing) == 0 && len(dups) == 0 {
		out = append(out, Violation{
			Kind:   KindSectionOrder,
			Keys:   seen,
			Detail: "规范顺序: " + strings.Join(expected, ", "),
		})
	}
	return out
}

func (v *Validator) checkItems(doc *Document) []Violation {
	var out []Violation
	seenIDs := make(map[string]struct{})
	for _, s := range doc.Sections {
		if v.registry.IsSingle(s.SectionKey) && len(s.Items) > 1 {
			out = append(out, Violation{
				Kind:       KindCardinality,
				SectionKey: s.SectionKey,
				Detail:     fmt.Sprintf("最多允许1个条目，实际%d个", len(s.Items)),
			})
		}

		known := v.registry.HasSection(s.SectionKey)
		for idx, it := range s.Items {
			if trimmed := strings.TrimSpace(it.ID); trimmed == "" || trimmed != it.ID {
				// 首尾带空白的id会在升级时被修剪，可能与其他条目冲突
				out = append(out, Violation{
					Kind:       KindInvalidItemID,
					SectionKey: s.SectionKey,
					ItemID:     it.ID,
					Detail:     fmt.Sprintf("第%d个条目", idx+1),
				})
			} else if _, dup := seenIDs[it.ID]; dup {
				out = append(out, Violation{Kind: KindDuplicateItemID, SectionKey: s.SectionKey, ItemID: it.ID})
			} else {
				seenIDs[it.ID] = struct{}{}
			}

			if !known {
				continue
			}
			var missing, extra []string
			for _, fk := range v.registry.fieldKeys[s.SectionKey] {
				if _, ok := it.Values[fk]; !ok {
					missing = append(missing, fk)
				}
			}
			for fk := range it.Values {
				if !v.registry.HasField(s.SectionKey, fk) {
					extra = append(extra, fk)
				}
			}
			if len(missing) > 0 {
				sort.Strings(missing)
				out = append(out, Violation{Kind: KindMissingField, SectionKey: s.SectionKey, ItemID: it.ID, Keys: missing})
			}
			if len(extra) > 0 {
				sort.Strings(extra)
				out = append(out, Violation{Kind: KindUnknownField, SectionKey: s.SectionKey, ItemID: it.ID, Keys: extra})
			}
		}
	}
	return out
}

func (v *Validator) normalizeURLs(doc *Document) {
	for i := range doc.Sections {
		s := &doc.Sections[i]
		urlFields := v.registry.URLFields(s.SectionKey)
		if len(urlFields) == 0 {
			continue
		}
		for j := range s.Items {
			for _, fk := range urlFields {
				raw := s.Items[j].Values[fk]
				if strings.TrimSpace(raw) == "" {
					continue
				}
				s.Items[j].Values[fk] = CleanURL(raw, s.SectionKey, fk)
			}
		}
	}
}

var kindOrder = map[ViolationKind]int{
	KindMalformedDocument:    0,
	KindUnsupportedValueType: 1,
	KindUnknownSection:       2,
	KindMissingSection:       3,
	KindDuplicateSection:     4,
	KindSectionOrder:         5,
	KindCardinality:          6,
	KindInvalidItemID:        7,
	KindDuplicateItemID:      8,
	KindMissingField:         9,
	KindUnknownField:         10,
}

// sortViolations 按类别排序，同类别保持文档中的出现顺序
func sortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		return kindOrder[vs[i].Kind] < kindOrder[vs[j].Kind]
	})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
