package resume

import (
	"errors"
	"fmt"
)

// ParseStrictJSON 严格解析客户端提交的JSON文本
func (v *Validator) ParseStrictJSON(data []byte) (Document, error) {
	val, err := ParseValue(data)
	if err != nil {
		return Document{}, &ValidationError{Violations: []Violation{{
			Kind:   KindMalformedDocument,
			Detail: fmt.Sprintf("JSON解析失败: %v", err),
		}}}
	}
	return v.ParseStrict(val)
}

// ParseStrict 面向完全不可信输入的严格入口:
// 结构不符（类型错误、多余键）报 MalformedDocument，
// 字段值为数组或对象报 UnsupportedValueType，其余标量转为字符串后再执行 Validate。
func (v *Validator) ParseStrict(input Value) (Document, error) {
	var violations []Violation
	malformed := func(detail string, args ...any) {
		violations = append(violations, Violation{Kind: KindMalformedDocument, Detail: fmt.Sprintf(detail, args...)})
	}

	if input.Kind() != KindMapping {
		malformed("文档必须是对象，实际为%s", input.Kind())
		return Document{}, &ValidationError{Violations: violations}
	}
	for _, m := range input.Members() {
		if m.Key != "sections" {
			malformed("文档包含未知键: %s", m.Key)
		}
	}
	sectionsVal, ok := input.Get("sections")
	if !ok || sectionsVal.Kind() != KindSequence {
		malformed("sections 必须是数组")
		return Document{}, &ValidationError{Violations: violations}
	}

	doc := Document{Sections: make([]Section, 0, len(sectionsVal.Items()))}
	for si, sv := range sectionsVal.Items() {
		if sv.Kind() != KindMapping {
			malformed("第%d个区块必须是对象", si+1)
			continue
		}
		for _, m := range sv.Members() {
			if m.Key != "sectionKey" && m.Key != "items" {
				malformed("第%d个区块包含未知键: %s", si+1, m.Key)
			}
		}
		keyVal, _ := sv.Get("sectionKey")
		key, ok := keyVal.AsString()
		if !ok {
			malformed("第%d个区块的 sectionKey 必须是字符串", si+1)
			continue
		}
		itemsVal, ok := sv.Get("items")
		if !ok || itemsVal.Kind() != KindSequence {
			malformed("区块 %s 的 items 必须是数组", key)
			continue
		}

		section := Section{SectionKey: key, Items: make([]Item, 0, len(itemsVal.Items()))}
		for ii, iv := range itemsVal.Items() {
			item, vs := parseStrictItem(key, ii, iv)
			violations = append(violations, vs...)
			section.Items = append(section.Items, item)
		}
		doc.Sections = append(doc.Sections, section)
	}

	if len(violations) > 0 {
		sortViolations(violations)
		return Document{}, &ValidationError{Violations: violations}
	}
	if err := v.Validate(&doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func parseStrictItem(sectionKey string, idx int, iv Value) (Item, []Violation) {
	var out []Violation
	malformed := func(detail string, args ...any) {
		out = append(out, Violation{Kind: KindMalformedDocument, SectionKey: sectionKey, Detail: fmt.Sprintf(detail, args...)})
	}

	if iv.Kind() != KindMapping {
		malformed("第%d个条目必须是对象", idx+1)
		return Item{}, out
	}
	for _, m := range iv.Members() {
		if m.Key != "id" && m.Key != "values" {
			malformed("第%d个条目包含未知键: %s", idx+1, m.Key)
		}
	}

	item := Item{Values: map[string]string{}}
	idVal, _ := iv.Get("id")
	switch idVal.Kind() {
	case KindString:
		item.ID, _ = idVal.AsString()
	case KindNull:
		// 缺失的id交给 Validate 报 InvalidItemId
	default:
		malformed("第%d个条目的 id 必须是字符串", idx+1)
	}

	valuesVal, ok := iv.Get("values")
	if !ok || valuesVal.Kind() != KindMapping {
		malformed("第%d个条目的 values 必须是对象", idx+1)
		return item, out
	}
	for _, m := range valuesVal.Members() {
		s, err := CoerceScalar(m.Value)
		if err != nil {
			var typeErr *UnsupportedValueTypeError
			if errors.As(err, &typeErr) {
				out = append(out, Violation{
					Kind:       KindUnsupportedValueType,
					SectionKey: sectionKey,
					ItemID:     item.ID,
					FieldKey:   m.Key,
					Detail:     typeErr.Kind.String(),
				})
				continue
			}
			malformed("字段 %s 转换失败: %v", m.Key, err)
			continue
		}
		item.Values[m.Key] = s
	}
	return item, out
}
