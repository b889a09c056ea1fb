package analysis

import (
	"fmt"
	"strings"

	"resume-builder-go/internal/resume"
)

// Reconcile 把模型给出的定位信息约束到简历实际存在的区块、字段与条目上。
// 区块键未注册时返回错误；问题的 sectionKey 强制改为所在区块；
// 未知字段键同时清空 fieldKey 与 itemId；区块有条目但 itemId 不在其中时同样清空两者。
func Reconcile(result *Result, doc resume.Document, registry *resume.Registry) error {
	itemIDs := make(map[string]map[string]bool, len(doc.Sections))
	for _, s := range doc.Sections {
		ids := make(map[string]bool, len(s.Items))
		for _, it := range s.Items {
			if strings.TrimSpace(it.ID) != "" {
				ids[it.ID] = true
			}
		}
		itemIDs[s.SectionKey] = ids
	}

	for i := range result.Sections {
		section := &result.Sections[i]
		if !registry.HasSection(section.SectionKey) {
			return fmt.Errorf("%w: 分析结果包含未知区块 %q", ErrInvalidOutput, section.SectionKey)
		}
		allowedIDs := itemIDs[section.SectionKey]

		for j := range section.Issues {
			issue := &section.Issues[j]
			issue.SectionKey = section.SectionKey
			if issue.FieldKey != nil && !registry.HasField(section.SectionKey, *issue.FieldKey) {
				issue.FieldKey = nil
				issue.ItemID = nil
			}
			if issue.ItemID != nil && len(allowedIDs) > 0 && !allowedIDs[*issue.ItemID] {
				issue.ItemID = nil
				issue.FieldKey = nil
			}
		}
	}
	return nil
}

// Designation 目标职位: 仅当首个区块为个人信息时取其首个条目的 designation
func Designation(doc resume.Document) string {
	if len(doc.Sections) == 0 {
		return ""
	}
	first := doc.Sections[0]
	if first.SectionKey != resume.SectionPersonalInformation || len(first.Items) == 0 {
		return ""
	}
	return strings.TrimSpace(first.Items[0].Values[resume.FieldDesignation])
}
