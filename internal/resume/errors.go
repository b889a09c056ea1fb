package resume

import (
	"errors"
	"fmt"
	"strings"
)

// ViolationKind 校验失败的类别
type ViolationKind string

const (
	KindUnknownSection       ViolationKind = "UnknownSection"
	KindMissingSection       ViolationKind = "MissingSection"
	KindDuplicateSection     ViolationKind = "DuplicateSection"
	KindSectionOrder         ViolationKind = "SectionOrderViolation"
	KindCardinality          ViolationKind = "CardinalityViolation"
	KindInvalidItemID        ViolationKind = "InvalidItemId"
	KindDuplicateItemID      ViolationKind = "DuplicateItemId"
	KindMissingField         ViolationKind = "MissingField"
	KindUnknownField         ViolationKind = "UnknownField"
	KindMalformedDocument    ViolationKind = "MalformedDocument"
	KindUnsupportedValueType ViolationKind = "UnsupportedValueType"
)

// 每种类别对应的哨兵错误，可用 errors.Is 判断
var (
	ErrUnknownSection       = errors.New("未知的区块键")
	ErrMissingSection       = errors.New("缺少区块")
	ErrDuplicateSection     = errors.New("区块键重复")
	ErrSectionOrder         = errors.New("区块顺序与规范顺序不一致")
	ErrCardinality          = errors.New("单条目区块包含多个条目")
	ErrInvalidItemID        = errors.New("条目id为空")
	ErrDuplicateItemID      = errors.New("条目id重复")
	ErrMissingField         = errors.New("条目缺少字段")
	ErrUnknownField         = errors.New("条目包含未知字段")
	ErrMalformedDocument    = errors.New("文档结构不合法")
	ErrUnsupportedValueType = errors.New("不支持的值类型")
)

var sentinelByKind = map[ViolationKind]error{
	KindUnknownSection:       ErrUnknownSection,
	KindMissingSection:       ErrMissingSection,
	KindDuplicateSection:     ErrDuplicateSection,
	KindSectionOrder:         ErrSectionOrder,
	KindCardinality:          ErrCardinality,
	KindInvalidItemID:        ErrInvalidItemID,
	KindDuplicateItemID:      ErrDuplicateItemID,
	KindMissingField:         ErrMissingField,
	KindUnknownField:         ErrUnknownField,
	KindMalformedDocument:    ErrMalformedDocument,
	KindUnsupportedValueType: ErrUnsupportedValueType,
}

// Sentinel 返回类别对应的哨兵错误
func (k ViolationKind) Sentinel() error {
	return sentinelByKind[k]
}

// Violation 单条校验失败，附带定位信息
type Violation struct {
	Kind       ViolationKind `json:"kind"`
	SectionKey string        `json:"sectionKey,omitempty"`
	ItemID     string        `json:"itemId,omitempty"`
	FieldKey   string        `json:"fieldKey,omitempty"`
	Keys       []string      `json:"keys,omitempty"`
	Detail     string        `json:"detail,omitempty"`
}

func (v Violation) String() string {
	var b strings.Builder
	if base := v.Kind.Sentinel(); base != nil {
		b.WriteString(base.Error())
	} else {
		b.WriteString(string(v.Kind))
	}
	var loc []string
	if v.SectionKey != "" {
		loc = append(loc, "区块:"+v.SectionKey)
	}
	if v.ItemID != "" {
		loc = append(loc, "条目:"+v.ItemID)
	}
	if v.FieldKey != "" {
		loc = append(loc, "字段:"+v.FieldKey)
	}
	if len(loc) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(loc, ", "))
	}
	if len(v.Keys) > 0 {
		fmt.Fprintf(&b, ": %s", strings.Join(v.Keys, ", "))
	}
	if v.Detail != "" {
		fmt.Fprintf(&b, ": %s", v.Detail)
	}
	return b.String()
}

// ValidationError 文档校验失败。第一条违规决定错误类别。
type ValidationError struct {
	Violations []Violation
}

// Kind 第一条违规的类别
func (e *ValidationError) Kind() ViolationKind {
	if len(e.Violations) == 0 {
		return ""
	}
	return e.Violations[0].Kind
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "简历校验失败"
	}
	if len(e.Violations) == 1 {
		return "简历校验失败: " + e.Violations[0].String()
	}
	return fmt.Sprintf("简历校验失败: %s (另有%d处问题)", e.Violations[0].String(), len(e.Violations)-1)
}

// Unwrap 返回第一条违规对应的哨兵错误
func (e *ValidationError) Unwrap() error {
	return e.Kind().Sentinel()
}

// Is 任一违规类别匹配即返回true
func (e *ValidationError) Is(target error) bool {
	for _, v := range e.Violations {
		if s := v.Kind.Sentinel(); s != nil && s == target {
			return true
		}
	}
	return false
}

// Has 是否包含指定类别的违规
func (e *ValidationError) Has(kind ViolationKind) bool {
	for _, v := range e.Violations {
		if v.Kind == kind {
			return true
		}
	}
	return false
}

// UnsupportedValueTypeError 标量转换遇到数组或对象
type UnsupportedValueTypeError struct {
	Kind Kind
}

func (e *UnsupportedValueTypeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedValueType, e.Kind)
}

func (e *UnsupportedValueTypeError) Unwrap() error {
	return ErrUnsupportedValueType
}
