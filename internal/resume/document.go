package resume

import (
	"encoding/json"
	"strings"
)

// Document 规范化的简历文档
type Document struct {
	Sections []Section `json:"sections"`
}

// Section 文档中的一个区块实例
type Section struct {
	SectionKey string `json:"sectionKey"`
	Items      []Item `json:"items"`
}

// Item 区块中的一个条目
type Item struct {
	ID     string            `json:"id"`
	Values map[string]string `json:"values"`
}

// MarshalJSON 保证 items 与 values 不会被编码为 null
func (s Section) MarshalJSON() ([]byte, error) {
	type alias Section
	if s.Items == nil {
		s.Items = []Item{}
	}
	return json.Marshal(alias(s))
}

// MarshalJSON 同上
func (it Item) MarshalJSON() ([]byte, error) {
	type alias Item
	if it.Values == nil {
		it.Values = map[string]string{}
	}
	return json.Marshal(alias(it))
}

// Section 按键查找区块
func (d *Document) Section(key string) (*Section, bool) {
	for i := range d.Sections {
		if d.Sections[i].SectionKey == key {
			return &d.Sections[i], true
		}
	}
	return nil, false
}

// FirstItem 返回区块的第一个条目，主要用于单条目区块
func (d *Document) FirstItem(key string) (Item, bool) {
	s, ok := d.Section(key)
	if !ok || len(s.Items) == 0 {
		return Item{}, false
	}
	return s.Items[0], true
}

// ItemIDs 文档中所有条目的id，按出现顺序
func (d *Document) ItemIDs() []string {
	var ids []string
	for _, s := range d.Sections {
		for _, it := range s.Items {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// HasContent 是否存在任一非空白字段值
func (d *Document) HasContent() bool {
	for _, s := range d.Sections {
		for _, it := range s.Items {
			for _, v := range it.Values {
				if strings.TrimSpace(v) != "" {
					return true
				}
			}
		}
	}
	return false
}

// Clone 深拷贝
func (d Document) Clone() Document {
	out := Document{Sections: make([]Section, len(d.Sections))}
	for i, s := range d.Sections {
		cs := Section{SectionKey: s.SectionKey, Items: make([]Item, len(s.Items))}
		for j, it := range s.Items {
			values := make(map[string]string, len(it.Values))
			for k, v := range it.Values {
				values[k] = v
			}
			cs.Items[j] = Item{ID: it.ID, Values: values}
		}
		out.Sections[i] = cs
	}
	return out
}

// Equal 结构相等比较，nil 与空切片/空映射视为相同
func (d Document) Equal(other Document) bool {
	if len(d.Sections) != len(other.Sections) {
		return false
	}
	for i := range d.Sections {
		a, b := d.Sections[i], other.Sections[i]
		if a.SectionKey != b.SectionKey || len(a.Items) != len(b.Items) {
			return false
		}
		for j := range a.Items {
			x, y := a.Items[j], b.Items[j]
			if x.ID != y.ID || len(x.Values) != len(y.Values) {
				return false
			}
			for k, v := range x.Values {
				if w, ok := y.Values[k]; !ok || w != v {
					return false
				}
			}
		}
	}
	return true
}

// Value 将文档转换为通用值，用于重新走升级流程
func (d Document) Value() Value {
	sections := make([]Value, len(d.Sections))
	for i, s := range d.Sections {
		items := make([]Value, len(s.Items))
		for j, it := range s.Items {
			items[j] = Object(
				Member{Key: "id", Value: String(it.ID)},
				Member{Key: "values", Value: FromAny(it.Values)},
			)
		}
		sections[i] = Object(
			Member{Key: "sectionKey", Value: String(s.SectionKey)},
			Member{Key: "items", Value: Array(items...)},
		)
	}
	return Object(Member{Key: "sections", Value: Array(sections...)})
}
