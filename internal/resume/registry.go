package resume

import (
	"fmt"
)

// EntryType 区块的条目数量约束
type EntryType string

const (
	EntrySingle   EntryType = "single"
	EntryMultiple EntryType = "multiple"
)

// FieldType 字段类型，仅作描述用途，所有值均以字符串存储
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldDate   FieldType = "date"
	FieldNumber FieldType = "number"
)

// FieldDef 字段定义（构建注册表的输入）
type FieldDef struct {
	Label string
	Type  FieldType
	URL   bool // 是否为URL类字段，写入时做URL规范化
}

// SectionDef 区块定义（构建注册表的输入）
type SectionDef struct {
	Title     string
	EntryType EntryType
	Fields    []FieldDef
}

// FieldSchema 派生后的字段结构
type FieldSchema struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Type  FieldType `json:"type"`
	URL   bool      `json:"-"`
}

// SectionSchema 派生后的区块结构
type SectionSchema struct {
	Key       string
	Title     string
	EntryType EntryType
	Fields    []FieldSchema
}

// Registry 简历结构注册表，构建完成后只读，可并发使用
type Registry struct {
	sections  []SectionSchema
	index     map[string]int
	fieldKeys map[string][]string
	fieldSet  map[string]map[string]struct{}
	urlFields map[string]map[string]struct{}
}

// NewRegistry 根据有序的区块定义构建注册表
func NewRegistry(defs []SectionDef) (*Registry, error) {
	r := &Registry{
		sections:  make([]SectionSchema, 0, len(defs)),
		index:     make(map[string]int, len(defs)),
		fieldKeys: make(map[string][]string, len(defs)),
		fieldSet:  make(map[string]map[string]struct{}, len(defs)),
		urlFields: make(map[string]map[string]struct{}),
	}

	for _, def := range defs {
		key := KeyFor(def.Title)
		if key == "" {
			return nil, fmt.Errorf("区块标题无法生成有效键: %q", def.Title)
		}
		if _, dup := r.index[key]; dup {
			return nil, fmt.Errorf("区块键重复: %s", key)
		}
		switch def.EntryType {
		case EntrySingle, EntryMultiple:
		default:
			return nil, fmt.Errorf("区块 %s 的条目类型无效: %q", key, def.EntryType)
		}

		section := SectionSchema{
			Key:       key,
			Title:     def.Title,
			EntryType: def.EntryType,
			Fields:    make([]FieldSchema, 0, len(def.Fields)),
		}
		keys := make([]string, 0, len(def.Fields))
		set := make(map[string]struct{}, len(def.Fields))
		for _, fd := range def.Fields {
			fk := KeyFor(fd.Label)
			if fk == "" {
				return nil, fmt.Errorf("区块 %s 中的字段标签无法生成有效键: %q", key, fd.Label)
			}
			if _, dup := set[fk]; dup {
				return nil, fmt.Errorf("区块 %s 中字段键重复: %s", key, fk)
			}
			ft := fd.Type
			if ft == "" {
				ft = FieldText
			}
			set[fk] = struct{}{}
			keys = append(keys, fk)
			section.Fields = append(section.Fields, FieldSchema{Key: fk, Label: fd.Label, Type: ft, URL: fd.URL})
			if fd.URL {
				if r.urlFields[key] == nil {
					r.urlFields[key] = make(map[string]struct{})
				}
				r.urlFields[key][fk] = struct{}{}
			}
		}

		r.index[key] = len(r.sections)
		r.sections = append(r.sections, section)
		r.fieldKeys[key] = keys
		r.fieldSet[key] = set
	}

	return r, nil
}

// MustRegistry 构建失败时直接panic，仅用于进程启动阶段的固定定义
func MustRegistry(defs []SectionDef) *Registry {
	r, err := NewRegistry(defs)
	if err != nil {
		panic(err)
	}
	return r
}

// NewDefaultRegistry 使用内置的简历结构构建注册表
func NewDefaultRegistry() *Registry {
	return MustRegistry(DefaultSections())
}

// Sections 按规范顺序返回所有区块（副本）
func (r *Registry) Sections() []SectionSchema {
	out := make([]SectionSchema, len(r.sections))
	for i, s := range r.sections {
		s.Fields = append([]FieldSchema(nil), s.Fields...)
		out[i] = s
	}
	return out
}

// Section 按键查找区块
func (r *Registry) Section(key string) (SectionSchema, bool) {
	i, ok := r.index[key]
	if !ok {
		return SectionSchema{}, false
	}
	s := r.sections[i]
	s.Fields = append([]FieldSchema(nil), s.Fields...)
	return s, true
}

// SectionKeys 规范顺序的区块键列表
func (r *Registry) SectionKeys() []string {
	keys := make([]string, len(r.sections))
	for i, s := range r.sections {
		keys[i] = s.Key
	}
	return keys
}

// HasSection 判断区块键是否存在
func (r *Registry) HasSection(key string) bool {
	_, ok := r.index[key]
	return ok
}

// FieldKeys 区块的有序字段键
func (r *Registry) FieldKeys(section string) []string {
	return append([]string(nil), r.fieldKeys[section]...)
}

// HasField 判断字段是否属于区块
func (r *Registry) HasField(section, field string) bool {
	_, ok := r.fieldSet[section][field]
	return ok
}

// IsSingle 区块是否最多只允许一个条目
func (r *Registry) IsSingle(section string) bool {
	i, ok := r.index[section]
	return ok && r.sections[i].EntryType == EntrySingle
}

// SingleSections 所有单条目区块的键
func (r *Registry) SingleSections() []string {
	var keys []string
	for _, s := range r.sections {
		if s.EntryType == EntrySingle {
			keys = append(keys, s.Key)
		}
	}
	return keys
}

// IsURLField 字段是否需要URL规范化
func (r *Registry) IsURLField(section, field string) bool {
	_, ok := r.urlFields[section][field]
	return ok
}

// URLFields 区块中URL类字段，按字段顺序返回
func (r *Registry) URLFields(section string) []string {
	var out []string
	for _, fk := range r.fieldKeys[section] {
		if r.IsURLField(section, fk) {
			out = append(out, fk)
		}
	}
	return out
}

// EmptyValues 生成区块的空值映射
func (r *Registry) EmptyValues(section string) (map[string]string, error) {
	keys, ok := r.fieldKeys[section]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, section)
	}
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		values[k] = ""
	}
	return values, nil
}

// EmptyDocument 规范的空文档：所有区块按顺序出现且没有条目
func (r *Registry) EmptyDocument() Document {
	doc := Document{Sections: make([]Section, len(r.sections))}
	for i, s := range r.sections {
		doc.Sections[i] = Section{SectionKey: s.Key, Items: []Item{}}
	}
	return doc
}

// PromptField 紧凑视图中的字段
type PromptField struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Type  FieldType `json:"type"`
}

// PromptSection 供LLM提示词使用的紧凑区块描述
type PromptSection struct {
	SectionKey string        `json:"sectionKey"`
	EntryType  EntryType     `json:"entryType"`
	Fields     []PromptField `json:"fields"`
}

// ClientSection 供前端使用的区块描述，比紧凑视图多了标题
type ClientSection struct {
	SectionKey string        `json:"sectionKey"`
	Title      string        `json:"title"`
	EntryType  EntryType     `json:"entryType"`
	Fields     []PromptField `json:"fields"`
}

// ClientSchema 前端获取的完整结构
type ClientSchema struct {
	Sections []ClientSection `json:"sections"`
}

// PromptView 紧凑视图，顺序与规范顺序一致
func (r *Registry) PromptView() []PromptSection {
	out := make([]PromptSection, len(r.sections))
	for i, s := range r.sections {
		out[i] = PromptSection{SectionKey: s.Key, EntryType: s.EntryType, Fields: promptFields(s.Fields)}
	}
	return out
}

// ClientView 展示视图
func (r *Registry) ClientView() ClientSchema {
	out := ClientSchema{Sections: make([]ClientSection, len(r.sections))}
	for i, s := range r.sections {
		out.Sections[i] = ClientSection{
			SectionKey: s.Key,
			Title:      s.Title,
			EntryType:  s.EntryType,
			Fields:     promptFields(s.Fields),
		}
	}
	return out
}

func promptFields(fields []FieldSchema) []PromptField {
	out := make([]PromptField, len(fields))
	for i, f := range fields {
		out[i] = PromptField{Key: f.Key, Label: f.Label, Type: f.Type}
	}
	return out
}
