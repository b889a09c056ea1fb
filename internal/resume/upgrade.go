package resume

import (
	"strings"

	"github.com/google/uuid"
)

// IDGenerator 生成条目id
type IDGenerator func() string

// Upgrader 将任意输入重建为符合当前结构的规范文档，永不失败
type Upgrader struct {
	registry *Registry
	newID    IDGenerator
}

// UpgraderOption Upgrader 的可选配置
type UpgraderOption func(*Upgrader)

// WithIDGenerator 替换默认的UUIDv4生成器
func WithIDGenerator(gen IDGenerator) UpgraderOption {
	return func(u *Upgrader) {
		if gen != nil {
			u.newID = gen
		}
	}
}

// NewUpgrader 创建 Upgrader
func NewUpgrader(registry *Registry, opts ...UpgraderOption) *Upgrader {
	u := &Upgrader{
		registry: registry,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Registry 返回所使用的注册表
func (u *Upgrader) Registry() *Registry {
	return u.registry
}

// Upgrade 重建文档:
// 非对象或没有 sections 数组时返回规范空文档；
// 同键区块以最后一个为准；条目id为空或重复时重新生成；
// 字段按规范字段键重建，未知键丢弃；URL字段规范化，无效则置空；
// 单条目区块只保留第一个条目。
func (u *Upgrader) Upgrade(input Value) Document {
	doc := u.registry.EmptyDocument()

	incoming, ok := input.Get("sections")
	if !ok || incoming.Kind() != KindSequence {
		return doc
	}

	byKey := make(map[string]Value)
	for _, s := range incoming.Items() {
		if s.Kind() != KindMapping {
			continue
		}
		keyVal, _ := s.Get("sectionKey")
		if key, ok := keyVal.AsString(); ok {
			byKey[key] = s
		}
	}

	used := make(map[string]struct{})
	for i := range doc.Sections {
		sectionKey := doc.Sections[i].SectionKey
		src, ok := byKey[sectionKey]
		if !ok {
			continue
		}
		itemsVal, _ := src.Get("items")
		single := u.registry.IsSingle(sectionKey)
		for _, raw := range itemsVal.Items() {
			if raw.Kind() != KindMapping {
				continue
			}
			item := Item{
				ID:     u.itemID(raw, used),
				Values: u.upgradeValues(sectionKey, raw),
			}
			doc.Sections[i].Items = append(doc.Sections[i].Items, item)
			if single {
				break
			}
		}
	}
	return doc
}

// UpgradeDocument 对已解码的文档重新走一遍升级流程
func (u *Upgrader) UpgradeDocument(doc Document) Document {
	return u.Upgrade(doc.Value())
}

// UpgradeAny 对Go原生值升级
func (u *Upgrader) UpgradeAny(x any) Document {
	return u.Upgrade(FromAny(x))
}

// UpgradeJSON 对JSON文本升级，无法解析的文本视为空输入
func (u *Upgrader) UpgradeJSON(data []byte) Document {
	v, err := ParseValue(data)
	if err != nil {
		return u.registry.EmptyDocument()
	}
	return u.Upgrade(v)
}

func (u *Upgrader) itemID(raw Value, used map[string]struct{}) string {
	idVal, _ := raw.Get("id")
	id, _ := idVal.AsString()
	id = strings.TrimSpace(id)
	if _, taken := used[id]; id == "" || taken {
		id = u.newID()
		for {
			if _, taken := used[id]; !taken && strings.TrimSpace(id) != "" {
				break
			}
			id = u.newID()
		}
	}
	used[id] = struct{}{}
	return id
}

func (u *Upgrader) upgradeValues(sectionKey string, raw Value) map[string]string {
	valuesVal, _ := raw.Get("values")
	keys := u.registry.fieldKeys[sectionKey]
	out := make(map[string]string, len(keys))
	for _, fk := range keys {
		fv, _ := valuesVal.Get(fk)
		s, err := CoerceScalar(fv)
		if err != nil {
			// 嵌套结构无法表示为字符串，按缺失处理
			s = ""
		}
		if u.registry.IsURLField(sectionKey, fk) && strings.TrimSpace(s) != "" {
			s = CleanURL(s, sectionKey, fk)
		}
		out[fk] = s
	}
	return out
}
