package resume

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// Kind JSON值的类别
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "array"
	case KindMapping:
		return "object"
	default:
		return "unknown"
	}
}

// maxDecodeDepth 解码时允许的最大嵌套深度
const maxDecodeDepth = 10000

// Member 对象中的一个键值对
type Member struct {
	Key   string
	Value Value
}

// Value 不可信输入在边界处的表示：null/bool/number/string/array/object 的标签联合。
// 数字保留原始字面量，对象保留键的出现顺序。零值为 null。
type Value struct {
	kind    Kind
	b       bool
	s       string // 字符串内容或数字字面量
	items   []Value
	members []Member
}

// Null 返回null值
func Null() Value { return Value{} }

// Bool 构造布尔值
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String 构造字符串值
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int 构造整数值
func Int(n int64) Value { return Value{kind: KindNumber, s: strconv.FormatInt(n, 10)} }

// Float 构造浮点值，NaN和Inf无法用JSON表示，按null处理
func Float(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null()
	}
	return Value{kind: KindNumber, s: formatFloat(f)}
}

// Number 使用JSON数字字面量构造数值
func Number(lit json.Number) (Value, error) {
	if _, err := lit.Float64(); err != nil {
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || !errors.Is(numErr.Err, strconv.ErrRange) {
			return Null(), fmt.Errorf("无效的数字字面量 %q: %w", lit, err)
		}
	}
	return Value{kind: KindNumber, s: lit.String()}, nil
}

// Array 构造数组值
func Array(items ...Value) Value {
	return Value{kind: KindSequence, items: append([]Value{}, items...)}
}

// Object 构造对象值，重复键以后出现的为准
func Object(members ...Member) Value {
	b := newObjectBuilder(len(members))
	for _, m := range members {
		b.set(m.Key, m.Value)
	}
	return b.value()
}

// objectBuilder 按首次出现的位置保存键，重复键原位覆盖
type objectBuilder struct {
	members []Member
	index   map[string]int
}

func newObjectBuilder(capacity int) *objectBuilder {
	return &objectBuilder{
		members: make([]Member, 0, capacity),
		index:   make(map[string]int, capacity),
	}
}

func (b *objectBuilder) set(key string, val Value) {
	if i, ok := b.index[key]; ok {
		b.members[i].Value = val
		return
	}
	b.index[key] = len(b.members)
	b.members = append(b.members, Member{Key: key, Value: val})
}

func (b *objectBuilder) value() Value {
	return Value{kind: KindMapping, members: b.members}
}

// Kind 返回值的类别
func (v Value) Kind() Kind { return v.kind }

// IsNull 是否为null
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString 字符串内容
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsBool 布尔内容
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// NumberLiteral 数字的原始字面量
func (v Value) NumberLiteral() (json.Number, bool) {
	if v.kind != KindNumber {
		return "", false
	}
	return json.Number(v.s), true
}

// Items 数组元素，非数组返回nil
func (v Value) Items() []Value {
	if v.kind != KindSequence {
		return nil
	}
	return v.items
}

// Members 对象成员，按出现顺序
func (v Value) Members() []Member {
	if v.kind != KindMapping {
		return nil
	}
	return v.members
}

// Get 按键读取对象成员
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMapping {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// FromAny 将Go原生值转换为Value，无法识别的类型按null处理
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case json.Number:
		v, err := Number(t)
		if err != nil {
			return Null()
		}
		return v
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return Value{kind: KindNumber, s: strconv.FormatUint(uint64(t), 10)}
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		return Value{kind: KindNumber, s: strconv.FormatUint(t, 10)}
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromAny(e)
		}
		return Value{kind: KindSequence, items: items}
	case map[string]any:
		// map没有顺序，按键排序以保证结果确定
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]Member, len(keys))
		for i, k := range keys {
			members[i] = Member{Key: k, Value: FromAny(t[k])}
		}
		return Value{kind: KindMapping, members: members}
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]Member, len(keys))
		for i, k := range keys {
			members[i] = Member{Key: k, Value: String(t[k])}
		}
		return Value{kind: KindMapping, members: members}
	default:
		return Null()
	}
}

// ParseValue 解析JSON文本
func ParseValue(data []byte) (Value, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return Null(), err
	}
	return v, nil
}

// UnmarshalJSON 实现 json.Unmarshaler，保留数字字面量与键顺序
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeValue(dec, 0)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("JSON值之后存在多余内容")
	}
	*v = out
	return nil
}

func decodeValue(dec *json.Decoder, depth int) (Value, error) {
	if depth > maxDecodeDepth {
		return Null(), errors.New("JSON嵌套层级过深")
	}
	tok, err := dec.Token()
	if err != nil {
		return Null(), err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t)
	case json.Delim:
		switch t {
		case '[':
			out := Value{kind: KindSequence, items: []Value{}}
			for dec.More() {
				item, err := decodeValue(dec, depth+1)
				if err != nil {
					return Null(), err
				}
				out.items = append(out.items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return out, nil
		case '{':
			out := newObjectBuilder(0)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Null(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Null(), fmt.Errorf("对象键必须为字符串: %v", keyTok)
				}
				val, err := decodeValue(dec, depth+1)
				if err != nil {
					return Null(), err
				}
				out.set(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return out.value(), nil
		}
	}
	return Null(), fmt.Errorf("无法识别的JSON标记: %v", tok)
}

// MarshalJSON 实现 json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(v.s)
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindSequence:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMapping:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("未知的值类别: %d", v.kind)
	}
	return nil
}
