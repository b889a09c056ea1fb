package agent

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON 模型输出中找不到JSON对象
var ErrNoJSON = errors.New("模型输出中没有JSON对象")

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON 从模型输出中取出JSON对象，支持代码块包裹与前后夹杂文字
func ExtractJSON(text string) string {
	if matches := fencedJSON.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}

// CleanOutput 去掉BOM并替换非法UTF-8序列后提取JSON
func CleanOutput(content string) string {
	content = strings.TrimPrefix(content, "\uFEFF")
	return strings.ToValidUTF8(ExtractJSON(content), "")
}

// RepairJSON 第一次解析失败时把字符串内部未转义的双引号补上转义后重试，
// 判断依据是引号后第一个非空白字符是否为 : , ] }
func RepairJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
				break
			}
			j := i + 1
			for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
				j++
			}
			if j >= len(src) || src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}' {
				inStr = false
				b.WriteByte(c)
			} else {
				b.WriteString("\\\"")
			}
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
			continue
		default:
			b.WriteByte(c)
		}
		escaped = false
	}
	return b.String()
}

// DecodeObject 解析模型返回的JSON对象，失败时尝试 RepairJSON 后再解析一次
func DecodeObject(content string, decode func([]byte) error) error {
	jsonStr := CleanOutput(content)
	if jsonStr == "" {
		return ErrNoJSON
	}
	err := decode([]byte(jsonStr))
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	if repairErr := decode([]byte(RepairJSON(jsonStr))); repairErr != nil {
		return err
	}
	return nil
}
