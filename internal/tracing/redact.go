package tracing

import (
	"strings"
)

// 写入span属性与日志时的长度上限
const (
	DefaultMaxLength   = 200
	MaxSQLLength       = 500
	MaxRedisLength     = 100
	MaxLLMOutputLength = 300
)

const ellipsis = "..."

// MaskPII 遮盖个人信息；邮箱只保留本地部分首字符和域名
func MaskPII(value string) string {
	if at := strings.LastIndexByte(value, '@'); at > 0 && at < len(value)-1 {
		local := []rune(value[:at])
		return string(local[0]) + strings.Repeat("*", len(local)-1) + value[at:]
	}

	r := []rune(value)
	n := len(r)
	switch {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(r[0]) + "*"
	case n <= 4:
		return string(r[0]) + strings.Repeat("*", n-2) + string(r[n-1])
	default:
		// "13812345678" -> "13*******78"
		return string(r[:2]) + strings.Repeat("*", n-4) + string(r[n-2:])
	}
}

// TruncateString 超长时保留首尾，中间用省略号连接
func TruncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= len(ellipsis) {
		return string(r[:maxLength])
	}
	keep := max((maxLength-len(ellipsis))/2, 1)
	return string(r[:keep]) + ellipsis + string(r[len(r)-keep:])
}

func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeLLMOutput 模型输出可能包含整份简历，只记录首尾片段
func SafeLLMOutput(content string) string {
	return TruncateString(content, MaxLLMOutputLength)
}
