package resume

import (
	"strings"
	"unicode"
)

// KeyFor 根据标题或标签生成稳定的键
// 规则: 小写 -> & 替换为 and -> / 替换为空格 -> 去首尾空白 -> slug
func KeyFor(title string) string {
	s := strings.ToLower(title)
	s = strings.ReplaceAll(s, "&", "and")
	s = strings.ReplaceAll(s, "/", " ")
	s = strings.TrimSpace(s)
	return slugify(s)
}

// slugify 将连续的非字母数字字符折叠为单个连字符，并去掉首尾连字符
func slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevDash := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			prevDash = false
			continue
		}
		if !prevDash {
			b.WriteByte('-')
			prevDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}
