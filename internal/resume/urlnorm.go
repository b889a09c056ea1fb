package resume

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// handlePattern 账号名: 字母数字开头结尾，中间允许连字符，1-100个字符
var handlePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,98}[A-Za-z0-9])?$`)

// enclosingChars 首尾可剥离的括号与引号
const enclosingChars = "()[]{}<>\"'"

type fieldRef struct {
	section string
	field   string
}

// profileBases 支持账号简写的字段及其展开前缀
var profileBases = map[fieldRef]string{
	{SectionPersonalInformation, FieldGitHub}:   "https://github.com/",
	{SectionPersonalInformation, FieldLinkedIn}: "https://linkedin.com/in/",
}

// NormalizeURL 规范化URL类字段的原始输入，不做有效性判断
func NormalizeURL(raw, sectionKey, fieldKey string) string {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return ""
	}

	candidate = stripEnclosing(candidate)
	if candidate == "" {
		return ""
	}

	if hasHTTPScheme(candidate) {
		return candidate
	}

	if base, ok := profileBases[fieldRef{sectionKey, fieldKey}]; ok {
		handle := strings.TrimSpace(strings.TrimLeft(candidate, "@"))
		if handlePattern.MatchString(handle) {
			return base + handle
		}
	}

	return "https://" + candidate
}

// IsValidURL 有效性检查: 协议为http/https，主机非空且包含点。空字符串视为有效。
func IsValidURL(value string) bool {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		return true
	}
	if !hasHTTPScheme(candidate) {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	host := u.Host
	if i := strings.LastIndexByte(host, '@'); i >= 0 {
		host = host[i+1:]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.Contains(host, ".")
}

// CleanURL 先规范化再检查有效性，无效值降级为空字符串
func CleanURL(raw, sectionKey, fieldKey string) string {
	normalized := NormalizeURL(raw, sectionKey, fieldKey)
	if !IsValidURL(normalized) {
		return ""
	}
	return normalized
}

// stripEnclosing 两端独立剥离括号、引号与空白，不要求成对，直到两端都不再是这些字符
func stripEnclosing(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(enclosingChars, r)
	})
}

func hasHTTPScheme(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
