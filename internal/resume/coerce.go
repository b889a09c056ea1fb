package resume

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// CoerceScalar 将标量转换为规范字符串
// null -> "", 字符串原样, 布尔 -> "true"/"false", 数字 -> 十进制字符串。
// 数组与对象返回 *UnsupportedValueTypeError。
func CoerceScalar(v Value) (string, error) {
	switch v.kind {
	case KindNull:
		return "", nil
	case KindString:
		return v.s, nil
	case KindBool:
		if v.b {
			return "true", nil
		}
		return "false", nil
	case KindNumber:
		return numberString(v.s), nil
	default:
		return "", &UnsupportedValueTypeError{Kind: v.kind}
	}
}

// numberString 整数字面量保持整数形式，其余按浮点数的最短往返形式输出
func numberString(lit string) string {
	if !strings.ContainsAny(lit, ".eE") {
		n, ok := new(big.Int).SetString(lit, 10)
		if ok {
			return n.String()
		}
		return lit
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil && !math.IsInf(f, 0) {
		return lit
	}
	return formatFloat(f)
}

// formatFloat 浮点数格式: 指数在 [-4, 16) 内用定点表示且至少保留一位小数，
// 否则用科学计数法，例如 3.8 -> "3.8", 2.0 -> "2.0", 1e16 -> "1e+16"
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	if f == 0 {
		if math.Signbit(f) {
			return "-0.0"
		}
		return "0.0"
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp := 0
	if i := strings.IndexByte(sci, 'e'); i >= 0 {
		exp, _ = strconv.Atoi(sci[i+1:])
	}
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
