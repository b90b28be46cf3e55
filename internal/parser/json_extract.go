package parser

import (
	"regexp"
	"strings"
)

var codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripCodeFence 去掉模型常见的 ```json ... ``` 包裹
func StripCodeFence(text string) string {
	text = strings.TrimSpace(strings.TrimPrefix(text, "\ufeff"))
	if m := codeFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// ExtractJSONObject 返回第一个配平的 {...}，找不到返回空串
func ExtractJSONObject(text string) string {
	return extractBalanced(StripCodeFence(text), '{', '}')
}

// ExtractJSONArray 返回第一个配平的 [...]
func ExtractJSONArray(text string) string {
	return extractBalanced(StripCodeFence(text), '[', ']')
}

// extractBalanced 跳过字符串字面量内的括号
func extractBalanced(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	if start == -1 {
		return ""
	}
	level := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case open:
			level++
		case close:
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// SanitizeJSON 把字符串内部未转义的双引号改成 \"。
// 引号后的第一个非空白字符若是 : , ] } 才视为字符串结束
func SanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
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
			}
			escaped = false
		} else if c == '\\' && !escaped {
			escaped = true
			b.WriteByte(c)
		} else {
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}
