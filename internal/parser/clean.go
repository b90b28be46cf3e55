package parser

import (
	"regexp"
	"strings"
)

// MaxCleanTextRunes 约 8k token
const MaxCleanTextRunes = 32000

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	boilerplateRe = regexp.MustCompile(`(?i)(Page \d+ of \d+|Confidential|Resume|Curriculum Vitae)`)
	emailRe       = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	phoneRe       = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
)

// CleanResumeText 合并空白，去掉页眉页脚、邮箱、电话，并限制长度。
// 超长时若最后一个句号落在末尾 10% 内就在句号处截断，否则硬截断并补省略号
func CleanResumeText(text string) string {
	cleaned := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	cleaned = boilerplateRe.ReplaceAllString(cleaned, "")
	cleaned = emailRe.ReplaceAllString(cleaned, "")
	cleaned = phoneRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))

	runes := []rune(cleaned)
	if len(runes) > MaxCleanTextRunes {
		truncated := string(runes[:MaxCleanTextRunes])
		lastPeriod := strings.LastIndex(truncated, ".")
		if lastPeriod >= 0 && len([]rune(truncated[:lastPeriod])) > MaxCleanTextRunes*9/10 {
			cleaned = truncated[:lastPeriod+1]
		} else {
			cleaned = truncated + "..."
		}
	}
	return strings.TrimSpace(cleaned)
}
