package domain

import "strings"

var quoteReplacer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
)

// NormalizeQuotes 将输入法产生的中英文弯引号替换为 ASCII 引号
func NormalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}
