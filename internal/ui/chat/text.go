package chat

import (
	"regexp"
	"strings"
)

var (
	// htmlTagPattern matches HTML tags for stripping.
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

	// hiddenBlockPattern matches elements whose content is never shown.
	hiddenBlockPattern = regexp.MustCompile(`(?is)<(script|style|head)\b[^>]*>.*?</(script|style|head)>`)

	blockEndPattern  = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|tr|h[1-6]|section|article|header|footer|ul|ol|table)>`)
	listItemPattern  = regexp.MustCompile(`(?i)<li\b[^>]*>`)
	blankRunsPattern = regexp.MustCompile(`\n[ \t]*\n([ \t]*\n)+`)
)

// pageText turns a rendered page into readable terminal text.
func pageText(html string) string {
	if html == "" {
		return ""
	}

	result := hiddenBlockPattern.ReplaceAllString(html, "")
	result = listItemPattern.ReplaceAllString(result, "• ")
	result = blockEndPattern.ReplaceAllString(result, "\n")
	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	lines := strings.Split(result, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	result = blankRunsPattern.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")

	return strings.TrimSpace(result)
}
