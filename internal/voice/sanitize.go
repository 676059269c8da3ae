package voice

import (
	"regexp"
	"strings"
	"unicode"
)

// pictographic covers the Unicode blocks commonly used for emoji and other
// pictographic symbols. Go's regexp has no Extended_Pictographic class, so
// the ranges are spelled out.
var pictographic = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2300, Hi: 0x23FF, Stride: 1}, // misc technical (watch, hourglass)
		{Lo: 0x2600, Hi: 0x27BF, Stride: 1}, // misc symbols, dingbats
		{Lo: 0x2B00, Hi: 0x2BFF, Stride: 1}, // misc symbols and arrows
		{Lo: 0xFE00, Hi: 0xFE0F, Stride: 1}, // variation selectors
	},
	R32: []unicode.Range32{
		{Lo: 0x1F000, Hi: 0x1FAFF, Stride: 1}, // emoji planes incl. flags, supplement
		{Lo: 0xE0020, Hi: 0xE007F, Stride: 1}, // tag characters (flag sequences)
	},
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// SanitizeReply prepares backend text for synthesis: strips pictographic
// runes, collapses whitespace, and clamps to maxChars runes (the synthesis
// service rejects long inputs).
func SanitizeReply(text string, maxChars int) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.Is(pictographic, r) {
			continue
		}
		b.WriteRune(r)
	}
	s := strings.TrimSpace(whitespaceRe.ReplaceAllString(b.String(), " "))
	if maxChars > 0 {
		if runes := []rune(s); len(runes) > maxChars {
			s = strings.TrimSpace(string(runes[:maxChars]))
		}
	}
	return s
}
