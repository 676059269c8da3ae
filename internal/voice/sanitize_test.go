package voice

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestSanitizeReplyStripsEmoji(t *testing.T) {
	got := SanitizeReply("Sure thing! \U0001F600\U0001F44D See you soon ❤️", 180)
	require.Equal(t, "Sure thing! See you soon", got)
}

func TestSanitizeReplyCollapsesWhitespace(t *testing.T) {
	got := SanitizeReply("  hello\n\n  there\tfriend  ", 180)
	require.Equal(t, "hello there friend", got)
}

func TestSanitizeReplyClampsRunes(t *testing.T) {
	long := strings.Repeat("héllo wörld ", 40)
	got := SanitizeReply(long, 180)
	require.LessOrEqual(t, utf8.RuneCountInString(got), 180)
	require.NotEmpty(t, got)
	require.Equal(t, got, strings.TrimSpace(got))
}

func TestSanitizeReplyEmojiOnlyBecomesEmpty(t *testing.T) {
	require.Equal(t, "", SanitizeReply("\U0001F600 \U0001F680\U0001F389", 180))
}

func TestSanitizeReplyNoClampWhenZero(t *testing.T) {
	long := strings.Repeat("a", 500)
	require.Equal(t, long, SanitizeReply(long, 0))
}
