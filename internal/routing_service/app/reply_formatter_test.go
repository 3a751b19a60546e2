package app

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyFormatter_ShortReplyIsSingleSegment(t *testing.T) {
	f := NewReplyFormatter(160)

	envelope := f.Format("  Hi there  ")
	require.Len(t, envelope.Messages, 1)
	assert.Equal(t, "Hi there", envelope.Messages[0])
}

func TestReplyFormatter_EmptyReplyHasNoSegments(t *testing.T) {
	f := NewReplyFormatter(160)

	for _, reply := range []string{"", "   ", "\n"} {
		envelope := f.Format(reply)
		assert.Empty(t, envelope.Messages, "reply %q", reply)
	}
}

func TestReplyFormatter_ThreeSegmentRoundTrip(t *testing.T) {
	const limit = 10
	f := NewReplyFormatter(limit)

	// 3*limit-1 = 29 runes of space-separated words.
	text := "aaaa bbbb cccc dddd eeee ffff"
	require.Equal(t, 3*limit-1, utf8.RuneCountInString(text))

	envelope := f.Format(text)
	require.Len(t, envelope.Messages, 3)

	// Concatenation modulo the split whitespace reconstructs the input.
	joined := strings.Join(envelope.Messages, " ")
	assert.Equal(t, text, joined)

	for _, segment := range envelope.Messages {
		assert.LessOrEqual(t, utf8.RuneCountInString(segment), limit)
	}
}

func TestReplyFormatter_PrefersSentenceBoundaries(t *testing.T) {
	f := NewReplyFormatter(20)

	envelope := f.Format("First one. Second bit here.")
	require.Len(t, envelope.Messages, 2)
	assert.Equal(t, "First one.", envelope.Messages[0])
	assert.Equal(t, "Second bit here.", envelope.Messages[1])
}

func TestReplyFormatter_NeverSplitsMidWordWhenAvoidable(t *testing.T) {
	f := NewReplyFormatter(12)

	envelope := f.Format("several short words flow here nicely")
	for _, segment := range envelope.Messages {
		assert.False(t, strings.HasPrefix(segment, " "))
		assert.False(t, strings.HasSuffix(segment, " "))
	}
	// Every segment boundary falls between words.
	joined := strings.Join(envelope.Messages, " ")
	assert.Equal(t, "several short words flow here nicely", joined)
}

func TestReplyFormatter_HardSplitsOversizedWord(t *testing.T) {
	f := NewReplyFormatter(5)

	envelope := f.Format("abcdefghij")
	require.Len(t, envelope.Messages, 2)
	assert.Equal(t, "abcde", envelope.Messages[0])
	assert.Equal(t, "fghij", envelope.Messages[1])
}

func TestReplyFormatter_Render(t *testing.T) {
	f := NewReplyFormatter(160)

	body, err := f.Format("Hi there").Render()
	require.NoError(t, err)
	assert.Contains(t, string(body), "<Response><Message>Hi there</Message></Response>")
	assert.Contains(t, string(body), "<?xml")

	empty, err := Envelope{}.Render()
	require.NoError(t, err)
	assert.Contains(t, string(empty), "<Response></Response>")
}
