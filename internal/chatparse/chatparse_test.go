package chatparse_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenager/chatsift/internal/chatparse"
)

// pad stretches content past the 500-character detection window without
// touching its meaningful prefix, mirroring a real chat export that has more
// than one screenful of history.
func pad(content string) string {
	filler := strings.Repeat("x", 500)
	return content + "\n[12/03/24, 09:17:00] Alice: " + filler
}

func TestIsChatExportRejectsShortContent(t *testing.T) {
	assert.False(t, chatparse.IsChatExport("[12/03/24, 09:15:32] Alice: hi"))
}

func TestIsChatExportDetectsIOSSignature(t *testing.T) {
	content := pad("[12/03/24, 09:15:32] Alice: hello\n[12/03/24, 09:15:40] Bob: hi")
	assert.True(t, chatparse.IsChatExport(content))
}

func TestIsChatExportDetectsAndroidSignature(t *testing.T) {
	content := pad("12/03/24, 09:15 - Alice: hello\n12/03/24, 09:16 - Bob: hi")
	assert.True(t, chatparse.IsChatExport(content))
}

func TestIsChatExportRejectsPlainText(t *testing.T) {
	content := strings.Repeat("just a regular document with no chat markers. ", 20)
	assert.False(t, chatparse.IsChatExport(content))
}

func TestParseIOSTwoTuples(t *testing.T) {
	content := "[12/03/24, 09:15:32] Alice: hello\n[12/03/24, 09:15:40] Bob: hi"
	messages := chatparse.Parse(content)
	require.Len(t, messages, 2)

	assert.Equal(t, "Alice", messages[0].Sender)
	assert.Equal(t, "12/03/24, 09:15:32", messages[0].Date)
	assert.Equal(t, "hello", messages[0].Content)

	assert.Equal(t, "Bob", messages[1].Sender)
	assert.Equal(t, "hi", messages[1].Content)
}

func TestParseJoinsContinuationLines(t *testing.T) {
	content := "[12/03/24, 09:15:32] Alice: line1\ncontinuation\n[12/03/24, 09:16:00] Bob: reply"
	messages := chatparse.Parse(content)
	require.Len(t, messages, 2)
	assert.Equal(t, "line1\ncontinuation", messages[0].Content)
	assert.Equal(t, "reply", messages[1].Content)
}

func TestParseDropsSystemLine(t *testing.T) {
	content := "[12/03/24, 09:15:32] Alice: hello\n" +
		"12/03/24, 09:14:00 - Messages are encrypted\n" +
		"[12/03/24, 09:16:00] Bob: reply"
	messages := chatparse.Parse(content)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "reply", messages[1].Content)
}

func TestParseAndroidHeaderGrammar(t *testing.T) {
	content := "12/03/24, 09:15 - Alice: hello there\n12/03/24, 09:16 - Bob: hi Alice"
	messages := chatparse.Parse(content)
	require.Len(t, messages, 2)
	assert.Equal(t, "Alice", messages[0].Sender)
	assert.Equal(t, "12/03/24, 09:15", messages[0].Date)
	assert.Equal(t, "hello there", messages[0].Content)
}

func TestParseEmptyContentYieldsNoMessages(t *testing.T) {
	assert.Empty(t, chatparse.Parse(""))
}

func TestParseLeadingContinuationWithNoHeaderIsDropped(t *testing.T) {
	content := "stray line before any header\n[12/03/24, 09:15:32] Alice: hello"
	messages := chatparse.Parse(content)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)
}
