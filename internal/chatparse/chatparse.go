// Package chatparse recognizes and parses exported chat transcripts (iOS and
// Android variants) into (date, sender, content) message tuples.
package chatparse

import (
	"regexp"
	"strings"
)

// Message is a single parsed chat message.
type Message struct {
	Content string
	Sender  string
	Date    string
}

// detectionWindow is how many leading characters of a document are checked
// for a chat-export signature. Documents shorter than this are never
// classified as chats.
const detectionWindow = 500

var (
	iosDetectRe = regexp.MustCompile(`\[\d{1,2}/\d{1,2}/\d{2,4}, \d{1,2}:\d{2}:\d{2}\]`)
	androidDetectRe = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}, \d{1,2}:\d{2} -`)

	iosHeaderRe     = regexp.MustCompile(`^\[(\d{1,2}/\d{1,2}/\d{2,4}, \d{1,2}:\d{2}:\d{2})\] ([^:]+): (.*)$`)
	androidHeaderRe = regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4}, \d{1,2}:\d{2}) - ([^:]+): (.*)$`)

	datePrefixRe = regexp.MustCompile(`^\[?\d{1,2}/\d{1,2}/\d{2,4}`)
)

// IsChatExport reports whether content's leading detectionWindow characters
// match the iOS or Android chat-export signature.
func IsChatExport(content string) bool {
	count := 0
	end := len(content)
	for i := range content {
		if count == detectionWindow {
			end = i
			break
		}
		count++
	}
	if count < detectionWindow {
		return false
	}
	head := content[:end]
	return iosDetectRe.MatchString(head) || androidDetectRe.MatchString(head)
}

// Parse splits a chat export into message tuples. Lines that look
// date-prefixed but match neither header grammar are system notices and are
// dropped, not appended to the in-progress message.
func Parse(content string) []Message {
	var messages []Message
	var current *Message
	var body strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Content = body.String()
		messages = append(messages, *current)
		current = nil
		body.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		if m := iosHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &Message{Date: m[1], Sender: strings.TrimSpace(m[2])}
			body.WriteString(m[3])
			continue
		}
		if m := androidHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			current = &Message{Date: m[1], Sender: strings.TrimSpace(m[2])}
			body.WriteString(m[3])
			continue
		}

		if datePrefixRe.MatchString(line) {
			// Looks like a header but matched neither grammar: a system
			// notice (member changes, encryption notices). Drop it.
			continue
		}

		if current != nil {
			body.WriteByte('\n')
			body.WriteString(line)
		}
		// A continuation line with no in-progress message (shouldn't occur
		// for well-formed exports) is silently dropped.
	}
	flush()

	return messages
}
