package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// TranscriptEntry is one rendered message recovered from a session log.
type TranscriptEntry struct {
	// Role is "user" or "assistant".
	Role string
	// Text is the flattened message text.
	Text string
	// UUID is the line identifier, used to parent resumed turns.
	UUID string
}

// Transcript is the readable history of a session, reconstructed from JSONL.
type Transcript struct {
	// SessionID is taken from the first message line.
	SessionID string
	// Entries holds user and assistant messages in file order.
	Entries []TranscriptEntry
	// MessageCount counts user and assistant lines, including tool traffic.
	MessageCount int
}

// LoadTranscript reads a session JSONL file back into a transcript.
// Queue-operation and result records are counted out; tool result lines and
// tool_use blocks are skipped so the transcript reads as the visible
// conversation.
func LoadTranscript(path string) (*Transcript, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	transcript := &Transcript{}
	scanner := bufio.NewScanner(file)
	// Large buffer so long tool outputs are not dropped mid-line.
	const maxLineSize = 10 * 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var probe struct {
			Type      string          `json:"type"`
			UUID      string          `json:"uuid"`
			SessionID string          `json:"sessionId"`
			Message   json.RawMessage `json:"message"`
		}
		// Malformed lines are skipped so a partial write does not block resume.
		if err := json.Unmarshal([]byte(line), &probe); err != nil {
			continue
		}
		if probe.Type != LineTypeUser && probe.Type != LineTypeAssistant {
			continue
		}
		transcript.MessageCount++
		if transcript.SessionID == "" {
			transcript.SessionID = probe.SessionID
		}

		switch probe.Type {
		case LineTypeUser:
			text, ok := userText(probe.Message)
			if ok {
				transcript.Entries = append(transcript.Entries, TranscriptEntry{
					Role: "user", Text: text, UUID: probe.UUID,
				})
			}
		case LineTypeAssistant:
			text, ok := assistantText(probe.Message)
			if ok {
				transcript.Entries = append(transcript.Entries, TranscriptEntry{
					Role: "assistant", Text: text, UUID: probe.UUID,
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return transcript, nil
}

// userText extracts the prompt from a user message body. Tool result lines
// carry an array content and are reported as not-text.
func userText(raw json.RawMessage) (string, bool) {
	var msg struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", false
	}
	var text string
	if err := json.Unmarshal(msg.Content, &text); err != nil {
		return "", false
	}
	return text, true
}

// assistantText joins the text blocks of an assistant message body.
func assistantText(raw json.RawMessage) (string, bool) {
	var msg struct {
		Content []ContentBlock `json:"content"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", false
	}
	var parts []string
	for _, block := range msg.Content {
		if block.Type == BlockTypeText && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
