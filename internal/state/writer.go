package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/claudeless/claudeless/internal/session"
)

// ErrNoIndexEntry indicates a resume was attempted for a session the
// project's index has never seen.
var ErrNoIndexEntry = errors.New("session not found in sessions index")

// Clock supplies timestamps for written records. Tests swap it to pin
// output.
var Clock = time.Now

// Writer records conversation state the way the real CLI does: session
// JSONL under the project directory, a sessions index next to it, todos
// and plans in their own trees.
type Writer struct {
	dir *Directory

	// SessionID identifies the session being written.
	SessionID string

	projectPath     string
	launchTimestamp time.Time
	model           string
	version         string
	cwd             string

	firstPrompt  string
	messageCount int
}

// NewWriter resolves and initializes the state directory and returns a
// writer for a fresh session.
func NewWriter(sessionID string, projectPath string, launchTimestamp time.Time, model string, version string, cwd string) (*Writer, error) {
	dir, err := Resolve()
	if err != nil {
		return nil, err
	}
	if err := dir.Initialize(); err != nil {
		return nil, err
	}
	return &Writer{
		dir:             dir,
		SessionID:       sessionID,
		projectPath:     projectPath,
		launchTimestamp: launchTimestamp,
		model:           model,
		version:         version,
		cwd:             cwd,
	}, nil
}

// NewWriterResumed builds a writer for an existing session, carrying the
// message count and first prompt forward from the sessions index. The
// session must already be indexed.
func NewWriterResumed(sessionID string, projectPath string, launchTimestamp time.Time, model string, version string, cwd string) (*Writer, error) {
	w, err := NewWriter(sessionID, projectPath, launchTimestamp, model, version, cwd)
	if err != nil {
		return nil, err
	}
	index, err := LoadIndex(w.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoIndexEntry, sessionID)
		}
		return nil, err
	}
	entry := index.Get(sessionID)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoIndexEntry, sessionID)
	}
	w.firstPrompt = entry.FirstPrompt
	w.messageCount = entry.MessageCount
	return w, nil
}

// StateDir exposes the resolved directory.
func (w *Writer) StateDir() *Directory { return w.dir }

// ProjectDir returns the project directory for this session.
func (w *Writer) ProjectDir() string { return w.dir.ProjectDir(w.projectPath) }

// SessionPath returns the session JSONL path.
func (w *Writer) SessionPath() string {
	return filepath.Join(w.ProjectDir(), w.SessionID+".jsonl")
}

// TodoPath returns the todo file path in the Claude naming scheme.
func (w *Writer) TodoPath() string {
	return filepath.Join(w.dir.TodosDir(), fmt.Sprintf("%s-agent-%s.json", w.SessionID, w.SessionID))
}

// MessageCount reports messages recorded so far, including resumed history.
func (w *Writer) MessageCount() int { return w.messageCount }

func (w *Writer) indexPath() string {
	return filepath.Join(w.ProjectDir(), "sessions-index.json")
}

func (w *Writer) envelopeParams(ts time.Time) session.EnvelopeParams {
	return session.EnvelopeParams{
		SessionID: w.SessionID,
		CWD:       w.cwd,
		Version:   w.version,
		GitBranch: GitBranch(),
		Timestamp: ts,
	}
}

func (w *Writer) ensureProjectDir() error {
	if err := os.MkdirAll(w.ProjectDir(), 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}
	return nil
}

func (w *Writer) onMessage(prompt string) {
	if prompt != "" && w.firstPrompt == "" {
		w.firstPrompt = prompt
	}
	w.messageCount++
}

// NewRequestID returns a fresh requestId in the req_<hex> form.
func NewRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewMessageID returns a fresh message id in the msg_<hex> form.
func NewMessageID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WriteQueueOperation writes the dequeue line that opens print-mode sessions.
func (w *Writer) WriteQueueOperation() error {
	if err := w.ensureProjectDir(); err != nil {
		return err
	}
	return session.WriteQueueOperation(w.SessionPath(), w.SessionID, "dequeue", Clock())
}

// RecordTurn writes a complete prompt/response pair in one call. Used for
// simple turns with no tool traffic.
func (w *Writer) RecordTurn(prompt string, response string) error {
	userUUID, err := w.RecordUserMessage(prompt)
	if err != nil {
		return err
	}
	_, err = w.RecordAssistantResponse(userUUID, response)
	return err
}

// RecordUserMessage appends a user prompt line and returns its UUID for
// parenting the response.
func (w *Writer) RecordUserMessage(prompt string) (string, error) {
	if err := w.ensureProjectDir(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := session.AppendUserMessage(w.SessionPath(), w.envelopeParams(Clock()), id, nil, prompt); err != nil {
		return "", err
	}
	w.onMessage(prompt)
	return id, w.updateIndex()
}

// RecordAssistantResponse appends a text-only assistant line and returns
// its UUID.
func (w *Writer) RecordAssistantResponse(parentUserUUID string, response string) (string, error) {
	return w.recordAssistantText(parentUserUUID, response, nil)
}

// RecordAssistantResponseFinal appends the closing assistant line of a turn
// with stop_reason end_turn.
func (w *Writer) RecordAssistantResponseFinal(parentUserUUID string, response string) (string, error) {
	stop := "end_turn"
	return w.recordAssistantText(parentUserUUID, response, &stop)
}

func (w *Writer) recordAssistantText(parentUserUUID string, response string, stopReason *string) (string, error) {
	return w.recordAssistant(parentUserUUID, []session.ContentBlock{session.TextBlock(response)}, stopReason)
}

// RecordAssistantToolUse appends an assistant line whose content includes
// tool_use blocks, with stop_reason tool_use.
func (w *Writer) RecordAssistantToolUse(parentUserUUID string, content []session.ContentBlock) (string, error) {
	stop := "tool_use"
	return w.recordAssistant(parentUserUUID, content, &stop)
}

func (w *Writer) recordAssistant(parentUUID string, content []session.ContentBlock, stopReason *string) (string, error) {
	if err := w.ensureProjectDir(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	err := session.AppendAssistantMessage(w.SessionPath(), w.envelopeParams(Clock()), session.AssistantParams{
		UUID:       id,
		ParentUUID: parentUUID,
		RequestID:  NewRequestID(),
		MessageID:  NewMessageID(),
		Model:      w.model,
		Content:    content,
		StopReason: stopReason,
	})
	if err != nil {
		return "", err
	}
	w.onMessage("")
	return id, w.updateIndex()
}

// RecordToolResult appends the tool result user line plus the standalone
// result record, both parented to the producing assistant line. Returns
// the tool result line's UUID.
func (w *Writer) RecordToolResult(toolUseID string, content string, assistantUUID string, toolUseResult any) (string, error) {
	if err := w.ensureProjectDir(); err != nil {
		return "", err
	}
	ts := Clock()
	id := uuid.NewString()
	path := w.SessionPath()
	if err := session.AppendToolResult(path, w.envelopeParams(ts), id, assistantUUID, toolUseID, content, toolUseResult); err != nil {
		return "", err
	}
	if err := session.AppendResult(path, toolUseID, content, ts); err != nil {
		return "", err
	}
	w.onMessage("")
	return id, w.updateIndex()
}

// RecordError appends an error record for a failed turn.
func (w *Writer) RecordError(errText string, errType string, retryAfter int, durationMS int64) error {
	if err := w.ensureProjectDir(); err != nil {
		return err
	}
	return session.AppendError(w.SessionPath(), w.SessionID, errText, errType, retryAfter, durationMS, Clock())
}

// RecordAPIError appends the synthetic assistant line real Claude writes
// for API failures.
func (w *Writer) RecordAPIError(parentUUID string, errText string, errClass string) error {
	if err := w.ensureProjectDir(); err != nil {
		return err
	}
	var parent *string
	if parentUUID != "" {
		parent = &parentUUID
	}
	return session.AppendAPIError(w.SessionPath(), w.envelopeParams(Clock()), uuid.NewString(), parent, NewMessageID(), errText, errClass)
}

// WriteTodos persists a todo list for this session.
func (w *Writer) WriteTodos(items []TodoItem) error {
	if err := os.MkdirAll(w.dir.TodosDir(), 0o755); err != nil {
		return fmt.Errorf("create todos dir: %w", err)
	}
	return SaveTodos(w.TodoPath(), items)
}

// CreatePlan saves plan content and returns the generated plan name.
func (w *Writer) CreatePlan(content string) (string, error) {
	return NewPlans(w.dir.PlansDir()).CreateMarkdown(content)
}

func (w *Writer) updateIndex() error {
	indexPath := w.indexPath()
	index, err := LoadIndex(indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		index = NewIndex()
	}

	now := Clock()
	index.AddOrUpdate(IndexEntry{
		SessionID:    w.SessionID,
		FullPath:     w.SessionPath(),
		FileMtime:    now.UnixMilli(),
		FirstPrompt:  w.firstPrompt,
		MessageCount: w.messageCount,
		Created:      session.FormatTimestamp(w.launchTimestamp),
		Modified:     session.FormatTimestamp(now),
		GitBranch:    GitBranch(),
		ProjectPath:  w.projectPath,
		IsSidechain:  false,
	})
	return index.Save(indexPath)
}
