package state

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// IndexEntry is one session row in sessions-index.json.
type IndexEntry struct {
	// SessionID is the session UUID.
	SessionID string `json:"sessionId"`
	// FullPath is the absolute path of the session JSONL file.
	FullPath string `json:"fullPath"`
	// FileMtime is the log's modification time in millis since epoch.
	FileMtime int64 `json:"fileMtime"`
	// FirstPrompt is the first user prompt of the session.
	FirstPrompt string `json:"firstPrompt"`
	// MessageCount counts messages written so far.
	MessageCount int `json:"messageCount"`
	// Created is the session start time, RFC 3339.
	Created string `json:"created"`
	// Modified is the last write time, RFC 3339.
	Modified string `json:"modified"`
	// GitBranch is the branch at write time, empty outside a repository.
	GitBranch string `json:"gitBranch"`
	// ProjectPath is the project the session belongs to.
	ProjectPath string `json:"projectPath"`
	// IsSidechain marks subagent sessions.
	IsSidechain bool `json:"isSidechain"`
}

// Index is the sessions-index.json document kept per project directory.
type Index struct {
	// Version is the format version, always 1.
	Version int `json:"version"`
	// Entries lists known sessions.
	Entries []IndexEntry `json:"entries"`
}

// NewIndex creates an empty index at format version 1.
func NewIndex() *Index {
	return &Index{Version: 1, Entries: []IndexEntry{}}
}

// LoadIndex reads an index file from disk.
func LoadIndex(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var index Index
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, fmt.Errorf("parse sessions index: %w", err)
	}
	return &index, nil
}

// Save writes the index as pretty-printed JSON.
func (x *Index) Save(path string) error {
	data, err := json.MarshalIndent(x, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sessions index: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// AddOrUpdate inserts a new entry or refreshes an existing one. Updates
// only touch the fields that change as a session grows; created, first
// prompt and project metadata stay as first written.
func (x *Index) AddOrUpdate(entry IndexEntry) {
	for i := range x.Entries {
		if x.Entries[i].SessionID == entry.SessionID {
			x.Entries[i].FileMtime = entry.FileMtime
			x.Entries[i].MessageCount = entry.MessageCount
			x.Entries[i].Modified = entry.Modified
			return
		}
	}
	x.Entries = append(x.Entries, entry)
}

// Get returns the entry for a session id, or nil.
func (x *Index) Get(sessionID string) *IndexEntry {
	for i := range x.Entries {
		if x.Entries[i].SessionID == sessionID {
			return &x.Entries[i]
		}
	}
	return nil
}

// GitBranch returns the current git branch, or empty when not in a repo.
func GitBranch() string {
	out, err := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
