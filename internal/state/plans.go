package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Plans manages saved plan files under the plans directory.
type Plans struct {
	dir string
}

// NewPlans creates a plans manager rooted at dir.
func NewPlans(dir string) *Plans {
	return &Plans{dir: dir}
}

// Dir returns the plans directory.
func (p *Plans) Dir() string { return p.dir }

// CreateMarkdown writes plan content to a freshly named markdown file and
// returns the generated name without extension. Name collisions retry a few
// times before giving up on uniqueness.
func (p *Plans) CreateMarkdown(content string) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create plans dir: %w", err)
	}

	name := GeneratePlanName()
	for attempts := 0; p.MarkdownExists(name) && attempts < 10; attempts++ {
		time.Sleep(time.Millisecond)
		name = GeneratePlanName()
	}

	path := filepath.Join(p.dir, name+".md")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("write plan: %w", err)
	}
	return name, nil
}

// MarkdownExists reports whether a plan with the given name exists.
func (p *Plans) MarkdownExists(name string) bool {
	_, err := os.Stat(filepath.Join(p.dir, name+".md"))
	return err == nil
}

// List returns the names of saved markdown plans, newest first.
func (p *Plans) List() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type planFile struct {
		name  string
		mtime time.Time
	}
	var files []planFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		name := entry.Name()[:len(entry.Name())-len(".md")]
		files = append(files, planFile{name: name, mtime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].mtime.After(files[j].mtime)
	})
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.name)
	}
	return names, nil
}
