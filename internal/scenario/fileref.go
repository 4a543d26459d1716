package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fileRefKey marks an object to be replaced by external file content.
const fileRefKey = "$file"

// resolveFileRefs walks a decoded scenario tree and replaces every
// {"$file": "path"} object with the referenced file's content. Paths are
// relative to the scenario file's directory. Files with a .json extension
// are parsed and spliced as JSON; everything else is spliced as a string.
func resolveFileRefs(value any, baseDir string) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		if ref, ok := v[fileRefKey].(string); ok {
			return loadFileRef(ref, baseDir)
		}
		out := make(map[string]any, len(v))
		for key, child := range v {
			resolved, err := resolveFileRefs(child, baseDir)
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			resolved, err := resolveFileRefs(child, baseDir)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func loadFileRef(ref, baseDir string) (any, error) {
	full := filepath.Join(baseDir, ref)
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("resolve file reference %q: %w", ref, err)
	}
	if strings.EqualFold(filepath.Ext(full), ".json") {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("resolve file reference %q: %w", ref, err)
		}
		return parsed, nil
	}
	return string(raw), nil
}
