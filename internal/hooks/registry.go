package hooks

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Registry builds executors from inline scripts. Tests and the TUI hooks
// dialog use it to register hooks without a settings file.
type Registry struct {
	executor         *Executor
	tempScripts      []string
	defaultTimeoutMS int64
}

// NewRegistry creates a registry with the default hook timeout.
func NewRegistry(log zerolog.Logger) *Registry {
	return NewRegistryWithTimeout(log, DefaultTimeoutMS)
}

// NewRegistryWithTimeout creates a registry with a custom default timeout.
func NewRegistryWithTimeout(log zerolog.Logger, defaultTimeoutMS int64) *Registry {
	return &Registry{executor: NewExecutor(log), defaultTimeoutMS: defaultTimeoutMS}
}

// RegisterScript registers an inline shell script for an event.
func (r *Registry) RegisterScript(event Event, script string, blocking bool) error {
	path, err := writeHookScript(script)
	if err != nil {
		return err
	}
	r.tempScripts = append(r.tempScripts, path)
	r.executor.Register(event, Config{
		ScriptPath: path,
		TimeoutMS:  r.defaultTimeoutMS,
		Blocking:   blocking,
	})
	return nil
}

// RegisterPassthrough registers a hook that always proceeds. The script
// consumes stdin first to avoid a broken pipe when the executor writes.
func (r *Registry) RegisterPassthrough(event Event) error {
	return r.RegisterScript(event, `cat > /dev/null; echo '{"proceed": true}'`, false)
}

// RegisterBlocking registers a hook that denies with a reason.
func (r *Registry) RegisterBlocking(event Event, reason string) error {
	script := fmt.Sprintf(`cat > /dev/null; echo '{"proceed": false, "error": %q}'`, reason)
	return r.RegisterScript(event, script, true)
}

// RegisterLogger registers a hook that appends its stdin to a file.
func (r *Registry) RegisterLogger(event Event, logPath string) error {
	script := fmt.Sprintf("cat >> %s\necho '{\"proceed\": true}'", logPath)
	return r.RegisterScript(event, script, false)
}

// Executor returns the built executor.
func (r *Registry) Executor() *Executor { return r.executor }

// Close removes the temporary scripts.
func (r *Registry) Close() {
	for _, path := range r.tempScripts {
		os.Remove(path)
	}
	r.tempScripts = nil
}
