// Package task runs the named command templates declared in tessera.yaml.
package task

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/tesseralab/tessera/internal/config"
)

// ErrUnknownTask is returned by Lookup for names not in the manifest.
var ErrUnknownTask = errors.New("unknown task")

// paramName constrains declared parameter names.
var paramName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// placeholder matches {{name}} references inside templates.
var placeholder = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

// Task is one validated manifest task.
type Task struct {
	Name        string
	Description string

	// Params are the ordered positional parameter names.
	Params []string

	// Command is a shell template run via `sh -c`. Mutually exclusive with
	// Argv.
	Command string

	// Argv is the exec-form command: no shell involved, placeholders
	// interpolate per element.
	Argv []string

	// Env is extra environment for the child process.
	Env map[string]string

	// Dir is the absolute working directory for the child process.
	Dir string

	// manifestDir is where tessera.yaml (and its optional .env) lives.
	manifestDir string
}

// Set holds a project's tasks.
type Set struct {
	tasks map[string]*Task
}

// FromManifest validates the manifest's tasks and builds the Set. dir is the
// manifest directory; relative task dirs resolve against it.
func FromManifest(m *config.Manifest, dir string) (*Set, error) {
	s := &Set{tasks: make(map[string]*Task)}
	if m == nil {
		return s, nil
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving manifest dir: %w", err)
	}

	for name, spec := range m.Tasks {
		t, err := build(name, spec, absDir)
		if err != nil {
			return nil, err
		}
		s.tasks[name] = t
	}
	return s, nil
}

func build(name string, spec config.TaskSpec, manifestDir string) (*Task, error) {
	if spec.Command != "" && len(spec.Argv) > 0 {
		return nil, fmt.Errorf("task %q: 'command' and 'argv' are mutually exclusive - use one or the other", name)
	}
	if spec.Command == "" && len(spec.Argv) == 0 {
		return nil, fmt.Errorf("task %q: one of 'command' or 'argv' is required", name)
	}
	if len(spec.Argv) > 0 && spec.Argv[0] == "" {
		return nil, fmt.Errorf("task %q: argv[0] cannot be empty: the first element must be the executable", name)
	}

	declared := make(map[string]bool, len(spec.Params))
	for _, p := range spec.Params {
		if !paramName.MatchString(p) {
			return nil, fmt.Errorf("task %q: invalid param name %q (must match %s)", name, p, paramName)
		}
		if declared[p] {
			return nil, fmt.Errorf("task %q: duplicate param %q", name, p)
		}
		declared[p] = true
	}

	templates := spec.Argv
	if spec.Command != "" {
		templates = []string{spec.Command}
	}
	for _, tmpl := range templates {
		for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
			if !declared[m[1]] {
				return nil, fmt.Errorf("task %q: undeclared param %q in template\n\nDeclare it first:\n  tasks:\n    %s:\n      params: [%s]", name, m[1], name, m[1])
			}
		}
	}

	taskDir := manifestDir
	if spec.Dir != "" {
		taskDir = filepath.Join(manifestDir, spec.Dir)
	}

	return &Task{
		Name:        name,
		Description: spec.Description,
		Params:      spec.Params,
		Command:     spec.Command,
		Argv:        spec.Argv,
		Env:         spec.Env,
		Dir:         taskDir,
		manifestDir: manifestDir,
	}, nil
}

// Lookup finds a task by name. The error for an unknown name lists what is
// available.
func (s *Set) Lookup(name string) (*Task, error) {
	if t, ok := s.tasks[name]; ok {
		return t, nil
	}
	if len(s.tasks) == 0 {
		return nil, fmt.Errorf("%w %q: no tasks defined in tessera.yaml", ErrUnknownTask, name)
	}
	return nil, fmt.Errorf("%w %q\n\nAvailable tasks:\n  %s", ErrUnknownTask, name, strings.Join(s.Names(), "\n  "))
}

// Names returns the task names, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tasks returns the tasks sorted by name.
func (s *Set) Tasks() []*Task {
	ts := make([]*Task, 0, len(s.tasks))
	for _, name := range s.Names() {
		ts = append(ts, s.tasks[name])
	}
	return ts
}

// Invocation is a task bound to concrete arguments, ready to run.
type Invocation struct {
	Task *Task

	// Values maps each declared param to its argument.
	Values map[string]string

	// Extra are surplus positional arguments, forwarded verbatim.
	Extra []string
}

// Bind checks arity and pairs the task's params with args. Surplus args
// beyond the declared params are forwarded to the command untouched.
func Bind(t *Task, args []string) (*Invocation, error) {
	if len(args) < len(t.Params) {
		ph := make([]string, len(t.Params))
		for i, p := range t.Params {
			ph[i] = "<" + p + ">"
		}
		return nil, fmt.Errorf("task %q requires %s", t.Name, strings.Join(ph, " "))
	}

	values := make(map[string]string, len(t.Params))
	for i, p := range t.Params {
		values[p] = args[i]
	}
	return &Invocation{
		Task:   t,
		Values: values,
		Extra:  args[len(t.Params):],
	}, nil
}

// Command returns the exact argv that Run will execute.
//
// Template tasks run through the shell with extra args passed as quoted
// positionals, so forwarding never re-parses them:
//
//	sh -c '<interpolated> "$@"' tessera-task <extra...>
//
// Exec-form tasks interpolate each element and append the extras.
func (inv *Invocation) Command() []string {
	if inv.Task.Command != "" {
		argv := []string{"sh", "-c", inv.interpolate(inv.Task.Command) + ` "$@"`, "tessera-task"}
		return append(argv, inv.Extra...)
	}

	argv := make([]string, 0, len(inv.Task.Argv)+len(inv.Extra))
	for _, elem := range inv.Task.Argv {
		argv = append(argv, inv.interpolate(elem))
	}
	return append(argv, inv.Extra...)
}

func (inv *Invocation) interpolate(tmpl string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[2 : len(m)-2]
		if v, ok := inv.Values[name]; ok {
			return v
		}
		return m
	})
}

// String renders the argv for display, quoting where a shell would need it.
func (inv *Invocation) String() string {
	argv := inv.Command()
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'\\$&|<>;(){}*?#~`") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
