package task

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/tesseralab/tessera/internal/config"
)

func mustSet(t *testing.T, m *config.Manifest) *Set {
	t.Helper()
	s, err := FromManifest(m, t.TempDir())
	if err != nil {
		t.Fatalf("FromManifest: %v", err)
	}
	return s
}

func TestFromManifestValidates(t *testing.T) {
	tests := []struct {
		name string
		spec config.TaskSpec
		want string
	}{
		{
			"both forms",
			config.TaskSpec{Command: "echo hi", Argv: []string{"echo", "hi"}},
			"mutually exclusive",
		},
		{
			"neither form",
			config.TaskSpec{Description: "does nothing"},
			"one of 'command' or 'argv' is required",
		},
		{
			"empty argv executable",
			config.TaskSpec{Argv: []string{"", "hi"}},
			"argv[0] cannot be empty",
		},
		{
			"bad param name",
			config.TaskSpec{Command: "echo", Params: []string{"9lives"}},
			"invalid param name",
		},
		{
			"duplicate param",
			config.TaskSpec{Command: "echo", Params: []string{"a", "a"}},
			"duplicate param",
		},
		{
			"undeclared placeholder",
			config.TaskSpec{Command: "echo {{side}}"},
			`undeclared param "side"`,
		},
		{
			"undeclared placeholder in argv",
			config.TaskSpec{Argv: []string{"echo", "{{side}}"}},
			`undeclared param "side"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &config.Manifest{Tasks: map[string]config.TaskSpec{"bad": tt.spec}}
			_, err := FromManifest(m, t.TempDir())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestFromManifestNil(t *testing.T) {
	s, err := FromManifest(nil, t.TempDir())
	if err != nil {
		t.Fatalf("FromManifest(nil): %v", err)
	}
	if len(s.Names()) != 0 {
		t.Errorf("Names = %v, want empty", s.Names())
	}
}

func TestLookup(t *testing.T) {
	s := mustSet(t, &config.Manifest{Tasks: map[string]config.TaskSpec{
		"run":   {Command: "echo run"},
		"bench": {Command: "echo bench"},
	}})

	if _, err := s.Lookup("run"); err != nil {
		t.Errorf("Lookup(run): %v", err)
	}

	_, err := s.Lookup("deploy")
	if err == nil {
		t.Fatal("expected error for unknown task")
	}
	if !errors.Is(err, ErrUnknownTask) {
		t.Errorf("err = %v, want ErrUnknownTask", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, `unknown task "deploy"`) {
		t.Errorf("err = %v", err)
	}
	// Available tasks are listed, sorted.
	if !strings.Contains(msg, "bench") || !strings.Contains(msg, "run") {
		t.Errorf("err should list available tasks, got: %v", err)
	}
	if strings.Index(msg, "bench") > strings.Index(msg, "run") {
		t.Errorf("available tasks not sorted: %v", err)
	}
}

func TestLookupEmptySet(t *testing.T) {
	s := mustSet(t, nil)
	_, err := s.Lookup("run")
	if err == nil || !strings.Contains(err.Error(), "no tasks defined") {
		t.Errorf("err = %v", err)
	}
}

func TestBindArity(t *testing.T) {
	s := mustSet(t, &config.Manifest{Tasks: map[string]config.TaskSpec{
		"run": {Params: []string{"side"}, Command: "echo {{side}}"},
	}})
	task, _ := s.Lookup("run")

	_, err := Bind(task, nil)
	if err == nil || err.Error() != `task "run" requires <side>` {
		t.Errorf("err = %v, want usage line", err)
	}

	inv, err := Bind(task, []string{"128"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if inv.Values["side"] != "128" {
		t.Errorf("Values = %v", inv.Values)
	}
	if len(inv.Extra) != 0 {
		t.Errorf("Extra = %v, want none", inv.Extra)
	}
}

func TestBindForwardsExtraArgs(t *testing.T) {
	s := mustSet(t, &config.Manifest{Tasks: map[string]config.TaskSpec{
		"run": {Params: []string{"side"}, Command: "echo {{side}}"},
	}})
	task, _ := s.Lookup("run")

	inv, err := Bind(task, []string{"128", "--no-cache", "-j", "4"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if !reflect.DeepEqual(inv.Extra, []string{"--no-cache", "-j", "4"}) {
		t.Errorf("Extra = %v", inv.Extra)
	}
}

func TestCommandTemplateForm(t *testing.T) {
	s := mustSet(t, &config.Manifest{Tasks: map[string]config.TaskSpec{
		"run": {
			Params:  []string{"side"},
			Command: "tessera generate -i input -t tiles -k -m {{side}}",
		},
	}})
	task, _ := s.Lookup("run")

	inv, err := Bind(task, []string{"128", "--no-cache"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	want := []string{
		"sh", "-c",
		`tessera generate -i input -t tiles -k -m 128 "$@"`,
		"tessera-task",
		"--no-cache",
	}
	if got := inv.Command(); !reflect.DeepEqual(got, want) {
		t.Errorf("Command() = %q, want %q", got, want)
	}
}

func TestCommandExecForm(t *testing.T) {
	s := mustSet(t, &config.Manifest{Tasks: map[string]config.TaskSpec{
		"convert": {
			Params: []string{"dir"},
			Argv:   []string{"tessera", "tiles", "convert", "-t", "{{dir}}"},
		},
	}})
	task, _ := s.Lookup("convert")

	inv, err := Bind(task, []string{"my tiles", "--delete-originals"})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	// No shell: the spaced value stays a single element.
	want := []string{"tessera", "tiles", "convert", "-t", "my tiles", "--delete-originals"}
	if got := inv.Command(); !reflect.DeepEqual(got, want) {
		t.Errorf("Command() = %q, want %q", got, want)
	}
}

func TestInvocationString(t *testing.T) {
	s := mustSet(t, &config.Manifest{Tasks: map[string]config.TaskSpec{
		"greet": {Argv: []string{"echo", "hello world"}},
	}})
	task, _ := s.Lookup("greet")
	inv, err := Bind(task, nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if got := inv.String(); got != "echo 'hello world'" {
		t.Errorf("String() = %q", got)
	}
}

func TestTasksSortedByName(t *testing.T) {
	s := mustSet(t, &config.Manifest{Tasks: map[string]config.TaskSpec{
		"zeta":  {Command: "echo z"},
		"alpha": {Command: "echo a"},
	}})
	ts := s.Tasks()
	if len(ts) != 2 || ts[0].Name != "alpha" || ts[1].Name != "zeta" {
		names := make([]string, len(ts))
		for i, task := range ts {
			names[i] = task.Name
		}
		t.Errorf("Tasks order = %v", names)
	}
}

func TestTaskDirResolution(t *testing.T) {
	dir := t.TempDir()
	s, err := FromManifest(&config.Manifest{Tasks: map[string]config.TaskSpec{
		"here":  {Command: "pwd"},
		"there": {Command: "pwd", Dir: "sub/dir"},
	}}, dir)
	if err != nil {
		t.Fatalf("FromManifest: %v", err)
	}

	here, _ := s.Lookup("here")
	if here.Dir != dir {
		t.Errorf("default Dir = %q, want manifest dir %q", here.Dir, dir)
	}
	there, _ := s.Lookup("there")
	if want := filepath.Join(dir, "sub", "dir"); there.Dir != want {
		t.Errorf("Dir = %q, want %q", there.Dir, want)
	}
}
