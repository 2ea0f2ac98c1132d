package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/typist/pkg/stores"
)

const testScript = `name: greeting
props:
  typing_delay: 1ms
content:
  - Hello wrold
  - backspace: 4
  - orld
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand("test", "none", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestValidate(t *testing.T) {
	good := writeFile(t, "good.yaml", testScript)
	bad := writeFile(t, "bad.yaml", "content: []\n")

	out, err := execute(t, "validate", good)
	if err != nil {
		t.Fatalf("validate good: %v\n%s", err, out)
	}
	if !strings.Contains(out, "✓") || !strings.Contains(out, "3 nodes") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = execute(t, "validate", good, bad)
	if err == nil {
		t.Fatal("expected an error for an invalid script")
	}
	if !strings.Contains(err.Error(), "1 of 2") || !strings.Contains(out, "✗ "+bad) {
		t.Errorf("unexpected result %v\n%s", err, out)
	}
}

func TestValidate_Lint(t *testing.T) {
	path := writeFile(t, "overrun.yaml", "content:\n  - hey\n  - backspace: 5\n")

	out, err := execute(t, "validate", path)
	if err == nil || !strings.Contains(err.Error(), "1 of 1") {
		t.Fatalf("expected a lint failure, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "error backspace-overrun: actions[1]") {
		t.Errorf("violation not reported:\n%s", out)
	}

	if out, err := execute(t, "validate", "--no-lint", path); err != nil {
		t.Errorf("validate --no-lint: %v\n%s", err, out)
	}
	if out, err := execute(t, "validate", "--disable", "backspace-overrun", path); err != nil {
		t.Errorf("validate --disable: %v\n%s", err, out)
	}

	rule := writeFile(t, "no-hey.rego", "package custom.hey\n\nimport rego.v1\n\ndeny contains \"says hey\" if {\n\tsome a in input.actions\n\ta.text == \"hey\"\n}\n")
	out, err = execute(t, "validate", "--disable", "backspace-overrun", "--policy", rule, path)
	if err != nil {
		t.Fatalf("validate --policy: %v\n%s", err, out)
	}
	if !strings.Contains(out, "warning no-hey: says hey") {
		t.Errorf("custom policy not reported:\n%s", out)
	}
}

func TestCompile(t *testing.T) {
	path := writeFile(t, "greeting.yaml", testScript)

	out, err := execute(t, "compile", path)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, want := range []string{"TYPE_STRING", `"Hello wrold"`, "BACKSPACE", "4"} {
		if !strings.Contains(out, want) {
			t.Errorf("instruction list missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "compile", "--fold", path)
	if err != nil {
		t.Fatalf("compile --fold: %v", err)
	}
	if got := strings.TrimSpace(out); got != "Hello world" {
		t.Errorf("fold = %q, want %q", got, "Hello world")
	}
}

func TestCompile_Simulate(t *testing.T) {
	path := writeFile(t, "hey.yaml", "content:\n  - hey\n  - backspace: 1\n")

	out, err := execute(t, "compile", "--simulate", "--json", path)
	if err != nil {
		t.Fatalf("compile --simulate: %v", err)
	}

	var frames [][]any
	if err := json.Unmarshal([]byte(out), &frames); err != nil {
		t.Fatalf("failed to decode %q: %v", out, err)
	}
	if len(frames) != 6 {
		t.Fatalf("got %d frames, want 6: %s", len(frames), out)
	}
	if last := frames[5]; len(last) != 1 || last[0] != "he" {
		t.Errorf("last frame = %v, want [he]", last)
	}
}

func TestPlay_Disabled(t *testing.T) {
	path := writeFile(t, "greeting.yaml", testScript)

	out, err := execute(t, "play", "--disabled", path)
	if err != nil {
		t.Fatalf("play --disabled: %v", err)
	}
	if got := strings.TrimSpace(out); got != "Hello world" {
		t.Errorf("output = %q, want %q", got, "Hello world")
	}
}

func TestPlay_RecordsHistory(t *testing.T) {
	path := writeFile(t, "greeting.yaml", testScript)
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "play", "--db", db, "--backspace-delay", "0s", path)
	if err != nil {
		t.Fatalf("play: %v\n%s", err, out)
	}
	// Output is not a terminal, so only the final frame is printed.
	if out != "Hello world\n" {
		t.Errorf("output = %q, want %q", out, "Hello world\n")
	}

	out, err = execute(t, "history", "list", "--db", db, "--json")
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	var runs []*stores.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("failed to decode %q: %v", out, err)
	}
	if len(runs) != 1 || runs[0].Script != "greeting" || runs[0].Passes != 1 {
		t.Fatalf("unexpected runs %+v", runs)
	}

	out, err = execute(t, "history", "events", runs[0].ID, "--db", db)
	if err != nil {
		t.Fatalf("history events: %v", err)
	}
	for _, want := range []string{"run.started", "pass.completed", "run.completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("events missing %s:\n%s", want, out)
		}
	}

	if _, err := execute(t, "history", "delete", runs[0].ID, "--db", db); err != nil {
		t.Fatalf("history delete: %v", err)
	}
	if _, err := execute(t, "history", "events", runs[0].ID, "--db", db); err == nil {
		t.Error("expected an error for a deleted run")
	}
}

func TestHistory_RequiresDatabase(t *testing.T) {
	if _, err := execute(t, "history", "list"); err == nil || !strings.Contains(err.Error(), "no history database") {
		t.Errorf("err = %v", err)
	}
}

func TestServe_Flags(t *testing.T) {
	cmd := newServeCommand()
	hb := cmd.Flags().Lookup("heartbeat")
	if hb == nil {
		t.Fatal("serve has no --heartbeat flag")
	}
	if hb.DefValue != "15s" {
		t.Errorf("heartbeat default = %s, want 15s", hb.DefValue)
	}
	if err := cmd.Flags().Parse([]string{"--heartbeat", "250ms"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got, _ := cmd.Flags().GetDuration("heartbeat"); got != 250*time.Millisecond {
		t.Errorf("heartbeat = %v, want 250ms", got)
	}
}
