package output

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/featuregate/internal/gate"
	"github.com/marcus/featuregate/internal/source"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	oldOut, oldErr := Stdout, Stderr
	Stdout, Stderr = &stdout, &stderr
	t.Cleanup(func() { Stdout, Stderr = oldOut, oldErr })
	return &stdout, &stderr
}

func TestMessagesGoToStderr(t *testing.T) {
	stdout, stderr := captureOutput(t)

	Success("wrote %d files", 2)
	Warning("feature %q is not declared", "ghost")
	Error("boom")
	Info("plain %s", "info")

	errText := ansi.Strip(stderr.String())
	for _, want := range []string{"wrote 2 files", `Warning: feature "ghost" is not declared`, "ERROR: boom"} {
		if !strings.Contains(errText, want) {
			t.Errorf("stderr missing %q:\n%s", want, errText)
		}
	}
	if stdout.String() != "plain info\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestJSON(t *testing.T) {
	stdout, _ := captureOutput(t)
	if err := JSON(map[string]int{"gates": 3}); err != nil {
		t.Fatal(err)
	}
	if stdout.String() != "{\n  \"gates\": 3\n}\n" {
		t.Errorf("JSON output = %q", stdout.String())
	}

	stdout.Reset()
	JSONError(ErrCodeInvalidInput, `bad "quote"`)
	if stdout.String() != `{"error":{"code":"invalid_input","message":"bad \"quote\""}}`+"\n" {
		t.Errorf("JSONError output = %q", stdout.String())
	}
}

func TestNewDiagnostic(t *testing.T) {
	cause := &gate.ConfigError{Kind: gate.InvalidConfiguration, Message: "not a valid feature name"}
	err := &source.Error{Pos: token.Position{Filename: "a.go", Line: 4, Column: 1}, Err: cause}

	d := NewDiagnostic(ErrCodeInvalidConfig, fmt.Errorf("expand: %w", err))
	if d.File != "a.go" || d.Line != 4 || d.Column != 1 {
		t.Errorf("position = %s:%d:%d", d.File, d.Line, d.Column)
	}
	if d.Message != "not a valid feature name" || d.Code != ErrCodeInvalidConfig {
		t.Errorf("diagnostic = %+v", d)
	}

	plain := NewDiagnostic(ErrCodeIO, errors.New("disk full"))
	if plain.File != "" || plain.Message != "disk full" {
		t.Errorf("plain diagnostic = %+v", plain)
	}
}

func TestFormatGate(t *testing.T) {
	e := source.Entry{File: "demo.go", Line: 6, Decl: "Helper", Kind: "func", Directive: gate.DirectiveCfg, Condition: "any(test)"}

	line := ansi.Strip(FormatGate(e, true, 0))
	for _, want := range []string{"demo.go:6", "func Helper", "//gate:cfg", "any(test)", "active"} {
		if !strings.Contains(line, want) {
			t.Errorf("FormatGate missing %q: %s", want, line)
		}
	}
	if !strings.Contains(ansi.Strip(FormatGate(e, false, 0)), "inactive") {
		t.Error("inactive badge missing")
	}

	short := FormatGate(e, true, 20)
	if w := ansi.StringWidth(short); w > 20 {
		t.Errorf("truncated width = %d, want <= 20", w)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 0); got != "hello" {
		t.Errorf("width 0 = %q", got)
	}
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("wide = %q", got)
	}
	if got := Truncate("hello world", 6); ansi.StringWidth(got) > 6 || !strings.HasSuffix(got, "…") {
		t.Errorf("narrow = %q", got)
	}
}

func TestFormatSource(t *testing.T) {
	for _, src := range []string{"env", "flag", "config", "default"} {
		if got := ansi.Strip(FormatSource(src)); got != "["+src+"]" {
			t.Errorf("FormatSource(%s) = %q", src, got)
		}
	}
	if got := FormatSource("other"); got != "other" {
		t.Errorf("unknown source = %q", got)
	}
}

func TestFormatDiagnostic(t *testing.T) {
	err := &source.Error{Pos: token.Position{Filename: "a.go", Line: 2, Column: 3}, Err: errors.New("bad")}
	if got := ansi.Strip(FormatDiagnostic(err)); got != "a.go:2:3: bad" {
		t.Errorf("FormatDiagnostic = %q", got)
	}
}

func TestUnifiedDiff(t *testing.T) {
	before := []byte("package demo\n\n//gate:feature \"x\"\nfunc F() {}\n")
	after := []byte("package demo\n\n//gate:if feature = \"x\"\nfunc F() {}\n")

	diff, err := UnifiedDiff("demo.go", before, after)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"--- a/demo.go", "+++ b/demo.go", "-//gate:feature \"x\"", "+//gate:if feature = \"x\""} {
		if !strings.Contains(diff, want) {
			t.Errorf("diff missing %q:\n%s", want, diff)
		}
	}
	if got := ansi.Strip(ColorDiff(diff)); got != diff {
		t.Errorf("ColorDiff changed text:\n%s", got)
	}

	same, err := UnifiedDiff("demo.go", before, before)
	if err != nil || same != "" {
		t.Errorf("equal inputs diff = %q, %v", same, err)
	}
}

func TestHighlightGoKeepsText(t *testing.T) {
	src := "package demo\n\nfunc F() {}\n"
	if got := ansi.Strip(HighlightGo([]byte(src))); got != src {
		t.Errorf("highlighted text differs:\n%q", got)
	}
}

func TestSectionsAndBullets(t *testing.T) {
	if got := BulletList([]string{"x", "y"}, 1); got[0] != " - x" || got[1] != " - y" {
		t.Errorf("BulletList = %v", got)
	}
	if got := SectionHeader("features"); got != "\nFEATURES:\n" {
		t.Errorf("SectionHeader = %q", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	got, err := RenderMarkdownWithWidth("# Title\n\n- `any` item\n", 40)
	if err != nil {
		t.Fatalf("RenderMarkdownWithWidth: %v", err)
	}
	plain := ansi.Strip(got)
	if !strings.Contains(plain, "Title") || !strings.Contains(plain, "any") {
		t.Errorf("rendered markdown lost text:\n%s", plain)
	}
	if strings.HasSuffix(got, "\n") {
		t.Error("trailing newlines should be trimmed")
	}

	if got, err := RenderMarkdown("   "); err != nil || got != "" {
		t.Errorf("blank input = %q, %v", got, err)
	}
}
