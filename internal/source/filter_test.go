package source

import (
	"errors"
	"strings"
	"testing"

	"github.com/marcus/featuregate/internal/condition"
	"github.com/marcus/featuregate/internal/gate"
)

func TestFilterKeepsEnabled(t *testing.T) {
	env := condition.NewEnv().EnableFeature("nightly")
	res, err := Build(&gate.Gate{}, "demo.go", []byte(widgetSrc), FilterOptions{Env: env})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := strings.Replace(widgetSrc, "//gate:feature \"nightly\"\n", "", 1)
	if string(res.Src) != want {
		t.Errorf("got:\n%s\nwant:\n%s", res.Src, want)
	}
	if len(res.Kept) != 1 || res.Kept[0] != "Widget" || res.Changed() {
		t.Errorf("kept = %v, dropped = %v", res.Kept, res.Dropped)
	}
}

func TestFilterDropsDisabled(t *testing.T) {
	res, err := Build(&gate.Gate{}, "demo.go", []byte(widgetSrc), FilterOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(string(res.Src), "type Widget") || strings.Contains(string(res.Src), "Widget renders") {
		t.Errorf("Widget not dropped:\n%s", res.Src)
	}
	if !strings.Contains(string(res.Src), "func Plain() {}") {
		t.Errorf("ungated declaration lost:\n%s", res.Src)
	}
	if len(res.Dropped) != 1 || res.Dropped[0] != "Widget" {
		t.Errorf("dropped = %v", res.Dropped)
	}
}

func TestFilterPrunesImports(t *testing.T) {
	src := `package demo

import (
	"fmt"
	"strings"
)

//gate:cfg feature = "print"
func Print(s string) { fmt.Println(s) }

func Upper(s string) string { return strings.ToUpper(s) }
`
	res, err := Build(&gate.Gate{}, "demo.go", []byte(src), FilterOptions{PruneImports: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out := string(res.Src)
	if strings.Contains(out, `"fmt"`) {
		t.Errorf("unused import kept:\n%s", out)
	}
	if !strings.Contains(out, `"strings"`) {
		t.Errorf("used import removed:\n%s", out)
	}
}

func TestFilterNoPruneWithoutDrops(t *testing.T) {
	src := "package demo\n\nimport \"fmt\"\n\n//gate:if unix\nfunc F() { fmt.Println() }\n"
	res, err := Filter("demo.go", []byte(src), FilterOptions{
		Env:          condition.NewEnv().SetFlag("unix"),
		PruneImports: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "package demo\n\nimport \"fmt\"\n\nfunc F() { fmt.Println() }\n"
	if string(res.Src) != want {
		t.Errorf("got:\n%s\nwant:\n%s", res.Src, want)
	}
}

func TestFilterANDsConditions(t *testing.T) {
	src := "package demo\n\n//gate:feature \"a\"\n//gate:cfg unix\nfunc F() {}\n"
	tests := []struct {
		name string
		env  *condition.Env
		kept bool
	}{
		{"neither", condition.NewEnv(), false},
		{"feature only", condition.NewEnv().EnableFeature("a"), false},
		{"flag only", condition.NewEnv().SetFlag("unix"), false},
		{"both", condition.NewEnv().EnableFeature("a").SetFlag("unix"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Build(&gate.Gate{}, "demo.go", []byte(src), FilterOptions{Env: tt.env})
			if err != nil {
				t.Fatal(err)
			}
			if got := strings.Contains(string(res.Src), "func F()"); got != tt.kept {
				t.Errorf("kept = %v, want %v:\n%s", got, tt.kept, res.Src)
			}
		})
	}
}

func TestFilterDocumentationBuild(t *testing.T) {
	env := condition.NewEnv().MatchAll(condition.FeatureKey)
	res, err := Build(gate.New(true, nil), "demo.go", []byte(widgetSrc), FilterOptions{Env: env, Docs: true})
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Replace(widgetSrc,
		"// Widget renders things.\n//gate:feature \"nightly\"\n",
		"// Widget renders things.\n//\n// Requires: feature = \"nightly\"\n", 1)
	if string(res.Src) != want {
		t.Errorf("got:\n%s\nwant:\n%s", res.Src, want)
	}
}

func TestFilterDocumentationBannerWithoutDocText(t *testing.T) {
	src := "package demo\n\n//gate:cfg any(test, feature = \"test\")\nfunc helper() {}\n"
	res, err := Build(gate.New(true, nil), "demo.go", []byte(src), FilterOptions{
		Env:  condition.NewEnv().SetFlag("test"),
		Docs: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "package demo\n\n// Requires: any(test, feature = \"test\")\nfunc helper() {}\n"
	if string(res.Src) != want {
		t.Errorf("got:\n%s\nwant:\n%s", res.Src, want)
	}
}

func TestFilterRequiresRemovedOutsideDocs(t *testing.T) {
	src := "package demo\n\n//gate:if test\n//gate:requires test\nfunc helper() {}\n"
	res, err := Filter("demo.go", []byte(src), FilterOptions{Env: condition.NewEnv().SetFlag("test")})
	if err != nil {
		t.Fatal(err)
	}
	if want := "package demo\n\nfunc helper() {}\n"; string(res.Src) != want {
		t.Errorf("got:\n%s\nwant:\n%s", res.Src, want)
	}
}

func TestFilterErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind error
		msg  string
	}{
		{"unexpanded", "package demo\n\n//gate:feature \"x\"\nfunc F() {}\n", gate.ErrInvalidConfiguration, "unexpanded gate directive //gate:feature"},
		{"empty if", "package demo\n\n//gate:if\nfunc F() {}\n", gate.ErrMissingConfiguration, "no condition specified"},
		{"bad if", "package demo\n\n//gate:if any(\nfunc F() {}\n", gate.ErrInvalidConfiguration, "invalid condition expression"},
		{"bad requires", "package demo\n\n//gate:if a\n//gate:requires not(a, b)\nfunc F() {}\n", gate.ErrInvalidConfiguration, "invalid condition expression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Filter("demo.go", []byte(tt.src), FilterOptions{})
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want %v", err, tt.kind)
			}
			var cerr *gate.ConfigError
			if !errors.As(err, &cerr) || cerr.Message != tt.msg {
				t.Errorf("message = %v, want %q", err, tt.msg)
			}
			var serr *Error
			if !errors.As(err, &serr) || serr.Pos.Line == 0 {
				t.Errorf("error not positioned: %v", err)
			}
		})
	}
}

func TestFilterDropCollapsesBlankLines(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "between declarations",
			src:  "package demo\n\nfunc a() {}\n\n//gate:if x\nfunc b() {}\n\nfunc c() {}\n",
			want: "package demo\n\nfunc a() {}\n\nfunc c() {}\n",
		},
		{
			name: "at end of file",
			src:  "package demo\n\nfunc a() {}\n\n//gate:if x\nfunc b() {}\n",
			want: "package demo\n\nfunc a() {}\n",
		},
		{
			name: "no blank line before",
			src:  "package demo\n\nfunc a() {}\n//gate:if x\nfunc b() {}\n\nfunc c() {}\n",
			want: "package demo\n\nfunc a() {}\n\nfunc c() {}\n",
		},
		{
			name: "consecutive drops",
			src:  "package demo\n\nfunc a() {}\n\n//gate:if x\nfunc b() {}\n\n//gate:if y\nfunc c() {}\n\nfunc d() {}\n",
			want: "package demo\n\nfunc a() {}\n\nfunc d() {}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Filter("demo.go", []byte(tt.src), FilterOptions{})
			if err != nil {
				t.Fatal(err)
			}
			if string(res.Src) != tt.want {
				t.Errorf("got:\n%q\nwant:\n%q", res.Src, tt.want)
			}
		})
	}
}

func TestSharedLineRejected(t *testing.T) {
	src := "package demo\n\n//gate:feature \"x\"\ntype A int; type B int\n"

	_, err := Build(&gate.Gate{}, "demo.go", []byte(src), FilterOptions{})
	if !errors.Is(err, gate.ErrInvalidConfiguration) {
		t.Fatalf("Build err = %v, want invalid configuration", err)
	}
	var serr *Error
	if !errors.As(err, &serr) || serr.Pos.Line != 4 {
		t.Errorf("error position = %v, want line 4", err)
	}
	if !strings.Contains(err.Error(), "shares its line with another declaration") {
		t.Errorf("err = %v", err)
	}

	_, diags, err := Inspect(&gate.Gate{}, "demo.go", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if len(diags) != 1 || !errors.Is(diags[0], gate.ErrInvalidConfiguration) {
		t.Errorf("diags = %v", diags)
	}
}

func TestSharedLineTrailingAllowed(t *testing.T) {
	for _, tail := range []string{";", " // note", " /* note */", ";  "} {
		src := "package demo\n\n//gate:if x\ntype A int" + tail + "\n\nfunc B() {}\n"
		res, err := Filter("demo.go", []byte(src), FilterOptions{})
		if err != nil {
			t.Fatalf("tail %q: %v", tail, err)
		}
		if want := "package demo\n\nfunc B() {}\n"; string(res.Src) != want {
			t.Errorf("tail %q: got %q, want %q", tail, res.Src, want)
		}
	}
}
