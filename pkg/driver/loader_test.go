package driver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)+"\n"), 0o644); err != nil {
		t.Fatalf("write source %s: %v", name, err)
	}
	return path
}

func TestLoaderLoadParsesProgram(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "main.crl", `
# doubles then squares
(:= (double n) (* n 2))
(:= (square y) (* y y))
(square (double 3))
`)

	loader, err := NewLoader(nil)
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	program, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if program.Path != path {
		t.Fatalf("Path = %q, want %q", program.Path, path)
	}
	if len(program.Expressions) != 3 {
		t.Fatalf("Expressions length = %d, want 3", len(program.Expressions))
	}
	if got := program.Expressions[2].String(); got != "(square (double 3))" {
		t.Fatalf("last expression = %q", got)
	}
}

func TestLoaderLoadCommentOnlyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "notes.crl", "# nothing to evaluate yet")

	loader, err := NewLoader(nil)
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	program, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(program.Expressions) != 0 {
		t.Fatalf("expected no expressions, got %d", len(program.Expressions))
	}
}

func TestLoaderLoadReportsSyntaxErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "broken.crl", "(:= x 1")

	loader, err := NewLoader(nil)
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	if _, err := loader.Load(path); err == nil {
		t.Fatal("expected parse error, got nil")
	}
}

func TestLoaderResolveDirectPath(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "main.crl", "(+ 1 2)")

	loader, err := NewLoader(nil)
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	resolved, err := loader.Resolve(path)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if resolved != path {
		t.Fatalf("Resolve = %q, want %q", resolved, path)
	}
}

func TestLoaderResolveSearchPaths(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeSource(t, second, "tool.crl", "(+ 1 2)")

	loader, err := NewLoader([]string{first, second})
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}

	resolved, err := loader.Resolve("tool")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if want := filepath.Join(second, "tool.crl"); resolved != want {
		t.Fatalf("Resolve = %q, want %q", resolved, want)
	}

	if _, err := loader.Resolve("missing"); err == nil {
		t.Fatal("expected error for unresolvable entry, got nil")
	}
}

func TestLoaderResolveRejectsDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "pkg.crl")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	loader, err := NewLoader(nil)
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	if _, err := loader.Resolve(sub); err == nil {
		t.Fatal("expected error for directory entry, got nil")
	}
}

func TestLoaderLoadPackageSources(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "b.crl", "(:= (triple n) (* n 3))")
	writeSource(t, dir, "a.crl", "(:= base 10)")
	writeSource(t, dir, "notes.txt", "not a source file")

	loader, err := NewLoader(nil)
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	programs, err := loader.LoadPackageSources(dir)
	if err != nil {
		t.Fatalf("LoadPackageSources error: %v", err)
	}
	if len(programs) != 2 {
		t.Fatalf("programs length = %d, want 2", len(programs))
	}
	if filepath.Base(programs[0].Path) != "a.crl" || filepath.Base(programs[1].Path) != "b.crl" {
		t.Fatalf("programs not sorted: %q, %q", programs[0].Path, programs[1].Path)
	}
}

func TestSanitizeSegment(t *testing.T) {
	if got := sanitizeSegment(" util-math "); got != "util_math" {
		t.Fatalf("sanitizeSegment = %q, want util_math", got)
	}
}
