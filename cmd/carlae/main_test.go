package main

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/ecodercc5/carlae/pkg/driver"
)

func TestFindManifest(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "package.yml"), []byte("name: test\n"), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	child := filepath.Join(root, "src", "app")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	found, err := findManifest(child)
	if err != nil {
		t.Fatalf("findManifest returned error: %v", err)
	}
	if want := filepath.Join(root, "package.yml"); found != want {
		t.Fatalf("findManifest = %q, want %q", found, want)
	}
}

func TestFindManifestMissing(t *testing.T) {
	root := t.TempDir()
	_, err := findManifest(root)
	if err == nil {
		t.Fatalf("expected error when no manifest exists")
	}
	if !strings.Contains(err.Error(), "no package.yml found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveCarlaeHomeEnv(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "cache")
	t.Setenv("CARLAE_HOME", target)

	got, err := resolveCarlaeHome()
	if err != nil {
		t.Fatalf("resolveCarlaeHome error: %v", err)
	}
	if got != target {
		t.Fatalf("resolveCarlaeHome = %q, want %q", got, target)
	}
}

func TestResolveCarlaeHomeDefault(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("CARLAE_HOME", "")
	t.Setenv("HOME", tmp)

	got, err := resolveCarlaeHome()
	if err != nil {
		t.Fatalf("resolveCarlaeHome error: %v", err)
	}
	if want := filepath.Join(tmp, ".carlae"); got != want {
		t.Fatalf("resolveCarlaeHome = %q, want %q", got, want)
	}
}

func TestLoadLockfileForManifestNoDepsMissingLock(t *testing.T) {
	root := t.TempDir()
	manifest := &driver.Manifest{
		Path: filepath.Join(root, "package.yml"),
	}
	lock, err := loadLockfileForManifest(manifest)
	if err != nil {
		t.Fatalf("loadLockfileForManifest returned error: %v", err)
	}
	if lock != nil {
		t.Fatalf("expected nil lock when no dependencies, got %#v", lock)
	}
}

func TestLoadLockfileForManifestWithDepsMissingLock(t *testing.T) {
	root := t.TempDir()
	manifest := &driver.Manifest{
		Path: filepath.Join(root, "package.yml"),
		Dependencies: map[string]*driver.DependencySpec{
			"helper": {Path: "./vendor/helper"},
		},
	}
	_, err := loadLockfileForManifest(manifest)
	if err == nil {
		t.Fatalf("expected error when lockfile missing with dependencies")
	}
	if !strings.Contains(err.Error(), "package.lock missing") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadLockfileForManifestRootMismatch(t *testing.T) {
	root := t.TempDir()
	lock := driver.NewLockfile("other", cliToolVersion)
	if err := driver.WriteLockfile(lock, filepath.Join(root, "package.lock")); err != nil {
		t.Fatalf("WriteLockfile: %v", err)
	}
	manifest := &driver.Manifest{
		Path: filepath.Join(root, "package.yml"),
		Name: "app",
	}
	_, err := loadLockfileForManifest(manifest)
	if err == nil {
		t.Fatalf("expected root mismatch error")
	}
	if !strings.Contains(err.Error(), "does not match manifest name") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCollectSearchPaths(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "libs")
	if err := os.MkdirAll(existing, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	missing := filepath.Join(root, "missing")
	t.Setenv("CARLAE_PATH", existing+string(os.PathListSeparator)+missing)

	paths := collectSearchPaths()
	if !containsPath(paths, existing) {
		t.Fatalf("expected CARLAE_PATH dir %q in %v", existing, paths)
	}
	if containsPath(paths, missing) {
		t.Fatalf("did not expect missing dir %q in %v", missing, paths)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if abs, err := filepath.Abs(cwd); err == nil && !containsPath(paths, abs) {
		t.Fatalf("expected working directory in search paths: %v", paths)
	}
}

func containsPath(paths []string, target string) bool {
	for _, path := range paths {
		if path == target {
			return true
		}
	}
	return false
}

func TestLooksLikePathCandidate(t *testing.T) {
	cases := []struct {
		arg  string
		want bool
	}{
		{"main.crl", true},
		{"./tool", true},
		{"src/main.crl", true},
		{"app", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := looksLikePathCandidate(tc.arg); got != tc.want {
			t.Fatalf("looksLikePathCandidate(%q) = %v, want %v", tc.arg, got, tc.want)
		}
	}
}

func TestRunVersionFlag(t *testing.T) {
	code, stdout, _ := captureCLI(t, []string{"--version"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stdout, cliToolVersion) {
		t.Fatalf("expected version output, got %q", stdout)
	}
}

func TestRunHelpFlag(t *testing.T) {
	code, _, stderr := captureCLI(t, []string{"--help"})
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Fatalf("expected usage output, got %q", stderr)
	}
}

func TestRunDepsRequiresSubcommand(t *testing.T) {
	code, _, stderr := captureCLI(t, []string{"deps"})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "requires a subcommand") {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
}

func TestRunEntryDirectFilePrintsFinalValue(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeFile(t, filepath.Join(dir, "main.crl"), `
(:= (double x) (* x 2))
(double 21)
`)

	code, stdout, stderr := captureCLI(t, []string{"main.crl"})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %q", code, stderr)
	}
	if stdout != "42\n" {
		t.Fatalf("stdout = %q, want %q", stdout, "42\n")
	}
}

func TestRunShortcutAcceptsSourceFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeFile(t, filepath.Join(dir, "solo.crl"), `
(+ 1 2 3)
`)

	code, stdout, stderr := captureCLI(t, []string{"run", "solo.crl"})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %q", code, stderr)
	}
	if stdout != "6\n" {
		t.Fatalf("stdout = %q, want %q", stdout, "6\n")
	}
}

func TestRunEntryCommentOnlyFilePrintsNothing(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeFile(t, filepath.Join(dir, "empty.crl"), `
# nothing to evaluate here
`)

	code, stdout, stderr := captureCLI(t, []string{"empty.crl"})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %q", code, stderr)
	}
	if stdout != "" {
		t.Fatalf("stdout = %q, want empty", stdout)
	}
}

func TestRunEntryReportsClassifiedErrors(t *testing.T) {
	cases := []struct {
		name     string
		source   string
		fragment string
	}{
		{"syntax", ")(spam)(", "syntax error:"},
		{"name", "(+ 1 boom)", "name error:"},
		{"evaluation", "(/ 1 0)", "evaluation error:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			chdir(t, dir)
			writeFile(t, filepath.Join(dir, "prog.crl"), tc.source)

			code, _, stderr := captureCLI(t, []string{"prog.crl"})
			if code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			if !strings.Contains(stderr, tc.fragment) {
				t.Fatalf("stderr %q missing %q", stderr, tc.fragment)
			}
		})
	}
}

func TestRunEntryMissingFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	code, _, stderr := captureCLI(t, []string{"nope.crl"})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "failed to load program") {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
}

func TestRunEntryManifestDefaultTarget(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeFile(t, filepath.Join(dir, "package.yml"), `
name: demo
version: 0.1.0
targets:
  app:
    type: executable
    main: src/main.crl
`)
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatalf("mkdir src: %v", err)
	}
	writeFile(t, filepath.Join(dir, "src", "main.crl"), `
(:= (triple n) (* n 3))
(triple 5)
`)

	code, stdout, stderr := captureCLI(t, []string{"run"})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %q", code, stderr)
	}
	if stdout != "15\n" {
		t.Fatalf("stdout = %q, want %q", stdout, "15\n")
	}
}

func TestRunEntryNamedTarget(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeFile(t, filepath.Join(dir, "package.yml"), `
name: demo
version: 0.1.0
targets:
  app:
    type: executable
    main: src/app.crl
  tool:
    type: executable
    main: src/tool.crl
`)
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatalf("mkdir src: %v", err)
	}
	writeFile(t, filepath.Join(dir, "src", "app.crl"), `(+ 1 1)`)
	writeFile(t, filepath.Join(dir, "src", "tool.crl"), `(- 10 1)`)

	code, stdout, stderr := captureCLI(t, []string{"run", "tool"})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %q", code, stderr)
	}
	if stdout != "9\n" {
		t.Fatalf("stdout = %q, want %q", stdout, "9\n")
	}
}

func TestDepsInstallThenRunWithPathDependency(t *testing.T) {
	root := t.TempDir()
	appDir := filepath.Join(root, "app")
	libDir := filepath.Join(root, "mathlib")
	if err := os.MkdirAll(filepath.Join(appDir, "src"), 0o755); err != nil {
		t.Fatalf("mkdir app: %v", err)
	}
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatalf("mkdir mathlib: %v", err)
	}

	writeFile(t, filepath.Join(appDir, "package.yml"), `
name: demo
version: 0.1.0
targets:
  app:
    type: executable
    main: src/main.crl
dependencies:
  mathlib:
    path: ../mathlib
`)
	writeFile(t, filepath.Join(appDir, "src", "main.crl"), `
(scale 7)
`)
	writeFile(t, filepath.Join(libDir, "package.yml"), `
name: mathlib
version: 0.1.0
`)
	writeFile(t, filepath.Join(libDir, "defs.crl"), `
(:= (scale n) (* n 10))
`)

	t.Setenv("CARLAE_HOME", filepath.Join(root, "cache"))
	chdir(t, appDir)

	// Running before install fails: the manifest has dependencies but no lock.
	code, _, stderr := captureCLI(t, []string{"run"})
	if code == 0 {
		t.Fatalf("expected failure without package.lock")
	}
	if !strings.Contains(stderr, "package.lock missing") {
		t.Fatalf("unexpected stderr: %q", stderr)
	}

	code, stdout, stderr := captureCLI(t, []string{"deps", "install"})
	if code != 0 {
		t.Fatalf("deps install exit code = %d, stderr: %q", code, stderr)
	}
	if !strings.Contains(stdout, "linked mathlib 0.1.0") {
		t.Fatalf("expected link log, got %q", stdout)
	}
	if !strings.Contains(stdout, "Created package.lock") {
		t.Fatalf("expected lock creation message, got %q", stdout)
	}
	if !strings.Contains(stdout, "Dependencies installed.") {
		t.Fatalf("expected completion message, got %q", stdout)
	}

	code, stdout, stderr = captureCLI(t, []string{"run"})
	if code != 0 {
		t.Fatalf("run exit code = %d, stderr: %q", code, stderr)
	}
	if stdout != "70\n" {
		t.Fatalf("stdout = %q, want %q", stdout, "70\n")
	}

	code, stdout, _ = captureCLI(t, []string{"deps", "install"})
	if code != 0 {
		t.Fatalf("second deps install exit code = %d", code)
	}
	if !strings.Contains(stdout, "package.lock already up to date") {
		t.Fatalf("expected up-to-date message, got %q", stdout)
	}
}

func TestDepsUpdateRejectsUndeclaredDependency(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	writeFile(t, filepath.Join(dir, "package.yml"), `
name: demo
version: 0.1.0
`)

	code, _, stderr := captureCLI(t, []string{"deps", "update", "ghost"})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "not declared in manifest") {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
}

func TestDepsUpdateRefreshesLock(t *testing.T) {
	root := t.TempDir()
	appDir := filepath.Join(root, "app")
	libDir := filepath.Join(root, "lib")
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		t.Fatalf("mkdir app: %v", err)
	}
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatalf("mkdir lib: %v", err)
	}

	writeFile(t, filepath.Join(appDir, "package.yml"), `
name: demo
version: 0.1.0
dependencies:
  lib:
    path: ../lib
`)
	writeFile(t, filepath.Join(libDir, "package.yml"), `
name: lib
version: 1.0.0
`)

	t.Setenv("CARLAE_HOME", filepath.Join(root, "cache"))
	chdir(t, appDir)

	if code, _, stderr := captureCLI(t, []string{"deps", "install"}); code != 0 {
		t.Fatalf("deps install failed: %q", stderr)
	}

	// Bump the dependency version; update must re-resolve and rewrite the lock.
	writeFile(t, filepath.Join(libDir, "package.yml"), `
name: lib
version: 1.1.0
`)

	code, stdout, stderr := captureCLI(t, []string{"deps", "update"})
	if code != 0 {
		t.Fatalf("deps update exit code = %d, stderr: %q", code, stderr)
	}
	if !strings.Contains(stdout, "Updated package.lock") {
		t.Fatalf("expected lock update message, got %q", stdout)
	}

	lock, err := driver.LoadLockfile(filepath.Join(appDir, "package.lock"))
	if err != nil {
		t.Fatalf("LoadLockfile: %v", err)
	}
	pkg, ok := lock.FindPackage("lib")
	if !ok {
		t.Fatalf("lib missing from lock: %#v", lock.Packages)
	}
	if pkg.Version != "1.1.0" {
		t.Fatalf("pkg.Version = %q, want 1.1.0", pkg.Version)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWD); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)+"\n"), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

func initGitRepo(t *testing.T, dir string) string {
	t.Helper()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == filepath.Join(dir, ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if strings.HasPrefix(rel, ".git/") {
			return nil
		}
		if _, err := worktree.Add(rel); err != nil {
			return err
		}
		return nil
	}); err != nil {
		t.Fatalf("stage files: %v", err)
	}
	hash, err := worktree.Commit("init", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Carlae CLI",
			Email: "carlae@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return hash.String()
}

func captureCLI(t *testing.T, args []string) (int, string, string) {
	t.Helper()

	stdout := os.Stdout
	stderr := os.Stderr

	rOut, wOut, err := os.Pipe()
	if err != nil {
		t.Fatalf("stdout pipe: %v", err)
	}
	rErr, wErr, err := os.Pipe()
	if err != nil {
		t.Fatalf("stderr pipe: %v", err)
	}

	os.Stdout = wOut
	os.Stderr = wErr

	code := run(args)

	if err := wOut.Close(); err != nil {
		t.Fatalf("stdout close: %v", err)
	}
	if err := wErr.Close(); err != nil {
		t.Fatalf("stderr close: %v", err)
	}

	os.Stdout = stdout
	os.Stderr = stderr

	outBytes, err := io.ReadAll(rOut)
	if err != nil {
		t.Fatalf("stdout read: %v", err)
	}
	errBytes, err := io.ReadAll(rErr)
	if err != nil {
		t.Fatalf("stderr read: %v", err)
	}

	if err := rOut.Close(); err != nil {
		t.Fatalf("stdout pipe close: %v", err)
	}
	if err := rErr.Close(); err != nil {
		t.Fatalf("stderr pipe close: %v", err)
	}

	return code, string(outBytes), string(errBytes)
}
