package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ecodercc5/carlae/pkg/ast"
	"github.com/ecodercc5/carlae/pkg/parser"
)

// SourceExtension is the file suffix for Carlae source files.
const SourceExtension = ".crl"

// Program is a parsed source file: the ordered top-level expressions of one
// .crl file. A file holding only comments or whitespace parses to a program
// with no expressions.
type Program struct {
	Path        string
	Expressions []ast.Expr
}

// Loader resolves and parses Carlae source files from disk.
type Loader struct {
	searchPaths []string
}

// NewLoader constructs a loader probing the given directories, in order, for
// entries that are not plain file paths.
func NewLoader(searchPaths []string) (*Loader, error) {
	unique := make([]string, 0, len(searchPaths))
	seen := make(map[string]struct{}, len(searchPaths))
	for _, sp := range searchPaths {
		if sp == "" {
			continue
		}
		abs, err := filepath.Abs(sp)
		if err != nil {
			return nil, fmt.Errorf("loader: resolve search path %q: %w", sp, err)
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		unique = append(unique, abs)
	}
	return &Loader{searchPaths: unique}, nil
}

// Resolve maps an entry to a source file path. Entries that name an existing
// file (or carry a path separator or the source extension) resolve directly;
// bare names probe the search paths for name and name.crl.
func (l *Loader) Resolve(entry string) (string, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return "", fmt.Errorf("loader: empty entry")
	}
	direct := strings.ContainsRune(entry, os.PathSeparator) || strings.HasSuffix(entry, SourceExtension)
	if !direct {
		if _, err := os.Stat(entry); err == nil {
			direct = true
		}
	}
	if direct {
		abs, err := filepath.Abs(entry)
		if err != nil {
			return "", fmt.Errorf("loader: resolve entry path: %w", err)
		}
		if info, err := os.Stat(abs); err != nil {
			return "", fmt.Errorf("loader: stat entry %s: %w", abs, err)
		} else if info.IsDir() {
			return "", fmt.Errorf("loader: entry path %s is a directory", abs)
		}
		return abs, nil
	}
	for _, dir := range l.searchPaths {
		for _, candidate := range []string{filepath.Join(dir, entry), filepath.Join(dir, entry+SourceExtension)} {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("loader: entry %q not found on any search path", entry)
}

// Load reads and parses one source file.
func (l *Loader) Load(path string) (*Program, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("loader: resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", abs, err)
	}
	tokens := parser.Tokenize(string(data))
	if len(tokens) == 0 {
		return &Program{Path: abs}, nil
	}
	exprs, err := parser.ParseProgram(tokens)
	if err != nil {
		return nil, fmt.Errorf("loader: parse %s: %w", abs, err)
	}
	return &Program{Path: abs, Expressions: exprs}, nil
}

// LoadPackageSources parses every .crl file directly under dir, in sorted
// order. Packages with no sources yield an empty slice.
func (l *Loader) LoadPackageSources(dir string) ([]*Program, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("loader: resolve %s: %w", dir, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("loader: read package dir %s: %w", abs, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), SourceExtension) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	programs := make([]*Program, 0, len(names))
	for _, name := range names {
		program, err := l.Load(filepath.Join(abs, name))
		if err != nil {
			return nil, err
		}
		programs = append(programs, program)
	}
	return programs, nil
}

func sanitizeSegment(seg string) string {
	seg = strings.TrimSpace(seg)
	seg = strings.ReplaceAll(seg, "-", "_")
	return seg
}
