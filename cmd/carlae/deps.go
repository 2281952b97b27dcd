package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/ecodercc5/carlae/pkg/driver"
)

// dependencySourceDirs maps each locked package to the directory holding its
// sources. Path packages resolve in place; git packages resolve into the
// cache populated by `carlae deps install`.
func dependencySourceDirs(manifest *driver.Manifest, lock *driver.Lockfile) ([]string, error) {
	if lock == nil || len(lock.Packages) == 0 {
		return nil, nil
	}

	var manifestRoot string
	if manifest != nil {
		manifestRoot = filepath.Dir(manifest.Path)
	}
	cacheDir, err := resolveCarlaeHome()
	if err != nil {
		return nil, err
	}

	dirs := make([]string, 0, len(lock.Packages))
	for _, pkg := range lock.Packages {
		if pkg == nil {
			continue
		}
		dir, err := resolvePackageSourceDir(pkg, manifestRoot, cacheDir)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

func resolvePackageSourceDir(pkg *driver.LockedPackage, manifestRoot, cacheDir string) (string, error) {
	source := strings.TrimSpace(pkg.Source)
	switch {
	case strings.HasPrefix(source, "path:"):
		pathSpec := strings.TrimSpace(strings.TrimPrefix(source, "path:"))
		if pathSpec == "" {
			return "", fmt.Errorf("package %s: empty path source", pkg.Name)
		}
		if filepath.IsAbs(pathSpec) {
			return filepath.Clean(pathSpec), nil
		}
		base := manifestRoot
		if base == "" {
			base = cacheDir
		}
		return filepath.Join(base, filepath.FromSlash(pathSpec)), nil
	case strings.HasPrefix(source, "git+"):
		dir := filepath.Join(cacheDir, "pkg", "src", sanitizeName(pkg.Name), sanitizePathSegment(pkg.Version))
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return "", fmt.Errorf("package %s %s is not installed; run `carlae deps install`", pkg.Name, pkg.Version)
		}
		return dir, nil
	default:
		return "", fmt.Errorf("package %s: unsupported source %q", pkg.Name, pkg.Source)
	}
}

type dependencyInstaller struct {
	manifest     *driver.Manifest
	manifestRoot string
	cacheDir     string
	logs         []string
	git          *gitFetcher
	resolved     map[string]*driver.LockedPackage
	aliases      map[string]string
	resolving    map[string]bool
	resolvingPkg map[string]bool
}

func newDependencyInstaller(manifest *driver.Manifest, cacheDir string) *dependencyInstaller {
	var root string
	if manifest != nil {
		root = filepath.Dir(manifest.Path)
	}
	return &dependencyInstaller{
		manifest:     manifest,
		manifestRoot: root,
		cacheDir:     cacheDir,
		logs:         []string{},
		git:          newGitFetcher(cacheDir),
		resolved:     make(map[string]*driver.LockedPackage),
		aliases:      make(map[string]string),
		resolving:    make(map[string]bool),
		resolvingPkg: make(map[string]bool),
	}
}

// Install resolves the manifest's dependency closure and rewrites the
// lockfile's package list. It reports whether the lockfile changed.
func (d *dependencyInstaller) Install(lock *driver.Lockfile) (bool, []string, error) {
	if d.manifest == nil {
		return false, d.logs, nil
	}

	d.resolved = make(map[string]*driver.LockedPackage)
	d.aliases = make(map[string]string)
	d.resolving = make(map[string]bool)
	d.resolvingPkg = make(map[string]bool)

	names := make([]string, 0, len(d.manifest.Dependencies))
	for name := range d.manifest.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := d.manifest.Dependencies[name]
		if spec == nil {
			return false, d.logs, fmt.Errorf("dependency %q has no descriptor", name)
		}
		if err := d.installDependency(name, cloneDependencySpec(spec)); err != nil {
			return false, d.logs, err
		}
	}

	desired := make([]*driver.LockedPackage, 0, len(d.resolved))
	for _, pkg := range d.resolved {
		if pkg == nil {
			continue
		}
		desired = append(desired, pkg)
	}
	sort.SliceStable(desired, func(i, j int) bool {
		if desired[i].Name == desired[j].Name {
			return desired[i].Version < desired[j].Version
		}
		return desired[i].Name < desired[j].Name
	})

	existing := make(map[string]*driver.LockedPackage, len(lock.Packages))
	for _, pkg := range lock.Packages {
		if pkg == nil {
			continue
		}
		existing[pkg.Name] = pkg
	}

	changed := len(desired) != len(existing)
	for _, pkg := range desired {
		current, ok := existing[pkg.Name]
		if !ok || !lockedPackageEqual(current, pkg) {
			changed = true
		}
	}

	lock.Packages = desired
	return changed, d.logs, nil
}

func (d *dependencyInstaller) installDependency(name string, spec *driver.DependencySpec) error {
	if spec == nil {
		return fmt.Errorf("dependency %q has no descriptor", name)
	}
	alias := sanitizeName(name)
	if canonical, ok := d.aliases[alias]; ok {
		if _, exists := d.resolved[canonical]; exists {
			return nil
		}
	}
	if d.resolving[alias] {
		return fmt.Errorf("dependency cycle detected at %s", alias)
	}
	d.resolving[alias] = true
	defer delete(d.resolving, alias)

	res, err := d.resolveDependency(name, spec)
	if err != nil {
		return err
	}

	pkg := res.pkg
	canonical := pkg.Name
	if canonical == "" {
		canonical = alias
		pkg.Name = alias
	}

	if d.resolvingPkg[canonical] {
		return fmt.Errorf("dependency cycle detected at %s", canonical)
	}
	d.resolvingPkg[canonical] = true
	defer delete(d.resolvingPkg, canonical)

	d.aliases[alias] = canonical
	if _, exists := d.resolved[canonical]; exists {
		return nil
	}

	if res.manifest != nil && len(res.manifest.Dependencies) > 0 {
		childNames := make([]string, 0, len(res.manifest.Dependencies))
		for childName, childSpec := range res.manifest.Dependencies {
			if childSpec == nil {
				return fmt.Errorf("dependency %s lists %s without descriptor", canonical, childName)
			}
			if childSpec.Optional {
				continue
			}
			childNames = append(childNames, childName)
		}
		sort.Strings(childNames)
		for _, childName := range childNames {
			childSpec := cloneDependencySpec(res.manifest.Dependencies[childName])
			if childSpec.Path != "" && !filepath.IsAbs(childSpec.Path) {
				base := res.root
				if base == "" {
					base = d.manifestRoot
				}
				if base != "" {
					childSpec.Path = filepath.Clean(filepath.Join(base, childSpec.Path))
				}
			}
			if err := d.installDependency(childName, childSpec); err != nil {
				return err
			}
		}
	}

	d.resolved[canonical] = pkg
	return nil
}

type resolvedPackage struct {
	pkg      *driver.LockedPackage
	manifest *driver.Manifest
	root     string
}

func (d *dependencyInstaller) resolveDependency(name string, spec *driver.DependencySpec) (*resolvedPackage, error) {
	if spec.Path != "" {
		return d.resolvePathDependency(name, spec)
	}
	if spec.Git != "" {
		return d.resolveGitDependency(name, spec)
	}
	return nil, fmt.Errorf("dependency %q: unsupported descriptor", name)
}

func (d *dependencyInstaller) resolvePathDependency(name string, spec *driver.DependencySpec) (*resolvedPackage, error) {
	pathSpec := spec.Path
	if !filepath.IsAbs(pathSpec) {
		pathSpec = filepath.Join(d.manifestRoot, pathSpec)
	}
	abs, err := filepath.Abs(pathSpec)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: resolve path %q: %w", name, spec.Path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: stat %s: %w", name, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dependency %q: expected directory at %s", name, abs)
	}

	manifestPath := filepath.Join(abs, "package.yml")
	depManifest, err := driver.LoadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("dependency %q: load manifest %s: %w", name, manifestPath, err)
	}

	version := strings.TrimSpace(depManifest.Version)
	if version == "" {
		version = "0.0.0-dev"
	}
	pkgName := depManifest.Name
	if pkgName == "" {
		pkgName = sanitizeName(name)
	}

	d.logs = append(d.logs, fmt.Sprintf("linked %s %s (%s)", pkgName, version, d.displayPath(abs)))

	return &resolvedPackage{
		pkg: &driver.LockedPackage{
			Name:    pkgName,
			Version: version,
			Source:  fmt.Sprintf("path:%s", abs),
		},
		manifest: depManifest,
		root:     abs,
	}, nil
}

func (d *dependencyInstaller) resolveGitDependency(name string, spec *driver.DependencySpec) (*resolvedPackage, error) {
	if d.git == nil {
		return nil, fmt.Errorf("dependency %q: git support unavailable", name)
	}
	result, _, err := d.git.Fetch(name, spec)
	if err != nil {
		return nil, err
	}
	d.logs = append(d.logs, fmt.Sprintf("fetched %s %s (%s)", result.Name, result.Version, spec.Git))

	rootDir := filepath.Join(d.cacheDir, "pkg", "src", sanitizeName(name), sanitizePathSegment(result.Version))
	manifestPath := filepath.Join(rootDir, "package.yml")
	var depManifest *driver.Manifest
	if data, err := driver.LoadManifest(manifestPath); err == nil {
		depManifest = data
		if depManifest.Name != "" {
			result.Name = sanitizeName(depManifest.Name)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("dependency %q: load manifest %s: %w", name, manifestPath, err)
	}

	return &resolvedPackage{
		pkg:      result,
		manifest: depManifest,
		root:     rootDir,
	}, nil
}

func (d *dependencyInstaller) displayPath(path string) string {
	if d.manifestRoot != "" {
		if rel, err := filepath.Rel(d.manifestRoot, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return path
}

func lockedPackageEqual(a, b *driver.LockedPackage) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name && a.Version == b.Version && a.Source == b.Source && a.Checksum == b.Checksum
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func cloneDependencySpec(spec *driver.DependencySpec) *driver.DependencySpec {
	if spec == nil {
		return nil
	}
	clone := *spec
	return &clone
}

// dirChecksum hashes every file under path so lockfiles can detect checkout
// drift between installs.
func dirChecksum(path string) (string, error) {
	h := sha256.New()
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		h.Write([]byte(filepath.Base(p)))
		h.Write(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type gitFetcher struct {
	cacheDir string
}

func newGitFetcher(cacheDir string) *gitFetcher {
	if cacheDir == "" {
		return nil
	}
	return &gitFetcher{cacheDir: cacheDir}
}

func (g *gitFetcher) Fetch(name string, spec *driver.DependencySpec) (*driver.LockedPackage, string, error) {
	if g == nil {
		return nil, "", errors.New("git fetcher unavailable")
	}
	url := strings.TrimSpace(spec.Git)
	if url == "" {
		return nil, "", fmt.Errorf("dependency %q: git URL required", name)
	}

	baseDir := filepath.Join(g.cacheDir, "pkg", "src", sanitizeName(name))
	version, commit, err := ensureGitCheckout(baseDir, url, spec)
	if err != nil {
		return nil, "", err
	}

	checkoutDir := filepath.Join(baseDir, sanitizePathSegment(version))
	checksum, err := dirChecksum(checkoutDir)
	if err != nil {
		return nil, "", err
	}

	return &driver.LockedPackage{
		Name:     sanitizeName(name),
		Version:  version,
		Source:   fmt.Sprintf("git+%s@%s", url, commit),
		Checksum: checksum,
	}, commit, nil
}

func ensureGitCheckout(baseDir, url string, spec *driver.DependencySpec) (string, string, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return "", "", err
	}

	revision, descriptor, err := gitRevisionFromSpec(spec)
	if err != nil {
		return "", "", err
	}

	explicitRev := strings.TrimSpace(spec.Rev)
	if explicitRev != "" {
		existing := filepath.Join(baseDir, sanitizePathSegment(explicitRev))
		if _, err := os.Stat(existing); err == nil {
			return explicitRev, explicitRev, nil
		}
	}

	tmpDir, err := os.MkdirTemp(baseDir, "git-fetch-*")
	if err != nil {
		return "", "", err
	}
	if err := os.RemoveAll(tmpDir); err != nil {
		return "", "", err
	}

	repo, err := git.PlainClone(tmpDir, false, &git.CloneOptions{
		URL:               url,
		Depth:             0,
		RecurseSubmodules: git.DefaultSubmoduleRecursionDepth,
	})
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("git clone %s: %w", url, err)
	}

	hash, err := repo.ResolveRevision(revision)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("resolve revision %s: %w", revision, err)
	}

	version := gitPinnedVersion(descriptor, hash.String())
	targetDir := filepath.Join(baseDir, sanitizePathSegment(version))
	if _, err := os.Stat(targetDir); err == nil {
		_ = os.RemoveAll(tmpDir)
		return version, hash.String(), nil
	}

	worktree, err := repo.Worktree()
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", err
	}
	if err := worktree.Checkout(&git.CheckoutOptions{
		Hash:  *hash,
		Force: true,
	}); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", fmt.Errorf("git checkout %s: %w", revision, err)
	}

	if err := os.Rename(tmpDir, targetDir); err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", "", err
	}
	return version, hash.String(), nil
}

func gitPinnedVersion(descriptor, commit string) string {
	commit = strings.TrimSpace(commit)
	descriptor = strings.TrimSpace(descriptor)
	if commit == "" {
		return descriptor
	}
	if descriptor == "" || descriptor == commit {
		return commit
	}
	return fmt.Sprintf("%s@%s", descriptor, commit)
}

func gitRevisionFromSpec(spec *driver.DependencySpec) (plumbing.Revision, string, error) {
	if rev := strings.TrimSpace(spec.Rev); rev != "" {
		return plumbing.Revision(rev), rev, nil
	}
	if tag := strings.TrimSpace(spec.Tag); tag != "" {
		return plumbing.Revision("refs/tags/" + tag), tag, nil
	}
	if branch := strings.TrimSpace(spec.Branch); branch != "" {
		return plumbing.Revision("refs/heads/" + branch), branch, nil
	}
	return "", "", fmt.Errorf("git dependencies require rev, tag, or branch")
}

func sanitizePathSegment(segment string) string {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "head"
	}
	var b strings.Builder
	for _, r := range segment {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	result := b.String()
	if result == "" {
		return "head"
	}
	return result
}
