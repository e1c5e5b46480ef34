package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/weftlabs/weft/internal/dsa"
)

// DirVault is a Vault rooted at a filesystem directory. Link targets are
// resolved against a radix-tree name index so `[[Note]]` finds
// `projects/Note.md` without a full path.
type DirVault struct {
	root string

	mu    sync.RWMutex
	index *dsa.Trie[[]string]
}

var _ Vault = (*DirVault)(nil)

// NewDirVault opens a vault at root and builds the name index.
func NewDirVault(root string) (*DirVault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root: %w", err)
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault root: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", abs)
	}
	v := &DirVault{root: abs, index: dsa.NewTrie[[]string]()}
	if err := v.Rescan(); err != nil {
		return nil, err
	}
	return v, nil
}

// Root returns the absolute vault root directory.
func (v *DirVault) Root() string {
	return v.root
}

// Rescan rebuilds the name index from the filesystem. Dot-directories
// (.git, .trash) are skipped.
func (v *DirVault) Rescan() error {
	index := dsa.NewTrie[[]string]()
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != v.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		rel, err := filepath.Rel(v.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		addIndexKey(index, strings.ToLower(name), rel)
		if stem := strings.TrimSuffix(name, path.Ext(name)); stem != name {
			addIndexKey(index, strings.ToLower(stem), rel)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan vault: %w", err)
	}
	v.mu.Lock()
	v.index = index
	v.mu.Unlock()
	return nil
}

func addIndexKey(index *dsa.Trie[[]string], key, rel string) {
	paths, _ := index.Search(key)
	index.Insert(key, append(paths, rel))
}

// Resolve maps a link target to a file. Targets may carry `#heading` and
// `|alias` suffixes, which are stripped before lookup. Resolution order:
// path relative to the linking file, path relative to the vault root
// (both with a `.md` default extension), then the basename index with the
// shortest path winning ties.
func (v *DirVault) Resolve(target, fromPath string) *File {
	t := cleanTarget(target)
	if t == "" {
		return nil
	}

	if fromPath != "" {
		if rel := v.existing(path.Join(path.Dir(fromPath), t)); rel != "" {
			return NewFile(rel)
		}
	}
	if rel := v.existing(t); rel != "" {
		return NewFile(rel)
	}

	v.mu.RLock()
	paths, ok := v.index.Search(strings.ToLower(t))
	v.mu.RUnlock()
	if !ok || len(paths) == 0 {
		return nil
	}
	best := make([]string, len(paths))
	copy(best, paths)
	sort.Slice(best, func(i, j int) bool {
		if len(best[i]) != len(best[j]) {
			return len(best[i]) < len(best[j])
		}
		return best[i] < best[j]
	})
	return NewFile(best[0])
}

// cleanTarget strips alias and heading suffixes and normalizes slashes.
func cleanTarget(target string) string {
	t := strings.TrimSpace(target)
	if i := strings.IndexByte(t, '|'); i >= 0 {
		t = t[:i]
	}
	if i := strings.IndexByte(t, '#'); i >= 0 {
		t = t[:i]
	}
	t = strings.TrimSpace(filepath.ToSlash(t))
	if t == "" {
		return ""
	}
	return strings.TrimPrefix(path.Clean(t), "./")
}

// existing checks a candidate relative path, trying the `.md` default
// extension, and returns the normalized relative path or "".
func (v *DirVault) existing(rel string) string {
	for _, candidate := range []string{rel, rel + ".md"} {
		abs, err := v.abs(candidate)
		if err != nil {
			continue
		}
		if fi, err := os.Stat(abs); err == nil && fi.Mode().IsRegular() {
			return path.Clean(candidate)
		}
	}
	return ""
}

// abs joins a vault-relative path to the root, rejecting escapes.
func (v *DirVault) abs(rel string) (string, error) {
	cleaned := path.Clean(filepath.ToSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || path.IsAbs(cleaned) {
		return "", fmt.Errorf("path %s escapes the vault", rel)
	}
	return filepath.Join(v.root, filepath.FromSlash(cleaned)), nil
}

// Read returns a document's text content.
func (v *DirVault) Read(ctx context.Context, relPath string) (string, error) {
	data, err := v.ReadBinary(ctx, relPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBinary returns a file's raw bytes.
func (v *DirVault) ReadBinary(_ context.Context, relPath string) ([]byte, error) {
	abs, err := v.abs(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", relPath, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", relPath, err)
	}
	return data, nil
}

// Write stores content at path, creating parent directories as needed.
// New files are picked up by the name index on the next Rescan.
func (v *DirVault) Write(_ context.Context, relPath, content string) error {
	abs, err := v.abs(relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	return nil
}

// Stat reports size and modification time for cache keys.
func (v *DirVault) Stat(_ context.Context, relPath string) (Info, error) {
	abs, err := v.abs(relPath)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, fmt.Errorf("%s: %w", relPath, ErrNotFound)
		}
		return Info{}, fmt.Errorf("failed to stat %s: %w", relPath, err)
	}
	return Info{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}
