// Package vault provides the document store the resolution engine reads
// from and writes back to.
//
// Information Hiding:
// - Link-target resolution rules (extension defaults, basename index) stay here
// - Callers only see vault-relative forward-slash paths
// - The basename index structure is internal to DirVault
package vault

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned when a path does not exist in the vault.
var ErrNotFound = errors.New("file not found")

// File identifies a document in the vault.
type File struct {
	Path string // vault-relative, forward slashes
	Name string // basename without extension
	Ext  string // lowercased extension without the dot, "" if none
}

// NewFile builds a File from a vault-relative path.
func NewFile(relPath string) *File {
	base := path.Base(relPath)
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(base), "."))
	name := strings.TrimSuffix(base, path.Ext(base))
	return &File{Path: relPath, Name: name, Ext: ext}
}

// Info describes a stored file, used for cache keys.
type Info struct {
	Size    int64
	ModTime time.Time
}

// Vault is the document store collaborator.
type Vault interface {
	// Resolve maps a link target to a file, or nil when the target does
	// not exist. Unresolvable targets are not an error.
	Resolve(target, fromPath string) *File
	// Read returns a document's text content.
	Read(ctx context.Context, path string) (string, error)
	// ReadBinary returns a file's raw bytes.
	ReadBinary(ctx context.Context, path string) ([]byte, error)
	// Write stores content at path, creating parent directories.
	Write(ctx context.Context, path, content string) error
	// Stat reports size and modification time.
	Stat(ctx context.Context, path string) (Info, error)
}
