// Package localfs mirrors a filing directory on disk into the destination
// tree used for suggestions.
package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mkuhn/sortmeister/internal/core/domain"
)

const defaultMaxDepth = 6

type Tree struct {
	root     string
	maxDepth int
}

func New(root string) *Tree {
	return NewWithDepth(root, defaultMaxDepth)
}

func NewWithDepth(root string, maxDepth int) *Tree {
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Tree{root: filepath.Clean(root), maxDepth: maxDepth}
}

// CurrentTree reads the directory hierarchy fresh on every call. Folders the
// user created or removed since the last call are picked up without any
// notification plumbing. Hidden directories are skipped.
func (t *Tree) CurrentTree(ctx context.Context) (*domain.FolderNode, error) {
	info, err := os.Stat(t.root)
	if err != nil {
		return nil, fmt.Errorf("stat filing root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("filing root is not a directory: %s", t.root)
	}

	root := &domain.FolderNode{Name: filepath.Base(t.root)}
	if err := t.fill(ctx, t.root, root, 0); err != nil {
		return nil, err
	}
	return root, nil
}

func (t *Tree) fill(ctx context.Context, dir string, node *domain.FolderNode, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth >= t.maxDepth {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read folder %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !entry.IsDir() {
			node.DocCount++
			continue
		}
		child := &domain.FolderNode{Name: name, Parent: node}
		if err := t.fill(ctx, filepath.Join(dir, name), child, depth+1); err != nil {
			return err
		}
		node.Children = append(node.Children, child)
	}
	return nil
}

// CreateSubfolder creates name under parentPath (relative to the filing
// root). Creating an already existing folder is a no-op.
func (t *Tree) CreateSubfolder(ctx context.Context, parentPath, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cleaned := strings.TrimSpace(name)
	if cleaned == "" || strings.ContainsAny(cleaned, `/\`) || cleaned == "." || cleaned == ".." {
		return domain.WrapError(domain.ErrInvalidInput, "create subfolder", fmt.Errorf("invalid folder name %q", name))
	}

	parent, err := t.absolute(parentPath)
	if err != nil {
		return err
	}
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return domain.WrapError(domain.ErrInvalidInput, "create subfolder", fmt.Errorf("parent folder does not exist: %s", parentPath))
	}
	if err := os.Mkdir(filepath.Join(parent, cleaned), 0o755); err != nil && !os.IsExist(err) {
		return fmt.Errorf("create subfolder: %w", err)
	}
	return nil
}

// absolute maps a relative destination path onto the filing root, refusing
// anything that would escape it.
func (t *Tree) absolute(relPath string) (string, error) {
	joined := filepath.Join(t.root, filepath.FromSlash(strings.Trim(relPath, "/")))
	cleaned := filepath.Clean(joined)
	if cleaned != t.root && !strings.HasPrefix(cleaned, t.root+string(filepath.Separator)) {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve folder path", fmt.Errorf("path escapes filing root: %s", relPath))
	}
	return cleaned, nil
}
