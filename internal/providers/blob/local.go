package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local writes objects below a directory that is served under baseURL.
type Local struct {
	root    string
	baseURL string
}

func NewLocal(root, baseURL string) *Local {
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

func (l *Local) Root() string { return l.root }

func (l *Local) Upload(ctx context.Context, name string, data []byte, _ string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if strings.TrimSpace(l.root) == "" {
		return Object{}, ErrNotConfigured
	}
	name, err := cleanName(name)
	if err != nil {
		return Object{}, err
	}

	target := filepath.Join(l.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Object{}, fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return Object{}, fmt.Errorf("write blob: %w", err)
	}
	return Object{URL: l.baseURL + "/" + name, ProviderID: name}, nil
}
