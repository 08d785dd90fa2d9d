package backup

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

func (s *Service) writeAssets(ctx context.Context, zw *zip.Writer) ([]string, error) {
	names, err := s.listAssets()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.assetsRoot, filepath.FromSlash(name)))
		if err != nil {
			return nil, fmt.Errorf("read asset %s: %w", name, err)
		}
		if err := writeEntry(zw, assetsPrefix+name, data); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// listAssets returns slash-separated paths of regular files under the root.
func (s *Service) listAssets() ([]string, error) {
	names := make([]string, 0)
	if s.assetsRoot == "" {
		return names, nil
	}
	err := filepath.WalkDir(s.assetsRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == s.assetsRoot {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.assetsRoot, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Service) restoreAssets(ctx context.Context, files map[string]*zip.File, manifest *Manifest, opts RestoreOptions, report *RestoreReport) error {
	if s.assetsRoot == "" {
		return nil
	}
	keep := map[string]bool{}
	for _, name := range manifest.Assets {
		keep[name] = true
	}

	for name, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, ok := strings.CutPrefix(name, assetsPrefix)
		if !ok || rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			return fmt.Errorf("%w: asset path %q", ErrInvalidArchive, name)
		}
		keep[rel] = true
		if err := s.extractAsset(f, rel); err != nil {
			return err
		}
		report.AssetsRestored++
	}

	existing, err := s.listAssets()
	if err != nil {
		return err
	}
	for _, rel := range existing {
		if keep[rel] {
			continue
		}
		if !opts.Prune {
			report.OrphanAssets = append(report.OrphanAssets, rel)
			continue
		}
		if err := os.Remove(filepath.Join(s.assetsRoot, filepath.FromSlash(rel))); err != nil {
			return fmt.Errorf("prune asset %s: %w", rel, err)
		}
		report.AssetsPruned++
		s.log.Debug("asset pruned", zap.String("path", rel))
	}
	return nil
}

func (s *Service) extractAsset(f *zip.File, rel string) error {
	target := filepath.Join(s.assetsRoot, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("restore asset %s: %w", rel, err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("restore asset %s: %w", rel, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("restore asset %s: %w", rel, err)
	}
	return out.Close()
}
