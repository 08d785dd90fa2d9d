// Package backup writes the school dataset and uploaded assets to a zip
// archive and restores it, matching rows by documentId.
package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escolar/internal/clock"
	"github.com/smallbiznis/escolar/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const appName = "escolar"

type Params struct {
	fx.In

	Log    *zap.Logger
	DB     *gorm.DB
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
}

type Service struct {
	log        *zap.Logger
	db         *gorm.DB
	genID      *snowflake.Node
	clock      clock.Clock
	assetsRoot string
}

func NewService(p Params) *Service {
	root := ""
	if p.Config.Blob.Provider == "" || p.Config.Blob.Provider == config.BlobProviderLocal {
		root = p.Config.Blob.LocalRoot
	}
	return &Service{
		log:        p.Log.Named("backup"),
		db:         p.DB,
		genID:      p.GenID,
		clock:      p.Clock,
		assetsRoot: root,
	}
}

// Backup streams a zip archive of every entity and asset to w.
func (s *Service) Backup(ctx context.Context, w io.Writer) (*Manifest, error) {
	manifest := &Manifest{
		Version:   ManifestVersion,
		App:       appName,
		CreatedAt: s.clock.Now().UTC(),
		Entities:  map[string]int{},
	}

	zw := zip.NewWriter(w)
	for _, set := range registry() {
		data, count, err := set.dump(ctx, s.db)
		if err != nil {
			return nil, err
		}
		if err := writeEntry(zw, entitiesPrefix+set.table()+".json", data); err != nil {
			return nil, err
		}
		manifest.Entities[set.table()] = count
	}

	assets, err := s.writeAssets(ctx, zw)
	if err != nil {
		return nil, err
	}
	manifest.Assets = assets

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := writeEntry(zw, manifestName, data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}

	s.log.Info("backup written",
		zap.Any("entities", manifest.Entities),
		zap.Int("assets", len(manifest.Assets)),
	)
	return manifest, nil
}

// Restore applies an archive produced by Backup. Entities are upserted by
// documentId in one transaction: the first pass writes rows without their
// relations, the second rewrites relations through the resulting id map.
func (s *Service) Restore(ctx context.Context, r io.ReaderAt, size int64, opts RestoreOptions) (*RestoreReport, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
	}

	manifest, err := readManifest(files)
	if err != nil {
		return nil, err
	}

	report := newReport()
	sets := registry()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := idMap{}
		for _, set := range sets {
			data, err := readEntities(files, set.table(), manifest.Entities[set.table()])
			if err != nil {
				return err
			}
			if err := set.upsert(ctx, tx, s.genID, data, ids, report); err != nil {
				return err
			}
		}
		for _, set := range sets {
			if err := set.relink(ctx, tx, ids, report); err != nil {
				return err
			}
		}
		if !opts.Prune {
			return nil
		}
		for i := len(sets) - 1; i >= 0; i-- {
			if err := sets[i].prune(ctx, tx, report); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.restoreAssets(ctx, files, manifest, opts, report); err != nil {
		return report, err
	}

	sort.Strings(report.Unresolved)
	s.log.Info("backup restored",
		zap.Any("created", report.Created),
		zap.Any("updated", report.Updated),
		zap.Any("pruned", report.Pruned),
		zap.Int("unresolved", len(report.Unresolved)),
		zap.Int("assets", report.AssetsRestored),
		zap.Int("orphan_assets", len(report.OrphanAssets)),
	)
	return report, nil
}

func readManifest(files map[string]*zip.File) (*Manifest, error) {
	f, ok := files[manifestName]
	if !ok {
		return nil, fmt.Errorf("%w: %s missing", ErrInvalidArchive, manifestName)
	}
	data, err := readFile(f)
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	if manifest.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, manifest.Version)
	}
	return &manifest, nil
}

func readEntities(files map[string]*zip.File, table string, expected int) ([]byte, error) {
	f, ok := files[entitiesPrefix+table+".json"]
	if !ok {
		if expected > 0 {
			return nil, fmt.Errorf("%w: %s missing", ErrInvalidArchive, table)
		}
		return []byte("[]"), nil
	}
	return readFile(f)
}

func readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArchive, f.Name, err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// IsArchiveError reports whether err was caused by a malformed archive.
func IsArchiveError(err error) bool {
	return errors.Is(err, ErrInvalidArchive) || errors.Is(err, ErrUnsupportedVersion)
}
