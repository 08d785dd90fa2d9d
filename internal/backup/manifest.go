package backup

import (
	"errors"
	"time"
)

const (
	ManifestVersion = 1

	manifestName   = "manifest.json"
	entitiesPrefix = "entities/"
	assetsPrefix   = "assets/"
)

var (
	ErrInvalidArchive     = errors.New("invalid_backup_archive")
	ErrUnsupportedVersion = errors.New("unsupported_backup_version")
)

// Manifest describes a backup archive.
type Manifest struct {
	Version   int            `json:"version"`
	App       string         `json:"app"`
	CreatedAt time.Time      `json:"createdAt"`
	Entities  map[string]int `json:"entities"`
	Assets    []string       `json:"assets"`
}

type RestoreOptions struct {
	// Prune deletes rows and asset files that are not in the backup.
	Prune bool
}

// RestoreReport counts what a restore did. Unresolved lists relations that
// pointed at entities missing from the backup; they are dropped.
type RestoreReport struct {
	Created        map[string]int   `json:"created"`
	Updated        map[string]int   `json:"updated"`
	Pruned         map[string]int64 `json:"pruned,omitempty"`
	Unresolved     []string         `json:"unresolved,omitempty"`
	AssetsRestored int              `json:"assetsRestored"`
	OrphanAssets   []string         `json:"orphanAssets,omitempty"`
	AssetsPruned   int              `json:"assetsPruned"`
}

func newReport() *RestoreReport {
	return &RestoreReport{
		Created: map[string]int{},
		Updated: map[string]int{},
		Pruned:  map[string]int64{},
	}
}
