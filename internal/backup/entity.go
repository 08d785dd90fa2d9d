package backup

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/escolar/pkg/db/option"
	"github.com/smallbiznis/escolar/pkg/repository"
	"gorm.io/gorm"
)

const dumpBatch = 500

// idMap translates ids from the backup to ids in the target store, per table.
type idMap map[string]map[snowflake.ID]snowflake.ID

func (m idMap) put(table string, old, current snowflake.ID) {
	if m[table] == nil {
		m[table] = map[snowflake.ID]snowflake.ID{}
	}
	m[table][old] = current
}

func (m idMap) get(table string, old snowflake.ID) (snowflake.ID, bool) {
	id, ok := m[table][old]
	return id, ok
}

type resolveFunc func(table string, old snowflake.ID) (snowflake.ID, bool)

type entitySet interface {
	table() string
	dump(ctx context.Context, db *gorm.DB) ([]byte, int, error)
	upsert(ctx context.Context, db *gorm.DB, node *snowflake.Node, data []byte, ids idMap, report *RestoreReport) error
	relink(ctx context.Context, db *gorm.DB, ids idMap, report *RestoreReport) error
	prune(ctx context.Context, db *gorm.DB, report *RestoreReport) error
}

// entity adapts one model to backup and restore. detach clears relation
// columns for the first restore pass and links rebuilds them in the second.
type entity[T any] struct {
	name   string
	key    func(*T) (snowflake.ID, string)
	setID  func(*T, snowflake.ID)
	detach func(*T)
	links  func(*T, resolveFunc) map[string]any

	loaded []T
}

func (e *entity[T]) table() string { return e.name }

func (e *entity[T]) dump(ctx context.Context, db *gorm.DB) ([]byte, int, error) {
	store := repository.ProvideStore[T](db)
	all := make([]*T, 0)
	for offset := 0; ; offset += dumpBatch {
		page, err := store.Find(ctx, nil,
			option.WithSortBy(option.QuerySortBy{}),
			option.WithOffset(offset),
			option.WithLimit(dumpBatch),
		)
		if err != nil {
			return nil, 0, fmt.Errorf("read %s: %w", e.name, err)
		}
		all = append(all, page...)
		if len(page) < dumpBatch {
			break
		}
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("encode %s: %w", e.name, err)
	}
	return data, len(all), nil
}

// upsert is the first restore pass: rows are matched by documentId, keep
// their current id when they already exist and get a fresh one otherwise.
func (e *entity[T]) upsert(ctx context.Context, db *gorm.DB, node *snowflake.Node, data []byte, ids idMap, report *RestoreReport) error {
	if err := json.Unmarshal(data, &e.loaded); err != nil {
		return fmt.Errorf("decode %s: %w", e.name, err)
	}
	store := repository.ProvideStore[T](db)
	for i := range e.loaded {
		row := e.loaded[i]
		oldID, documentID := e.key(&row)
		if documentID == "" {
			report.Unresolved = append(report.Unresolved, fmt.Sprintf("%s/%s: missing documentId", e.name, oldID))
			continue
		}
		if e.detach != nil {
			e.detach(&row)
		}

		existing, err := store.FindOne(ctx, nil, option.WithWhere("document_id = ?", documentID))
		if err != nil {
			return fmt.Errorf("find %s/%s: %w", e.name, documentID, err)
		}
		var current snowflake.ID
		if existing != nil {
			current, _ = e.key(existing)
			e.setID(&row, current)
			report.Updated[e.name]++
		} else {
			current = node.Generate()
			e.setID(&row, current)
			if err := store.Create(ctx, &row); err != nil {
				return fmt.Errorf("create %s/%s: %w", e.name, documentID, err)
			}
			report.Created[e.name]++
		}
		// Save writes every column, including zero values Create leaves to defaults.
		if err := store.Save(ctx, &row); err != nil {
			return fmt.Errorf("save %s/%s: %w", e.name, documentID, err)
		}
		ids.put(e.name, oldID, current)
	}
	return nil
}

// relink is the second restore pass: relation columns are written back
// through the id map.
func (e *entity[T]) relink(ctx context.Context, db *gorm.DB, ids idMap, report *RestoreReport) error {
	if e.links == nil {
		return nil
	}
	store := repository.ProvideStore[T](db)
	for i := range e.loaded {
		oldID, documentID := e.key(&e.loaded[i])
		current, ok := ids.get(e.name, oldID)
		if !ok {
			continue
		}
		fields := e.links(&e.loaded[i], func(table string, old snowflake.ID) (snowflake.ID, bool) {
			id, ok := ids.get(table, old)
			if !ok {
				report.Unresolved = append(report.Unresolved, fmt.Sprintf("%s/%s: %s %s not in backup", e.name, documentID, table, old))
			}
			return id, ok
		})
		if len(fields) == 0 {
			continue
		}
		if err := store.Update(ctx, current, fields); err != nil {
			return fmt.Errorf("relink %s/%s: %w", e.name, documentID, err)
		}
	}
	return nil
}

func (e *entity[T]) prune(ctx context.Context, db *gorm.DB, report *RestoreReport) error {
	keep := make([]string, 0, len(e.loaded))
	for i := range e.loaded {
		if _, documentID := e.key(&e.loaded[i]); documentID != "" {
			keep = append(keep, documentID)
		}
	}
	stmt := db.WithContext(ctx)
	if len(keep) > 0 {
		stmt = stmt.Where("document_id NOT IN ?", keep)
	} else {
		stmt = stmt.Where("1 = 1")
	}
	res := stmt.Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("prune %s: %w", e.name, res.Error)
	}
	if res.RowsAffected > 0 {
		report.Pruned[e.name] = res.RowsAffected
	}
	return nil
}

func resolveOne(resolve resolveFunc, table string, old *snowflake.ID) (snowflake.ID, bool) {
	if old == nil {
		return 0, false
	}
	return resolve(table, *old)
}

func resolveAll(resolve resolveFunc, table string, old []snowflake.ID) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(old))
	for _, id := range old {
		if current, ok := resolve(table, id); ok {
			out = append(out, current)
		}
	}
	return out
}
