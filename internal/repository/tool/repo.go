// Package tool persists catalog entries as JSON documents with an FT index
// over approval and sync-status tags, so the sync worker can scan for
// candidates without walking the keyspace.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/toolsync/internal/db"
	"github.com/kailas-cloud/toolsync/internal/domain"
	"github.com/kailas-cloud/toolsync/internal/domain/collection"
	domsync "github.com/kailas-cloud/toolsync/internal/domain/sync"
	domtool "github.com/kailas-cloud/toolsync/internal/domain/tool"
)

// store is the consumer interface for tool documents (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo implements the primary-store contracts of the sync engine and the
// catalog layer.
type Repo struct {
	store store
}

// New creates a tool repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Insert stores a new tool. Fails when the ID is already taken.
func (r *Repo) Insert(ctx context.Context, t *domtool.Tool) error {
	key := toolKey(t.ID)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if exists {
		return fmt.Errorf("tool %s: %w", t.ID, domain.ErrToolAlreadyExists)
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tool %s: %w", t.ID, err)
	}
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return nil
}

// Save rewrites an existing tool document in full.
func (r *Repo) Save(ctx context.Context, t *domtool.Tool) error {
	key := toolKey(t.ID)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("tool %s: %w", t.ID, domain.ErrToolNotFound)
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tool %s: %w", t.ID, err)
	}
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return nil
}

// FindByID returns a tool by ID.
func (r *Repo) FindByID(ctx context.Context, id string) (*domtool.Tool, error) {
	raw, err := r.store.JSONGet(ctx, toolKey(id), "$")
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("tool %s: %w", id, domain.ErrToolNotFound)
		}
		return nil, fmt.Errorf("json.get %s: %w", toolKey(id), err)
	}
	return parseJSONDoc(raw)
}

// FindBySlug looks a tool up through the slug TAG.
func (r *Repo) FindBySlug(ctx context.Context, slug string) (*domtool.Tool, error) {
	query := "@slug:{" + db.EscapeTag(slug) + "}"
	result, err := r.store.SearchList(ctx, indexName(), query, 0, 1, []string{"$"})
	if err != nil {
		return nil, fmt.Errorf("search slug %s: %w", slug, err)
	}
	if result == nil || len(result.Entries) == 0 {
		return nil, fmt.Errorf("tool with slug %s: %w", slug, domain.ErrToolNotFound)
	}
	return parseJSONDoc([]byte(result.Entries[0].Fields["$"]))
}

// List returns approved tools with offset pagination, plus the total count.
func (r *Repo) List(ctx context.Context, offset, limit int) ([]*domtool.Tool, int, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.search(ctx, "@approved:{true}", offset, limit)
}

// FindSyncCandidates returns approved tools whose overall sync status is
// pending, failed or stale.
func (r *Repo) FindSyncCandidates(ctx context.Context, limit int) ([]*domtool.Tool, error) {
	tools, _, err := r.search(ctx, "@approved:{true} @sync_status:{pending|failed|stale}", 0, limit)
	return tools, err
}

// FindFailed returns approved tools whose overall sync status is failed.
func (r *Repo) FindFailed(ctx context.Context, limit int) ([]*domtool.Tool, error) {
	tools, _, err := r.search(ctx, "@approved:{true} @sync_status:{failed}", 0, limit)
	return tools, err
}

// ApplySyncPatch writes dot-path partial updates into the sync metadata
// sub-record in one pipelined round-trip. The rest of the document is never
// rewritten, so concurrent catalog edits and sync writes cannot clobber
// each other.
func (r *Repo) ApplySyncPatch(ctx context.Context, id string, p *domsync.Patch) error {
	if p == nil || p.Empty() {
		return nil
	}

	key := toolKey(id)
	items := make([]db.JSONSetItem, 0, len(p.Ops()))
	for _, op := range p.Ops() {
		data, err := json.Marshal(op.Value)
		if err != nil {
			return fmt.Errorf("marshal patch %s %s: %w", id, op.Path, err)
		}
		items = append(items, db.JSONSetItem{
			Key:  key,
			Path: "$.syncMetadata." + op.Path,
			Data: data,
		})
	}
	if err := r.store.JSONSetMulti(ctx, items); err != nil {
		return fmt.Errorf("apply sync patch %s: %w", id, err)
	}
	return nil
}

// Delete removes a tool document.
func (r *Repo) Delete(ctx context.Context, id string) error {
	key := toolKey(id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("tool %s: %w", id, domain.ErrToolNotFound)
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// SyncStats counts tools by overall status and per collection via FT counts.
func (r *Repo) SyncStats(ctx context.Context) (domsync.Stats, error) {
	stats := domsync.Stats{
		ByOverall:    make(map[domsync.Status]int, 4),
		ByCollection: make(map[collection.Collection]map[domsync.Status]int, len(collection.All())),
	}

	total, err := r.store.SearchCount(ctx, indexName(), "*")
	if err != nil {
		return domsync.Stats{}, fmt.Errorf("count tools: %w", err)
	}
	stats.Total = total

	statuses := []domsync.Status{
		domsync.StatusPending, domsync.StatusSynced, domsync.StatusFailed, domsync.StatusStale,
	}
	for _, s := range statuses {
		n, err := r.store.SearchCount(ctx, indexName(), "@sync_status:{"+string(s)+"}")
		if err != nil {
			return domsync.Stats{}, fmt.Errorf("count overall %s: %w", s, err)
		}
		stats.ByOverall[s] = n
	}

	for _, c := range collection.All() {
		byStatus := make(map[domsync.Status]int, len(statuses))
		for _, s := range statuses {
			query := "@" + collectionStatusAlias(c) + ":{" + string(s) + "}"
			n, err := r.store.SearchCount(ctx, indexName(), query)
			if err != nil {
				return domsync.Stats{}, fmt.Errorf("count %s %s: %w", c, s, err)
			}
			byStatus[s] = n
		}
		stats.ByCollection[c] = byStatus
	}
	return stats, nil
}

func (r *Repo) search(ctx context.Context, query string, offset, limit int) ([]*domtool.Tool, int, error) {
	result, err := r.store.SearchList(ctx, indexName(), query, offset, limit, []string{"$"})
	if err != nil {
		return nil, 0, fmt.Errorf("search tools %q: %w", query, err)
	}
	if result == nil || result.Total == 0 {
		return nil, 0, nil
	}

	tools := make([]*domtool.Tool, 0, len(result.Entries))
	for _, entry := range result.Entries {
		t, err := parseJSONDoc([]byte(entry.Fields["$"]))
		if err != nil {
			// A corrupt document must not break a sweep over its neighbors.
			continue
		}
		tools = append(tools, t)
	}
	return tools, result.Total, nil
}

func toolKey(id string) string {
	return domain.KeyPrefix + "tool:" + id
}

func indexName() string {
	return domain.KeyPrefix + "tool:idx"
}

func collectionStatusAlias(c collection.Collection) string {
	return string(c) + "_status"
}

// parseJSONDoc unwraps the JSONPath "$" array and decodes a tool.
func parseJSONDoc(raw []byte) (*domtool.Tool, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, fmt.Errorf("empty tool document")
	}

	var t domtool.Tool
	if strings.HasPrefix(s, "[") {
		var docs []domtool.Tool
		if err := json.Unmarshal([]byte(s), &docs); err != nil {
			return nil, fmt.Errorf("unmarshal tool array: %w", err)
		}
		if len(docs) == 0 {
			return nil, fmt.Errorf("empty tool document array")
		}
		t = docs[0]
	} else if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, fmt.Errorf("unmarshal tool: %w", err)
	}

	t.Sync.Normalize()
	return &t, nil
}
