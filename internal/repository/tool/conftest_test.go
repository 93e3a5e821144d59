package tool

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kailas-cloud/toolsync/internal/db"
	domtool "github.com/kailas-cloud/toolsync/internal/domain/tool"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	jsonSetFn      func(ctx context.Context, key, path string, data []byte) error
	jsonSetMultiFn func(ctx context.Context, items []db.JSONSetItem) error
	jsonGetFn      func(ctx context.Context, key string, paths ...string) ([]byte, error)
	delFn          func(ctx context.Context, key string) error
	existsFn       func(ctx context.Context, key string) (bool, error)
	searchListFn   func(
		ctx context.Context, index, query string, offset, limit int, fields []string,
	) (*db.SearchResult, error)
	searchCountFn   func(ctx context.Context, index, query string) (int, error)
	createIndexFn   func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn   func(ctx context.Context, name string) (bool, error)
	jsonSetCalls    int
	jsonSetMultiArg []db.JSONSetItem
}

func (m *mockStore) JSONSet(ctx context.Context, key, path string, data []byte) error {
	m.jsonSetCalls++
	if m.jsonSetFn != nil {
		return m.jsonSetFn(ctx, key, path, data)
	}
	return nil
}

func (m *mockStore) JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error {
	m.jsonSetMultiArg = items
	if m.jsonSetMultiFn != nil {
		return m.jsonSetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) JSONGet(ctx context.Context, key string, paths ...string) ([]byte, error) {
	if m.jsonGetFn != nil {
		return m.jsonGetFn(ctx, key, paths...)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	if m.searchListFn != nil {
		return m.searchListFn(ctx, index, query, offset, limit, fields)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index, query string) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, query)
	}
	return 0, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func testTool(t *testing.T) *domtool.Tool {
	t.Helper()
	tl, err := domtool.New("tool-1", "tool-one", "Tool One", time.Now().UTC())
	if err != nil {
		t.Fatalf("tool.New: %v", err)
	}
	tl.Tagline = "Does one thing well"
	tl.Approved = true
	return tl
}

// marshalDoc renders a tool the way JSON.GET "$" returns it: wrapped in an array.
func marshalDoc(t *testing.T, tl *domtool.Tool) []byte {
	t.Helper()
	data, err := json.Marshal([]*domtool.Tool{tl})
	if err != nil {
		t.Fatalf("marshal tool: %v", err)
	}
	return data
}
