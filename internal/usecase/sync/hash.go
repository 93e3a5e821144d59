package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/kailas-cloud/toolsync/internal/domain/collection"
	"github.com/kailas-cloud/toolsync/internal/domain/tool"
)

// HashCollection computes the 16-hex content fingerprint of the fields owned
// by c. The digest is invariant under string case and array order: strings
// are lower-cased, arrays are trimmed, lower-cased and sorted, and nil is
// indistinguishable from absent. Equal fingerprints mean a re-sync would be
// a no-op.
func HashCollection(t *tool.Tool, c collection.Collection) string {
	fields := c.SemanticFields()
	sort.Strings(fields)

	var b strings.Builder
	for _, f := range fields {
		b.WriteString(f)
		b.WriteByte('=')
		b.WriteString(normalizeValue(t.FieldValue(f)))
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}

// HashAll computes the fingerprint for every collection at once.
func HashAll(t *tool.Tool) map[collection.Collection]string {
	out := make(map[collection.Collection]string, len(collection.All()))
	for _, c := range collection.All() {
		out[c] = HashCollection(t, c)
	}
	return out
}

// normalizeValue canonicalizes a field value for hashing and comparison.
// The unit separator keeps multi-element arrays from colliding with single
// strings that happen to contain the join character.
func normalizeValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(x))
	case []string:
		vals := make([]string, 0, len(x))
		for _, s := range x {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				vals = append(vals, s)
			}
		}
		sort.Strings(vals)
		return strings.Join(vals, "\x1f")
	}
	return ""
}
