package catalog

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/YilianFengyue/moonsql/pkg/types"
)

// tableMeta is one entry of tables_metadata.json (spec §6): an advisory
// index used to detect file/catalog drift at open time, not an
// authoritative source of truth.
type tableMeta struct {
	PageCount    int    `json:"page_count"`
	SchemaDigest string `json:"schema_digest"`
}

const metadataFileName = "tables_metadata.json"

// CheckDrift compares the current catalog and file-manager state against
// dataDir's tables_metadata.json, logging a warning per table whose
// page_count or schema digest disagrees. A missing or unreadable metadata
// file is tolerated silently, matching how a brand-new data directory has
// no index to compare against yet.
func (c *Catalog) CheckDrift(dataDir string) {
	path := filepath.Join(dataDir, metadataFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var recorded map[string]tableMeta
	if err := json.Unmarshal(data, &recorded); err != nil {
		slog.Warn("tables_metadata.json is not valid JSON, ignoring", "path", path, "error", err)
		return
	}

	names, err := c.ListTables()
	if err != nil {
		return
	}
	for _, name := range names {
		want, ok := recorded[name]
		if !ok {
			continue
		}
		schema, err := c.GetSchema(name)
		if err != nil {
			continue
		}
		pageCount, err := c.fm.PageCount(name)
		if err != nil {
			continue
		}
		got := tableMeta{PageCount: pageCount, SchemaDigest: schemaDigest(schema)}
		if got.PageCount != want.PageCount {
			slog.Warn("page count drift detected", "table", name, "recorded", want.PageCount, "actual", got.PageCount)
		}
		if got.SchemaDigest != want.SchemaDigest {
			slog.Warn("schema digest drift detected", "table", name, "recorded", want.SchemaDigest, "actual", got.SchemaDigest)
		}
	}
}

// WriteMetadata rewrites dataDir's tables_metadata.json from the current
// catalog and storage state. It is advisory only (spec §6); failure to
// write it does not abort a statement.
func (c *Catalog) WriteMetadata(dataDir string, pageCounts map[string]int) error {
	names, err := c.ListTables()
	if err != nil {
		return err
	}
	out := make(map[string]tableMeta, len(names))
	for _, name := range names {
		schema, err := c.GetSchema(name)
		if err != nil {
			continue
		}
		out[name] = tableMeta{
			PageCount:    pageCounts[name],
			SchemaDigest: schemaDigest(schema),
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, metadataFileName), data, 0o644)
}

// persistMetadata gathers every registered table's current page count from
// the file manager and rewrites tables_metadata.json under fm's data
// directory. Called after CreateTable and RefreshPageCount so the index
// CheckDrift reads at the next open is never stale. A write failure is
// logged, not propagated: the index is advisory and must never abort a
// statement that otherwise succeeded.
func (c *Catalog) persistMetadata() {
	names, err := c.ListTables()
	if err != nil {
		return
	}
	counts := make(map[string]int, len(names))
	for _, name := range names {
		n, err := c.fm.PageCount(name)
		if err != nil {
			continue
		}
		counts[name] = n
	}
	if err := c.WriteMetadata(c.fm.Root(), counts); err != nil {
		slog.Warn("failed to write tables_metadata.json", "error", err)
	}
}

// schemaDigest is an FNV-1a hash over the ordered column tuples of schema,
// stable across process restarts (SPEC_FULL.md §12).
func schemaDigest(schema *types.Schema) string {
	h := fnv.New64a()
	for _, col := range schema.Columns {
		fmt.Fprintf(h, "%s|%d|%d|%v|%v;", col.Name, col.Type, col.Length, col.Nullable, col.PrimaryKey)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
