package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/workflows/internal/db"
	"github.com/kailas-cloud/workflows/internal/domain"
	"github.com/kailas-cloud/workflows/internal/domain/dataset"
	"github.com/kailas-cloud/workflows/internal/domain/document"
	"github.com/kailas-cloud/workflows/internal/domain/filter"
	"github.com/kailas-cloud/workflows/internal/domain/schema"
)

// store is the consumer interface for datasets (ISP).
type store interface {
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONMGet(ctx context.Context, keys []string, path string) ([][]byte, error)
	ZAdd(ctx context.Context, key string, members ...string) error
	ZCard(ctx context.Context, key string) (int64, error)
	ZRangeAfter(ctx context.Context, key, after string, limit int) ([]string, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo is a Valkey-backed dataset. Documents live as JSON values, their ids in
// a score-0 sorted set that gives a stable lexicographic cursor.
type Repo struct {
	store       store
	id          string
	prefix      string
	scanSize    int
	bulkWorkers int
	logger      *zap.Logger
}

// New creates a dataset repository.
func New(s store, datasetID string, opts ...Option) *Repo {
	r := &Repo{
		store:       s,
		id:          datasetID,
		scanSize:    DefaultScanSize,
		bulkWorkers: DefaultBulkWorkers,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ID returns the dataset id.
func (r *Repo) ID() string { return r.id }

// Schema returns the stored field schema.
func (r *Repo) Schema(ctx context.Context) (schema.Schema, error) {
	m, err := r.store.HGetAll(ctx, r.schemaKey())
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.schemaKey(), err)
	}
	return schema.Schema(m), nil
}

// Count returns the number of documents matching filters.
func (r *Repo) Count(ctx context.Context, filters []filter.Filter) (int, error) {
	if len(filters) == 0 {
		n, err := r.store.ZCard(ctx, r.idsKey())
		if err != nil {
			return 0, fmt.Errorf("zcard %s: %w", r.idsKey(), err)
		}
		return int(n), nil
	}

	count := 0
	after := ""
	for {
		docs, last, done, err := r.scan(ctx, after, r.scanSize)
		if err != nil {
			return 0, err
		}
		for _, d := range docs {
			if filter.Match(d, filters) {
				count++
			}
		}
		if done {
			return count, nil
		}
		after = last
	}
}

// Documents returns up to q.PageSize matching documents after q.AfterID.
// Pages always follow id order.
func (r *Repo) Documents(ctx context.Context, q dataset.Query) (dataset.Page, error) {
	if q.PageSize <= 0 {
		return dataset.Page{}, fmt.Errorf("page size %d: %w", q.PageSize, domain.ErrInvalidConfig)
	}

	var out document.List
	after := q.AfterID
	for len(out) < q.PageSize {
		docs, last, done, err := r.scan(ctx, after, max(r.scanSize, q.PageSize))
		if err != nil {
			return dataset.Page{}, err
		}
		for _, d := range docs {
			if !filter.Match(d, q.Filters) {
				continue
			}
			out = append(out, q.Project(d))
			if len(out) == q.PageSize {
				break
			}
		}
		if done {
			break
		}
		after = last
	}

	page := dataset.Page{Documents: out, Count: len(out)}
	if len(out) > 0 {
		page.AfterID = out[len(out)-1].ID()
	}
	return page, nil
}

// Update merges each document's top-level fields into the stored one and
// creates documents that do not exist yet. Documents without an id are rejected.
func (r *Repo) Update(ctx context.Context, docs document.List, opts dataset.UpdateOptions) (dataset.UpdateResult, error) {
	var res dataset.UpdateResult
	valid := make(document.List, 0, len(docs))
	for _, d := range docs {
		if d.ID() == "" {
			res.FailedDocuments = append(res.FailedDocuments, "")
			continue
		}
		valid = append(valid, d)
	}
	if len(valid) == 0 {
		return res, nil
	}

	existing, err := r.load(ctx, valid.IDs())
	if err != nil {
		return res, err
	}
	merged := make(document.List, len(valid))
	for i, d := range valid {
		cur := existing[i]
		if cur == nil {
			cur = document.Document{}
		}
		maps.Copy(cur, d)
		merged[i] = cur
	}

	written, err := r.write(ctx, merged)
	res.Add(written)
	if err != nil {
		return res, err
	}
	if opts.UpdateSchema {
		if err := r.updateSchema(ctx, merged); err != nil {
			return res, err
		}
	}
	if opts.IngestInBackground {
		r.logger.Debug("Background ingest requested; writes are synchronous", zap.String("dataset", r.id))
	}
	return res, nil
}

// Insert overwrites documents and always updates the schema. Documents
// without an id get a random one.
func (r *Repo) Insert(ctx context.Context, docs document.List) (dataset.UpdateResult, error) {
	if len(docs) == 0 {
		return dataset.UpdateResult{}, nil
	}
	list := make(document.List, len(docs))
	for i, d := range docs {
		if d.ID() == "" {
			d = d.Clone()
			d[document.IDField] = uuid.New().String()
		}
		list[i] = d
	}

	res, err := r.write(ctx, list)
	if err != nil {
		return res, err
	}
	if err := r.updateSchema(ctx, list); err != nil {
		return res, err
	}
	return res, nil
}

// scan reads up to limit documents after the given id. done reports the end of the id set.
func (r *Repo) scan(ctx context.Context, after string, limit int) (document.List, string, bool, error) {
	ids, err := r.store.ZRangeAfter(ctx, r.idsKey(), after, limit)
	if err != nil {
		return nil, "", false, fmt.Errorf("zrange %s: %w", r.idsKey(), err)
	}
	if len(ids) == 0 {
		return nil, after, true, nil
	}
	loaded, err := r.load(ctx, ids)
	if err != nil {
		return nil, "", false, err
	}
	docs := make(document.List, 0, len(loaded))
	for _, d := range loaded {
		if d != nil {
			docs = append(docs, d)
		}
	}
	return docs, ids[len(ids)-1], len(ids) < limit, nil
}

// load fetches documents by id; missing entries are nil.
func (r *Repo) load(ctx context.Context, ids []string) (document.List, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(id)
	}
	raws, err := r.store.JSONMGet(ctx, keys, ".")
	if err != nil {
		return nil, fmt.Errorf("json.mget %s: %w", r.id, err)
	}
	out := make(document.List, len(ids))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		var d document.Document
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode %s: %w: %w", keys[i], domain.ErrMalformedResponse, err)
		}
		out[i] = d
	}
	return out, nil
}

func (r *Repo) write(ctx context.Context, docs document.List) (dataset.UpdateResult, error) {
	var res dataset.UpdateResult
	items := make([]db.JSONSetItem, 0, len(docs))
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		data, err := json.Marshal(d)
		if err != nil {
			r.logger.Warn("Document rejected", zap.String("id", d.ID()), zap.Error(err))
			res.FailedDocuments = append(res.FailedDocuments, d.ID())
			continue
		}
		items = append(items, db.JSONSetItem{Key: r.docKey(d.ID()), Path: ".", Data: data})
		ids = append(ids, d.ID())
	}
	if len(items) == 0 {
		return res, nil
	}

	if err := r.store.JSONSetMulti(ctx, items); err != nil {
		return res, fmt.Errorf("json.set %s: %w", r.id, err)
	}
	if err := r.store.ZAdd(ctx, r.idsKey(), ids...); err != nil {
		return res, fmt.Errorf("zadd %s: %w", r.idsKey(), err)
	}
	res.Inserted = len(ids)
	return res, nil
}

func (r *Repo) updateSchema(ctx context.Context, docs document.List) error {
	current, err := r.Schema(ctx)
	if err != nil {
		return err
	}
	inferred := schema.Infer(docs)
	added := map[string]string{}
	for path, tag := range inferred {
		if _, ok := current[path]; !ok {
			added[path] = tag
		}
	}
	if len(added) == 0 {
		return nil
	}
	if err := r.store.HSetMulti(ctx, []db.HashSetItem{{Key: r.schemaKey(), Fields: added}}); err != nil {
		return fmt.Errorf("hset %s: %w", r.schemaKey(), err)
	}
	r.logger.Debug("Schema updated", zap.String("dataset", r.id), zap.Int("fields", len(added)))
	return nil
}

// Keys share the {dataset} hash tag so multi-key commands stay on one cluster slot.
func (r *Repo) docKey(id string) string { return r.prefix + "{" + r.id + "}:doc:" + id }
func (r *Repo) idsKey() string { return r.prefix + "{" + r.id + "}:ids" }
func (r *Repo) schemaKey() string { return r.prefix + "{" + r.id + "}:schema" }
