package routecache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"event-director/internal/constants"
	"event-director/internal/logger"
	"event-director/internal/networkmap"
	apperrors "event-director/pkg/errors"
	"event-director/pkg/metrics"
	"event-director/pkg/models"
)

// Resolution is a network map answered by the cache, pruned to the requested
// transaction type. A document without a route for it comes back with no
// messages.
type Resolution struct {
	Document models.NetworkMap
	// Key is the cache key that holds the document.
	Key string
	// Cached is true when the document came from the cache without a store
	// round trip.
	Cached bool
}

// LoadedMap describes one active document inserted by a warm-up.
type LoadedMap struct {
	TenantKey string
	Legacy    bool
	TxTypes   []string
}

type WarmStats struct {
	// Documents is the number of documents the store returned.
	Documents int
	// Active is the number of active documents loaded into the cache.
	Active int
	// Entries is the number of cache keys written.
	Entries int
	Loaded  []LoadedMap
}

// Cache resolves (tenant, transaction type) pairs to network maps, going to
// the store only on a miss.
type Cache struct {
	store  Store
	source networkmap.Repository
	ttl    time.Duration
	logger logger.Logger
	group  singleflight.Group
}

func New(store Store, source networkmap.Repository, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		store:  store,
		source: source,
		ttl:    ttl,
		logger: log,
	}
}

// Resolve returns the active network map serving tenantKey. found is false
// when the store holds no active document for the tenant. Store failures are
// returned as ErrStoreUnavailable.
func (c *Cache) Resolve(ctx context.Context, tenantKey, txTp string) (Resolution, bool, error) {
	for _, key := range LookupKeys(tenantKey, txTp) {
		if doc, ok := c.get(ctx, key); ok {
			metrics.IncRouteCacheLookup("hit")
			return Resolution{Document: doc, Key: key, Cached: true}, true, nil
		}
	}
	metrics.IncRouteCacheLookup("miss")

	v, err, _ := c.group.Do(tenantKey+"\x00"+txTp, func() (interface{}, error) {
		return c.load(ctx, tenantKey, txTp)
	})
	if err != nil {
		return Resolution{}, false, err
	}

	res, _ := v.(*Resolution)
	if res == nil {
		return Resolution{}, false, nil
	}
	return *res, true, nil
}

func (c *Cache) load(ctx context.Context, tenantKey, txTp string) (*Resolution, error) {
	groups, err := c.source.GetNetworkMap(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStoreUnavailable)
	}

	docs := c.usable(ctx, groups)
	idx := selectDocument(docs, tenantKey, txTp)
	if idx < 0 {
		return nil, nil
	}
	doc := docs[idx]

	// Also cache the other types this document answers, unless a document
	// with higher precedence owns them.
	for _, served := range doc.TxTypes() {
		if selectDocument(docs, tenantKey, served) != idx {
			continue
		}
		pruned, _ := doc.Prune(served)
		c.set(ctx, DocumentKey(doc, served), pruned)
	}

	res := &Resolution{Key: DocumentKey(doc, txTp)}
	if pruned, ok := doc.Prune(txTp); ok {
		res.Document = pruned
	} else {
		// Remember that the tenant has no route for txTp so repeated
		// transactions of that type stay off the store until the entry expires.
		res.Document = routeless(doc)
		c.set(ctx, res.Key, res.Document)
	}
	c.refreshSize(ctx)
	c.logger.DebugwCtx(ctx, "Loaded and cached network map for "+models.TenantLabel(tenantKey))

	return res, nil
}

// usable flattens the store groups to the active documents that pass
// validation, in store order. Malformed documents are skipped.
func (c *Cache) usable(ctx context.Context, groups [][]models.NetworkMap) []models.NetworkMap {
	var docs []models.NetworkMap
	for _, group := range groups {
		for i := range group {
			doc := group[i]
			if !doc.Active {
				continue
			}
			if err := models.ValidateNetworkMap(&doc); err != nil {
				c.logger.WarnwCtx(ctx, "Skipping invalid network map",
					"tenant_id", models.TenantLabel(doc.TenantKey()),
					"cfg", doc.Cfg,
					"error", err,
				)
				continue
			}
			docs = append(docs, doc)
		}
	}
	return docs
}

// selectDocument returns the index of the document answering txTp for the
// partition, or -1. Precedence matches a warmed cache: the first document
// serving txTp wins, and the default partition ranks explicit DEFAULT
// documents before legacy ones. When none serves txTp the highest-ranked
// document is returned so the caller can report a missing route.
func selectDocument(docs []models.NetworkMap, tenantKey, txTp string) int {
	var ranked []int
	for i, doc := range docs {
		if doc.TenantKey() == tenantKey && !doc.IsLegacy() {
			ranked = append(ranked, i)
		}
	}
	if models.IsDefaultTenant(tenantKey) {
		for i, doc := range docs {
			if doc.IsLegacy() {
				ranked = append(ranked, i)
			}
		}
	}

	if len(ranked) == 0 {
		return -1
	}
	for _, i := range ranked {
		if _, ok := docs[i].Route(txTp); ok {
			return i
		}
	}
	return ranked[0]
}

// routeless keeps the document header without any message route.
func routeless(doc models.NetworkMap) models.NetworkMap {
	return models.NetworkMap{
		TenantID: doc.TenantID,
		Active:   doc.Active,
		Cfg:      doc.Cfg,
		Messages: []models.MessageRoute{},
	}
}

// WarmAll loads every active document into the cache with a single store
// call. An empty store is not an error.
func (c *Cache) WarmAll(ctx context.Context) (WarmStats, error) {
	groups, err := c.source.GetNetworkMap(ctx)
	if err != nil {
		return WarmStats{}, apperrors.Wrap(err, apperrors.ErrStoreUnavailable)
	}

	var stats WarmStats
	for _, docs := range groups {
		stats.Documents += len(docs)
	}

	seen := make(map[string]struct{})
	for _, doc := range c.usable(ctx, groups) {
		stats.Active++

		loaded := LoadedMap{TenantKey: doc.TenantKey(), Legacy: doc.IsLegacy()}
		for _, txTp := range doc.TxTypes() {
			key := DocumentKey(doc, txTp)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			pruned, _ := doc.Prune(txTp)
			if c.set(ctx, key, pruned) {
				stats.Entries++
				loaded.TxTypes = append(loaded.TxTypes, txTp)
			}
		}
		stats.Loaded = append(stats.Loaded, loaded)
	}

	c.refreshSize(ctx)
	return stats, nil
}

// Flush drops every cached entry.
func (c *Cache) Flush(ctx context.Context) error {
	if err := c.store.Flush(ctx); err != nil {
		return err
	}
	metrics.SetRouteCacheEntries(0)
	return nil
}

func (c *Cache) Len(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (c *Cache) set(ctx context.Context, key string, doc models.NetworkMap) bool {
	value, err := json.Marshal(doc)
	if err != nil {
		c.logger.WarnwCtx(ctx, "Failed to encode network map for cache", "key", key, "error", err)
		return false
	}

	if err := c.store.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.WarnwCtx(ctx, "Failed to cache network map", "key", key, "error", err)
		return false
	}
	return true
}

// get treats every store or decode failure as a miss; the network map store
// remains the source of truth.
func (c *Cache) get(ctx context.Context, key string) (models.NetworkMap, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.WarnwCtx(ctx, "Route cache read failed", "key", key, "error", err)
		}
		return models.NetworkMap{}, false
	}

	var doc models.NetworkMap
	if err := json.Unmarshal(data, &doc); err != nil {
		c.logger.WarnwCtx(ctx, "Discarding undecodable route cache entry", "key", key, "error", err)
		return models.NetworkMap{}, false
	}
	return doc, true
}

func (c *Cache) refreshSize(ctx context.Context) {
	n, err := c.Len(ctx)
	if err != nil {
		c.logger.DebugwCtx(ctx, "Failed to count route cache entries", "error", err)
		return
	}
	metrics.SetRouteCacheEntries(n)
}

// Describe lists cached keys grouped by tenant partition, for diagnostics.
func (c *Cache) Describe(ctx context.Context) (map[string][]string, error) {
	keys, err := c.store.Keys(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	for _, key := range keys {
		tenant := models.DefaultTenantKey
		if rest, ok := strings.CutPrefix(key, constants.CacheKeyPrefixTenant); ok {
			if i := strings.LastIndex(rest, ":"); i > 0 {
				tenant = rest[:i]
			}
		}
		out[tenant] = append(out[tenant], key)
	}
	return out, nil
}
