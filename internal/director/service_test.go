package director

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-director/internal/config"
	"event-director/internal/logger"
	"event-director/internal/routecache"
	apperrors "event-director/pkg/errors"
	"event-director/pkg/models"
)

type harness struct {
	source   *countingSource
	cache    *routecache.Cache
	producer *fakeProducer
	service  *Service
}

func newHarness(docs [][]models.NetworkMap, cfg config.DirectorConfig, log logger.Logger) *harness {
	source := &countingSource{docs: docs}
	cache := routecache.New(routecache.NewFreeCacheStore(4), source, 0, log)
	producer := &fakeProducer{}
	return &harness{
		source:   source,
		cache:    cache,
		producer: producer,
		service:  NewService(cache, NewDispatcher(producer, cfg, log), cfg, log),
	}
}

func envelope(t *testing.T, raw string) *models.TransactionEnvelope {
	t.Helper()
	var env models.TransactionEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	return &env
}

func TestHandleTransaction_TenantCacheHitDispatches(t *testing.T) {
	h := newHarness([][]models.NetworkMap{
		{routingDocument("tenant-a", []string{"001@1.0.0", "002@1.0.0"}, txPacs002)},
	}, config.DirectorConfig{}, logger.NopLogger())
	ctx := context.Background()

	_, err := h.cache.WarmAll(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(1), h.source.calls.Load())

	res, err := h.service.HandleTransaction(ctx, envelope(t, `{"transaction":{"TxTp":"pacs.002.001.12","TenantId":"tenant-a"}}`))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDispatched, res.Outcome)
	assert.True(t, res.CacheHit)
	assert.Equal(t, "tenant:tenant-a:pacs.002.001.12", res.CacheKey)
	assert.Equal(t, []string{"001@1.0.0", "002@1.0.0"}, res.RulesSent)
	assert.Empty(t, res.Failed)
	assert.Equal(t, int32(1), h.source.calls.Load(), "a cache hit must not reach the store")
	assert.ElementsMatch(t, []string{"sub-rule-001@1.0.0", "sub-rule-002@1.0.0"}, h.producer.destinations())
}

func TestHandleTransaction_MissingTenantUsesDefault(t *testing.T) {
	log, logs := newObservedLogger()
	h := newHarness([][]models.NetworkMap{
		{routingDocument("", []string{"003@1.0.0"}, txPacs008)},
		{routingDocument("tenant-a", []string{"001@1.0.0"}, txPacs008)},
	}, config.DirectorConfig{}, log)

	res, err := h.service.HandleTransaction(context.Background(), envelope(t, `{"transaction":{"TxTp":"pacs.008.001.10"}}`))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDispatched, res.Outcome)
	assert.Equal(t, models.DefaultTenantKey, res.TenantKey)
	assert.Equal(t, "pacs.008.001.10", res.CacheKey)
	assert.Equal(t, []string{"003@1.0.0"}, res.RulesSent)
	assert.Equal(t, 1, logs.FilterMessage("No tenantId found in transaction payload, using default configuration").Len())
}

func TestHandleTransaction_ExplicitDefaultTenant(t *testing.T) {
	log, logs := newObservedLogger()
	h := newHarness([][]models.NetworkMap{
		{routingDocument("", []string{"003@1.0.0"}, txPacs008)},
		{routingDocument("DEFAULT", []string{"007@1.0.0"}, txPacs008)},
	}, config.DirectorConfig{Authenticated: true}, log)

	res, err := h.service.HandleTransaction(context.Background(), envelope(t, `{"transaction":{"TxTp":"pacs.008.001.10","tenantId":"DEFAULT"}}`))
	require.NoError(t, err)

	assert.Equal(t, "tenant:DEFAULT:pacs.008.001.10", res.CacheKey)
	assert.Equal(t, []string{"007@1.0.0"}, res.RulesSent)
	assert.Equal(t, 1, logs.FilterMessage("Using DEFAULT tenant configuration for unauthenticated request").Len())
}

func TestHandleTransaction_NoConfigForTenant(t *testing.T) {
	log, logs := newObservedLogger()
	h := newHarness([][]models.NetworkMap{
		{routingDocument("", []string{"003@1.0.0"}, txPacs002)},
	}, config.DirectorConfig{}, log)

	res, err := h.service.HandleTransaction(context.Background(), envelope(t, `{"transaction":{"TxTp":"pacs.002.001.12","TenantId":"tenant-z"},"metaData":{"traceParent":"tp"}}`))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoConfig, res.Outcome)
	assert.Empty(t, res.RulesSent)
	assert.Empty(t, res.Failed)
	assert.Empty(t, h.producer.destinations(), "tenants never fall back to the default configuration")
	assert.Equal(t, 1, logs.FilterMessage("No network map found in DB for tenant: tenant-z").Len())
	assert.Equal(t, "tp", res.MetaData["traceParent"])
	assert.Contains(t, res.MetaData, models.ProcessingTimeKey)
}

func TestHandleTransaction_NoConfigForDefault(t *testing.T) {
	log, logs := newObservedLogger()
	h := newHarness(nil, config.DirectorConfig{}, log)

	res, err := h.service.HandleTransaction(context.Background(), envelope(t, `{"transaction":{"TxTp":"pacs.002.001.12"}}`))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoConfig, res.Outcome)
	assert.Equal(t, 1, logs.FilterMessage("No network map found in DB for default configuration").Len())
}

func TestHandleTransaction_NoRoute(t *testing.T) {
	log, logs := newObservedLogger()
	h := newHarness([][]models.NetworkMap{
		{routingDocument("tenant-a", []string{"001@1.0.0"}, txPacs008)},
	}, config.DirectorConfig{}, log)

	res, err := h.service.HandleTransaction(context.Background(), envelope(t, `{"transaction":{"TxTp":"pacs.002.001.12","TenantId":"tenant-a"}}`))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoRoute, res.Outcome)
	assert.Empty(t, h.producer.destinations())
	assert.Equal(t, 1, logs.FilterMessage("No corresponding message found in Network map for tenant: tenant-a").Len())
	assert.Contains(t, res.MetaData, models.ProcessingTimeKey)
}

func TestHandleTransaction_NoRouteDefaultPartition(t *testing.T) {
	log, logs := newObservedLogger()
	h := newHarness([][]models.NetworkMap{
		{routingDocument("", []string{"001@1.0.0"}, txPacs008)},
	}, config.DirectorConfig{}, log)

	res, err := h.service.HandleTransaction(context.Background(), envelope(t, `{"transaction":{"TxTp":"pacs.002.001.12"}}`))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoRoute, res.Outcome)
	assert.Equal(t, 1, logs.FilterMessage("No corresponding message found in Network map for default configuration").Len())
	assert.Zero(t, logs.FilterMessage("No corresponding message found in Network map for tenant DEFAULT").Len())
}

func TestHandleTransaction_PartialDispatchFailure(t *testing.T) {
	log, logs := newObservedLogger()
	h := newHarness([][]models.NetworkMap{
		{routingDocument("tenant-a", []string{"001@1.0.0", "002@1.0.0", "003@1.0.0"}, txPacs002)},
	}, config.DirectorConfig{}, log)
	h.producer.failures = map[string]error{"sub-rule-002@1.0.0": errBrokerDown}

	res, err := h.service.HandleTransaction(context.Background(), envelope(t, `{"transaction":{"TxTp":"pacs.002.001.12","TenantId":"tenant-a"}}`))
	require.NoError(t, err)

	assert.Equal(t, OutcomeDispatched, res.Outcome)
	assert.Equal(t, []string{"001@1.0.0", "003@1.0.0"}, res.RulesSent)
	assert.Equal(t, []string{"002@1.0.0"}, res.Failed)
	assert.Equal(t, 1, logs.FilterMessageSnippet("Failed to send to Rule 002@1.0.0").Len())
}

func TestHandleTransaction_MetaDataMergedAndSent(t *testing.T) {
	h := newHarness([][]models.NetworkMap{
		{routingDocument("tenant-a", []string{"001@1.0.0"}, txPacs002, txPacs008)},
	}, config.DirectorConfig{}, logger.NopLogger())

	res, err := h.service.HandleTransaction(context.Background(), envelope(t,
		`{"transaction":{"TxTp":"pacs.002.001.12","TenantId":"tenant-a"},"DataCache":{"cdtrId":"c1"},"metaData":{"prcgTmDP":10}}`))
	require.NoError(t, err)

	assert.Equal(t, float64(10), res.MetaData["prcgTmDP"])
	elapsed, ok := res.MetaData[models.ProcessingTimeKey].(int64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, elapsed, int64(0))

	sent := h.producer.messages()
	require.Len(t, sent, 1)

	var msg models.RuleMessage
	require.NoError(t, json.Unmarshal(sent[0].msg.Payload.(json.RawMessage), &msg))
	assert.JSONEq(t, `{"cdtrId":"c1"}`, string(msg.DataCache))
	assert.Equal(t, float64(10), msg.MetaData["prcgTmDP"])
	assert.Contains(t, msg.MetaData, models.ProcessingTimeKey)
	require.Len(t, msg.NetworkMap.Messages, 1, "rules receive the map pruned to the transaction type")
	assert.Equal(t, txPacs002, msg.NetworkMap.Messages[0].TxTp)
}

func TestHandleTransaction_AuthenticatedRejectsMissingTenant(t *testing.T) {
	h := newHarness([][]models.NetworkMap{
		{routingDocument("", []string{"001@1.0.0"}, txPacs002)},
	}, config.DirectorConfig{Authenticated: true}, logger.NopLogger())

	for _, raw := range []string{
		`{"transaction":{"TxTp":"pacs.002.001.12"}}`,
		`{"transaction":{"TxTp":"pacs.002.001.12","TenantId":"   "}}`,
	} {
		_, err := h.service.HandleTransaction(context.Background(), envelope(t, raw))
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrTenantRequired))
	}
	assert.Empty(t, h.producer.destinations())
	assert.Zero(t, h.source.calls.Load())
}

func TestHandleTransaction_StoreUnavailable(t *testing.T) {
	h := newHarness(nil, config.DirectorConfig{}, logger.NopLogger())
	h.source.err = errors.New("connection refused")

	_, err := h.service.HandleTransaction(context.Background(), envelope(t, `{"transaction":{"TxTp":"pacs.002.001.12","TenantId":"tenant-a"}}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsStoreUnavailable(err))
	assert.Empty(t, h.producer.destinations())
}

func TestHandleTransaction_InvalidEnvelope(t *testing.T) {
	h := newHarness(nil, config.DirectorConfig{}, logger.NopLogger())

	_, err := h.service.HandleTransaction(context.Background(), envelope(t, `{"transaction":{"TenantId":"tenant-a"}}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidEnvelope))

	_, err = h.service.HandleTransaction(context.Background(), nil)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidEnvelope))
}

func TestHandleTransaction_TenantIsolationUnderConcurrency(t *testing.T) {
	tenants := []string{"tenant-a", "tenant-b", "tenant-c", "tenant-d"}
	docs := make([][]models.NetworkMap, 0, len(tenants))
	for _, tenant := range tenants {
		docs = append(docs, []models.NetworkMap{routingDocument(tenant, []string{"rule-" + tenant}, txPacs002)})
	}
	h := newHarness(docs, config.DirectorConfig{}, logger.NopLogger())

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		tenant := tenants[i%len(tenants)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw := fmt.Sprintf(`{"transaction":{"TxTp":"pacs.002.001.12","TenantId":%q}}`, tenant)
			var env models.TransactionEnvelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				errs <- err
				return
			}
			res, err := h.service.HandleTransaction(context.Background(), &env)
			if err != nil {
				errs <- err
				return
			}
			if len(res.RulesSent) != 1 || res.RulesSent[0] != "rule-"+tenant {
				errs <- fmt.Errorf("tenant %s routed to %v", tenant, res.RulesSent)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Len(t, h.producer.destinations(), 40)
}

func TestHandle_AdaptsToBrokerHandler(t *testing.T) {
	h := newHarness([][]models.NetworkMap{
		{routingDocument("tenant-a", []string{"001@1.0.0"}, txPacs002)},
	}, config.DirectorConfig{}, logger.NopLogger())

	require.NoError(t, h.service.Handle(context.Background(), *envelope(t, `{"transaction":{"TxTp":"pacs.002.001.12","TenantId":"tenant-a"}}`)))
	assert.Equal(t, []string{"sub-rule-001@1.0.0"}, h.producer.destinations())
}
