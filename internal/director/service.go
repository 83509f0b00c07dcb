package director

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"event-director/internal/config"
	"event-director/internal/logger"
	"event-director/internal/routecache"
	apperrors "event-director/pkg/errors"
	"event-director/pkg/logging"
	"event-director/pkg/metrics"
	"event-director/pkg/models"
	"event-director/pkg/tracing"
)

type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeNoConfig   Outcome = "no_config"
	OutcomeNoRoute    Outcome = "no_route"
)

// RouteResolver answers which network map serves a tenant and transaction
// type.
type RouteResolver interface {
	Resolve(ctx context.Context, tenantKey, txTp string) (routecache.Resolution, bool, error)
}

type FanOuter interface {
	FanOut(ctx context.Context, rules []models.Rule, req FanOutRequest) FanOutResult
}

// Result summarises one handled transaction.
type Result struct {
	Outcome   Outcome           `json:"outcome"`
	TenantKey string            `json:"tenant"`
	TxTp      string            `json:"txTp"`
	CacheKey  string            `json:"cacheKey,omitempty"`
	CacheHit  bool              `json:"cacheHit"`
	RulesSent []string          `json:"rulesSentTo"`
	Failed    []string          `json:"failedToSend"`
	MetaData  models.MetaData   `json:"metaData"`
	Network   models.NetworkMap `json:"networkMap"`
}

type Service struct {
	routes     RouteResolver
	dispatcher FanOuter
	cfg        config.DirectorConfig
	logger     logger.Logger
}

func NewService(routes RouteResolver, dispatcher FanOuter, cfg config.DirectorConfig, log logger.Logger) *Service {
	return &Service{
		routes:     routes,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     log,
	}
}

// HandleTransaction routes one transaction to every rule its tenant's
// network map lists for the transaction type. Missing configuration and
// missing routes are outcomes, not errors. The error is non-nil only for an
// invalid envelope, a rejected tenant or an unreachable store.
func (s *Service) HandleTransaction(ctx context.Context, env *models.TransactionEnvelope) (Result, error) {
	start := time.Now()

	ctx, span := tracing.GetTracer("director-service").Start(ctx, "director.handle_transaction")
	defer span.End()

	if err := models.ValidateTransactionEnvelope(env); err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.ErrInvalidEnvelope)
	}

	tenantKey, err := s.resolveTenant(ctx, env)
	if err != nil {
		return Result{}, err
	}

	ctx = logging.WithTransaction(ctx, tenantKey, env.TxTp)
	span.SetAttributes(
		attribute.String("tenant", tenantKey),
		attribute.String("tx_type", env.TxTp),
	)

	result := Result{
		TenantKey: tenantKey,
		TxTp:      env.TxTp,
		RulesSent: []string{},
		Failed:    []string{},
	}

	resolution, found, err := s.routes.Resolve(ctx, tenantKey, env.TxTp)
	if err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to resolve network map", "error", err)
		return Result{}, err
	}

	if !found {
		s.logger.InfowCtx(ctx, "No network map found in DB for "+models.TenantLabel(tenantKey))
		return s.finish(ctx, env, result, OutcomeNoConfig, start), nil
	}

	result.CacheKey = resolution.Key
	result.CacheHit = resolution.Cached
	if resolution.Cached {
		s.logger.DebugwCtx(ctx, "Using cached network map",
			"cache_key", resolution.Key,
			"sub_route", subRouteIDs(resolution.Document),
		)
	}

	rules := ExtractRules(resolution.Document, env.TxTp)
	if len(rules) == 0 {
		s.logger.InfowCtx(ctx, "No corresponding message found in Network map for "+models.TenantLabel(tenantKey))
		return s.finish(ctx, env, result, OutcomeNoRoute, start), nil
	}

	result.Network = resolution.Document
	result.MetaData = stampProcessingTime(env.MetaData, start)

	sent := s.dispatcher.FanOut(ctx, rules, FanOutRequest{
		Transaction: env.Transaction,
		NetworkMap:  resolution.Document,
		DataCache:   env.DataCache,
		MetaData:    result.MetaData,
		TenantKey:   tenantKey,
	})
	result.RulesSent = sent.Succeeded
	result.Failed = sent.Failed
	result.Outcome = OutcomeDispatched

	s.dumpResult(ctx, result)
	metrics.ObserveTransaction(time.Since(start), string(OutcomeDispatched))
	return result, nil
}

// Handle adapts HandleTransaction to a broker handler.
func (s *Service) Handle(ctx context.Context, env models.TransactionEnvelope) error {
	_, err := s.HandleTransaction(ctx, &env)
	return err
}

// resolveTenant maps the envelope to a cache partition. Without a tenant the
// default configuration is used unless the deployment is authenticated.
func (s *Service) resolveTenant(ctx context.Context, env *models.TransactionEnvelope) (string, error) {
	if !env.HasTenant || strings.TrimSpace(env.TenantID) == "" {
		if s.cfg.Authenticated {
			s.logger.WarnwCtx(ctx, "Rejecting transaction without tenantId", "tx_type", env.TxTp)
			return "", apperrors.ErrTenantRequired.WithDetail("tx_type", env.TxTp)
		}
		s.logger.WarnwCtx(ctx, "No tenantId found in transaction payload, using default configuration")
		return models.DefaultTenantKey, nil
	}

	tenantKey := env.TenantKey()
	if models.IsDefaultTenant(tenantKey) {
		s.logger.DebugwCtx(ctx, "Using DEFAULT tenant configuration for unauthenticated request")
	}
	return tenantKey, nil
}

func (s *Service) finish(ctx context.Context, env *models.TransactionEnvelope, result Result, outcome Outcome, start time.Time) Result {
	result.Outcome = outcome
	result.MetaData = stampProcessingTime(env.MetaData, start)
	s.dumpResult(ctx, result)
	metrics.ObserveTransaction(time.Since(start), string(outcome))
	return result
}

func (s *Service) dumpResult(ctx context.Context, result Result) {
	dump, err := json.Marshal(result)
	if err != nil {
		s.logger.DebugwCtx(ctx, "Failed to encode transaction result", "error", err)
		return
	}
	s.logger.DebugwCtx(ctx, string(dump))
}

func stampProcessingTime(meta models.MetaData, start time.Time) models.MetaData {
	return meta.Merge(models.MetaData{
		models.ProcessingTimeKey: time.Since(start).Nanoseconds(),
	})
}

func subRouteIDs(doc models.NetworkMap) []string {
	ids := make([]string, 0, len(doc.Messages))
	for _, m := range doc.Messages {
		ids = append(ids, m.ID)
	}
	return ids
}
