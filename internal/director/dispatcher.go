package director

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"event-director/internal/broker"
	"event-director/internal/config"
	"event-director/internal/constants"
	"event-director/internal/logger"
	apperrors "event-director/pkg/errors"
	"event-director/pkg/metrics"
	"event-director/pkg/models"
	"event-director/pkg/tracing"
)

const (
	HeaderRuleID   = "rule_id"
	HeaderRuleCfg  = "rule_cfg"
	HeaderTenantID = "tenant_id"
)

type FanOutRequest struct {
	Transaction json.RawMessage
	NetworkMap  models.NetworkMap
	DataCache   json.RawMessage
	MetaData    models.MetaData
	TenantKey   string
}

// FanOutResult lists rule ids in the order the rules were given.
type FanOutResult struct {
	Succeeded []string
	Failed    []string
}

// Dispatcher sends one transaction to every rule concurrently. A failed
// send never affects its siblings and is never retried here.
type Dispatcher struct {
	producer      broker.Producer
	topicPrefix   string
	maxConcurrent int
	logger        logger.Logger
}

func NewDispatcher(producer broker.Producer, cfg config.DirectorConfig, log logger.Logger) *Dispatcher {
	prefix := cfg.RuleTopicPrefix
	if prefix == "" {
		prefix = constants.DefaultRuleTopicPrefix
	}
	return &Dispatcher{
		producer:      producer,
		topicPrefix:   prefix,
		maxConcurrent: cfg.MaxConcurrentSends,
		logger:        log,
	}
}

// Destination is the rule's host, or the rule topic derived from its id.
func (d *Dispatcher) Destination(rule models.Rule) string {
	if rule.Destination != "" {
		return rule.Destination
	}
	return d.topicPrefix + rule.ID
}

func (d *Dispatcher) FanOut(ctx context.Context, rules []models.Rule, req FanOutRequest) FanOutResult {
	ctx, span := tracing.GetTracer("director-dispatcher").Start(ctx, "director.fan_out")
	defer span.End()
	span.SetAttributes(attribute.Int("rules.count", len(rules)))

	result := FanOutResult{Succeeded: []string{}, Failed: []string{}}
	if len(rules) == 0 {
		return result
	}

	body, err := json.Marshal(models.RuleMessage{
		Transaction: req.Transaction,
		NetworkMap:  req.NetworkMap,
		DataCache:   req.DataCache,
		MetaData:    req.MetaData,
	})
	if err != nil {
		// Nothing can be sent; every rule is reported as failed.
		for _, rule := range rules {
			d.logFailure(ctx, rule, err)
			result.Failed = append(result.Failed, rule.ID)
		}
		return result
	}

	var sem chan struct{}
	if d.maxConcurrent > 0 {
		sem = make(chan struct{}, d.maxConcurrent)
	}

	errs := make([]error, len(rules))
	var wg sync.WaitGroup
	for i, rule := range rules {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					errs[i] = ctx.Err()
					return
				}
			}
			errs[i] = d.send(ctx, rule, body, req.TenantKey)
		}()
	}
	wg.Wait()

	for i, rule := range rules {
		if errs[i] != nil {
			d.logFailure(ctx, rule, errs[i])
			result.Failed = append(result.Failed, rule.ID)
			continue
		}
		d.logger.InfowCtx(ctx, "Successfully sent to "+rule.ID)
		result.Succeeded = append(result.Succeeded, rule.ID)
	}

	span.SetAttributes(
		attribute.Int("rules.succeeded", len(result.Succeeded)),
		attribute.Int("rules.failed", len(result.Failed)),
	)
	return result
}

func (d *Dispatcher) send(ctx context.Context, rule models.Rule, body []byte, tenantKey string) (err error) {
	destination := d.Destination(rule)

	ctx, span := tracing.GetTracer("director-dispatcher").Start(ctx, "director.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("rule.id", rule.ID),
		attribute.String("rule.cfg", rule.Cfg),
		attribute.String("destination", destination),
	)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
		status := "success"
		if err != nil {
			status = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.ObserveDispatch(time.Since(start), status)
	}()

	return d.producer.Publish(ctx, destination, broker.Message{
		Key:     uuid.NewString(),
		Payload: json.RawMessage(body),
		Headers: map[string]string{
			HeaderRuleID:   rule.ID,
			HeaderRuleCfg:  rule.Cfg,
			HeaderTenantID: tenantKey,
		},
	})
}

func (d *Dispatcher) logFailure(ctx context.Context, rule models.Rule, err error) {
	d.logger.ErrorwCtx(ctx, fmt.Sprintf("Failed to send to Rule %s with Error: %v", rule.ID, err),
		"rule_id", rule.ID,
		"destination", d.Destination(rule),
		"code", apperrors.ErrDispatch.Code,
	)
}
