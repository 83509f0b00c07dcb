package director

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"event-director/internal/broker"
	"event-director/internal/logger"
	"event-director/pkg/models"
)

const (
	txPacs002 = "pacs.002.001.12"
	txPacs008 = "pacs.008.001.10"
)

type sentMessage struct {
	destination string
	msg         broker.Message
}

// fakeProducer records publishes. Destinations listed in failures return
// that error, those in panics panic.
type fakeProducer struct {
	mu       sync.Mutex
	sent     []sentMessage
	failures map[string]error
	panics   map[string]bool
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (p *fakeProducer) Publish(ctx context.Context, destination string, msg broker.Message) error {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		current := p.maxInFlight.Load()
		if n <= current || p.maxInFlight.CompareAndSwap(current, n) {
			break
		}
	}

	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.panics[destination] {
		panic("producer exploded for " + destination)
	}
	if err := p.failures[destination]; err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentMessage{destination: destination, msg: msg})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func (p *fakeProducer) destinations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.sent))
	for _, s := range p.sent {
		out = append(out, s.destination)
	}
	return out
}

func (p *fakeProducer) messages() []sentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sentMessage(nil), p.sent...)
}

type countingSource struct {
	mu    sync.Mutex
	docs  [][]models.NetworkMap
	err   error
	calls atomic.Int32
}

func (s *countingSource) GetNetworkMap(context.Context) ([][]models.NetworkMap, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs, s.err
}

var errBrokerDown = errors.New("broker unavailable")

func newObservedLogger() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.NewWithCore(core), logs
}

// routingDocument builds an active network map whose route for each
// transaction type lists the given rule ids in one typology.
func routingDocument(tenant string, ruleIDs []string, txTypes ...string) models.NetworkMap {
	rules := make([]models.Rule, 0, len(ruleIDs))
	for _, id := range ruleIDs {
		rules = append(rules, models.Rule{ID: id, Cfg: "1.0.0"})
	}

	doc := models.NetworkMap{TenantID: tenant, Active: true, Cfg: "1.0.0"}
	for _, txTp := range txTypes {
		doc.Messages = append(doc.Messages, models.MessageRoute{
			ID:         "004@1.0.0",
			Cfg:        "1.0.0",
			TxTp:       txTp,
			Typologies: []models.Typology{{ID: "typology-processor@1.0.0", Cfg: "028@1.0", Rules: rules}},
		})
	}
	return doc
}
