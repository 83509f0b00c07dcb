package broker

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"event-director/internal/config"
	"event-director/internal/constants"
	"event-director/internal/logger"
	"event-director/pkg/logging"
	"event-director/pkg/metrics"
	"event-director/pkg/tracing"
)

const defaultPrefetchCount = 10

// RabbitMQURL builds the AMQP dial URL from configuration.
func RabbitMQURL(cfg config.RabbitMQConfig) string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.VHost,
	}
	if cfg.VHost == "/" || cfg.VHost == "" {
		u.Path = "/"
	}
	return u.String()
}

func declareExchange(conn *amqp.Connection, exchange string) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil)
}

// RabbitMQProducer publishes to a topic exchange; the destination is the
// routing key.
type RabbitMQProducer struct {
	conn        *amqp.Connection
	exchange    string
	logger      logger.Logger
	serviceName string
}

func NewRabbitMQProducer(cfg config.RabbitMQConfig, log logger.Logger) (*RabbitMQProducer, error) {
	conn, err := amqp.Dial(RabbitMQURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	if err := declareExchange(conn, cfg.Exchange); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	return &RabbitMQProducer{
		conn:        conn,
		exchange:    cfg.Exchange,
		logger:      log,
		serviceName: constants.ServiceName,
	}, nil
}

func (p *RabbitMQProducer) Publish(ctx context.Context, destination string, msg Message) error {
	body, err := encodePayload(msg.Payload)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	defer ch.Close()

	messageID := msg.Key
	if messageID == "" {
		messageID = uuid.NewString()
	}
	headers := tracing.InjectHeaders(ctx, copyHeaders(msg.Headers))

	publishCtx, cancel := context.WithTimeout(ctx, constants.RabbitMQPublishTimeout)
	defer cancel()

	start := time.Now()
	err = ch.PublishWithContext(publishCtx, p.exchange, destination, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Headers:      tracing.AMQPTable(headers),
			Body:         body,
		},
	)
	metrics.ObserveWriteDuration(p.serviceName, destination, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to publish rabbitmq message: %w", err)
	}

	metrics.IncMessagesWritten(p.serviceName, destination)
	metrics.ObserveMessageSize(p.serviceName, destination, "out", len(body))
	return nil
}

func (p *RabbitMQProducer) Close() error {
	return p.conn.Close()
}

// RabbitMQConsumer reads a durable queue bound to the exchange with the
// queue name as routing key.
type RabbitMQConsumer struct {
	cfg         config.RabbitMQConfig
	retryCfg    config.RetryConfig
	logger      logger.Logger
	wg          sync.WaitGroup
	conn        *amqp.Connection
	dlqProducer *RabbitMQProducer
	serviceName string
}

func NewRabbitMQConsumer(cfg config.RabbitMQConfig, retryCfg config.RetryConfig, log logger.Logger) *RabbitMQConsumer {
	return &RabbitMQConsumer{
		cfg:         cfg,
		retryCfg:    retryCfg,
		logger:      log,
		serviceName: "unknown",
	}
}

func (c *RabbitMQConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler HandlerFunc) error {
	c.logger.Infow("Creating RabbitMQ consumer",
		"queue", queue,
		"exchange", c.cfg.Exchange,
		"service_name", c.serviceName,
	)

	conn, err := amqp.Dial(RabbitMQURL(c.cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	c.conn = conn

	if err := declareExchange(conn, c.cfg.Exchange); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", c.cfg.Exchange, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	prefetch := c.cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = defaultPrefetchCount
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	if err := bindQueue(ch, c.cfg.Exchange, queue); err != nil {
		return err
	}

	if c.cfg.DLQQueue != "" {
		if err := bindQueue(ch, c.cfg.Exchange, c.cfg.DLQQueue); err != nil {
			return err
		}
		dlq, err := NewRabbitMQProducer(c.cfg, c.logger)
		if err != nil {
			return err
		}
		c.dlqProducer = dlq
	}

	var dlq Producer
	if c.dlqProducer != nil {
		dlq = c.dlqProducer
	}
	proc := newProcessor(c.retryCfg, dlq, c.cfg.DLQQueue, c.logger)
	proc.serviceName = c.serviceName

	deliveries, err := ch.Consume(queue, c.serviceName, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %s: %w", queue, err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"queue", queue,
		)

		for {
			select {
			case <-ctx.Done():
				c.logger.InfowCtx(consumeCtx, "Stopped consuming",
					"queue", queue,
					"reason", "context canceled",
				)
				return
			case m, ok := <-deliveries:
				if !ok {
					c.logger.WarnwCtx(consumeCtx, "RabbitMQ delivery channel closed",
						"queue", queue,
					)
					return
				}
				metrics.IncMessagesRead(c.serviceName, queue)
				metrics.ObserveMessageSize(c.serviceName, queue, "in", len(m.Body))
				c.handleDelivery(consumeCtx, queue, m, proc, handler)
			}
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, queue string, m amqp.Delivery, proc *processor, handler HandlerFunc) {
	d := Delivery{
		Topic:   queue,
		Key:     m.MessageId,
		Body:    m.Body,
		Headers: tracing.FromAMQPTable(m.Headers),
	}

	msgCtx, span := tracing.StartConsumerSpan(ctx, "rabbitmq.consume", d.Headers)
	defer span.End()

	if traceID := span.SpanContext().TraceID(); traceID.IsValid() {
		msgCtx = logging.WithTraceID(msgCtx, traceID.String())
	}
	if d.Key != "" {
		msgCtx = logging.WithMessageID(msgCtx, d.Key)
	}

	if err := proc.handle(msgCtx, d, handler); err != nil {
		if nackErr := m.Nack(false, true); nackErr != nil {
			c.logger.ErrorwCtx(msgCtx, "Failed to nack message",
				"error", nackErr,
				"queue", queue,
			)
		}
		return
	}

	if err := m.Ack(false); err != nil {
		c.logger.ErrorwCtx(msgCtx, "Failed to ack message",
			"error", err,
			"queue", queue,
		)
	}
}

func bindQueue(ch *amqp.Channel, exchange, queue string) error {
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(q.Name, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", queue, err)
	}
	return nil
}

func (c *RabbitMQConsumer) Close() error {
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	if c.dlqProducer != nil {
		if closeErr := c.dlqProducer.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	c.wg.Wait()
	return err
}
