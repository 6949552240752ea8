/*
Package consumer feeds internal wallet events into the engine.

Order settlement, refund issuance, and reward granting publish events to
a queue instead of calling the internal HTTP endpoints; the consumer
translates each event into the corresponding engine operation.

DELIVERY SEMANTICS:
  The event id doubles as the idempotency key, so a redelivered event is
  recognized and acked without a second mutation. Client-class failures
  (insufficient balance, bad payload) are acked and logged - requeueing
  them would loop forever. Retryable and store failures are nacked for
  redelivery.
*/
package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/wallet-engine/config"
	"github.com/warp/wallet-engine/wallet"
)

// Event kinds published by the surrounding application.
const (
	KindGameReward    = "game_reward"
	KindOrderPurchase = "order_purchase"
	KindOrderRefund   = "order_refund"
	KindPointsEarned  = "points_earned"
)

// Event is the wire format of one wallet event.
type Event struct {
	EventID     string          `json:"event_id"`
	UserID      string          `json:"user_id"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Points      int64           `json:"points,omitempty"`
	OrderID     string          `json:"order_id,omitempty"`
	Description string          `json:"description,omitempty"`
}

// Ledger is the subset of the wallet engine the consumer needs.
type Ledger interface {
	Credit(ctx context.Context, userID wallet.UserID, amount decimal.Decimal, txType wallet.TransactionType, d wallet.TxDetail) (decimal.Decimal, error)
	Purchase(ctx context.Context, userID wallet.UserID, amount decimal.Decimal, d wallet.TxDetail) (decimal.Decimal, error)
	AwardPoints(ctx context.Context, userID wallet.UserID, points int64, d wallet.TxDetail) (int64, error)
}

type Consumer struct {
	cfg    config.AMQPConfig
	ledger Ledger
	log    *logrus.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
}

func New(cfg config.AMQPConfig, ledger Ledger, log *logrus.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	log.WithField("queue", cfg.Queue).Info("connected to AMQP")
	return &Consumer{cfg: cfg, ledger: ledger, log: log, conn: conn, channel: ch}, nil
}

// Start consumes events until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.cfg.Queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg amqp.Delivery) {
	var ev Event
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		c.log.WithError(err).WithField("body", string(msg.Body)).Error("malformed wallet event")
		_ = msg.Nack(false, false)
		return
	}

	err := c.Dispatch(ctx, ev)
	switch {
	case err == nil:
		_ = msg.Ack(false)
	case wallet.IsClientError(err) || wallet.IsNotFound(err):
		// Redelivery cannot fix these; drop the event and keep the log.
		c.log.WithError(err).WithFields(logrus.Fields{
			"event": ev.EventID,
			"kind":  ev.Kind,
			"user":  ev.UserID,
		}).Warn("wallet event rejected")
		_ = msg.Ack(false)
	default:
		c.log.WithError(err).WithField("event", ev.EventID).Error("wallet event failed, requeueing")
		_ = msg.Nack(false, true)
	}
}

// Dispatch applies one event to the ledger. A duplicate event id is
// treated as success: the first delivery already mutated the wallet.
func (c *Consumer) Dispatch(ctx context.Context, ev Event) error {
	if ev.UserID == "" {
		return fmt.Errorf("event %s has no user id: %w", ev.EventID, wallet.ErrInvalidType)
	}

	detail := wallet.TxDetail{
		Description:    ev.Description,
		RelatedOrderID: ev.OrderID,
		IdempotencyKey: ev.EventID,
	}

	var err error
	switch ev.Kind {
	case KindGameReward:
		_, err = c.ledger.Credit(ctx, wallet.UserID(ev.UserID), ev.Amount, wallet.TxGameReward, detail)
	case KindOrderRefund:
		_, err = c.ledger.Credit(ctx, wallet.UserID(ev.UserID), ev.Amount, wallet.TxRefund, detail)
	case KindOrderPurchase:
		_, err = c.ledger.Purchase(ctx, wallet.UserID(ev.UserID), ev.Amount, detail)
	case KindPointsEarned:
		_, err = c.ledger.AwardPoints(ctx, wallet.UserID(ev.UserID), ev.Points, detail)
	default:
		return fmt.Errorf("unknown event kind %q: %w", ev.Kind, wallet.ErrInvalidType)
	}

	if err != nil && wallet.IsDuplicate(err) {
		c.log.WithField("event", ev.EventID).Debug("duplicate event, already applied")
		return nil
	}
	return err
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.log.Info("consumer closed")
}
