package event

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
)

// 通知用の注文イベント。ナビのポーリングの代わりに購読できる
type OrderEvent struct {
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	UserID     int64     `json:"user_id"`
	Status     string    `json:"status"`
	PrevStatus string    `json:"prev_status,omitempty"`
	Total      int64     `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}

// kafka.Writerのうち使う部分（テストで差し替える）
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// リクエスト外で送るときの上限（リトライ込み）
const dispatchTimeout = 15 * time.Second

type OrderKafkaPublisher struct {
	writer Writer
	log    zerolog.Logger

	// 送信中のイベント（Closeで待つ）
	inflight sync.WaitGroup
}

func NewOrderKafkaPublisher(w Writer, log zerolog.Logger) *OrderKafkaPublisher {
	return &OrderKafkaPublisher{writer: w, log: log}
}

// 同じユーザーのイベントは同じパーティションに入る（順序を保つ）
func NewOrderWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}
}

func (p *OrderKafkaPublisher) Publish(ctx context.Context, ev OrderEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.UserID, 10)),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	})
}

// 呼び出し元を待たせずに送る。失敗はログだけ
func (p *OrderKafkaPublisher) dispatch(ctx context.Context, ev OrderEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
		defer cancel()

		if err := p.Publish(sendCtx, ev); err != nil {
			p.log.Warn().Err(err).
				Str("type", ev.Type).
				Int64("order_id", ev.OrderID).
				Msg("order event not published")
		}
	}()
}

// 送信中のイベントを待ってから閉じる
func (p *OrderKafkaPublisher) Close() error {
	p.inflight.Wait()
	return p.writer.Close()
}
