// Package publish implements the Kafka-backed ChurnPublisher: the mirror
// image of the teacher's Kafka consumers (internal/kafka), here a
// producer that ships route-churn records to a topic instead of
// consuming BMP records from one.
package publish

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"go.uber.org/zap"

	"github.com/xorproute/xorpcore/internal/metrics"
	"github.com/xorproute/xorpcore/internal/rip/routedb"
)

// ChurnPublisher implements routedb.ChurnSink by producing one JSON
// record per event to a fixed topic, keyed by Net so all churn for one
// prefix lands on the same partition and is ordered.
type ChurnPublisher struct {
	client *kgo.Client
	topic  string
	log    *zap.Logger
}

func NewChurnPublisher(brokers []string, topic, clientID string, tlsCfg *tls.Config, saslMech sasl.Mechanism, log *zap.Logger) (*ChurnPublisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	if saslMech != nil {
		opts = append(opts, kgo.SASL(saslMech))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("publish: new client: %w", err)
	}
	return &ChurnPublisher{client: client, topic: topic, log: log.Named("publish")}, nil
}

// Publish produces ev asynchronously; churn from a down broker must never
// block the RouteDB (spec §6 "FIB client" is fire-and-forget), so send
// failures are logged and counted rather than returned.
func (p *ChurnPublisher) Publish(ev routedb.ChurnEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("publish: marshal event: %w", err)
	}
	start := time.Now()
	rec := &kgo.Record{Topic: p.topic, Key: []byte(ev.Net), Value: body}
	p.client.Produce(context.Background(), rec, func(_ *kgo.Record, err error) {
		metrics.ChurnPublishDuration.WithLabelValues("kafka").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ChurnPublishErrorsTotal.WithLabelValues("kafka").Inc()
			p.log.Warn("produce failed", zap.String("net", ev.Net), zap.Error(err))
		}
	})
	return nil
}

// Close flushes outstanding records and releases the client's connections.
func (p *ChurnPublisher) Close() {
	_ = p.client.Flush(context.Background())
	p.client.Close()
}
