//go:build integration

package kafka_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"regionsync/internal/platform/kafka/admin"
	"regionsync/internal/platform/kafka/consumer"
	"regionsync/internal/platform/kafka/producer"
	"regionsync/internal/sync/models"
	kafkatransport "regionsync/internal/sync/transport/kafka"
	"regionsync/pkg/domain"
	"regionsync/pkg/testutil/containers"
)

type recordingPool struct {
	mu  sync.Mutex
	got []models.Message
}

func (p *recordingPool) ProcessBatch(_ context.Context, msgs []models.Message) ([]models.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, msgs...)
	return make([]models.Result, len(msgs)), nil
}

func (p *recordingPool) messages() []models.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Message(nil), p.got...)
}

type recordingSink struct {
	mu  sync.Mutex
	got []models.DeadLetter
}

func (s *recordingSink) DeadLetter(_ context.Context, dl models.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, dl)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

type KafkaRoundTripSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
	logger   *slog.Logger
}

func TestKafkaRoundTripSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaRoundTripSuite))
}

func (s *KafkaRoundTripSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := producer.New(producer.Config{Brokers: s.kafka.Brokers, ClientID: "regionsync-test"})
	s.Require().NoError(err)
	s.producer = p
}

func (s *KafkaRoundTripSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

// start provisions fresh topics and runs a consumer until the test ends.
func (s *KafkaRoundTripSuite) start(pool *recordingPool, sink *recordingSink) *kafkatransport.Transport {
	topic := "sync-" + uuid.NewString()[:8]
	transport := kafkatransport.NewTransport(s.producer, topic)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	s.Require().NoError(admin.EnsureTopics(ctx, s.producer.Client(), 3, 1, transport.Topics()...))

	c, err := consumer.New(consumer.Config{
		Brokers: s.kafka.Brokers,
		Group:   "group-" + topic,
		Topics:  transport.Topics(),
	}, s.logger)
	s.Require().NoError(err)

	handler := kafkatransport.NewHandler(pool, transport, sink,
		kafkatransport.WithHandlerLogger(s.logger),
		kafkatransport.WithMaxInlineWait(100*time.Millisecond),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx, handler)
	}()
	s.T().Cleanup(func() {
		cancel()
		<-done
		c.Close()
	})
	return transport
}

func (s *KafkaRoundTripSuite) TestSendIsConsumedAndProcessed() {
	pool, sink := &recordingPool{}, &recordingSink{}
	transport := s.start(pool, sink)

	msg := models.Message{
		SyncEventID:  domain.NewSyncEventID(),
		EntityType:   "Candidate",
		EntityID:     domain.EntityID(uuid.NewString()),
		SourceRegion: "eu-1",
	}
	s.Require().NoError(transport.Send(context.Background(), msg))

	s.Eventually(func() bool { return len(pool.messages()) == 1 }, 20*time.Second, 50*time.Millisecond)
	got := pool.messages()[0]
	s.Equal(msg.SyncEventID, got.SyncEventID)
	s.Equal(msg.EntityID, got.EntityID)
	s.Zero(sink.count())
}

func (s *KafkaRoundTripSuite) TestRequeuedMessageArrivesFromRetryTopic() {
	pool, sink := &recordingPool{}, &recordingSink{}
	transport := s.start(pool, sink)

	msg := models.Message{
		SyncEventID:  domain.NewSyncEventID(),
		EntityType:   "JobApplication",
		EntityID:     domain.EntityID(uuid.NewString()),
		SourceRegion: "eu-1",
		NotBefore:    time.Now().Add(50 * time.Millisecond),
	}
	s.Require().NoError(transport.Requeue(context.Background(), msg, 50*time.Millisecond))

	s.Eventually(func() bool { return len(pool.messages()) == 1 }, 20*time.Second, 50*time.Millisecond)
	s.Equal(msg.EntityID, pool.messages()[0].EntityID)
}

func (s *KafkaRoundTripSuite) TestUndecodableRecordIsDeadLettered() {
	pool, sink := &recordingPool{}, &recordingSink{}
	transport := s.start(pool, sink)

	ctx := context.Background()
	s.Require().NoError(s.producer.Publish(ctx, transport.Topics()[0], []byte("k"), []byte("{not json"), nil))
	good := models.Message{
		SyncEventID:  domain.NewSyncEventID(),
		EntityType:   "Candidate",
		EntityID:     domain.EntityID(uuid.NewString()),
		SourceRegion: "eu-1",
	}
	s.Require().NoError(transport.Send(ctx, good))

	s.Eventually(func() bool { return sink.count() == 1 && len(pool.messages()) == 1 },
		20*time.Second, 50*time.Millisecond)
}
