// Package recorder stores completed assessments in a NATS KV bucket and
// announces them on a subject.
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/rolefit/assessment"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// DefaultBucket holds one entry per completed session.
	DefaultBucket = "ROLEFIT_RESULTS"

	// DefaultSubject prefixes the completion announcement subject.
	DefaultSubject = "rolefit.assessment.completed"
)

// ErrNotFound is returned when no result is stored for a session.
var ErrNotFound = errors.New("result not found")

// keyValue is the part of jetstream.KeyValue the recorder uses.
type keyValue interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
}

// publisher is the part of *nats.Conn the recorder uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Recorder persists assessment results.
type Recorder struct {
	kv      keyValue
	pub     publisher
	subject string
	logger  *slog.Logger
	conn    *nats.Conn
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithSubject sets the announcement subject prefix.
func WithSubject(subject string) Option {
	return func(r *Recorder) {
		if subject != "" {
			r.subject = subject
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

func newRecorder(kv keyValue, pub publisher, opts ...Option) *Recorder {
	r := &Recorder{
		kv:      kv,
		pub:     pub,
		subject: DefaultSubject,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "recorder")
	return r
}

// Connect dials the NATS server at url and opens the results bucket,
// creating it if needed.
func Connect(ctx context.Context, url string, opts ...Option) (*Recorder, error) {
	nc, err := nats.Connect(url,
		nats.Name("rolefit"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	kv, err := getOrCreateBucket(ctx, js, DefaultBucket)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open results bucket: %w", err)
	}

	r := newRecorder(kv, nc, opts...)
	r.conn = nc
	r.logger.Info("Connected to NATS", "url", nc.ConnectedUrl(), "bucket", DefaultBucket)
	return r, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, err
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Completed RoleFit assessments",
		History:     1,
	})
}

// Close drains the connection opened by Connect.
func (r *Recorder) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Drain()
}

// Record stores result under its session id and announces it on
// "<subject>.<session id>".
func (r *Recorder) Record(ctx context.Context, result *assessment.Result) error {
	if result == nil || result.SessionID == "" {
		return errors.New("result must carry a session id")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	if _, err := r.kv.Put(ctx, result.SessionID, data); err != nil {
		return fmt.Errorf("store result: %w", err)
	}

	subject := r.subject + "." + result.SessionID
	if err := r.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}

	r.logger.Info("Assessment recorded",
		"session_id", result.SessionID,
		"questions", len(result.Questions),
		"subject", subject)
	return nil
}

// Get returns the stored result for a session.
func (r *Recorder) Get(ctx context.Context, sessionID string) (*assessment.Result, error) {
	entry, err := r.kv.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}

	var result assessment.Result
	if err := json.Unmarshal(entry.Value(), &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}

// Hook adapts Record to a session completion hook. Failures are logged;
// the session is complete either way.
func (r *Recorder) Hook() func(context.Context, *assessment.Result) {
	return func(ctx context.Context, result *assessment.Result) {
		if err := r.Record(ctx, result); err != nil {
			r.logger.Error("Failed to record assessment", "session_id", result.SessionID, "error", err)
		}
	}
}
