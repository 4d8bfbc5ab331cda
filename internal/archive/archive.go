// Package archive periodically snapshots the progress ledger to
// S3-compatible storage. Ledger rows are never deleted in normal operation;
// the encrypted archive is the recovery story if the host is lost.
package archive

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds archive manager configuration.
type Config struct {
	S3         S3Config
	DBPath     string
	Passphrase string
	Interval   time.Duration
}

// Status holds the archive manager's last-run state.
type Status struct {
	Enabled     bool       `json:"enabled"`
	LastArchive *time.Time `json:"last_archive,omitempty"`
	LastKey     string     `json:"last_key,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Manager uploads encrypted ledger snapshots on a fixed interval.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	db     *sql.DB
	client s3Client
	status Status
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates an archive manager. It is disabled (Start is a no-op)
// unless bucket, credentials, and passphrase are all configured.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	m := &Manager{cfg: cfg, db: db, logger: logger}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.Enabled = true
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether the manager has a usable configuration.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Enabled
}

// Status returns a copy of the current status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Start begins the periodic snapshot loop.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	interval := m.cfg.Interval
	m.mu.Unlock()

	if interval <= 0 {
		interval = 24 * time.Hour
	}

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.ArchiveNow(ctx); err != nil {
					m.logger.Error("archive failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the snapshot loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// ArchiveNow takes one snapshot: VACUUM INTO a temp copy, seal it with the
// passphrase, and upload. The upload is retried with backoff; nobody waits
// on the archive loop.
func (m *Manager) ArchiveNow(ctx context.Context) error {
	if !m.Enabled() {
		return fmt.Errorf("archive not configured")
	}

	tmpDir, err := os.MkdirTemp("", "lexibloom-archive-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshotPath := filepath.Join(tmpDir, "ledger.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshotPath); err != nil {
		return m.fail(fmt.Errorf("vacuum into snapshot: %w", err))
	}

	plaintext, err := os.ReadFile(snapshotPath)
	if err != nil {
		return m.fail(fmt.Errorf("read snapshot: %w", err))
	}

	sealed, err := Seal(plaintext, m.cfg.Passphrase)
	if err != nil {
		return m.fail(fmt.Errorf("seal snapshot: %w", err))
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("ledger/%s-%s.db.enc", now.Format("2006-01-02T15-04-05"), uuid.NewString()[:8])

	backoff := retry.WithMaxRetries(4, retry.NewFibonacci(1*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, putErr := m.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(sealed),
		})
		if putErr != nil {
			return retry.RetryableError(putErr)
		}
		return nil
	})
	if err != nil {
		return m.fail(fmt.Errorf("upload snapshot: %w", err))
	}

	m.mu.Lock()
	m.status.LastArchive = &now
	m.status.LastKey = key
	m.status.Error = ""
	m.mu.Unlock()

	m.logger.Info("ledger archived", "key", key, "bytes", len(sealed))
	return nil
}

// Fetch downloads and opens a previously uploaded snapshot, for operator
// restores.
func (m *Manager) Fetch(ctx context.Context, key string) ([]byte, error) {
	if !m.Enabled() {
		return nil, fmt.Errorf("archive not configured")
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("read snapshot body: %w", err)
	}
	return Open(buf.Bytes(), m.cfg.Passphrase)
}

func (m *Manager) fail(err error) error {
	m.mu.Lock()
	m.status.Error = err.Error()
	m.mu.Unlock()
	return err
}
