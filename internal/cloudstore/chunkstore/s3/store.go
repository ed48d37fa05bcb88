// Package s3 implements the optional, asynchronous off-box chunk mirror
// (spec SPEC_FULL §4.F). The local filesystem store remains authoritative;
// this mirror's writes are fire-and-forget and its failures are logged,
// never surfaced to the client.
package s3

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/photosync/backend/internal/logger"
)

// Config describes how to reach the mirror bucket.
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool

	// QueueSize bounds the number of chunk mirror jobs buffered before Enqueue
	// starts dropping (logging a warning) rather than blocking the request
	// path.
	QueueSize int
}

// Mirror asynchronously copies chunks already committed to local disk into
// an S3-compatible bucket. It is not a chunkstore.Store: it never gates
// admission and never serves reads back to clients.
type Mirror struct {
	client *s3.Client
	bucket string
	jobs   chan mirrorJob
}

type mirrorJob struct {
	tenantKey string
	chunkID   string
	data      []byte
}

// NewClient builds an S3 client from cfg, following the teacher's
// static-credentials + optional custom endpoint construction.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return client, nil
}

// NewMirror starts a bounded background worker that drains the mirror
// queue. Call Stop to drain in-flight jobs on shutdown.
func NewMirror(client *s3.Client, bucket string, queueSize int) *Mirror {
	if queueSize <= 0 {
		queueSize = 256
	}
	m := &Mirror{client: client, bucket: bucket, jobs: make(chan mirrorJob, queueSize)}
	go m.run()
	return m
}

func (m *Mirror) run() {
	for job := range m.jobs {
		key := job.tenantKey + "/" + job.chunkID
		_, err := m.client.PutObject(context.Background(), &s3.PutObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(job.data),
		})
		if err != nil {
			logger.Warn("cloud chunk mirror write failed", logger.Key(key), logger.Err(err))
		}
	}
}

// Enqueue schedules an async copy of a chunk already written to local disk.
// It never blocks the caller beyond a full queue, in which case the job is
// dropped and logged.
func (m *Mirror) Enqueue(tenantKey, chunkID string, data []byte) {
	select {
	case m.jobs <- mirrorJob{tenantKey: tenantKey, chunkID: chunkID, data: data}:
	default:
		logger.Warn("cloud chunk mirror queue full, dropping job", logger.Key(tenantKey+"/"+chunkID))
	}
}

// Stop closes the job queue, allowing the background worker to drain and
// exit once every already-enqueued job has been attempted.
func (m *Mirror) Stop() {
	close(m.jobs)
}
