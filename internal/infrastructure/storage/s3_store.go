// Package storage provides the S3-backed adapters behind the snapshot
// archiver and order ingestion ports.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	appsync "github.com/oms/backend/internal/application/sync"
	infraconfig "github.com/oms/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Ensure S3Store implements the archiver port
var _ appsync.SnapshotArchiver = (*S3Store)(nil)

// S3Store reads and writes the bucket shared with the upstream system.
// It is compatible with any S3-compatible storage (AWS S3, MinIO, etc.):
// the upstream drops order export files under the ingest prefix, and the
// ledger refresh archives its snapshots under the snapshot prefix.
type S3Store struct {
	client         *s3.Client
	bucket         string
	snapshotPrefix string
	ingestPrefix   string
	logger         *zap.Logger
}

// S3StoreOption is a functional option for configuring S3Store
type S3StoreOption func(*S3Store)

// WithLogger sets a custom logger for S3Store
func WithLogger(logger *zap.Logger) S3StoreOption {
	return func(s *S3Store) {
		s.logger = logger
	}
}

// NewS3Store creates a new S3Store from configuration. An empty endpoint
// targets AWS itself; self-hosted backends name theirs, with an explicit
// scheme when they serve plain HTTP.
func NewS3Store(cfg *infraconfig.StorageConfig, opts ...S3StoreOption) (*S3Store, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}

	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKeyID == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretAccessKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (not used for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	store := &S3Store{
		client:         client,
		bucket:         cfg.Bucket,
		snapshotPrefix: normalizePrefix(cfg.SnapshotPrefix, "snapshots/"),
		ingestPrefix:   normalizePrefix(cfg.IngestPrefix, "incoming/"),
		logger:         zap.NewNop(),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store, nil
}

// normalizePrefix guarantees a trailing slash so keys never glue onto the
// prefix, falling back when the configuration left it empty.
func normalizePrefix(prefix, fallback string) string {
	if prefix == "" {
		return fallback
	}
	if !strings.HasSuffix(prefix, "/") {
		return prefix + "/"
	}
	return prefix
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating storage bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Another instance may have created it between the head and the create
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	s.logger.Info("Storage bucket created successfully", zap.String("bucket", s.bucket))
	return nil
}

// Archive uploads one ledger snapshot as a JSON document keyed by the
// instant it describes. Re-archiving the same instant overwrites in place.
func (s *S3Store) Archive(ctx context.Context, snapshot *appsync.LedgerSnapshot) error {
	if snapshot == nil {
		return errors.New("snapshot is required")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := s.snapshotKey(snapshot.AsOf)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot: %w", err)
	}

	s.logger.Info("Archived ledger snapshot",
		zap.String("key", key),
		zap.Int("entries", len(snapshot.Entries)))
	return nil
}

func (s *S3Store) snapshotKey(asOf time.Time) string {
	return s.snapshotPrefix + "ledger-" + asOf.UTC().Format("20060102T150405Z") + ".json"
}

// Bucket returns the bucket name
func (s *S3Store) Bucket() string {
	return s.bucket
}
