package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	awsconfig "github.com/scttfrdmn/cargoship/pkg/aws/config"
	cargoships3 "github.com/scttfrdmn/cargoship/pkg/aws/s3"

	"github.com/objectfs/jailstore/internal/storage"
)

// objectAPI is the subset of *s3.Client the store uses.
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// BackendMetrics tracks S3 slot store performance metrics
type BackendMetrics struct {
	Requests        int64         `json:"requests"`
	Errors          int64         `json:"errors"`
	BytesUploaded   int64         `json:"bytes_uploaded"`
	BytesDownloaded int64         `json:"bytes_downloaded"`
	AverageLatency  time.Duration `json:"average_latency"`
	Accelerated     int64         `json:"accelerated"`
	Fallbacks       int64         `json:"fallbacks"`
	LastError       string        `json:"last_error"`
	LastErrorTime   time.Time     `json:"last_error_time"`
}

// Store implements storage.SlotStore on S3
type Store struct {
	client objectAPI
	config Config

	// CargoShip S3 optimization
	transporter *cargoships3.Transporter
	logger      *slog.Logger

	mu      sync.RWMutex
	metrics BackendMetrics
}

var _ storage.SlotStore = (*Store)(nil)

// New creates an S3 slot store and verifies the bucket is reachable.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	cfg.applyDefaults()

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithRetryMaxAttempts(cfg.MaxRetries),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	store := newStore(client, cfg, logger)
	if cfg.EnableAcceleration {
		store.transporter = cargoships3.NewTransporter(client, awsconfig.S3Config{
			Bucket:             cfg.Bucket,
			StorageClass:       convertStorageClassToCargoShip(cfg.StorageClass),
			MultipartThreshold: 32 * 1024 * 1024,
			MultipartChunkSize: 16 * 1024 * 1024,
			Concurrency:        cfg.Concurrency,
		})
		store.logger.Info("CargoShip S3 acceleration enabled", "concurrency", cfg.Concurrency)
	}

	if err := store.HealthCheck(ctx); err != nil {
		return nil, fmt.Errorf("S3 slot store health check failed: %w", err)
	}
	return store, nil
}

func newStore(client objectAPI, cfg Config, logger *slog.Logger) *Store {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		config: cfg,
		logger: logger.With("component", "s3-slots", "bucket", cfg.Bucket),
	}
}

// Get downloads the slot object.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		s.recordMetrics(time.Since(start), true)
		s.recordError(err)
		return nil, s.translateError(err, "GetObject", key)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		s.recordMetrics(time.Since(start), true)
		s.recordError(err)
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	s.recordMetrics(time.Since(start), false)
	s.mu.Lock()
	s.metrics.BytesDownloaded += int64(len(data))
	s.mu.Unlock()
	return data, nil
}

// Put uploads the slot object, through CargoShip when enabled.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if s.config.MaxObjectSize > 0 && int64(len(data)) > s.config.MaxObjectSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", storage.ErrQuotaExceeded, key, len(data), s.config.MaxObjectSize)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	if s.transporter != nil {
		result, uploadErr := s.transporter.Upload(ctx, cargoships3.Archive{
			Key:          s.objectKey(key),
			Reader:       bytes.NewReader(data),
			Size:         int64(len(data)),
			StorageClass: convertStorageClassToCargoShip(s.config.StorageClass),
			Metadata: map[string]string{
				"jailstore-slot": key,
				"content-type":   "application/json",
			},
		})
		if uploadErr == nil {
			s.logger.Debug("CargoShip upload completed",
				"key", key,
				"size", len(data),
				"throughput", result.Throughput,
				"duration", result.Duration)
			s.recordMetrics(time.Since(start), false)
			s.mu.Lock()
			s.metrics.Accelerated++
			s.metrics.BytesUploaded += int64(len(data))
			s.mu.Unlock()
			return nil
		}

		s.logger.Warn("CargoShip upload failed, falling back to standard S3", "key", key, "error", uploadErr)
		s.mu.Lock()
		s.metrics.Fallbacks++
		s.mu.Unlock()
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.Bucket),
		Key:           aws.String(s.objectKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
		StorageClass:  s3types.StorageClass(s.config.StorageClass),
	})
	if err != nil {
		s.recordMetrics(time.Since(start), true)
		s.recordError(err)
		return s.translateError(err, "PutObject", key)
	}

	s.recordMetrics(time.Since(start), false)
	s.mu.Lock()
	s.metrics.BytesUploaded += int64(len(data))
	s.mu.Unlock()
	return nil
}

// Delete removes the slot object. S3 deletes are idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isErrorType[*s3types.NoSuchKey](err) {
			return nil
		}
		s.recordMetrics(time.Since(start), true)
		s.recordError(err)
		return s.translateError(err, "DeleteObject", key)
	}
	s.recordMetrics(time.Since(start), false)
	return nil
}

// HealthCheck verifies the bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	})
	if err != nil {
		return fmt.Errorf("S3 health check failed: %w", err)
	}
	return nil
}

// GetMetrics returns current store metrics
func (s *Store) GetMetrics() BackendMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.metrics
}

// Close releases resources. The SDK client holds none that need closing.
func (s *Store) Close() error {
	return nil
}

func (s *Store) objectKey(key string) string {
	return s.config.Prefix + key
}

func (s *Store) recordMetrics(duration time.Duration, isError bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Requests++
	if isError {
		s.metrics.Errors++
	}

	// Rolling average latency
	if s.metrics.Requests == 1 {
		s.metrics.AverageLatency = duration
	} else {
		s.metrics.AverageLatency = time.Duration(
			(int64(s.metrics.AverageLatency)*9 + int64(duration)) / 10,
		)
	}
}

func (s *Store) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.LastError = err.Error()
	s.metrics.LastErrorTime = time.Now()
}

func (s *Store) translateError(err error, operation, key string) error {
	switch {
	case isErrorType[*s3types.NoSuchKey](err), hasAPICode(err, "NoSuchKey", "NotFound"):
		return fmt.Errorf("%w: %s", storage.ErrSlotNotFound, key)
	case isErrorType[*s3types.NoSuchBucket](err):
		return fmt.Errorf("bucket not found: %s: %w", s.config.Bucket, err)
	case hasAPICode(err, "EntityTooLarge", "QuotaExceeded", "ServiceQuotaExceededException"):
		return fmt.Errorf("%w: %s: %v", storage.ErrQuotaExceeded, key, err)
	default:
		return fmt.Errorf("%s failed for %s: %w", operation, key, err)
	}
}

// convertStorageClassToCargoShip converts a storage class name to CargoShip's type
func convertStorageClassToCargoShip(class string) awsconfig.StorageClass {
	switch class {
	case StorageClassStandardIA:
		return awsconfig.StorageClassStandardIA
	case StorageClassOneZoneIA:
		return awsconfig.StorageClassOneZoneIA
	case StorageClassIntelligent:
		return awsconfig.StorageClassIntelligentTiering
	default:
		return awsconfig.StorageClassStandard
	}
}

// isErrorType checks if an error is of a specific type
func isErrorType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func hasAPICode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
