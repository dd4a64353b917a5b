// Package s3 implements a diskstore.Store backed by an S3-compatible object
// store, with exponential-backoff retry for transient errors.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/blockmgr/blockmanager/internal/logger"
	"github.com/blockmgr/blockmanager/pkg/diskstore"
)

// retryConfig holds retry settings for S3 operations.
type retryConfig struct {
	maxRetries        uint
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxRetries:        3,
		initialBackoff:    100 * time.Millisecond,
		maxBackoff:        2 * time.Second,
		backoffMultiplier: 2.0,
	}
}

// Config configures an S3-backed Store.
type Config struct {
	Bucket string
	Prefix string // optional key prefix applied to every operation
	Retry  *retryConfig
}

// Store is a diskstore.Store backed by an S3 bucket.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
	retry  retryConfig
}

// New returns a Store writing into cfg.Bucket via client.
func New(client *s3.Client, cfg Config) *Store {
	retry := defaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, retry: retry}
}

func (s *Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *Store) calculateBackoff(attempt int) time.Duration {
	backoff := float64(s.retry.initialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= s.retry.backoffMultiplier
	}
	if backoff > float64(s.retry.maxBackoff) {
		backoff = float64(s.retry.maxBackoff)
	}
	return time.Duration(backoff)
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "Throttling", "ThrottlingException", "RequestThrottled", "SlowDown",
			"ProvisionedThroughputExceededException":
			return true
		case "InternalError", "ServiceUnavailable", "ServiceException", "InternalServiceException":
			return true
		case "NoSuchKey", "NotFound", "AccessDenied", "Forbidden", "InvalidRange", "InvalidRequest":
			return false
		}
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "500")
}

func isNotFoundError(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound" || code == "404"
	}
	return false
}

// withRetry runs op, retrying transient failures with exponential backoff.
func (s *Store) withRetry(ctx context.Context, opName, key string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= int(s.retry.maxRetries); attempt++ {
		if attempt > 0 {
			backoff := s.calculateBackoff(attempt - 1)
			logger.Debug(fmt.Sprintf("%s: retrying after backoff", opName),
				logger.DurationMs(float64(backoff.Milliseconds())), "attempt", attempt, "key", key)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if isNotFoundError(lastErr) {
			return diskstore.ErrBlockNotFound
		}
		if !isRetryableError(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("s3 diskstore: %s failed after %d attempts: %w", opName, s.retry.maxRetries+1, lastErr)
}

// Put writes data under key, replacing any existing value.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	return s.withRetry(ctx, "Put", key, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
			Body:   bytes.NewReader(data),
		})
		return err
	})
}

// Get reads the complete value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.withRetry(ctx, "Get", key, func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		out, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetRange reads a byte range of the value stored under key.
func (s *Store) GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	var out []byte
	err := s.withRetry(ctx, "GetRange", key, func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
			Range:  aws.String(rangeHeader),
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		out, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.withRetry(ctx, "Remove", key, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
		})
		return err
	})
	if errors.Is(err, diskstore.ErrBlockNotFound) {
		return nil
	}
	return err
}

// Contains reports whether key is present.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	err := s.withRetry(ctx, "HeadObject", key, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
		})
		return err
	})
	if errors.Is(err, diskstore.ErrBlockNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Size returns the byte length of the value stored under key.
func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	var size int64
	err := s.withRetry(ctx, "HeadObject", key, func() error {
		resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.objectKey(key)),
		})
		if err != nil {
			return err
		}
		if resp.ContentLength != nil {
			size = *resp.ContentLength
		}
		return nil
	})
	return size, err
}

// Close is a no-op: the S3 client owns no per-store resources.
func (s *Store) Close() error { return nil }

var _ diskstore.Store = (*Store)(nil)
