// Package objectstore moves migration archives in and out of S3.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/juju/clock"
	jujuerrors "github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/retry"

	domain "github.com/mohammadpnp/hana-migration/internal/domain/migration"
)

var logger = loggo.GetLogger("hanamigration.objectstore")

const (
	defaultAttempts = 3
	defaultDelay    = 500 * time.Millisecond
	defaultMaxDelay = 5 * time.Second
	defaultTimeout  = 60 * time.Second
)

// API is the subset of the S3 client used by Store.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint points the client at an S3-compatible service and switches
	// to path-style addressing.
	Endpoint string

	Attempts   int
	RetryDelay time.Duration
	MaxDelay   time.Duration
	Timeout    time.Duration
	Clock      clock.Clock
}

func (c *Config) applyDefaults() {
	if c.Attempts <= 0 {
		c.Attempts = defaultAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
}

type Store struct {
	api API
	cfg Config
}

// New builds an S3 client from the static credentials in cfg, falling back
// to the default AWS credential chain when none are set.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, jujuerrors.Annotate(err, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, cfg), nil
}

func NewWithAPI(api API, cfg Config) *Store {
	cfg.applyDefaults()
	return &Store{api: api, cfg: cfg}
}

// Download streams the object into dst. A failure after bytes have reached
// dst is not retried.
func (s *Store) Download(ctx context.Context, loc domain.ObjectLocation, dst io.Writer) error {
	cw := &countingWriter{w: dst}
	return s.call(ctx, "download "+loc.String(), func(ctx context.Context) error {
		out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(loc.Bucket),
			Key:    aws.String(loc.Key),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()

		if _, err := io.Copy(cw, out.Body); err != nil {
			if cw.n > 0 {
				return permanent{err: fmt.Errorf("partial download after %d bytes: %w", cw.n, err)}
			}
			return err
		}
		return nil
	})
}

func (s *Store) Upload(ctx context.Context, loc domain.ObjectLocation, body []byte) error {
	return s.call(ctx, "upload "+loc.String(), func(ctx context.Context) error {
		_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(loc.Bucket),
			Key:           aws.String(loc.Key),
			Body:          bytes.NewReader(body),
			ContentLength: aws.Int64(int64(len(body))),
			ContentType:   aws.String("application/zip"),
		})
		return err
	})
}

// PutMarker writes an empty object at loc, used as a folder marker.
func (s *Store) PutMarker(ctx context.Context, loc domain.ObjectLocation) error {
	return s.call(ctx, "put marker "+loc.String(), func(ctx context.Context) error {
		_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(loc.Bucket),
			Key:           aws.String(loc.Key),
			Body:          strings.NewReader(""),
			ContentLength: aws.Int64(0),
		})
		return err
	})
}

func (s *Store) call(ctx context.Context, op string, fn func(context.Context) error) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			opCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
			return fn(opCtx)
		},
		IsFatalError: func(err error) bool {
			return ctx.Err() != nil || isFatal(err)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Warningf("%s: attempt %d failed: %v", op, attempt, err)
		},
		Attempts:    s.cfg.Attempts,
		Delay:       s.cfg.RetryDelay,
		MaxDelay:    s.cfg.MaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       s.cfg.Clock,
		Stop:        ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		if last := retry.LastError(err); last != nil {
			err = last
		}
	}
	return classify(op, err)
}

type permanent struct {
	err error
}

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

func isFatal(err error) bool {
	var p permanent
	if errors.As(err, &p) {
		return true
	}
	if isNotFound(err) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidBucketName":
			return true
		}
	}
	return errors.Is(err, context.Canceled)
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}

func classify(op string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%w: %s: %v", domain.ErrObjectNotFound, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrObjectStore, op, err)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
