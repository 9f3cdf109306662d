package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	defaultS3Region   = "us-east-1"
	s3MaxRetries      = 2
	s3InitialInterval = 200 * time.Millisecond
	s3MaxInterval     = 2 * time.Second
)

// S3Config configures an S3-compatible artifact bucket.
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// S3Store reads artifacts from an S3 bucket under an optional key prefix.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zerolog.Logger
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates an S3-backed store.
func NewS3Store(cfg S3Config, logger *zerolog.Logger) *S3Store {
	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	return &S3Store{
		client: newS3Client(cfg),
		bucket: cfg.Bucket,
		prefix: prefix,
		logger: logger,
	}
}

// Backend returns "s3".
func (s *S3Store) Backend() string {
	return BackendS3
}

func (s *S3Store) key(p string) string {
	return s.prefix + strings.TrimLeft(p, "/")
}

// Get downloads the object at p, retrying transport failures.
func (s *S3Store) Get(ctx context.Context, p string) ([]byte, error) {
	if strings.TrimSpace(p) == "" {
		return nil, errEmptyPath
	}

	key := s.key(p)

	var data []byte

	op := func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if isS3NotFound(err) {
				return backoff.Permanent(fmt.Errorf("%s: %w", p, ErrArtifactNotFound))
			}

			s.logger.Debug().Err(err).Str("key", key).Msg("s3 get failed, retrying")

			return fmt.Errorf("getting object %q: %w", key, err)
		}

		defer func() { _ = out.Body.Close() }()

		body, err := io.ReadAll(out.Body)
		if err != nil {
			return fmt.Errorf("reading object %q: %w", key, err)
		}

		data = body

		return nil
	}

	if err := backoff.Retry(op, s.backOff(ctx)); err != nil {
		return nil, err
	}

	return data, nil
}

// Exists issues a HEAD request for p.
func (s *S3Store) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}

		return false, fmt.Errorf("head object %q: %w", s.key(p), err)
	}

	return true, nil
}

// Check verifies the bucket is reachable.
func (s *S3Store) Check(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("head bucket %q: %w", s.bucket, err)
	}

	return nil
}

func (s *S3Store) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s3InitialInterval
	exp.MaxInterval = s3MaxInterval
	exp.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(exp, s3MaxRetries), ctx)
}

func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "StatusCode: 404")
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = defaultS3Region
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}
