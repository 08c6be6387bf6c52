package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cscportal/portal-backend/pkg/config"
)

// S3Options configures an S3 or S3-compatible (Supabase, MinIO, R2) bucket.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
	// ServerSideEncryption is "", "AES256" or "aws:kms".
	ServerSideEncryption string
}

// S3Store stores documents in a bucket and presigns GET requests.
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	prefix    string
	sse       s3types.ServerSideEncryption
}

// NewS3Store loads AWS configuration and builds the client.
// Static credentials are used when an access key is supplied; otherwise the
// default credential chain applies.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	var sse s3types.ServerSideEncryption
	switch strings.TrimSpace(opts.ServerSideEncryption) {
	case "":
	case string(s3types.ServerSideEncryptionAes256):
		sse = s3types.ServerSideEncryptionAes256
	case string(s3types.ServerSideEncryptionAwsKms):
		sse = s3types.ServerSideEncryptionAwsKms
	default:
		return nil, fmt.Errorf("unsupported server side encryption %q", opts.ServerSideEncryption)
	}

	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    opts.Bucket,
		prefix:    strings.Trim(strings.TrimSpace(opts.Prefix), "/"),
		sse:       sse,
	}, nil
}

// Put uploads body under key. Non-seekable bodies are buffered so the
// request can be signed over plain HTTP endpoints.
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}

	seekable, ok := body.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("read upload body: %w", err)
		}
		seekable = bytes.NewReader(data)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectKey := applyPrefix(s.prefix, key)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        seekable,
		ContentType: aws.String(contentType),
	}
	if s.sse != "" {
		input.ServerSideEncryption = s.sse
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("%w: s3 put object bucket=%s key=%s: %v", ErrStorageUnavailable, s.bucket, objectKey, err)
	}
	return nil
}

// SignedURL presigns a GET for key valid for ttl.
func (s *S3Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(applyPrefix(s.prefix, key)),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("%w: presign get object: %v", ErrStorageUnavailable, err)
	}
	return req.URL, nil
}

func (s *S3Store) Driver() string { return config.StorageDriverS3 }

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}
