package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultPresignExpiry = time.Hour
	DefaultURLCacheSize  = 4096
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}
)

// S3Config describes the bucket and how to reach it. Empty credentials fall
// back to the default AWS credential chain.
type S3Config struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	UsePathStyle bool
	// PresignExpiry bounds the lifetime of URLs returned by URL.
	PresignExpiry time.Duration
	URLCacheSize  int
}

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store keeps payslip PDFs in an S3 (or S3-compatible) bucket.
type S3Store struct {
	client    s3API
	presigner presignAPI
	bucket    string
	expiry    time.Duration
	urls      *expirable.LRU[string, string]
}

// NewS3Store builds the SDK clients from cfg.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Store(client, newS3PresignClient(client), cfg), nil
}

func newS3Store(client s3API, presigner presignAPI, cfg S3Config) *S3Store {
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	size := cfg.URLCacheSize
	if size <= 0 {
		size = DefaultURLCacheSize
	}
	return &S3Store{
		client:    client,
		presigner: presigner,
		bucket:    cfg.Bucket,
		expiry:    expiry,
		// cached URLs are handed out with at least half their lifetime left
		urls: expirable.NewLRU[string, string](size, nil, expiry/2),
	}
}

func (s *S3Store) Put(ctx context.Context, obj Object) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(obj.Key),
		Body:                 bytes.NewReader(obj.Body),
		ContentLength:        aws.Int64(int64(len(obj.Body))),
		ContentType:          aws.String(obj.ContentType),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
		Metadata:             obj.Metadata,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", obj.Key, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	s.urls.Remove(key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// URL returns a presigned GET URL, reusing a cached one while it is fresh.
func (s *S3Store) URL(ctx context.Context, key string) (string, error) {
	if u, ok := s.urls.Get(key); ok {
		return u, nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}

	s.urls.Add(key, req.URL)
	return req.URL, nil
}

func (s *S3Store) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
