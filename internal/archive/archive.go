// Package archive copies raw uploads to S3-compatible object storage when a
// bucket is configured. Like the audit trail, writes are best-effort.
package archive

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"docverify/internal/logger"
)

type Config struct {
	// "http://127.0.0.1:9000"
	Endpoint string
	// "us-east-1"
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// Store writes objects to a single bucket.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
}

// S3Store implements Store on an S3-compatible endpoint (minio, AWS).
type S3Store struct {
	client *s3.Client
	bucket string
	log    zerolog.Logger
}

// Connect builds the S3 client for the configured endpoint.
func Connect(config Config) *S3Store {
	client := s3.NewFromConfig(aws.Config{Region: config.Region}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(config.Endpoint)
		o.Credentials = credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, "")
		o.UsePathStyle = true
	})
	return &S3Store{
		client: client,
		bucket: config.Bucket,
		log:    logger.WithComponent("archive"),
	}
}

func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return err
	}
	s.log.Debug().Str("key", key).Int("size", len(data)).Msg("upload archived")
	return nil
}

// NopStore is the disabled archive used when no bucket is configured.
type NopStore struct{}

func (NopStore) Put(context.Context, string, string, []byte) error { return nil }
