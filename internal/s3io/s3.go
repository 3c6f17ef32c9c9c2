// Package s3io stores case photos in S3 and hands out time-limited read URLs for them.
package s3io

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Putter defines the subset of the S3 client used for uploads.
type Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Presigner defines the interface for presigning S3 requests.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store uploads case images and presigns GETs for them.
type Store struct {
	S3     Putter
	Signer Presigner
	Bucket string
	TTL    time.Duration
	Now    func() time.Time
}

// NewStore wires a Store from an S3 client.
func NewStore(c *s3.Client, bucket string, ttl time.Duration) *Store {
	return &Store{S3: c, Signer: s3.NewPresignClient(c), Bucket: bucket, TTL: ttl, Now: time.Now}
}

// Upload stores one image and returns a presigned read URL valid for the store's TTL.
func (s *Store) Upload(ctx context.Context, caseID string, n int, filename, contentType string, data []byte) (string, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	key := ImageKey(caseID, n, filename, now())
	_, err := s.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.Bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ContentType:          aws.String(contentType),
		Metadata:             map[string]string{"case_id": caseID, "filename": SanitizeName(filename)},
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	url, _, err := PresignGet(ctx, s.Signer, s.Bucket, key, s.TTL)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return url, nil
}

// PresignGet generates a presigned URL for reading an object.
func PresignGet(ctx context.Context, p Presigner, bucket, key string, ttl time.Duration) (string, time.Duration, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	req, err := p.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) { o.Expires = ttl })
	if err != nil {
		return "", 0, err
	}
	return req.URL, ttl, nil
}
