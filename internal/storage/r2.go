package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
)

// R2Config points the S3 client at a Cloudflare R2 bucket.
type R2Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string
}

// R2 uploads through the S3-compatible API of Cloudflare R2.
type R2 struct {
	uploader  s3manageriface.UploaderAPI
	client    s3iface.S3API
	bucket    string
	publicURL string
}

// NewR2 creates an R2 storage; objects are served from PublicURL (custom domain or r2.dev).
func NewR2(cfg R2Config) (*R2, error) {
	if strings.TrimSpace(cfg.Bucket) == "" || strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("r2 endpoint and bucket are required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		Endpoint:         aws.String(cfg.Endpoint),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create r2 session: %w", err)
	}

	client := s3.New(sess)
	return &R2{
		uploader:  s3manager.NewUploaderWithClient(client),
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

func (r *R2) Upload(ctx context.Context, object *Object) (*UploadResult, error) {
	if err := validateObject(object); err != nil {
		return nil, err
	}
	_, err := r.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(object.Key),
		Body:        bytes.NewReader(object.Data),
		ContentType: aws.String(object.ContentType),
	})
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w, bucket %s, key %s", err, r.bucket, object.Key)
	}
	return &UploadResult{URL: r.publicURL + "/" + object.Key, Key: object.Key}, nil
}

func (r *R2) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	_, err := r.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
