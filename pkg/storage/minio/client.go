// Package minio stores objects in any S3-compatible endpoint.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/coownly/esign-backend/pkg/config"
	"github.com/coownly/esign-backend/pkg/logger"
	storagepkg "github.com/coownly/esign-backend/pkg/storage"
)

const (
	pingTimeout  = 5 * time.Second
	codeNoSuchKey = "NoSuchKey"
)

type Client struct {
	client *minio.Client
	bucket string
}

// NewClient connects to the endpoint and creates the bucket when missing.
func NewClient(ctx context.Context, cfg config.StorageConfig, logg *logger.Logger) (*Client, error) {
	client, err := newUnchecked(cfg)
	if err != nil {
		return nil, err
	}
	if err := client.ensureBucket(ctx, cfg.MinioRegion); err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"endpoint": cfg.MinioEndpoint,
			"bucket":   cfg.MinioBucket,
		}), "minio client initialized")
	}
	return client, nil
}

func newUnchecked(cfg config.StorageConfig) (*Client, error) {
	if strings.TrimSpace(cfg.MinioEndpoint) == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if strings.TrimSpace(cfg.MinioBucket) == "" {
		return nil, errors.New("minio bucket is required")
	}
	mc, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &Client{client: mc, bucket: cfg.MinioBucket}, nil
}

func (c *Client) ensureBucket(ctx context.Context, region string) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %q: %w", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("creating bucket %q: %w", c.bucket, err)
	}
	return nil
}

func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := storagepkg.ValidateKey(key); err != nil {
		return "", err
	}
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:    contentType,
		SendContentMd5: true,
	})
	if err != nil {
		return "", fmt.Errorf("put minio object %s: %w", key, err)
	}
	return key, nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if err := storagepkg.ValidateKey(key); err != nil {
		return nil, err
	}
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(key, err)
	}
	defer func() { _ = obj.Close() }()
	// GetObject is lazy; the first read surfaces NoSuchKey
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapError(key, err)
	}
	return data, nil
}

// Delete removes an object; S3 treats a missing key as success.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := storagepkg.ValidateKey(key); err != nil {
		return err
	}
	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete minio object %s: %w", key, err)
	}
	return nil
}

// SignedURL presigns a GET for the object.
func (c *Client) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := storagepkg.ValidateKey(key); err != nil {
		return "", err
	}
	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign minio object %s: %w", key, err)
	}
	return u.String(), nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("minio client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("minio bucket check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("minio bucket %q missing", c.bucket)
	}
	return nil
}

func (c *Client) Close() error { return nil }

func mapError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == codeNoSuchKey {
		return fmt.Errorf("%w: %s", storagepkg.ErrNotFound, key)
	}
	return fmt.Errorf("get minio object %s: %w", key, err)
}
