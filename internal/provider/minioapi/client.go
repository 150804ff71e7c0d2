// Package minioapi implements the object-store capability over a
// MinIO/S3-compatible endpoint.
package minioapi

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tracelight-labs/tracelight-go/internal/provider"
)

// Client implements provider.ObjectAPI.
type Client struct {
	mc *minio.Client
}

func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Client{mc: mc}, nil
}

func NewWithClient(mc *minio.Client) (*Client, error) {
	if mc == nil {
		return nil, fmt.Errorf("minio client is required")
	}
	return &Client{mc: mc}, nil
}

func (c *Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, classify(err))
	}
	defer obj.Close()
	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, key, classify(err))
	}
	return body, nil
}

func (c *Client) GetObjectHead(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return c.GetObject(ctx, bucket, key)
	}
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(0, maxBytes-1); err != nil {
		return nil, fmt.Errorf("set range: %w", err)
	}
	obj, err := c.mc.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("get object head %s/%s: %w", bucket, key, classify(err))
	}
	defer obj.Close()
	body, err := io.ReadAll(io.LimitReader(obj, maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read object head %s/%s: %w", bucket, key, classify(err))
	}
	return body, nil
}

func (c *Client) ListObjects(ctx context.Context, bucket, prefix string, max int) ([]provider.ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]provider.ObjectInfo, 0, max)
	for obj := range c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects %s/%s: %w", bucket, prefix, classify(obj.Err))
		}
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}
		out = append(out, provider.ObjectInfo{Key: obj.Key, Size: obj.Size})
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

func (c *Client) BucketLocation(ctx context.Context, bucket string) (string, error) {
	loc, err := c.mc.GetBucketLocation(ctx, bucket)
	if err != nil {
		return "", fmt.Errorf("bucket location %s: %w", bucket, classify(err))
	}
	if loc == "" {
		loc = "us-east-1"
	}
	return loc, nil
}

func (c *Client) BucketEncryption(ctx context.Context, bucket string) (string, error) {
	cfg, err := c.mc.GetBucketEncryption(ctx, bucket)
	if err != nil {
		return "", fmt.Errorf("bucket encryption %s: %w", bucket, classify(err))
	}
	if cfg == nil || len(cfg.Rules) == 0 {
		return "", fmt.Errorf("bucket encryption %s: %w", bucket, provider.ErrNotFound)
	}
	return cfg.Rules[0].Apply.SSEAlgorithm, nil
}

func (c *Client) BucketVersioning(ctx context.Context, bucket string) (string, error) {
	cfg, err := c.mc.GetBucketVersioning(ctx, bucket)
	if err != nil {
		return "", fmt.Errorf("bucket versioning %s: %w", bucket, classify(err))
	}
	if cfg.Status == "" {
		return "Disabled", nil
	}
	return cfg.Status, nil
}

// BucketPublicAccess reduces the bucket policy to a coarse verdict:
// no policy means nothing is exposed, a wildcard principal means public,
// anything else is a custom grant.
func (c *Client) BucketPublicAccess(ctx context.Context, bucket string) (string, error) {
	policy, err := c.mc.GetBucketPolicy(ctx, bucket)
	if err != nil {
		return "", fmt.Errorf("bucket policy %s: %w", bucket, classify(err))
	}
	if strings.TrimSpace(policy) == "" {
		return "Blocked", nil
	}
	if strings.Contains(policy, `"Principal":"*"`) || strings.Contains(policy, `"AWS":"*"`) ||
		strings.Contains(policy, `"Principal": "*"`) || strings.Contains(policy, `"AWS": "*"`) {
		return "Public", nil
	}
	return "Custom", nil
}

func (c *Client) BucketTags(ctx context.Context, bucket string) (map[string]string, error) {
	t, err := c.mc.GetBucketTagging(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket tags %s: %w", bucket, classify(err))
	}
	if t == nil {
		return map[string]string{}, nil
	}
	return t.ToMap(), nil
}

// classify maps the upstream error onto the provider taxonomy so callers
// can scope degradation with errors.Is.
func classify(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket", "NoSuchKey", "NoSuchTagSet", "NoSuchBucketPolicy",
		"ServerSideEncryptionConfigurationNotFoundError":
		return fmt.Errorf("%s: %w", resp.Code, provider.ErrNotFound)
	case "AccessDenied":
		return fmt.Errorf("%s: %w", resp.Code, provider.ErrDenied)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%v: %w", err, provider.ErrNotFound)
	case http.StatusForbidden:
		return fmt.Errorf("%v: %w", err, provider.ErrDenied)
	}
	return fmt.Errorf("%v: %w", err, provider.ErrTransient)
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
}
