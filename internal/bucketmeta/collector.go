// Package bucketmeta collects per-bucket security metadata with a cache
// scoped to one graph build. Every lookup is independently best-effort:
// a denial or absence degrades that one field to Unknown instead of
// failing the bucket.
package bucketmeta

import (
	"context"
	"sync"

	"github.com/tracelight-labs/tracelight-go/internal/domain"
	"github.com/tracelight-labs/tracelight-go/internal/provider"
)

// Collector caches bucket metadata for the lifetime of one invocation.
// It is safe for concurrent use; each bucket is fetched at most once.
type Collector struct {
	objects provider.ObjectAPI

	mu    sync.Mutex
	cache map[string]*entry
}

type entry struct {
	once sync.Once
	meta domain.ArtifactSecurity
}

func New(objects provider.ObjectAPI) *Collector {
	return &Collector{
		objects: objects,
		cache:   make(map[string]*entry),
	}
}

// Describe returns the security metadata for a bucket, fetching it on
// first use. It never fails; unresolved fields carry Unknown.
func (c *Collector) Describe(ctx context.Context, bucket string) domain.ArtifactSecurity {
	c.mu.Lock()
	e, ok := c.cache[bucket]
	if !ok {
		e = &entry{}
		c.cache[bucket] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.meta = c.fetch(ctx, bucket)
	})
	return e.meta
}

func (c *Collector) fetch(ctx context.Context, bucket string) domain.ArtifactSecurity {
	meta := domain.ArtifactSecurity{
		Region:       domain.MetaUnknown,
		Encryption:   domain.MetaUnknown,
		Versioning:   domain.MetaUnknown,
		PublicAccess: domain.MetaUnknown,
	}

	if region, err := c.objects.BucketLocation(ctx, bucket); err == nil && region != "" {
		meta.Region = region
	}
	if enc, err := c.objects.BucketEncryption(ctx, bucket); err == nil && enc != "" {
		meta.Encryption = enc
	}
	if ver, err := c.objects.BucketVersioning(ctx, bucket); err == nil && ver != "" {
		meta.Versioning = ver
	}
	if pub, err := c.objects.BucketPublicAccess(ctx, bucket); err == nil && pub != "" {
		meta.PublicAccess = pub
	}
	if tags, err := c.objects.BucketTags(ctx, bucket); err == nil && len(tags) > 0 {
		meta.Tags = tags
	}
	return meta
}
