// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPageTTL is how long a rendered public page stays cached.
const DefaultPageTTL = 5 * time.Minute

const pagePrefix = KeyPrefix + "page:"

// Key names one cached public page inside a namespace.
type Key string

// HomeKey is the post listing on the homepage.
const HomeKey Key = "home"

// SlugKey names the single page served at /{slug}.
func SlugKey(slug string) Key {
	return Key("slug:" + slug)
}

// Namespace fingerprints the settings that change rendered dates (date
// format, time format and site zone). Pages cached under another
// fingerprint are never served.
func Namespace(settings ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(settings, "\x00")))
	return hex.EncodeToString(sum[:6])
}

// PageCache stores rendered public HTML in Valkey under
// pp:page:<namespace>:<key>.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewPageCache returns a page cache for the given namespace. A zero ttl
// means DefaultPageTTL.
func NewPageCache(client *redis.Client, ttl time.Duration, namespace string) *PageCache {
	if ttl <= 0 {
		ttl = DefaultPageTTL
	}
	return &PageCache{client: client, ttl: ttl, prefix: pagePrefix + namespace + ":"}
}

func (pc *PageCache) key(k Key) string {
	return pc.prefix + string(k)
}

// Get returns the cached HTML for k. Errors count as a miss.
func (pc *PageCache) Get(ctx context.Context, k Key) ([]byte, bool) {
	val, err := pc.client.Get(ctx, pc.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("page cache get failed", "key", k, "error", err)
		return nil, false
	}
	return val, true
}

// Set caches html under k.
func (pc *PageCache) Set(ctx context.Context, k Key, html []byte) {
	if err := pc.client.Set(ctx, pc.key(k), html, pc.ttl).Err(); err != nil {
		slog.Warn("page cache set failed", "key", k, "error", err)
	}
}

// Invalidate drops the homepage and the pages at the given slugs. Every
// save calls it, since any save can add, move or remove a listed post.
func (pc *PageCache) Invalidate(ctx context.Context, slugs ...string) {
	keys := []string{pc.key(HomeKey)}
	for _, s := range slugs {
		if s != "" {
			keys = append(keys, pc.key(SlugKey(s)))
		}
	}
	if err := pc.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("page cache invalidate failed", "slugs", slugs, "error", err)
		return
	}
	slog.Debug("page cache invalidated", "slugs", slugs)
}

// PurgeStale deletes pages cached under any other namespace and returns
// how many went. Run at startup after a format or zone change.
func (pc *PageCache) PurgeStale(ctx context.Context) int {
	var deleted int
	iter := pc.client.Scan(ctx, 0, pagePrefix+"*", 200).Iterator()
	var batch []string
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := pc.client.Del(ctx, batch...).Err(); err != nil {
			slog.Warn("page cache purge failed", "error", err)
		} else {
			deleted += len(batch)
		}
		batch = batch[:0]
	}
	for iter.Next(ctx) {
		if k := iter.Val(); !strings.HasPrefix(k, pc.prefix) {
			batch = append(batch, k)
			if len(batch) == 200 {
				flush()
			}
		}
	}
	flush()
	if err := iter.Err(); err != nil {
		slog.Warn("page cache scan failed", "error", err)
	}
	if deleted > 0 {
		slog.Info("stale page cache purged", "deleted", deleted)
	}
	return deleted
}
