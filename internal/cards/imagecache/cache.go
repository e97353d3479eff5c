// Package imagecache caches card images in the images cache namespace.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ramonehamilton/commander-vault/internal/cache"
)

// ImageSize represents different sizes of card images.
type ImageSize string

const (
	ImageSizeSmall   ImageSize = "small"
	ImageSizeNormal  ImageSize = "normal"
	ImageSizeLarge   ImageSize = "large"
	ImageSizeArtCrop ImageSize = "art_crop"
)

// Downloader fetches image bytes.
type Downloader interface {
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
}

// Cache serves card images from the cache, downloading on a miss.
type Cache struct {
	downloader Downloader
	images     *cache.Bucket[[]byte]
}

// NewCache creates an image cache.
func NewCache(downloader Downloader, store *cache.Store) *Cache {
	return &Cache{
		downloader: downloader,
		images:     cache.NewBucket[[]byte](store, cache.NamespaceImages),
	}
}

// key hashes the URL so arbitrary URLs make safe keys.
func key(imageURL string, size ImageSize) string {
	sum := sha256.Sum256([]byte(imageURL))
	return string(size) + ":" + hex.EncodeToString(sum[:])
}

// GetImage returns the image bytes for imageURL.
func (c *Cache) GetImage(ctx context.Context, imageURL string, size ImageSize) ([]byte, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("no image URL")
	}
	if size == "" {
		size = ImageSizeNormal
	}
	k := key(imageURL, size)
	if data, ok := c.images.Get(k); ok {
		return data, nil
	}

	data, err := c.downloader.FetchImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	_ = c.images.Put(k, data)
	return data, nil
}

// IsCached reports whether a fresh copy of the image is cached.
func (c *Cache) IsCached(imageURL string, size ImageSize) bool {
	if size == "" {
		size = ImageSizeNormal
	}
	_, ok := c.images.Get(key(imageURL, size))
	return ok
}
