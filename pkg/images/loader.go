package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"lazyview/pkg/resource"
)

// Decode decodes an image in any registered format.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("decoding image: empty body")
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}
	return img, format, nil
}

// LoadImageFromDataURI decodes an image embedded in a data: URI.
func LoadImageFromDataURI(uri string) (image.Image, error) {
	data, _, err := resource.DecodeDataURI(uri)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(data)
	return img, err
}

// Cache fetches and decodes images, keeping each decoded result. It stands
// in for the platform image cache when painting; preloads never use it.
type Cache struct {
	fetcher resource.Fetcher
	mu      sync.RWMutex
	cache   map[string]image.Image
}

func NewCache(fetcher resource.Fetcher) *Cache {
	return &Cache{fetcher: fetcher, cache: make(map[string]image.Image)}
}

// Load returns the decoded image for uri, fetching it on first use.
func (c *Cache) Load(ctx context.Context, uri string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.cache[uri]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	body, _, err := c.fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}

	c.mu.Lock()
	c.cache[uri] = img
	c.mu.Unlock()
	return img, nil
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
