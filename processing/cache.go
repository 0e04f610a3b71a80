package processing

import (
	"fmt"
	"github.com/elliotchance/orderedmap/v2"
	"gorgonia.org/tensor"
	"sync"
)

// AnchorCache memoizes generated anchor tensors for one anchor
// configuration, keyed by image size. Entries are evicted in insertion
// order once the capacity is reached.
type AnchorCache struct {
	mu       sync.Mutex
	capacity int
	stride   int
	ratios   []float32
	scales   []float32
	entries  *orderedmap.OrderedMap[string, *tensor.Dense]
}

func NewAnchorCache(capacity, stride int, ratios, scales []float32) *AnchorCache {
	return &AnchorCache{
		capacity: capacity,
		stride:   stride,
		ratios:   ratios,
		scales:   scales,
		entries:  orderedmap.NewOrderedMap[string, *tensor.Dense](),
	}
}

// Anchors returns the anchor tensor for an image size, generating and
// caching it on first use. The returned tensor is shared, callers must not
// mutate it.
func (c *AnchorCache) Anchors(imgHeight, imgWidth int) (*tensor.Dense, error) {
	key := fmt.Sprintf("%dx%d", imgHeight, imgWidth)

	c.mu.Lock()
	defer c.mu.Unlock()

	if anchors, ok := c.entries.Get(key); ok {
		return anchors, nil
	}

	anchors, err := GenerateAnchors(imgHeight, imgWidth, c.stride, c.ratios, c.scales)
	if err != nil {
		return nil, err
	}

	if c.capacity > 0 && c.entries.Len() >= c.capacity {
		c.entries.Delete(c.entries.Front().Key)
	}
	c.entries.Set(key, anchors)

	return anchors, nil
}

func (c *AnchorCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}
