package roi

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Collection is an ordered, indexable list of regions.
type Collection struct {
	regions []*Region
}

// NewCollection creates a collection holding the given regions in order.
func NewCollection(regions ...*Region) *Collection {
	c := &Collection{regions: make([]*Region, 0, len(regions))}
	c.regions = append(c.regions, regions...)
	return c
}

// Len returns the number of regions.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.regions)
}

// Get returns the region at index i.
func (c *Collection) Get(i int) *Region {
	return c.regions[i]
}

// Regions returns a copy of the region slice.
func (c *Collection) Regions() []*Region {
	out := make([]*Region, len(c.regions))
	copy(out, c.regions)
	return out
}

// Names returns the region names in order.
func (c *Collection) Names() []string {
	names := make([]string, len(c.regions))
	for i, r := range c.regions {
		names[i] = r.Name
	}
	return names
}

// Append adds a region at the end.
func (c *Collection) Append(r *Region) {
	c.regions = append(c.regions, r)
}

// Replace stores r at index i.
func (c *Collection) Replace(i int, r *Region) error {
	if i < 0 || i >= len(c.regions) {
		return fmt.Errorf("index %d out of range [0,%d)", i, len(c.regions))
	}
	c.regions[i] = r
	return nil
}

// Remove deletes the region at index i, shifting later regions down.
func (c *Collection) Remove(i int) error {
	if i < 0 || i >= len(c.regions) {
		return fmt.Errorf("index %d out of range [0,%d)", i, len(c.regions))
	}
	c.regions = append(c.regions[:i], c.regions[i+1:]...)
	return nil
}

// Clone returns a shallow copy; regions are immutable so they are shared.
func (c *Collection) Clone() *Collection {
	return NewCollection(c.regions...)
}

// Union returns the pixel union of the selected regions as a mask region.
// The result carries the metadata of the first selected region.
func (c *Collection) Union(indexes ...int) (*Region, error) {
	if len(indexes) == 0 {
		return nil, fmt.Errorf("union of an empty selection")
	}
	members := make([]*Region, len(indexes))
	for k, i := range indexes {
		if i < 0 || i >= len(c.regions) {
			return nil, fmt.Errorf("index %d out of range [0,%d)", i, len(c.regions))
		}
		members[k] = c.regions[i]
	}
	return Union(members...)
}

// Union returns the pixel union of regions as a mask region carrying the
// metadata of the first region.
func Union(regions ...*Region) (*Region, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("union of no regions")
	}
	masks := make([]*image.Gray, 0, len(regions))
	var rect image.Rectangle
	for _, r := range regions {
		m := r.Rasterize()
		if m.Rect.Empty() {
			continue
		}
		masks = append(masks, m)
		rect = rect.Union(m.Rect)
	}
	if rect.Empty() {
		return regions[0].withMask(image.NewGray(image.Rectangle{})), nil
	}

	acc := gocv.NewMatWithSize(rect.Dy(), rect.Dx(), gocv.MatTypeCV8UC1)
	defer acc.Close()
	acc.SetTo(gocv.NewScalar(0, 0, 0, 0))
	for _, m := range masks {
		member, err := grayMat(m)
		if err != nil {
			return nil, fmt.Errorf("failed to build mask for %q: %w", regions[0].Name, err)
		}
		dst := acc.Region(m.Rect.Sub(rect.Min))
		gocv.BitwiseOr(dst, member, &dst)
		dst.Close()
		member.Close()
	}
	return regions[0].withMask(matGray(acc, rect.Min)), nil
}
