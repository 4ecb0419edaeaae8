package carbon

import (
	"math"

	"carbonweaver/internal/raster"
)

// Accumulate returns the sum of every non-nodata pixel of the raster at path.
// The raster is streamed block by block and summed in float64 with Neumaier
// compensation, so the result does not depend on the stored pixel precision.
func Accumulate(path string) (float64, error) {
	d, err := raster.Open(path)
	if err != nil {
		return 0, err
	}
	defer d.Close()

	info := d.Info()
	var s neumaier
	err = d.Iterate(func(b raster.Block) error {
		for _, v := range b.Values {
			if !info.IsNodata(v) {
				s.add(v)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return s.sum(), nil
}

// neumaier is a compensated running sum.
type neumaier struct {
	total, comp float64
}

func (n *neumaier) add(v float64) {
	t := n.total + v
	if math.Abs(n.total) >= math.Abs(v) {
		n.comp += (n.total - t) + v
	} else {
		n.comp += (v - t) + n.total
	}
	n.total = t
}

func (n *neumaier) sum() float64 { return n.total + n.comp }
