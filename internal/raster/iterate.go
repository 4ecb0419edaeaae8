package raster

import "fmt"

// Block is a horizontal band of rows. Values is row-major with Rows*Width
// entries and is reused between calls; copy it to retain it.
type Block struct {
	YOff   int
	Rows   int
	Width  int
	Values []float64
}

// Iterate streams the dataset block by block, in row order. Iteration stops
// at the first error returned by fn.
func (d *Dataset) Iterate(fn func(Block) error) error {
	info := d.info
	step := info.BlockRows
	if step <= 0 {
		step = min(MaxBlockRows, info.Height)
	}
	buf := make([]float64, step*info.Width)
	for y := 0; y < info.Height; y += step {
		rows := min(step, info.Height-y)
		vals := buf[:rows*info.Width]
		if err := d.ReadRows(y, rows, vals); err != nil {
			return err
		}
		if err := fn(Block{YOff: y, Rows: rows, Width: info.Width, Values: vals}); err != nil {
			return err
		}
	}
	return nil
}

// Write creates a raster at path holding values, row-major.
func Write(path string, info Info, values []float64) error {
	if len(values) != info.Width*info.Height {
		return fmt.Errorf("writing %s: have %d values for %dx%d", path, len(values), info.Width, info.Height)
	}
	d, err := Create(path, info)
	if err != nil {
		return err
	}
	if err := d.WriteRows(0, info.Height, values); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

// ReadAll loads every pixel of the raster at path.
func ReadAll(path string) (Info, []float64, error) {
	d, err := Open(path)
	if err != nil {
		return Info{}, nil, err
	}
	defer d.Close()
	info := d.info
	vals := make([]float64, info.Width*info.Height)
	if err := d.ReadRows(0, info.Height, vals); err != nil {
		return Info{}, nil, err
	}
	return info, vals, nil
}
