package carbon

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"

	"carbonweaver/internal/raster"
)

// SignedNodata is the nodata value of rasters whose valid range includes
// negative numbers, such as sequestration and NPV.
const SignedNodata = -math.MaxFloat32

// ReduceOp combines aligned blocks, one per input, into dst.
type ReduceOp func(dst []float64, srcs [][]float64)

// SumOp adds every input.
func SumOp(dst []float64, srcs [][]float64) {
	copy(dst, srcs[0])
	for _, s := range srcs[1:] {
		floats.Add(dst, s)
	}
}

// SubtractOp computes srcs[0] - srcs[1].
func SubtractOp(dst []float64, srcs [][]float64) {
	floats.SubTo(dst, srcs[0], srcs[1])
}

// ScaleOp multiplies the single input by c.
func ScaleOp(c float64) ReduceOp {
	return func(dst []float64, srcs [][]float64) {
		floats.ScaleTo(dst, c, srcs[0])
	}
}

// Reduce applies op pixelwise across inputs and writes a float32 raster to
// target. Any position where some input holds its nodata value is written as
// the target nodata. A nil targetNodata inherits the first input's nodata.
// All inputs must share the first input's dimensions and pixel size.
func Reduce(inputs []string, op ReduceOp, target string, targetNodata *float64) (err error) {
	if len(inputs) == 0 {
		return fmt.Errorf("reduce %s: no inputs", target)
	}

	srcs := make([]*raster.Dataset, 0, len(inputs))
	defer func() {
		for _, s := range srcs {
			s.Close()
		}
	}()
	for _, p := range inputs {
		d, err := raster.Open(p)
		if err != nil {
			return err
		}
		srcs = append(srcs, d)
	}

	first := srcs[0].Info()
	for i, s := range srcs[1:] {
		if in := s.Info(); !in.SameGrid(first) {
			return &GeometryError{
				Keys: []string{inputs[0], inputs[i+1]},
				Msg: fmt.Sprintf("cannot combine %s (%dx%d, pixel %v) with %s (%dx%d, pixel %v)",
					inputs[0], first.Width, first.Height, first.PixelSize,
					inputs[i+1], in.Width, in.Height, in.PixelSize),
			}
		}
	}

	out := first
	out.Type = raster.Float32
	switch {
	case targetNodata != nil:
		out.Nodata, out.HasNodata = *targetNodata, true
	default:
		out.Nodata, out.HasNodata = first.Nodata, first.HasNodata
	}

	dst, err := raster.Create(target, out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if err != nil {
			os.Remove(target)
		}
	}()

	step := max(first.BlockRows, 1)
	bufs := make([][]float64, len(srcs))
	for i := range bufs {
		bufs[i] = make([]float64, step*first.Width)
	}
	res := make([]float64, step*first.Width)

	for y := 0; y < first.Height; y += step {
		rows := min(step, first.Height-y)
		n := rows * first.Width
		blocks := make([][]float64, len(srcs))
		for i, s := range srcs {
			blocks[i] = bufs[i][:n]
			if err := s.ReadRows(y, rows, blocks[i]); err != nil {
				return err
			}
		}
		vals := res[:n]
		op(vals, blocks)
		if out.HasNodata {
			for i, s := range srcs {
				info := s.Info()
				if !info.HasNodata {
					continue
				}
				for j, v := range blocks[i] {
					if info.IsNodata(v) {
						vals[j] = out.Nodata
					}
				}
			}
		}
		if err := dst.WriteRows(y, rows, vals); err != nil {
			return err
		}
	}
	return nil
}
