package raster

import (
	"encoding/binary"
	"fmt"
	"math"
)

// PixelType is the stored sample type of a band.
type PixelType int

const (
	Uint8 PixelType = iota + 1
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
)

const (
	sampleUint  = 1
	sampleInt   = 2
	sampleFloat = 3
)

var pixelTypeNames = map[PixelType]string{
	Uint8:   "uint8",
	Int16:   "int16",
	Uint16:  "uint16",
	Int32:   "int32",
	Uint32:  "uint32",
	Float32: "float32",
	Float64: "float64",
}

func (p PixelType) String() string {
	if s, ok := pixelTypeNames[p]; ok {
		return s
	}
	return fmt.Sprintf("PixelType(%d)", int(p))
}

// Valid reports whether p is a supported pixel type.
func (p PixelType) Valid() bool {
	_, ok := pixelTypeNames[p]
	return ok
}

// IsFloat reports whether p stores floating point samples.
func (p PixelType) IsFloat() bool { return p == Float32 || p == Float64 }

// Size returns the number of bytes per sample.
func (p PixelType) Size() int {
	switch p {
	case Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	default:
		return 0
	}
}

func (p PixelType) tiffFormat() (bits, format uint16) {
	switch p {
	case Uint8:
		return 8, sampleUint
	case Int16:
		return 16, sampleInt
	case Uint16:
		return 16, sampleUint
	case Int32:
		return 32, sampleInt
	case Uint32:
		return 32, sampleUint
	case Float32:
		return 32, sampleFloat
	case Float64:
		return 64, sampleFloat
	default:
		return 0, 0
	}
}

func pixelTypeFor(bits, format uint64) (PixelType, error) {
	for p := Uint8; p <= Float64; p++ {
		b, f := p.tiffFormat()
		if uint64(b) == bits && uint64(f) == format {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unsupported sample layout: %d bits, format %d", bits, format)
}

// decodeSamples fills dst with the samples stored in src.
func decodeSamples(p PixelType, order binary.ByteOrder, src []byte, dst []float64) {
	switch p {
	case Uint8:
		for i := range dst {
			dst[i] = float64(src[i])
		}
	case Int16:
		for i := range dst {
			dst[i] = float64(int16(order.Uint16(src[2*i:])))
		}
	case Uint16:
		for i := range dst {
			dst[i] = float64(order.Uint16(src[2*i:]))
		}
	case Int32:
		for i := range dst {
			dst[i] = float64(int32(order.Uint32(src[4*i:])))
		}
	case Uint32:
		for i := range dst {
			dst[i] = float64(order.Uint32(src[4*i:]))
		}
	case Float32:
		for i := range dst {
			dst[i] = float64(math.Float32frombits(order.Uint32(src[4*i:])))
		}
	case Float64:
		for i := range dst {
			dst[i] = math.Float64frombits(order.Uint64(src[8*i:]))
		}
	}
}

// encodeSamples stores src into dst. Integer types are rounded to nearest.
func encodeSamples(p PixelType, order binary.ByteOrder, src []float64, dst []byte) {
	switch p {
	case Uint8:
		for i, v := range src {
			dst[i] = uint8(math.Round(v))
		}
	case Int16:
		for i, v := range src {
			order.PutUint16(dst[2*i:], uint16(int16(math.Round(v))))
		}
	case Uint16:
		for i, v := range src {
			order.PutUint16(dst[2*i:], uint16(math.Round(v)))
		}
	case Int32:
		for i, v := range src {
			order.PutUint32(dst[4*i:], uint32(int32(math.Round(v))))
		}
	case Uint32:
		for i, v := range src {
			order.PutUint32(dst[4*i:], uint32(math.Round(v)))
		}
	case Float32:
		for i, v := range src {
			order.PutUint32(dst[4*i:], math.Float32bits(float32(v)))
		}
	case Float64:
		for i, v := range src {
			order.PutUint64(dst[8*i:], math.Float64bits(v))
		}
	}
}
