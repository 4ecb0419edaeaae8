package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// TIFF tags used by this package.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagPhotometric     = 262
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagPlanarConfig    = 284
	tagTileWidth       = 322
	tagTileLength      = 323
	tagTileOffsets     = 324
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNodata      = 42113
)

// TIFF field types.
const (
	typeByte   = 1
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
	typeLong8  = 16
)

var (
	ErrNotTIFF     = errors.New("not a TIFF file")
	ErrUnsupported = errors.New("unsupported TIFF layout")
)

// maxFieldBytes bounds the size of a single IFD value read from disk.
const maxFieldBytes = 1 << 28

func fieldTypeSize(typ uint16) int {
	switch typ {
	case 1, 2, 6, 7:
		return 1
	case 3, 8:
		return 2
	case 4, 9, 11:
		return 4
	case 5, 10, 12, 16, 17:
		return 8
	default:
		return 0
	}
}

// field is one encoded IFD entry; data is already in file byte order.
type field struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shortField(order binary.ByteOrder, tag uint16, vals ...uint16) field {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		order.PutUint16(b[2*i:], v)
	}
	return field{tag: tag, typ: typeShort, count: uint32(len(vals)), data: b}
}

func longField(order binary.ByteOrder, tag uint16, vals ...uint32) field {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		order.PutUint32(b[4*i:], v)
	}
	return field{tag: tag, typ: typeLong, count: uint32(len(vals)), data: b}
}

func doubleField(order binary.ByteOrder, tag uint16, vals ...float64) field {
	b := make([]byte, 8*len(vals))
	for i, v := range vals {
		order.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return field{tag: tag, typ: typeDouble, count: uint32(len(vals)), data: b}
}

func asciiField(tag uint16, s string) field {
	b := append([]byte(s), 0)
	return field{tag: tag, typ: typeASCII, count: uint32(len(b)), data: b}
}

// encodeIFD lays out a single IFD at offset followed by its out-of-line values.
func encodeIFD(order binary.ByteOrder, fields []field, offset uint32) []byte {
	sorted := append([]field(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].tag < sorted[j].tag })

	head := 2 + 12*len(sorted) + 4
	out := make([]byte, head)
	order.PutUint16(out, uint16(len(sorted)))

	extra := offset + uint32(head)
	for i, f := range sorted {
		e := out[2+12*i:]
		order.PutUint16(e[0:], f.tag)
		order.PutUint16(e[2:], f.typ)
		order.PutUint32(e[4:], f.count)
		if len(f.data) <= 4 {
			copy(e[8:12], f.data)
			continue
		}
		order.PutUint32(e[8:], extra)
		out = append(out, f.data...)
		if len(f.data)%2 == 1 {
			out = append(out, 0)
		}
		extra += uint32((len(f.data) + 1) &^ 1)
	}
	// next IFD offset stays zero
	return out
}

func encodeHeader(order binary.ByteOrder, ifdOffset uint32) []byte {
	h := make([]byte, 8)
	if order == binary.ByteOrder(binary.BigEndian) {
		copy(h, "MM")
	} else {
		copy(h, "II")
	}
	order.PutUint16(h[2:], 42)
	order.PutUint32(h[4:], ifdOffset)
	return h
}

type rawEntry struct {
	typ   uint16
	count uint32
	value [4]byte
}

// ifd is the decoded first image file directory of a TIFF.
type ifd struct {
	r       io.ReaderAt
	order   binary.ByteOrder
	entries map[uint16]rawEntry
}

func readIFD(r io.ReaderAt) (*ifd, error) {
	var hdr [8]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrNotTIFF, err)
	}

	var order binary.ByteOrder
	switch string(hdr[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}
	switch magic := order.Uint16(hdr[2:]); magic {
	case 42:
	case 43:
		return nil, fmt.Errorf("%w: BigTIFF", ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: bad magic %d", ErrNotTIFF, magic)
	}

	off := int64(order.Uint32(hdr[4:]))
	var n [2]byte
	if _, err := r.ReadAt(n[:], off); err != nil {
		return nil, fmt.Errorf("reading IFD: %w", err)
	}
	count := int(order.Uint16(n[:]))
	buf := make([]byte, 12*count)
	if _, err := r.ReadAt(buf, off+2); err != nil {
		return nil, fmt.Errorf("reading IFD entries: %w", err)
	}

	d := &ifd{r: r, order: order, entries: make(map[uint16]rawEntry, count)}
	for i := 0; i < count; i++ {
		e := buf[12*i:]
		var re rawEntry
		re.typ = order.Uint16(e[2:])
		re.count = order.Uint32(e[4:])
		copy(re.value[:], e[8:12])
		d.entries[order.Uint16(e[0:])] = re
	}
	return d, nil
}

func (d *ifd) has(tag uint16) bool {
	_, ok := d.entries[tag]
	return ok
}

func (d *ifd) raw(tag uint16) (rawEntry, []byte, error) {
	e, ok := d.entries[tag]
	if !ok {
		return e, nil, nil
	}
	size := fieldTypeSize(e.typ) * int(e.count)
	if size == 0 && e.count > 0 {
		return e, nil, fmt.Errorf("tag %d: unknown field type %d", tag, e.typ)
	}
	if size > maxFieldBytes {
		return e, nil, fmt.Errorf("tag %d: value too large (%d bytes)", tag, size)
	}
	if size <= 4 {
		return e, e.value[:size], nil
	}
	b := make([]byte, size)
	if _, err := d.r.ReadAt(b, int64(d.order.Uint32(e.value[:]))); err != nil {
		return e, nil, fmt.Errorf("tag %d: %w", tag, err)
	}
	return e, b, nil
}

// uints decodes an integer-valued tag. A missing tag yields nil.
func (d *ifd) uints(tag uint16) ([]uint64, error) {
	e, b, err := d.raw(tag)
	if err != nil || b == nil {
		return nil, err
	}
	out := make([]uint64, e.count)
	for i := range out {
		switch e.typ {
		case typeByte:
			out[i] = uint64(b[i])
		case typeShort:
			out[i] = uint64(d.order.Uint16(b[2*i:]))
		case typeLong:
			out[i] = uint64(d.order.Uint32(b[4*i:]))
		case typeLong8:
			out[i] = d.order.Uint64(b[8*i:])
		default:
			return nil, fmt.Errorf("tag %d: expected integer type, got %d", tag, e.typ)
		}
	}
	return out, nil
}

// first returns the first value of an integer tag, or def when it is absent.
func (d *ifd) first(tag uint16, def uint64) (uint64, error) {
	v, err := d.uints(tag)
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return def, nil
	}
	return v[0], nil
}

func (d *ifd) doubles(tag uint16) ([]float64, error) {
	e, b, err := d.raw(tag)
	if err != nil || b == nil {
		return nil, err
	}
	if e.typ != typeDouble {
		return nil, fmt.Errorf("tag %d: expected DOUBLE, got type %d", tag, e.typ)
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(d.order.Uint64(b[8*i:]))
	}
	return out, nil
}

func (d *ifd) ascii(tag uint16) (string, bool, error) {
	_, b, err := d.raw(tag)
	if err != nil || b == nil {
		return "", false, err
	}
	return strings.TrimSpace(strings.TrimRight(string(b), "\x00")), true, nil
}

func formatNodata(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseNodata(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "nan":
		return math.NaN(), nil
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}
