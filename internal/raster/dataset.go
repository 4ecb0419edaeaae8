package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// MaxBlockRows caps the height of a streamed block.
const MaxBlockRows = 256

// Info describes the grid, georeferencing and band of a raster.
type Info struct {
	Width  int
	Height int

	// PixelSize is (x, y) resolution; y is negative for north-up rasters.
	PixelSize [2]float64
	// Origin is the map coordinate of the upper-left corner.
	Origin [2]float64

	Nodata    float64
	HasNodata bool

	Type PixelType

	// BlockRows is the number of rows per strip, capped at MaxBlockRows.
	BlockRows int
}

// SameGrid reports whether two rasters share dimensions and pixel size.
func (i Info) SameGrid(o Info) bool {
	return i.Width == o.Width && i.Height == o.Height && i.PixelSize == o.PixelSize
}

// IsNodata reports whether v is this raster's nodata value. A NaN nodata
// matches every NaN.
func (i Info) IsNodata(v float64) bool {
	if !i.HasNodata {
		return false
	}
	if math.IsNaN(i.Nodata) {
		return math.IsNaN(v)
	}
	return v == i.Nodata
}

// PixelArea returns |px * py| in squared map units.
func (i Info) PixelArea() float64 {
	return math.Abs(i.PixelSize[0] * i.PixelSize[1])
}

// Dataset is an open raster file.
type Dataset struct {
	path  string
	f     *os.File
	info  Info
	order binary.ByteOrder

	rowsPerStrip int
	stripOffsets []int64
	writable     bool
}

// Open opens an existing GeoTIFF for reading.
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	d, err := decode(path, f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening raster %s: %w", path, err)
	}
	return d, nil
}

// ReadInfo returns the Info of the raster at path.
func ReadInfo(path string) (Info, error) {
	d, err := Open(path)
	if err != nil {
		return Info{}, err
	}
	defer d.Close()
	return d.info, nil
}

func decode(path string, f *os.File) (*Dataset, error) {
	dir, err := readIFD(f)
	if err != nil {
		return nil, err
	}
	if dir.has(tagTileWidth) || dir.has(tagTileLength) || dir.has(tagTileOffsets) {
		return nil, fmt.Errorf("%w: tiled GeoTIFF", ErrUnsupported)
	}

	width, err := dir.first(tagImageWidth, 0)
	if err != nil {
		return nil, err
	}
	height, err := dir.first(tagImageLength, 0)
	if err != nil {
		return nil, err
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: missing image dimensions", ErrUnsupported)
	}

	checks := []struct {
		tag  uint16
		def  uint64
		want uint64
		what string
	}{
		{tagCompression, 1, 1, "compression"},
		{tagSamplesPerPixel, 1, 1, "samples per pixel"},
		{tagPlanarConfig, 1, 1, "planar configuration"},
	}
	for _, c := range checks {
		v, err := dir.first(c.tag, c.def)
		if err != nil {
			return nil, err
		}
		if v != c.want {
			return nil, fmt.Errorf("%w: %s %d", ErrUnsupported, c.what, v)
		}
	}

	bits, err := dir.first(tagBitsPerSample, 1)
	if err != nil {
		return nil, err
	}
	format, err := dir.first(tagSampleFormat, sampleUint)
	if err != nil {
		return nil, err
	}
	typ, err := pixelTypeFor(bits, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	rps, err := dir.first(tagRowsPerStrip, height)
	if err != nil {
		return nil, err
	}
	if rps == 0 || rps > height {
		rps = height
	}
	offsets, err := dir.uints(tagStripOffsets)
	if err != nil {
		return nil, err
	}
	counts, err := dir.uints(tagStripByteCounts)
	if err != nil {
		return nil, err
	}
	strips := int((height + rps - 1) / rps)
	if len(offsets) != strips || len(counts) != strips {
		return nil, fmt.Errorf("%w: expected %d strips, found %d offsets and %d counts",
			ErrUnsupported, strips, len(offsets), len(counts))
	}
	rowBytes := width * uint64(typ.Size())
	stripOffsets := make([]int64, strips)
	for i := range offsets {
		rows := rps
		if last := height - uint64(i)*rps; last < rows {
			rows = last
		}
		if counts[i] < rows*rowBytes {
			return nil, fmt.Errorf("%w: strip %d is %d bytes, want %d", ErrUnsupported, i, counts[i], rows*rowBytes)
		}
		stripOffsets[i] = int64(offsets[i])
	}

	info := Info{
		Width:     int(width),
		Height:    int(height),
		PixelSize: [2]float64{1, -1},
		Type:      typ,
		BlockRows: int(min(rps, MaxBlockRows)),
	}
	scale, err := dir.doubles(tagModelPixelScale)
	if err != nil {
		return nil, err
	}
	if len(scale) >= 2 {
		info.PixelSize = [2]float64{scale[0], -scale[1]}
	}
	tie, err := dir.doubles(tagModelTiepoint)
	if err != nil {
		return nil, err
	}
	if len(tie) >= 6 {
		info.Origin = [2]float64{
			tie[3] - tie[0]*info.PixelSize[0],
			tie[4] - tie[1]*info.PixelSize[1],
		}
	}
	if s, ok, err := dir.ascii(tagGDALNodata); err != nil {
		return nil, err
	} else if ok && s != "" {
		nd, err := parseNodata(s)
		if err != nil {
			return nil, fmt.Errorf("parsing nodata %q: %w", s, err)
		}
		info.Nodata, info.HasNodata = nd, true
	}

	return &Dataset{
		path:         path,
		f:            f,
		info:         info,
		order:        dir.order,
		rowsPerStrip: int(rps),
		stripOffsets: stripOffsets,
	}, nil
}

// Create creates (or truncates) a GeoTIFF at path sized for info. Pixels are
// zero until written.
func Create(path string, info Info) (*Dataset, error) {
	return create(path, info, binary.LittleEndian)
}

func create(path string, info Info, order binary.ByteOrder) (*Dataset, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("creating raster %s: invalid size %dx%d", path, info.Width, info.Height)
	}
	if !info.Type.Valid() {
		return nil, fmt.Errorf("creating raster %s: invalid pixel type %v", path, info.Type)
	}
	if info.PixelSize == [2]float64{} {
		info.PixelSize = [2]float64{1, -1}
	}
	info.PixelSize[1] = -math.Abs(info.PixelSize[1])

	rps := info.BlockRows
	if rps <= 0 || rps > MaxBlockRows {
		rps = MaxBlockRows
	}
	rps = min(rps, info.Height)
	info.BlockRows = rps

	rowBytes := int64(info.Width) * int64(info.Type.Size())
	strips := (info.Height + rps - 1) / rps
	offsets := make([]uint32, strips)
	counts := make([]uint32, strips)
	stripOffsets := make([]int64, strips)
	for i := range offsets {
		rows := min(rps, info.Height-i*rps)
		stripOffsets[i] = 8 + int64(i*rps)*rowBytes
		offsets[i] = uint32(stripOffsets[i])
		counts[i] = uint32(int64(rows) * rowBytes)
	}
	dataEnd := 8 + int64(info.Height)*rowBytes
	ifdOffset := (dataEnd + 1) &^ 1

	bits, format := info.Type.tiffFormat()
	fields := []field{
		longField(order, tagImageWidth, uint32(info.Width)),
		longField(order, tagImageLength, uint32(info.Height)),
		shortField(order, tagBitsPerSample, bits),
		shortField(order, tagCompression, 1),
		shortField(order, tagPhotometric, 1),
		longField(order, tagStripOffsets, offsets...),
		shortField(order, tagSamplesPerPixel, 1),
		longField(order, tagRowsPerStrip, uint32(rps)),
		longField(order, tagStripByteCounts, counts...),
		shortField(order, tagPlanarConfig, 1),
		shortField(order, tagSampleFormat, format),
		doubleField(order, tagModelPixelScale, info.PixelSize[0], -info.PixelSize[1], 0),
		doubleField(order, tagModelTiepoint, 0, 0, 0, info.Origin[0], info.Origin[1], 0),
		// GTModelType unset, GTRasterType = RasterPixelIsArea
		shortField(order, tagGeoKeyDirectory, 1, 1, 0, 1, 1025, 0, 1, 1),
	}
	if info.HasNodata {
		fields = append(fields, asciiField(tagGDALNodata, formatNodata(info.Nodata)))
	}
	dir := encodeIFD(order, fields, uint32(ifdOffset))
	if ifdOffset+int64(len(dir)) > math.MaxUint32 {
		return nil, fmt.Errorf("creating raster %s: %dx%d %v exceeds the classic TIFF size limit",
			path, info.Width, info.Height, info.Type)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	err = errors.Join(
		f.Truncate(ifdOffset),
		writeAt(f, encodeHeader(order, uint32(ifdOffset)), 0),
		writeAt(f, dir, ifdOffset),
	)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating raster %s: %w", path, err)
	}

	return &Dataset{
		path:         path,
		f:            f,
		info:         info,
		order:        order,
		rowsPerStrip: rps,
		stripOffsets: stripOffsets,
		writable:     true,
	}, nil
}

func writeAt(f *os.File, b []byte, off int64) error {
	_, err := f.WriteAt(b, off)
	return err
}

// Path returns the file path of the dataset.
func (d *Dataset) Path() string { return d.path }

// Info returns the raster description.
func (d *Dataset) Info() Info { return d.info }

// ReadRows reads n rows starting at yoff into dst, row-major.
func (d *Dataset) ReadRows(yoff, n int, dst []float64) error {
	if err := d.checkRows(yoff, n, len(dst)); err != nil {
		return err
	}
	rowBytes := d.info.Width * d.info.Type.Size()
	buf := make([]byte, rowBytes*min(n, d.rowsPerStrip))

	return d.eachSegment(yoff, n, func(off int64, row, rows int) error {
		b := buf[:rows*rowBytes]
		if _, err := d.f.ReadAt(b, off); err != nil {
			return fmt.Errorf("reading %s rows %d-%d: %w", d.path, yoff+row, yoff+row+rows-1, err)
		}
		decodeSamples(d.info.Type, d.order, b, dst[row*d.info.Width:(row+rows)*d.info.Width])
		return nil
	})
}

// WriteRows writes n rows starting at yoff from src, row-major.
func (d *Dataset) WriteRows(yoff, n int, src []float64) error {
	if !d.writable {
		return fmt.Errorf("raster %s is read-only", d.path)
	}
	if err := d.checkRows(yoff, n, len(src)); err != nil {
		return err
	}
	rowBytes := d.info.Width * d.info.Type.Size()
	buf := make([]byte, rowBytes*min(n, d.rowsPerStrip))

	return d.eachSegment(yoff, n, func(off int64, row, rows int) error {
		b := buf[:rows*rowBytes]
		encodeSamples(d.info.Type, d.order, src[row*d.info.Width:(row+rows)*d.info.Width], b)
		if _, err := d.f.WriteAt(b, off); err != nil {
			return fmt.Errorf("writing %s rows %d-%d: %w", d.path, yoff+row, yoff+row+rows-1, err)
		}
		return nil
	})
}

// eachSegment splits rows [yoff, yoff+n) at strip boundaries. fn receives the
// file offset, the row index relative to yoff, and the row count.
func (d *Dataset) eachSegment(yoff, n int, fn func(off int64, row, rows int) error) error {
	rowBytes := int64(d.info.Width * d.info.Type.Size())
	for row := 0; row < n; {
		y := yoff + row
		strip := y / d.rowsPerStrip
		inStrip := y % d.rowsPerStrip
		rows := min(d.rowsPerStrip-inStrip, n-row)
		if err := fn(d.stripOffsets[strip]+int64(inStrip)*rowBytes, row, rows); err != nil {
			return err
		}
		row += rows
	}
	return nil
}

func (d *Dataset) checkRows(yoff, n, have int) error {
	if yoff < 0 || n < 0 || yoff+n > d.info.Height {
		return fmt.Errorf("rows %d+%d out of range for %s (height %d)", yoff, n, d.path, d.info.Height)
	}
	if have < n*d.info.Width {
		return fmt.Errorf("buffer holds %d values, need %d", have, n*d.info.Width)
	}
	return nil
}

// Close releases the file. Written data is synced first.
func (d *Dataset) Close() error {
	if d == nil || d.f == nil {
		return nil
	}
	var err error
	if d.writable {
		err = d.f.Sync()
	}
	err = errors.Join(err, d.f.Close())
	d.f = nil
	return err
}
