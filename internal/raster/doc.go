// Package raster reads and writes single-band, north-up, strip-organised,
// uncompressed GeoTIFF files and streams them in row blocks.
//
// Pixels are exchanged as float64 regardless of the stored pixel type. Files
// written by this package are little endian and byte-for-byte deterministic:
// the same Info and pixel values always produce the same file.
package raster
