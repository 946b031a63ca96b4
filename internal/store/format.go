package store

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Format identifies how a chunk's payload is encoded on disk. Detection
// runs off the leading bytes of the stored file, so reading a chunk
// never needs metadata beyond the bytes already addressed by its hash.
type Format byte

const (
	// FormatSnappy is this store's native format: a 4-byte magic
	// followed by a raw snappy block. Everything Put writes uses this
	// format; the others exist for reading chunks written elsewhere.
	FormatSnappy Format = iota
	// FormatGzipLegacy is gzip-compressed JSON, the format used before
	// this store switched to snappy. Also the fallback interpretation
	// for any payload matching none of the other magics.
	FormatGzipLegacy
	// FormatZstd is a zstd frame, identified by its standard magic.
	FormatZstd
	// FormatCustomDict is a flate stream compressed against
	// chunkDictionary, identified by its own 4-byte magic. Small,
	// header-heavy chunks compress tighter against a shared dictionary
	// than independently.
	FormatCustomDict
)

var (
	snappyMagic = [4]byte{'T', 'L', 'R', '1'}
	zstdMagic   = [4]byte{0x28, 0xb5, 0x2f, 0xfd}
	customMagic = [4]byte{'T', 'L', 'R', 'D'}
)

// chunkDictionary seeds the custom-dictionary codec with the header
// tokens FASTA records repeat constantly, so short chunks that are
// mostly headers compress well even in isolation.
var chunkDictionary = []byte(">gi| >sp| >tr| OS= OX= GN= PE= SV= ref| gb| emb| dbj| lcl| pdb| taxon: TaxID=")

// detectFormat reports which format raw's leading bytes identify.
// Payloads matching none of the known magics default to the legacy
// gzip interpretation for backward compatibility.
func detectFormat(raw []byte) Format {
	if len(raw) >= 4 {
		switch [4]byte{raw[0], raw[1], raw[2], raw[3]} {
		case snappyMagic:
			return FormatSnappy
		case zstdMagic:
			return FormatZstd
		case customMagic:
			return FormatCustomDict
		}
	}
	return FormatGzipLegacy
}

// compressChunk encodes data in this store's native format.
func compressChunk(data []byte) []byte {
	var buf bytes.Buffer
	buf.Write(snappyMagic[:])
	buf.Write(snappy.Encode(nil, data))
	return buf.Bytes()
}

// decompressChunk detects raw's format and returns the decompressed
// payload alongside the format it was read as.
func decompressChunk(raw []byte) ([]byte, Format, error) {
	format := detectFormat(raw)
	switch format {
	case FormatSnappy:
		data, err := snappy.Decode(nil, raw[4:])
		return data, format, err
	case FormatZstd:
		dec, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, format, err
		}
		defer dec.Close()
		data, err := io.ReadAll(dec)
		return data, format, err
	case FormatCustomDict:
		fr := flate.NewReaderDict(bytes.NewReader(raw[4:]), chunkDictionary)
		defer fr.Close()
		data, err := io.ReadAll(fr)
		return data, format, err
	default: // FormatGzipLegacy
		gr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, format, err
		}
		defer gr.Close()
		data, err := io.ReadAll(gr)
		return data, format, err
	}
}
