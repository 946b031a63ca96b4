package manifest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/talaria-db/talaria/internal/hashing"
	"github.com/talaria-db/talaria/internal/store"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

// Binary layout: 4-byte magic "TALM", 1-byte format version, 3
// reserved bytes, then a sequence of length-prefixed tagged fields
// (1-byte tag, 4-byte little-endian length, payload). Unknown tags on
// read are skipped, so a newer writer can add fields an older reader
// silently ignores.
const (
	magic         = "TALM"
	formatVersion = 1
)

type fieldTag byte

const (
	tagVersion              fieldTag = 1
	tagCreatedAt            fieldTag = 2
	tagSequenceTime         fieldTag = 3
	tagTaxonomyTime         fieldTag = 4
	tagSequenceVersion      fieldTag = 5
	tagTaxonomyVersion      fieldTag = 6
	tagSequenceRoot         fieldTag = 7
	tagTaxonomyRoot         fieldTag = 8
	tagTaxonomyManifestHash fieldTag = 9
	tagTaxonomyDumpVersion  fieldTag = 10
	tagSourceDatabase       fieldTag = 11
	tagChunkIndex           fieldTag = 12
	tagETag                 fieldTag = 13
	tagPreviousVersion      fieldTag = 14
	tagDiscrepancies        fieldTag = 15
)

// Encode serializes m into the manifest binary format.
func Encode(m *Manifest) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(formatVersion)
	buf.Write([]byte{0, 0, 0})

	writeField(&buf, tagVersion, []byte(m.Version))
	writeField(&buf, tagCreatedAt, encodeTime(m.CreatedAt))
	writeField(&buf, tagSequenceTime, encodeTime(m.SequenceTime))
	writeField(&buf, tagTaxonomyTime, encodeTime(m.TaxonomyTime))
	writeField(&buf, tagSequenceVersion, []byte(m.SequenceVersion))
	writeField(&buf, tagTaxonomyVersion, []byte(m.TaxonomyVersion))
	writeField(&buf, tagSequenceRoot, m.SequenceRoot[:])
	writeField(&buf, tagTaxonomyRoot, m.TaxonomyRoot[:])
	writeField(&buf, tagTaxonomyManifestHash, m.TaxonomyManifestHash[:])
	writeField(&buf, tagTaxonomyDumpVersion, []byte(m.TaxonomyDumpVersion))
	writeField(&buf, tagSourceDatabase, []byte(m.SourceDatabase))
	writeField(&buf, tagChunkIndex, encodeChunkIndex(m.ChunkIndex))
	writeField(&buf, tagETag, []byte(m.ETag))
	writeField(&buf, tagPreviousVersion, []byte(m.PreviousVersion))
	writeField(&buf, tagDiscrepancies, encodeDiscrepancies(m.Discrepancies))

	return buf.Bytes(), nil
}

// Decode parses the manifest binary format.
func Decode(data []byte) (*Manifest, error) {
	if len(data) < 8 || string(data[:4]) != magic {
		return nil, fmt.Errorf("manifest: missing or invalid magic")
	}
	version := data[4]
	if version > formatVersion {
		return nil, fmt.Errorf("manifest: format version %d newer than supported %d", version, formatVersion)
	}

	m := &Manifest{}
	r := bytes.NewReader(data[8:])
	for r.Len() > 0 {
		tag, payload, err := readField(r)
		if err != nil {
			return nil, err
		}
		switch fieldTag(tag) {
		case tagVersion:
			m.Version = string(payload)
		case tagCreatedAt:
			m.CreatedAt, err = decodeTime(payload)
		case tagSequenceTime:
			m.SequenceTime, err = decodeTime(payload)
		case tagTaxonomyTime:
			m.TaxonomyTime, err = decodeTime(payload)
		case tagSequenceVersion:
			m.SequenceVersion = string(payload)
		case tagTaxonomyVersion:
			m.TaxonomyVersion = string(payload)
		case tagSequenceRoot:
			copy(m.SequenceRoot[:], payload)
		case tagTaxonomyRoot:
			copy(m.TaxonomyRoot[:], payload)
		case tagTaxonomyManifestHash:
			copy(m.TaxonomyManifestHash[:], payload)
		case tagTaxonomyDumpVersion:
			m.TaxonomyDumpVersion = string(payload)
		case tagSourceDatabase:
			m.SourceDatabase = string(payload)
		case tagChunkIndex:
			m.ChunkIndex, err = decodeChunkIndex(payload)
		case tagETag:
			m.ETag = string(payload)
		case tagPreviousVersion:
			m.PreviousVersion = string(payload)
		case tagDiscrepancies:
			m.Discrepancies, err = decodeDiscrepancies(payload)
		default:
			// unknown tag from a newer writer, skip
		}
		if err != nil {
			return nil, fmt.Errorf("manifest: decode field %d: %w", tag, err)
		}
	}
	return m, nil
}

func writeField(buf *bytes.Buffer, tag fieldTag, payload []byte) {
	buf.WriteByte(byte(tag))
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf.Write(lenBuf[:])
	buf.Write(payload)
}

func readField(r *bytes.Reader) (byte, []byte, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return 0, nil, fmt.Errorf("manifest: read field tag: %w", err)
	}
	var lenBuf [4]byte
	if _, err := r.Read(lenBuf[:]); err != nil {
		return 0, nil, fmt.Errorf("manifest: read field length: %w", err)
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	payload := make([]byte, length)
	if _, err := r.Read(payload); err != nil && length > 0 {
		return 0, nil, fmt.Errorf("manifest: read field payload: %w", err)
	}
	return tag, payload, nil
}

func encodeTime(t time.Time) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(t.UnixNano()))
	return buf[:]
}

func decodeTime(payload []byte) (time.Time, error) {
	if len(payload) != 8 {
		return time.Time{}, fmt.Errorf("invalid time field length %d", len(payload))
	}
	nanos := int64(binary.LittleEndian.Uint64(payload))
	return time.Unix(0, nanos).UTC(), nil
}

func encodeChunkIndex(entries []ChunkEntry) []byte {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(entries)))
	buf.Write(countBuf[:])

	for _, e := range entries {
		buf.Write(e.Hash[:])
		writeUint32(&buf, uint32(len(e.TaxonIDs)))
		for _, t := range e.TaxonIDs {
			writeUint32(&buf, uint32(t))
		}
		writeUint32(&buf, uint32(e.SequenceCount))
		writeUint64(&buf, uint64(e.Size))
		writeUint64(&buf, uint64(e.CompressedSize))
		if e.HasCompressed {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		buf.WriteByte(byte(e.Format))
	}
	return buf.Bytes()
}

func decodeChunkIndex(data []byte) ([]ChunkEntry, error) {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	entries := make([]ChunkEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var e ChunkEntry
		hashBytes := make([]byte, hashing.Size)
		if _, err := r.Read(hashBytes); err != nil {
			return nil, err
		}
		copy(e.Hash[:], hashBytes)

		taxonCount, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		e.TaxonIDs = make([]taxonomy.ID, 0, taxonCount)
		for j := uint32(0); j < taxonCount; j++ {
			t, err := readUint32(r)
			if err != nil {
				return nil, err
			}
			e.TaxonIDs = append(e.TaxonIDs, taxonomy.ID(t))
		}

		seqCount, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		e.SequenceCount = int(seqCount)

		size, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		e.Size = int64(size)

		compressedSize, err := readUint64(r)
		if err != nil {
			return nil, err
		}
		e.CompressedSize = int64(compressedSize)

		flag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		e.HasCompressed = flag == 1

		formatByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		e.Format = store.Format(formatByte)

		entries = append(entries, e)
	}
	return entries, nil
}

func encodeDiscrepancies(discs []Discrepancy) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(discs)))
	for _, d := range discs {
		writeString(&buf, d.SequenceID)
		writeOptionalTaxon(&buf, d.HeaderTaxon)
		writeOptionalTaxon(&buf, d.MappedTaxon)
		writeOptionalTaxon(&buf, d.InferredTaxon)
		var confBuf [4]byte
		binary.LittleEndian.PutUint32(confBuf[:], uint32(int32(d.Confidence*1e6)))
		buf.Write(confBuf[:])
		buf.Write(encodeTime(d.DetectedAt))
		writeString(&buf, string(d.Type))
	}
	return buf.Bytes()
}

func decodeDiscrepancies(data []byte) ([]Discrepancy, error) {
	r := bytes.NewReader(data)
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	out := make([]Discrepancy, 0, count)
	for i := uint32(0); i < count; i++ {
		var d Discrepancy
		d.SequenceID, err = readString(r)
		if err != nil {
			return nil, err
		}
		if d.HeaderTaxon, err = readOptionalTaxon(r); err != nil {
			return nil, err
		}
		if d.MappedTaxon, err = readOptionalTaxon(r); err != nil {
			return nil, err
		}
		if d.InferredTaxon, err = readOptionalTaxon(r); err != nil {
			return nil, err
		}
		var confBuf [4]byte
		if _, err := r.Read(confBuf[:]); err != nil {
			return nil, err
		}
		d.Confidence = float32(int32(binary.LittleEndian.Uint32(confBuf[:]))) / 1e6

		timeBuf := make([]byte, 8)
		if _, err := r.Read(timeBuf); err != nil {
			return nil, err
		}
		d.DetectedAt, err = decodeTime(timeBuf)
		if err != nil {
			return nil, err
		}

		typeStr, err := readString(r)
		if err != nil {
			return nil, err
		}
		d.Type = DiscrepancyType(typeStr)

		out = append(out, d)
	}
	return out, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return "", err
		}
	}
	return string(b), nil
}

func writeOptionalTaxon(buf *bytes.Buffer, t *taxonomy.ID) {
	if t == nil {
		buf.WriteByte(0)
		writeUint32(buf, 0)
		return
	}
	buf.WriteByte(1)
	writeUint32(buf, uint32(*t))
}

func readOptionalTaxon(r *bytes.Reader) (*taxonomy.ID, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	v, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	id := taxonomy.ID(v)
	return &id, nil
}
