package ingest

import (
	"bytes"
	"encoding/binary"

	"github.com/talaria-db/talaria/internal/chunker"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

// encodeChunkPayload serialises a chunk's records into the canonical
// byte payload whose hash becomes the chunk's content hash. Encoding
// is deterministic: same records, same order, in, same bytes out —
// required for dedup across releases (§8 scenario 1) to actually
// reuse chunks.
func encodeChunkPayload(c chunker.Chunk) []byte {
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(c.Records)))
	for _, r := range c.Records {
		writeString(&buf, r.SequenceID)
		writeString(&buf, r.Description)
		taxon := taxonomy.Unclassified
		if r.TaxonID != nil {
			taxon = *r.TaxonID
		}
		writeUint32(&buf, uint32(taxon))
		writeBytes(&buf, r.Payload)
	}
	return buf.Bytes()
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}
