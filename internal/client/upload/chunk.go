package upload

// DefaultChunkSize is the multipart threshold and part size: 5 MiB.
const DefaultChunkSize int64 = 5 * 1024 * 1024

// Chunk is one part of a multipart upload: the byte range
// [Offset, Offset+Length) of the source, sent as PartNumber.
type Chunk struct {
	PartNumber int32
	Offset     int64
	Length     int64
}

// End returns the offset just past the chunk.
func (c Chunk) End() int64 { return c.Offset + c.Length }

// PlanChunks splits size bytes into consecutive chunks of at most chunkSize
// bytes, numbered from 1. Only the last chunk may be shorter.
func PlanChunks(size, chunkSize int64) []Chunk {
	if size <= 0 || chunkSize <= 0 {
		return nil
	}

	chunks := make([]Chunk, 0, (size+chunkSize-1)/chunkSize)
	var part int32 = 1
	for off := int64(0); off < size; off += chunkSize {
		chunks = append(chunks, Chunk{
			PartNumber: part,
			Offset:     off,
			Length:     min(chunkSize, size-off),
		})
		part++
	}
	return chunks
}

// Progress returns floor(done*100/total), clamped to [0, 100]. An empty
// source is complete by definition.
func Progress(done, total int64) int {
	if total <= 0 {
		return 100
	}
	if done <= 0 {
		return 0
	}
	if done >= total {
		return 100
	}
	return int(done * 100 / total)
}
