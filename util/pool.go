package util

import "sync"

// ChunkSize is the largest number of bytes a relay loop reads per call.
// Each read is one traced chunk.
const ChunkSize = 1024

// BufPool hands out fixed-size read buffers so each relay loop owns its
// own buffer for the lifetime of the loop.
var BufPool = sync.Pool{ //nolint:gochecknoglobals
	New: func() interface{} {
		buf := make([]byte, ChunkSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
