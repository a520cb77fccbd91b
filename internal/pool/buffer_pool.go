package pool

import (
	"bytes"
	"sync"
)

// maxPooledBufferSize keeps oversized buffers out of the pool.
const maxPooledBufferSize = 64 * 1024

var bufferPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// GetBuffer returns an empty buffer from the pool.
func GetBuffer() *bytes.Buffer {
	buf, _ := bufferPool.Get().(*bytes.Buffer)
	if buf == nil {
		buf = new(bytes.Buffer)
	}
	buf.Reset()

	return buf
}

// PutBuffer returns buf to the pool. buf must not be used afterwards.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBufferSize {
		return
	}
	bufferPool.Put(buf)
}
