package event

import (
	"bytes"
	"encoding/json"
	"sync"
)

// bufferPool recycles encode buffers used on every publish.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// acquireBuffer gets an empty buffer from the pool.
func acquireBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// releaseBuffer resets buf and returns it to the pool.
// Oversized buffers are dropped so one large order does not pin memory.
func releaseBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > 64<<10 {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// encode marshals v into a fresh slice that outlives the pooled buffer.
func encode(v any) ([]byte, error) {
	buf := acquireBuffer()
	defer releaseBuffer(buf)

	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return nil, err
	}
	// Encoder appends a newline
	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return bytes.Clone(out), nil
}

// Warmup pre-allocates encode buffers before the first publish.
func Warmup() {
	const batchSize = 64

	bufs := make([]*bytes.Buffer, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		buf := acquireBuffer()
		buf.Grow(512)
		bufs = append(bufs, buf)
	}
	for _, buf := range bufs {
		releaseBuffer(buf)
	}
}
