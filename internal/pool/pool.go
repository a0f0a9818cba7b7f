package pool

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// ---------------------------------------------------------------
// Every /log request reads a body into a buffer and, when the sender
// compresses, needs a gzip reader. Both are pooled so a chatty agent
// does not churn the GC.
// ---------------------------------------------------------------

var (
	// BodyPool:
	//   - holds the raw /log body while it is validated
	//   - 4KB initial capacity covers a typical log line
	//   - oversized buffers are not returned (see PutBody)
	BodyPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 4*1024))
		},
	}

	// gzipReaders has no New: a gzip.Reader can only be built from a
	// valid stream, so GetGzipReader allocates on a miss.
	gzipReaders sync.Pool
)

// GetBody returns an empty buffer from BodyPool.
func GetBody() *bytes.Buffer {
	buf := BodyPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBody:
//   - returns buf to BodyPool when its capacity is at most maxCap
//   - larger buffers are left to the GC so one huge body is not retained
func PutBody(buf *bytes.Buffer, maxCap int64) {
	if int64(buf.Cap()) <= maxCap {
		buf.Reset()
		BodyPool.Put(buf)
	}
}

// GetGzipReader returns a reader decompressing r, reusing a pooled one
// when available. The header is read immediately, so a non-gzip stream
// fails here.
func GetGzipReader(r io.Reader) (*gzip.Reader, error) {
	if zr, ok := gzipReaders.Get().(*gzip.Reader); ok {
		if err := zr.Reset(r); err != nil {
			gzipReaders.Put(zr)
			return nil, err
		}
		return zr, nil
	}
	return gzip.NewReader(r)
}

// PutGzipReader closes zr and makes it available for reuse.
func PutGzipReader(zr *gzip.Reader) {
	_ = zr.Close()
	gzipReaders.Put(zr)
}
