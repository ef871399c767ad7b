package core

// streaming.go wraps an input file for the CSV reader: a leading UTF-8 BOM
// (written by spreadsheet exports) is dropped and bytes read are counted so
// stage progress can report how far through the file the reader is.

import (
	"bufio"
	"bytes"
	"io"
	"sync/atomic"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// countingSource counts bytes consumed from the underlying file.
type countingSource struct {
	r     io.Reader
	read  atomic.Int64
	total int64
}

// newCountingSource wraps r, whose full size is total (0 when unknown), and
// strips a leading BOM.
func newCountingSource(r io.Reader, total int64) *countingSource {
	cs := &countingSource{total: total}
	br := bufio.NewReader(&countingReader{r: r, n: &cs.read})
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	cs.r = br
	return cs
}

func (c *countingSource) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// BytesRead returns the number of bytes pulled from the file so far. Buffering
// means this can run ahead of the record being parsed.
func (c *countingSource) BytesRead() int64 {
	return c.read.Load()
}

// Percent returns progress through the file, 0-100. Returns 0 when the size is
// unknown.
func (c *countingSource) Percent() int {
	if c.total <= 0 {
		return 0
	}
	pct := int(c.read.Load() * 100 / c.total)
	if pct > 100 {
		pct = 100
	}
	return pct
}

type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
