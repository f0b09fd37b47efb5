package layer

import (
	"bufio"
	"compress/gzip"
	"io"
)

// peekReader lets the blob-storage path look at the first bytes of a
// stream (to detect the gzip magic) without consuming them for the
// downstream reader.
type peekReader struct {
	br *bufio.Reader
}

func newPeekReader(r io.Reader) *peekReader {
	return &peekReader{br: bufio.NewReader(r)}
}

func (p *peekReader) Peek(n int) ([]byte, error) {
	return p.br.Peek(n)
}

func (p *peekReader) Read(b []byte) (int, error) {
	return p.br.Read(b)
}

func newGzipReader(r io.Reader) (io.Reader, error) {
	return gzip.NewReader(r)
}
