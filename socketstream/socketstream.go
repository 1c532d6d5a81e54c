// Package socketstream provides a byte-stream facade over a TcpClient with
// two separate buffers of the configured size, one for reads and one for
// writes; there is no single shared bidirectional buffer. Reads fill the
// read buffer from the socket when empty and serve from it; writes
// accumulate in the write buffer and flush on overflow or explicit Flush.
package socketstream

import (
	"io"

	"github.com/fbnet-go/fbnet"
	"github.com/fbnet-go/fbnet/errors"
	"github.com/fbnet-go/fbnet/internal/socket"
	"github.com/valyala/bytebufferpool"
)

// DefaultBufferSize is the default read/write buffer capacity.
const DefaultBufferSize = 8192

// Stream wraps a *fbnet.TcpClient with buffered reads and writes.
type Stream struct {
	client *fbnet.TcpClient
	size   int

	readBuf  *bytebufferpool.ByteBuffer
	readPos  int
	writeBuf *bytebufferpool.ByteBuffer
	closed   bool
}

// New wraps client with a buffer of DefaultBufferSize.
func New(client *fbnet.TcpClient) *Stream {
	return NewSize(client, DefaultBufferSize)
}

// NewSize wraps client with a buffer of the given capacity.
func NewSize(client *fbnet.TcpClient, size int) *Stream {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Stream{
		client:   client,
		size:     size,
		readBuf:  bytebufferpool.Get(),
		writeBuf: bytebufferpool.Get(),
	}
}

// Read serves from the internal buffer, refilling from the socket when
// empty. Satisfies io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, errors.New(errors.Logic, "socketstream: read on closed stream")
	}
	if s.readPos >= len(s.readBuf.B) {
		s.readBuf.Reset()
		s.readPos = 0
		scratch := make([]byte, s.size)
		n, err := s.client.RecvBytes(scratch)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		s.readBuf.Write(scratch[:n])
	}
	n := copy(p, s.readBuf.B[s.readPos:])
	s.readPos += n
	return n, nil
}

// Write accumulates into the internal buffer, flushing on overflow.
// Satisfies io.Writer.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errors.New(errors.Logic, "socketstream: write on closed stream")
	}
	total := 0
	for len(p) > 0 {
		room := s.size - len(s.writeBuf.B)
		if room <= 0 {
			if err := s.Flush(); err != nil {
				return total, err
			}
			room = s.size
		}
		chunk := p
		if len(chunk) > room {
			chunk = p[:room]
		}
		s.writeBuf.Write(chunk)
		total += len(chunk)
		p = p[len(chunk):]
	}
	if len(s.writeBuf.B) >= s.size {
		if err := s.Flush(); err != nil {
			return total, err
		}
	}
	return total, nil
}

// Flush writes the buffered bytes using SendBytesAll semantics.
func (s *Stream) Flush() error {
	if len(s.writeBuf.B) == 0 {
		return nil
	}
	_, err := s.client.SendBytesAll(s.writeBuf.B)
	s.writeBuf.Reset()
	return err
}

// Close flushes, shuts down the write half, and closes the underlying
// client.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	flushErr := s.Flush()
	_ = s.client.Shutdown(socket.ShutdownWrite)
	bytebufferpool.Put(s.readBuf)
	bytebufferpool.Put(s.writeBuf)
	closeErr := s.client.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
