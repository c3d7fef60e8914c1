package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// MaxFrameSize bounds a single newline-delimited message, matching the
// Streamable HTTP transport's request body cap so no transport gives an
// attacker a bigger buffer to exhaust than any other.
const MaxFrameSize = 1 << 20 // 1MB

// InitialScanBuffer is the scanner's starting buffer size; it grows up
// to MaxFrameSize as needed rather than allocating the max up front.
const InitialScanBuffer = 256 * 1024

// LineCodec reads and writes MCP envelopes as newline-delimited JSON
// over a raw io.Reader/io.Writer pair, the framing stdio, TCP, and Unix
// domain socket transports all share. Writes are serialized with a
// mutex so concurrent WriteEnvelope callers never interleave partial
// frames (mirrors the teacher's copyMessages, which only ever had one
// writer per direction; this generalizes it to many).
type LineCodec struct {
	scanner *bufio.Scanner
	writer  io.Writer
	writeMu sync.Mutex
}

// NewLineCodec wraps r/w for line-delimited JSON framing.
func NewLineCodec(r io.Reader, w io.Writer) *LineCodec {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, InitialScanBuffer)
	scanner.Buffer(buf, MaxFrameSize)
	return &LineCodec{scanner: scanner, writer: w}
}

// ReadEnvelope blocks for the next line and decodes it. Returns io.EOF
// once the underlying reader is exhausted.
func (c *LineCodec) ReadEnvelope(ctx context.Context) (*mcp.Envelope, error) {
	type scanResult struct {
		ok   bool
		line []byte
		err  error
	}
	resultCh := make(chan scanResult, 1)
	go func() {
		ok := c.scanner.Scan()
		line := append([]byte(nil), c.scanner.Bytes()...)
		resultCh <- scanResult{ok: ok, line: line, err: c.scanner.Err()}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultCh:
		if !res.ok {
			if res.err != nil {
				return nil, fmt.Errorf("scan frame: %w", res.err)
			}
			return nil, io.EOF
		}
		return mcp.DecodeEnvelope(res.line)
	}
}

// WriteEnvelope encodes env and writes it followed by a newline.
func (c *LineCodec) WriteEnvelope(ctx context.Context, env *mcp.Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if _, err := c.writer.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("write frame newline: %w", err)
	}
	return nil
}
