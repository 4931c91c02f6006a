// Package stegoz4x provides a pure-Go implementation of the LZ4 frame
// format that doubles as a steganographic channel: whenever the encoder
// has a free choice among equally valid back-references, the choice is
// drawn from a hidden payload, and the decoder recovers that payload by
// reproducing the same choice set during decompression.
package stegoz4x

import (
	"io"

	"github.com/harriteja/stegoz4x/block"
	"github.com/harriteja/stegoz4x/frame"
	"github.com/harriteja/stegoz4x/stego"
)

// Version identifies this module's release.
const Version = "1.0.0"

// CompressBlock compresses src as a single LZ4 block (no frame wrapper,
// no hidden-data channel) and appends the result to dst.
func CompressBlock(src, dst []byte) []byte {
	return block.EncodeBlock(dst, src, stego.NewDecoder(nil), false)
}

// DecompressBlock decompresses src (the output of CompressBlock) and
// appends the result to dst. maxSize, if non-zero, bounds the
// decompressed size.
func DecompressBlock(src, dst []byte, maxSize int) ([]byte, error) {
	out, _, err := block.DecodeBlock(dst, src, maxSize)
	return out, err
}

// Compressor writes a steganographic LZ4 frame to an underlying
// io.Writer.
type Compressor struct {
	c *frame.Compressor
}

// NewCompressor creates a Compressor writing to w. hidden, if non-nil,
// seeds the steganographic channel; preferHidden trades compression
// ratio for hidden-data capacity at every match site where more than
// one back-reference of any length is valid, instead of only where
// several of the same maximal length tie.
func NewCompressor(w io.Writer, hidden []byte, preferHidden bool) (*Compressor, error) {
	c, err := frame.NewCompressor(w, hidden, preferHidden)
	if err != nil {
		return nil, err
	}
	return &Compressor{c: c}, nil
}

// Write implements io.Writer.
func (c *Compressor) Write(p []byte) (int, error) {
	return c.c.Write(p)
}

// Finish flushes any buffered data, writes the frame terminator and
// content checksum, and returns the estimated hidden-data capacity the
// frame's choice points could carry.
func (c *Compressor) Finish() (int, error) {
	return c.c.Finish()
}

// Close implements io.Closer by calling Finish and discarding the
// returned capacity count.
func (c *Compressor) Close() error {
	_, err := c.Finish()
	return err
}

// Decompressor reads a steganographic LZ4 frame from an underlying
// io.Reader.
type Decompressor struct {
	d *frame.Decompressor
}

// NewDecompressor creates a Decompressor reading from r. preferHidden
// must match the value the frame was produced with.
func NewDecompressor(r io.Reader, preferHidden bool) *Decompressor {
	return &Decompressor{d: frame.NewDecompressor(r, preferHidden)}
}

// Read implements io.Reader, except that it returns (0, nil) rather than
// (0, io.EOF) at end-of-frame; callers that want conventional io.EOF
// semantics should check for a zero count themselves or wrap with their
// own sentinel.
func (d *Decompressor) Read(p []byte) (int, error) {
	return d.d.Read(p)
}

// Finish returns the hidden-data bytes recovered from the frame. Call it
// after Read has returned a zero count.
func (d *Decompressor) Finish() []byte {
	return d.d.Finish()
}
