// Package frame implements the LZ4 frame format around the block codec:
// magic number, frame descriptor, block loop, content checksum, and the
// hidden-data wiring that drives the numeral coder and occurrence map
// across block boundaries.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"

	"github.com/pierrec/xxHash/xxHash32"

	"github.com/harriteja/stegoz4x/block"
	"github.com/harriteja/stegoz4x/occurrence"
	"github.com/harriteja/stegoz4x/stego"
)

const (
	magic = 0x184D2204

	flagVersionShift  = 6
	flagVersionMask   = 0x3
	flagBlockIndep    = 1 << 5
	flagBlockChecksum = 1 << 4
	flagContentSize   = 1 << 3
	flagContentCsum   = 1 << 2
	flagDictID        = 1 << 0

	bdBlockMaxShift = 4
	bdBlockMaxMask  = 0x7

	// blockMaxSizeIndex selects 4MiB blocks (index 7 of {4,5,6,7}).
	blockMaxSizeIndex = 7
	// MaxBlockSize is the block-size cap this driver writes at, per
	// blockMaxSizeIndex: 4MiB minus the 12-byte reserve the original
	// implementation carries for frame bookkeeping overhead.
	MaxBlockSize = 4*1024*1024 - 12

	uncompressedBit = 1 << 31
	blockSizeMask   = (1 << 31) - 1
)

var (
	// ErrBadMagic is returned when the frame does not begin with the LZ4 magic number.
	ErrBadMagic = errors.New("frame: bad magic number")
	// ErrUnsupportedVersion is returned for any FLG version other than 1.
	ErrUnsupportedVersion = errors.New("frame: unsupported version")
	// ErrDictionaryUnsupported is returned when the dictionary-ID flag is set.
	ErrDictionaryUnsupported = errors.New("frame: dictionary IDs are not supported")
	// ErrBlockDependent is returned when the block-independence flag is clear.
	ErrBlockDependent = errors.New("frame: dependent blocks are not supported")
	// ErrBadBlockMaxSize is returned when BD's block-max-size index is out of range.
	ErrBadBlockMaxSize = errors.New("frame: invalid block-max-size index")
	// ErrHeaderChecksumMismatch is returned when the HC byte does not match the computed checksum.
	ErrHeaderChecksumMismatch = errors.New("frame: header checksum mismatch")
	// ErrContentChecksumMismatch is returned when the frame footer checksum does not match the decoded content.
	ErrContentChecksumMismatch = errors.New("frame: content checksum mismatch")
)

// blockMaxSizes maps the BD byte's block-max-size nibble to a size. The
// compressor only ever emits index 7; index 3 is accepted on read (but
// never written) for parity with the original decoder's accept range.
var blockMaxSizes = map[uint8]int{
	3: 16 * 1024,
	4: 64 * 1024,
	5: 256 * 1024,
	6: 1024 * 1024,
	7: 4 * 1024 * 1024,
}

func headerChecksum(flg, bd byte) byte {
	h := xxHash32.New(0)
	h.Write([]byte{flg, bd})
	return byte((h.Sum32() >> 8) & 0xFF)
}

func writeHeader(w io.Writer) error {
	var buf [7]byte
	binary.LittleEndian.PutUint32(buf[0:4], magic)

	flg := byte(1<<flagVersionShift) | flagBlockIndep | flagContentCsum
	bd := byte(blockMaxSizeIndex << bdBlockMaxShift)
	hc := headerChecksum(flg, bd)

	buf[4], buf[5], buf[6] = flg, bd, hc

	_, err := w.Write(buf[:])
	return err
}

func readHeader(r io.Reader) error {
	var buf [7]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}

	if binary.LittleEndian.Uint32(buf[0:4]) != magic {
		return ErrBadMagic
	}

	flg, bd, hc := buf[4], buf[5], buf[6]

	if headerChecksum(flg, bd) != hc {
		return fmt.Errorf("%w: got %#x want %#x", ErrHeaderChecksumMismatch, hc, headerChecksum(flg, bd))
	}

	version := (flg >> flagVersionShift) & flagVersionMask
	if version != 1 {
		return fmt.Errorf("%w: version %d", ErrUnsupportedVersion, version)
	}
	if flg&flagDictID != 0 {
		return ErrDictionaryUnsupported
	}
	if flg&flagBlockIndep == 0 {
		return ErrBlockDependent
	}

	blockSizeCode := (bd >> bdBlockMaxShift) & bdBlockMaxMask
	if _, ok := blockMaxSizes[blockSizeCode]; !ok {
		return fmt.Errorf("%w: %d", ErrBadBlockMaxSize, blockSizeCode)
	}

	return nil
}

// Compressor writes a steganographic LZ4 frame to an underlying
// io.Writer, pulling hidden-data digits from a stego.Decoder at each
// match site that offers a free choice.
type Compressor struct {
	w            io.Writer
	buf          []byte
	hash         hash.Hash32
	dec          *stego.Decoder
	preferHidden bool
}

// NewCompressor creates a Compressor writing to w and writes the frame
// header immediately. If hidden is non-nil its bytes seed the
// steganographic channel; preferHidden trades compression ratio for
// hidden-data capacity at every match site.
func NewCompressor(w io.Writer, hidden []byte, preferHidden bool) (*Compressor, error) {
	c := &Compressor{
		w:            w,
		hash:         xxHash32.New(0),
		dec:          stego.NewDecoder(hidden),
		preferHidden: preferHidden,
	}

	if err := writeHeader(w); err != nil {
		return nil, err
	}
	return c, nil
}

// Write buffers p, updates the running content checksum, and flushes any
// complete MaxBlockSize chunks as compressed blocks.
func (c *Compressor) Write(p []byte) (int, error) {
	c.buf = append(c.buf, p...)
	c.hash.Write(p)

	for len(c.buf) >= MaxBlockSize {
		if err := c.emitBlock(c.buf[:MaxBlockSize]); err != nil {
			return 0, err
		}
		c.buf = c.buf[MaxBlockSize:]
	}

	return len(p), nil
}

func (c *Compressor) emitBlock(data []byte) error {
	if len(data) < block.MinCompressLength {
		return c.emitUncompressed(data)
	}

	compressed := block.EncodeBlock(nil, data, c.dec, c.preferHidden)
	if len(compressed) > MaxBlockSize {
		return c.emitUncompressed(data)
	}

	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(compressed))&blockSizeMask)
	if _, err := c.w.Write(header[:]); err != nil {
		return err
	}
	_, err := c.w.Write(compressed)

	slog.Debug("frame emitted compressed block", "raw_len", len(data), "compressed_len", len(compressed))
	return err
}

func (c *Compressor) emitUncompressed(data []byte) error {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(data))|uncompressedBit)
	if _, err := c.w.Write(header[:]); err != nil {
		return err
	}
	_, err := c.w.Write(data)

	slog.Debug("frame emitted uncompressed block", "len", len(data))
	return err
}

// Finish encodes any buffered remainder, writes the end-of-frame
// terminator and content checksum, and returns the estimated hidden-data
// capacity consumed during compression.
func (c *Compressor) Finish() (int, error) {
	if len(c.buf) > 0 {
		if err := c.emitBlock(c.buf); err != nil {
			return 0, err
		}
		c.buf = nil
	}

	var footer [8]byte
	binary.LittleEndian.PutUint32(footer[0:4], 0)
	binary.LittleEndian.PutUint32(footer[4:8], c.hash.Sum32())
	if _, err := c.w.Write(footer[:]); err != nil {
		return 0, err
	}

	if flusher, ok := c.w.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			return 0, err
		}
	}

	return c.dec.AvailableBytes(), nil
}

// Decompressor reads a steganographic LZ4 frame from an underlying
// io.Reader, reconstructing an occurrence map over the decoded bytes of
// each block to recover the hidden-data digit sequence.
type Decompressor struct {
	r            io.Reader
	preferHidden bool

	headerRead bool
	hash       hash.Hash32
	enc        *stego.Encoder

	out    []byte
	outPos int
	eof    bool
}

// NewDecompressor creates a Decompressor reading from r. preferHidden
// must match the value used to produce the frame, or the recovered
// hidden data (not the plain data) will be garbage.
func NewDecompressor(r io.Reader, preferHidden bool) *Decompressor {
	return &Decompressor{
		r:            r,
		preferHidden: preferHidden,
		hash:         xxHash32.New(0),
		enc:          stego.NewEncoder(),
	}
}

// Read implements the blocking pull contract described in spec.md: a
// return of (0, nil) signals end-of-frame, not io.EOF.
func (d *Decompressor) Read(buf []byte) (int, error) {
	if d.eof {
		return 0, nil
	}

	if !d.headerRead {
		if err := readHeader(d.r); err != nil {
			return 0, err
		}
		d.headerRead = true
	}

	if d.outPos >= len(d.out) {
		d.out = d.out[:0]
		d.outPos = 0

		n, err := d.readBlock()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			d.eof = true
			return 0, nil
		}
	}

	n := copy(buf, d.out[d.outPos:])
	d.outPos += n
	return n, nil
}

func (d *Decompressor) readBlock() (int, error) {
	var header [4]byte
	if _, err := io.ReadFull(d.r, header[:]); err != nil {
		return 0, err
	}
	word := binary.LittleEndian.Uint32(header[:])

	if word == 0 {
		return 0, d.checkContentChecksum()
	}

	size := int(word & blockSizeMask)
	raw := make([]byte, size)
	if _, err := io.ReadFull(d.r, raw); err != nil {
		return 0, err
	}

	if word&uncompressedBit != 0 {
		d.hash.Write(raw)
		d.out = append(d.out, raw...)
		slog.Debug("frame read uncompressed block", "len", size)
		return size, nil
	}

	start := len(d.out)
	decoded, matches, err := block.DecodeBlock(d.out, raw, 0)
	if err != nil {
		return 0, err
	}
	d.out = decoded
	d.hash.Write(d.out[start:])

	d.analyzeMatches(d.out[start:], matches)
	slog.Debug("frame read compressed block", "compressed_len", size, "decoded_len", len(d.out)-start)

	return len(d.out) - start, nil
}

// analyzeMatches rebuilds the same occurrence map the compressor would
// have seen over this block's decoded bytes and, for each recorded
// match, recovers the candidate index the compressor picked. It must
// register every position the compressor's occ.Add calls covered,
// including the matched bytes themselves, or the two maps diverge and
// later candidate sets stop lining up.
func (d *Decompressor) analyzeMatches(data []byte, matches []block.Match) {
	occ := occurrence.New(data, d.preferHidden)

	last := 0
	for _, m := range matches {
		if m.Dst > last {
			occ.Add(last, m.Dst-last)
		}

		set := occ.Get(m.Dst)
		matchLen := block.MatchLengthOffset
		if idx, ok := set.IndexOf(m.Src); ok {
			_, matchLen = set.Choose(idx)
			// Singletons never touch the hidden-data stream; see
			// block.EncodeBlock.
			if set.Len() > 1 {
				d.enc.Add(uint16(idx), uint16(set.Len()))
			}
		}

		occ.Add(m.Dst, matchLen)
		last = m.Dst + matchLen
	}
}

func (d *Decompressor) checkContentChecksum() error {
	var buf [4]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return err
	}

	want := binary.LittleEndian.Uint32(buf[:])
	got := d.hash.Sum32()
	if want != got {
		return fmt.Errorf("%w: got %#x want %#x", ErrContentChecksumMismatch, got, want)
	}
	return nil
}

// Finish returns the hidden-data bytes recovered from the frame read so
// far. It should be called after Read has returned (0, nil).
func (d *Decompressor) Finish() []byte {
	return d.enc.Finish()
}
