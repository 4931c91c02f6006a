package frame

import (
	"bytes"
	"errors"
	"testing"
)

func TestRoundTripSmallInput(t *testing.T) {
	data := []byte("hello, stegoz4x frame driver")

	var out bytes.Buffer
	c, err := NewCompressor(&out, nil, false)
	if err != nil {
		t.Fatalf("NewCompressor() error = %v", err)
	}
	if _, err := c.Write(data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := c.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	d := NewDecompressor(bytes.NewReader(out.Bytes()), false)
	var got bytes.Buffer
	buf := make([]byte, 64)
	for {
		n, err := d.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if n == 0 {
			break
		}
		got.Write(buf[:n])
	}

	if !bytes.Equal(got.Bytes(), data) {
		t.Fatalf("round trip mismatch: got %q want %q", got.Bytes(), data)
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	bad := []byte{0, 0, 0, 0, 0, 0, 0}
	err := readHeader(bytes.NewReader(bad))
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("readHeader() error = %v, want ErrBadMagic", err)
	}
}

func TestReadHeaderRejectsBadHeaderChecksum(t *testing.T) {
	var out bytes.Buffer
	if err := writeHeader(&out); err != nil {
		t.Fatalf("writeHeader() error = %v", err)
	}
	corrupted := out.Bytes()
	corrupted[6] ^= 0xFF

	err := readHeader(bytes.NewReader(corrupted))
	if !errors.Is(err, ErrHeaderChecksumMismatch) {
		t.Fatalf("readHeader() error = %v, want ErrHeaderChecksumMismatch", err)
	}
}

func headerWithBlockMaxSize(t *testing.T, code uint8) []byte {
	t.Helper()

	var out bytes.Buffer
	if err := writeHeader(&out); err != nil {
		t.Fatalf("writeHeader() error = %v", err)
	}
	buf := out.Bytes()
	buf[5] = code << bdBlockMaxShift
	buf[6] = headerChecksum(buf[4], buf[5])
	return buf
}

func TestReadHeaderAcceptsBlockMaxSizeBoundary(t *testing.T) {
	// spec.md's accept range is {3..=7}, one wider than the {4..=7}
	// the compressor ever writes (index 3 mirrors the original
	// decoder's accept range; see DESIGN.md).
	for _, code := range []uint8{3, 4, 5, 6, 7} {
		buf := headerWithBlockMaxSize(t, code)
		if err := readHeader(bytes.NewReader(buf)); err != nil {
			t.Errorf("readHeader() with block-max-size index %d error = %v, want nil", code, err)
		}
	}

	for _, code := range []uint8{0, 1, 2} {
		buf := headerWithBlockMaxSize(t, code)
		err := readHeader(bytes.NewReader(buf))
		if !errors.Is(err, ErrBadBlockMaxSize) {
			t.Errorf("readHeader() with block-max-size index %d error = %v, want ErrBadBlockMaxSize", code, err)
		}
	}
}

func TestDecompressDetectsContentChecksumMismatch(t *testing.T) {
	var out bytes.Buffer
	c, err := NewCompressor(&out, nil, false)
	if err != nil {
		t.Fatalf("NewCompressor() error = %v", err)
	}
	if _, err := c.Write([]byte("some content to checksum")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := c.Finish(); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	corrupted := out.Bytes()
	// Flip a bit in the trailing content-checksum word.
	corrupted[len(corrupted)-1] ^= 0xFF

	d := NewDecompressor(bytes.NewReader(corrupted), false)
	buf := make([]byte, 64)
	var readErr error
	for {
		n, err := d.Read(buf)
		if err != nil {
			readErr = err
			break
		}
		if n == 0 {
			break
		}
	}

	if !errors.Is(readErr, ErrContentChecksumMismatch) {
		t.Fatalf("Read() error = %v, want ErrContentChecksumMismatch", readErr)
	}
}

func TestFinishReportsZeroCapacityWhenNoMatchesTie(t *testing.T) {
	// Strictly ascending bytes: every 4-byte window is unique, so no
	// back-reference candidate is ever found and the numeral coder is
	// never consulted.
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i)
	}

	var out bytes.Buffer
	c, err := NewCompressor(&out, nil, false)
	if err != nil {
		t.Fatalf("NewCompressor() error = %v", err)
	}
	if _, err := c.Write(data); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	available, err := c.Finish()
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if available != 0 {
		t.Errorf("Finish() available = %d, want 0 when no candidate set ever offered a choice", available)
	}
}
