// Package block implements the LZ4 block format: token/LSIC length
// coding and back-reference emission and parsing. The encode path draws
// its choice of match candidate, whenever more than one is valid, from a
// stego.Decoder; the decode path records every (destination, source)
// match pair it emits so a frame-level analyzer can recover which
// candidate was chosen.
package block

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/harriteja/stegoz4x/occurrence"
	"github.com/harriteja/stegoz4x/stego"
)

const (
	// MinCompressLength is the smallest block the encoder will attempt
	// to compress; shorter blocks are always stored uncompressed. It
	// also guarantees the encode loop's `i < len(data)-EndLiteralNum`
	// bound never underflows.
	MinCompressLength = 13
	// EndLiteralNum is the mandatory uncompressed tail reserved at the
	// end of every block.
	EndLiteralNum = occurrence.EndLiteralNum
	// MatchLengthOffset is the minimum real match length; it is
	// subtracted before a match length is stored on the wire.
	MatchLengthOffset = 4
	// TokenMaxVal is the nibble value (15) that signals an LSIC
	// continuation follows.
	TokenMaxVal = 15
	// MaxBlockSize is the largest block this encoder will ever produce
	// in compressed form before falling back to an uncompressed block.
	MaxBlockSize = 4*1024*1024 - 12
)

var (
	// ErrZeroOffset is returned when a parsed sequence's offset field is 0.
	ErrZeroOffset = errors.New("block: match offset is zero")
	// ErrTruncatedInput is returned when a sequence's fields run past the
	// end of the supplied input.
	ErrTruncatedInput = errors.New("block: truncated sequence")
)

// Match records one back-reference emitted during decode: Dst is the
// block-local position the copy was written to, Src is the block-local
// position it was copied from.
type Match struct {
	Dst, Src int
}

// token packs literal-length and match-length nibbles, mirroring the LZ4
// wire token byte.
type token byte

func newToken(litLen, matchLen int) token {
	return token(min(litLen, TokenMaxVal)<<4 | min(matchLen, TokenMaxVal))
}

func (t token) literalNibble() int { return int(t >> 4) }
func (t token) matchNibble() int   { return int(t & 0x0F) }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// EncodeBlock compresses data into dst, drawing candidate-choice digits
// from dec whenever a match site offers more than one valid candidate.
// Blocks shorter than MinCompressLength, or whose compressed form would
// exceed MaxBlockSize, are emitted uncompressed instead.
func EncodeBlock(dst, data []byte, dec *stego.Decoder, preferHidden bool) []byte {
	if len(data) < MinCompressLength {
		return EncodeUncompressed(dst, data)
	}

	occ := occurrence.New(data, preferHidden)
	literals := make([]byte, 0, 64)
	out := dst

	i := 0
	limit := len(data) - EndLiteralNum
	for i < limit {
		set := occ.Get(i)

		if set.Len() == 0 {
			literals = append(literals, data[i])
			occ.Add(i, 1)
			i++
			continue
		}

		// A candidate set of size 1 is not a free choice: the numeral
		// coder is only consulted where more than one valid encoding
		// exists, so a singleton never touches the hidden-data stream.
		choice := 0
		if set.Len() > 1 {
			choice = int(dec.Decode(uint16(set.Len())))
		}
		srcIndex, matchLength := set.Choose(choice)

		if matchLength < 4 {
			literals = append(literals, data[i])
			occ.Add(i, 1)
			i++
			continue
		}

		out = emitSequence(out, literals, uint16(i-srcIndex), matchLength)
		literals = literals[:0]
		occ.Add(i, matchLength)
		i += matchLength
	}

	literals = append(literals, data[limit:]...)
	out = emitSequence(out, literals, 0, MatchLengthOffset)

	if len(out)-len(dst) > MaxBlockSize {
		return EncodeUncompressed(dst, data)
	}

	slog.Debug("block encoded", "input_len", len(data), "output_len", len(out)-len(dst))
	return out
}

// EncodeUncompressed appends data verbatim to dst; the frame driver sets
// the block-header uncompressed bit around the returned bytes.
func EncodeUncompressed(dst, data []byte) []byte {
	return append(dst, data...)
}

func emitSequence(out []byte, literals []byte, offset uint16, matchLength int) []byte {
	storedMatchLen := matchLength - MatchLengthOffset

	t := newToken(len(literals), storedMatchLen)
	out = append(out, byte(t))
	out = emitLSIC(out, len(literals), TokenMaxVal)
	out = append(out, literals...)

	if offset != 0 {
		out = append(out, byte(offset), byte(offset>>8))
		out = emitLSIC(out, storedMatchLen, TokenMaxVal)
	}

	return out
}

// emitLSIC appends continuation bytes for val when it meets or exceeds
// maxVal (the nibble's all-ones sentinel), per the LZ4 LSIC scheme.
func emitLSIC(out []byte, val, maxVal int) []byte {
	if val < maxVal {
		return out
	}

	rem := val - maxVal
	for rem > 255 {
		out = append(out, 255)
		rem -= 255
	}
	return append(out, byte(rem))
}

// parseLSIC reads continuation bytes from data (consuming them) and
// returns the decoded length plus the number of bytes consumed.
func parseLSIC(data []byte, initial int, maxVal int) (int, int, error) {
	v := initial
	if initial < maxVal {
		return v, 0, nil
	}

	consumed := 0
	for {
		if consumed >= len(data) {
			return 0, 0, fmt.Errorf("%w: LSIC continuation past end of input", ErrTruncatedInput)
		}
		b := data[consumed]
		consumed++
		v += int(b)
		if b < 255 {
			return v, consumed, nil
		}
	}
}

// DecodeBlock decompresses data (one LZ4 block's compressed bytes,
// excluding the 4-byte block-size header) into dst and returns the
// decompressed bytes plus every (dst, src) match pair encountered, for
// the frame driver's stego analyzer.
func DecodeBlock(dst, data []byte, maxSize int) ([]byte, []Match, error) {
	out := dst
	blockStart := len(dst)
	var matches []Match

	for {
		if len(data) == 0 {
			return out, matches, fmt.Errorf("%w: missing token", ErrTruncatedInput)
		}
		t := token(data[0])
		data = data[1:]

		litLen, n, err := parseLSIC(data, t.literalNibble(), TokenMaxVal)
		if err != nil {
			return out, matches, err
		}
		data = data[n:]

		if litLen > len(data) {
			return out, matches, fmt.Errorf("%w: literal run past end of input", ErrTruncatedInput)
		}
		if maxSize > 0 && len(out)-blockStart+litLen > maxSize {
			return out, matches, fmt.Errorf("block: decompressed size exceeds limit %d", maxSize)
		}
		out = append(out, data[:litLen]...)
		data = data[litLen:]

		if len(data) == 0 {
			// Final sequence: literals only, no offset/match.
			return out, matches, nil
		}

		if len(data) < 2 {
			return out, matches, fmt.Errorf("%w: missing match offset", ErrTruncatedInput)
		}
		offset := int(data[0]) | int(data[1])<<8
		data = data[2:]
		if offset == 0 {
			return out, matches, ErrZeroOffset
		}

		matchLen, n, err := parseLSIC(data, t.matchNibble(), TokenMaxVal)
		if err != nil {
			return out, matches, err
		}
		data = data[n:]
		matchLen += MatchLengthOffset

		dstPos := len(out)
		srcPos := dstPos - offset
		if srcPos < blockStart {
			return out, matches, fmt.Errorf("block: offset %d references before block start", offset)
		}
		if maxSize > 0 && dstPos-blockStart+matchLen > maxSize {
			return out, matches, fmt.Errorf("block: decompressed size exceeds limit %d", maxSize)
		}

		matches = append(matches, Match{Dst: dstPos - blockStart, Src: srcPos - blockStart})

		out = append(out, make([]byte, matchLen)...)
		copyMatch(out, dstPos, srcPos, matchLen)
	}
}
