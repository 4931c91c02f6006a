// Package stego implements the mixed-radix numeral codec that carries the
// hidden-data channel through an LZ4 frame's free encoding choices.
//
// A Decoder pulls digits out of a hidden-data byte slice; it is driven by
// the compressor every time a match site offers more than one valid
// candidate. An Encoder pushes digits recovered during decompression back
// into bytes; it is driven by the decompressor's occurrence-map analyzer.
// The two are not interchangeable and neither is safe for concurrent use.
package stego

import "math"

// Decoder pulls mixed-radix digits from a hidden-data byte slice.
type Decoder struct {
	remaining     []byte
	x             uint32
	availableBits float64
}

// NewDecoder returns a Decoder over data. The slice is read left to right
// and never mutated.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{remaining: data}
}

// Decode returns a value in [0, bound) and advances the internal register.
// Callers must not invoke Decode with bound == 1: a candidate set of size
// one is not a free choice and carries no hidden-data capacity.
func (d *Decoder) Decode(bound uint16) uint16 {
	d.availableBits += math.Log2(float64(bound))

	b := uint32(bound)
	for d.x < (b<<8) && len(d.remaining) > 0 {
		d.x <<= 8
		d.x += uint32(d.remaining[0])
		d.remaining = d.remaining[1:]
	}

	result := uint16(d.x % b)
	d.x /= b
	return result
}

// AvailableBytes estimates how many whole bytes of hidden-data capacity
// have been consumed so far. It is a reporting aid only: it never drives
// control flow in the encoder or decoder paths.
func (d *Decoder) AvailableBytes() int {
	return int(d.availableBits / 8.0)
}

// pair is one deferred (value, bound) digit awaiting Finish.
type pair struct {
	value, bound uint16
}

// Encoder accumulates mixed-radix digits and serializes them to bytes on
// Finish. Digits must be added in the order they are observed; Finish
// replays them in reverse to match the Decoder's LIFO consumption.
type Encoder struct {
	values []pair
	out    []byte
	x      uint32
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Add records one digit. value must satisfy 0 <= value < bound <= 65535;
// violating this is a programmer error and panics.
func (e *Encoder) Add(value, bound uint16) {
	if value >= bound {
		panic("stego: value out of bound")
	}
	e.values = append(e.values, pair{value, bound})
}

// Finish serializes all recorded digits to a big-endian byte string and
// returns it. The Encoder must not be reused afterward.
func (e *Encoder) Finish() []byte {
	for i := len(e.values) - 1; i >= 0; i-- {
		v, b := e.values[i], uint32(e.values[i].bound)
		e.x = e.x*b + uint32(v.value)

		for e.x >= (1 << 16) {
			e.out = append(e.out, byte(e.x&0xFF))
			e.x >>= 8
		}
	}

	for e.x > 0 {
		e.out = append(e.out, byte(e.x&0xFF))
		e.x >>= 8
	}

	for i, j := 0, len(e.out)-1; i < j; i, j = i+1, j-1 {
		e.out[i], e.out[j] = e.out[j], e.out[i]
	}

	return e.out
}
