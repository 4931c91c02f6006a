// Package bench holds throughput benchmarks for the stegoz4x frame
// driver, kept separate from the unit tests so `go test ./...` doesn't
// pay benchmark setup cost by default.
package bench

import (
	"bytes"
	"io"
	"testing"

	"github.com/harriteja/stegoz4x"
)

const (
	smallSize  = 16 * 1024
	mediumSize = 256 * 1024
	largeSize  = 2 * 1024 * 1024
)

// generateData returns size bytes whose compressibility is controlled by
// comp in [0,1]: 0 is uniformly random, 1 is a single repeated pattern.
func generateData(size int, comp float64) []byte {
	data := make([]byte, size)
	pattern := []byte("stegoz4x benchmark payload pattern 0123456789")
	seed := uint32(1)

	for i := range data {
		seed = seed*1664525 + 1013904223
		if float64(seed%1000)/1000.0 < comp {
			data[i] = pattern[i%len(pattern)]
		} else {
			data[i] = byte(seed >> 24)
		}
	}
	return data
}

func BenchmarkFrameCompress(b *testing.B) {
	for _, size := range []int{smallSize, mediumSize, largeSize} {
		for _, comp := range []float64{0.0, 0.5, 0.9} {
			data := generateData(size, comp)

			b.Run(benchName(size, comp), func(b *testing.B) {
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					var buf bytes.Buffer
					c, err := stegoz4x.NewCompressor(&buf, nil, false)
					if err != nil {
						b.Fatal(err)
					}
					if _, err := c.Write(data); err != nil {
						b.Fatal(err)
					}
					if _, err := c.Finish(); err != nil {
						b.Fatal(err)
					}
				}
				b.SetBytes(int64(size))
			})
		}
	}
}

func BenchmarkFrameRoundTrip(b *testing.B) {
	for _, size := range []int{smallSize, mediumSize, largeSize} {
		data := generateData(size, 0.7)

		var buf bytes.Buffer
		c, err := stegoz4x.NewCompressor(&buf, nil, false)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := c.Write(data); err != nil {
			b.Fatal(err)
		}
		if _, err := c.Finish(); err != nil {
			b.Fatal(err)
		}
		frameBytes := buf.Bytes()

		b.Run(benchName(size, 0.7), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				d := stegoz4x.NewDecompressor(bytes.NewReader(frameBytes), false)
				if _, err := io.Copy(io.Discard, readerFunc(d.Read)); err != nil {
					b.Fatal(err)
				}
			}
			b.SetBytes(int64(size))
		})
	}
}

// readerFunc adapts Decompressor.Read, whose end-of-frame signal is a
// bare (0, nil) rather than io.EOF, to io.Reader for io.Copy.
type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) {
	n, err := f(p)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

func benchName(size int, comp float64) string {
	sizeName := "Small"
	switch size {
	case mediumSize:
		sizeName = "Medium"
	case largeSize:
		sizeName = "Large"
	}

	compName := "Random"
	switch comp {
	case 0.5:
		compName = "Mixed"
	case 0.9:
		compName = "Compressible"
	case 0.7:
		compName = "Typical"
	}

	return sizeName + "_" + compName
}
