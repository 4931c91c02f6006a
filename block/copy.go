package block

import "golang.org/x/sys/cpu"

// wideCopyOK reports whether the current CPU has a wide SIMD register
// available for bulk byte-copy operations (SSE2 on amd64, NEON on arm64).
var wideCopyOK = cpu.X86.HasSSE2 || cpu.ARM64.HasASIMD

// copyMatch copies length bytes from dst[srcPos:] to dst[dstPos:], where
// srcPos < dstPos always holds (a back-reference never points forward).
// When offset (dstPos-srcPos) >= length the source and destination ranges
// never overlap and a single bulk copy suffices. When offset < length the
// ranges overlap — each copied byte may itself be read again later in the
// same call — so the copy must advance in bounded chunks that never read
// past what has already been written.
func copyMatch(dst []byte, dstPos, srcPos, length int) {
	offset := dstPos - srcPos

	if offset >= length {
		if wideCopyOK {
			copy(dst[dstPos:dstPos+length], dst[srcPos:srcPos+length])
			return
		}
		for i := 0; i < length; i++ {
			dst[dstPos+i] = dst[srcPos+i]
		}
		return
	}

	if offset == 1 {
		b := dst[srcPos]
		for i := 0; i < length; i++ {
			dst[dstPos+i] = b
		}
		return
	}

	remaining := length
	for remaining > 0 {
		chunk := dstPos - srcPos
		if chunk > remaining {
			chunk = remaining
		}
		copy(dst[dstPos:dstPos+chunk], dst[srcPos:dstPos])
		dstPos += chunk
		remaining -= chunk
	}
}
