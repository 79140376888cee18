package ingest

// streaming.go wraps uploaded files with input hygiene so the CSV reader
// only ever sees clean UTF-8:
//
//   - skipBOM strips the UTF-8 byte order mark Windows tools prepend
//   - utf8Sanitizer replaces invalid byte sequences with '?' on the fly
//
// Both operate on io.Reader so a 10MB upload never has to be buffered
// twice just to be cleaned.

import (
	"bufio"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned after the UTF-8 BOM, if present.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, err := br.Peek(3)
	if err == nil && head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
		br.Discard(3)
	}
	return br
}

// utf8Sanitizer replaces invalid UTF-8 sequences with '?' as data flows
// through. A multi-byte rune split across two reads is held back until
// the next read completes it.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

// sanitizeReader wraps r with BOM skipping and UTF-8 sanitization.
func sanitizeReader(r io.Reader) io.Reader {
	return &utf8Sanitizer{r: skipBOM(r), pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) < utf8.UTFMax {
		return 0, io.ErrShortBuffer
	}

	off := copy(p, s.pending)
	s.pending = s.pending[:0]

	n, err := s.r.Read(p[off:])
	n += off
	if n == 0 {
		return 0, err
	}

	if allASCII(p[:n]) {
		return n, err
	}
	return s.scrub(p[:n], err == io.EOF), err
}

// scrub rewrites data in place, replacing invalid bytes with '?'.
// Unless atEOF, a trailing incomplete sequence is saved for the next
// read instead of being replaced.
func (s *utf8Sanitizer) scrub(data []byte, atEOF bool) int {
	write := 0
	for read := 0; read < len(data); {
		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			if !atEOF && read+runeLen(data[read]) > len(data) {
				// Possibly the start of a rune cut off mid-read.
				s.pending = append(s.pending, data[read:]...)
				return write
			}
			data[write] = '?'
			write++
			read++
			continue
		}
		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}
	return write
}

func allASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}

// runeLen returns the encoded length implied by a UTF-8 lead byte, or 1
// for bytes that cannot start a sequence.
func runeLen(b byte) int {
	switch {
	case b < 0xC0:
		return 1
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}
