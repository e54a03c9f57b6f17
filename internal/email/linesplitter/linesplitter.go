// Package linesplitter breaks a byte stream into lines of a fixed maximum length.
package linesplitter

import "io"

var crlf = []byte("\r\n")

type splitter struct {
	maxLineLength int
	writer        io.Writer
	pos           int
}

// New returns a writer that inserts CRLF into the stream every maxLineLength bytes.
func New(w io.Writer, maxLineLength int) io.Writer {
	return &splitter{
		maxLineLength: maxLineLength,
		writer:        w,
	}
}

func (s *splitter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if s.pos == s.maxLineLength {
			if _, err := s.writer.Write(crlf); err != nil {
				return written, err
			}
			s.pos = 0
		}
		chunk := s.maxLineLength - s.pos
		if chunk > len(p) {
			chunk = len(p)
		}
		n, err := s.writer.Write(p[:chunk])
		written += n
		s.pos += n
		if err != nil {
			return written, err
		}
		p = p[chunk:]
	}
	return written, nil
}
