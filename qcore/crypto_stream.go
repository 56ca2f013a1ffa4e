package qcore

import "sort"

// cryptoStream reassembles CRYPTO frame data into an ordered byte stream
// for one encryption level: crypto data delivery to the handshake driver
// is offset-ordered and non-overlapping, mirroring a stream's read buffer
// but scoped to one epoch.
type cryptoStream struct {
	readOffset int64
	pending    []cryptoFragment
}

type cryptoFragment struct {
	offset int64
	data   []byte
}

// Write buffers data at offset, silently trimming any portion already
// consumed. It never returns an error: a CRYPTO frame that only restates
// already-delivered bytes is not a protocol violation.
func (s *cryptoStream) Write(offset int64, data []byte) {
	if offset+int64(len(data)) <= s.readOffset {
		return
	}
	if offset < s.readOffset {
		data = data[s.readOffset-offset:]
		offset = s.readOffset
	}
	s.pending = append(s.pending, cryptoFragment{offset: offset, data: data})
	sort.Slice(s.pending, func(i, j int) bool { return s.pending[i].offset < s.pending[j].offset })
}

// ReadReady drains and returns every byte now contiguous with readOffset,
// advancing it; a nil result means the next byte is still missing.
func (s *cryptoStream) ReadReady() []byte {
	var out []byte
	for len(s.pending) > 0 {
		f := s.pending[0]
		if f.offset > s.readOffset {
			break
		}
		end := f.offset + int64(len(f.data))
		if end <= s.readOffset {
			s.pending = s.pending[1:]
			continue
		}
		start := s.readOffset - f.offset
		out = append(out, f.data[start:]...)
		s.readOffset = end
		s.pending = s.pending[1:]
	}
	return out
}
