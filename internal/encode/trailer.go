package encode

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrNoEOI is returned when a JPEG stream ends before its EOI marker.
var ErrNoEOI = errors.New("jpeg stream has no EOI marker")

// SplitTrailer separates a JPEG file into the compressed stream (through
// EOI) and whatever bytes follow it.
func SplitTrailer(data []byte) (body, trailer []byte, err error) {
	end, err := EndOfImage(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}
	return data[:end], data[end:], nil
}

// EndOfImage returns the offset just past the EOI marker of the JPEG stream in r.
func EndOfImage(r io.Reader) (int64, error) {
	cr := &countingReader{r: bufio.NewReader(r)}

	soi := make([]byte, 2)
	if _, err := io.ReadFull(cr, soi); err != nil {
		return 0, err
	}
	if soi[0] != 0xff || soi[1] != 0xd8 {
		return 0, fmt.Errorf("invalid JPEG SOI")
	}

	marker, err := cr.nextMarker()
	if err != nil {
		return 0, err
	}
	for {
		if marker == 0xd9 { // EOI
			return cr.n, nil
		}

		if marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			if marker, err = cr.nextMarker(); err != nil {
				return 0, err
			}
			continue
		}

		lenBuf := make([]byte, 2)
		if _, err := io.ReadFull(cr, lenBuf); err != nil {
			return 0, noEOI(err)
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf))
		if segLen < 2 {
			return 0, fmt.Errorf("invalid JPEG segment length")
		}
		if _, err := io.CopyN(io.Discard, cr, int64(segLen-2)); err != nil {
			return 0, noEOI(err)
		}

		if marker == 0xda { // SOS
			marker, err = cr.skipEntropyCoded()
		} else {
			marker, err = cr.nextMarker()
		}
		if err != nil {
			return 0, err
		}
	}
}

type countingReader struct {
	r *bufio.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}

// nextMarker skips to the next 0xff and returns the marker code after any fill bytes.
func (c *countingReader) nextMarker() (byte, error) {
	prefix, err := c.ReadByte()
	if err != nil {
		return 0, noEOI(err)
	}
	for prefix != 0xff {
		prefix, err = c.ReadByte()
		if err != nil {
			return 0, noEOI(err)
		}
	}

	marker, err := c.ReadByte()
	if err != nil {
		return 0, noEOI(err)
	}
	for marker == 0xff {
		marker, err = c.ReadByte()
		if err != nil {
			return 0, noEOI(err)
		}
	}
	return marker, nil
}

// skipEntropyCoded consumes scan data and returns the first real marker after it.
// Stuffed zero bytes and restart markers belong to the scan.
func (c *countingReader) skipEntropyCoded() (byte, error) {
	for {
		b, err := c.ReadByte()
		if err != nil {
			return 0, noEOI(err)
		}
		if b != 0xff {
			continue
		}

		marker, err := c.ReadByte()
		if err != nil {
			return 0, noEOI(err)
		}
		for marker == 0xff {
			marker, err = c.ReadByte()
			if err != nil {
				return 0, noEOI(err)
			}
		}
		if marker == 0x00 || (marker >= 0xd0 && marker <= 0xd7) {
			continue
		}
		return marker, nil
	}
}

func noEOI(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrNoEOI
	}
	return err
}
