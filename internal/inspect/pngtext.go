package inspect

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var pngSignature = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

// pngTextKeys lists the keywords of tEXt, zTXt and iTXt chunks, plus "tIME"
// when a modification time chunk is present.
func pngTextKeys(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)

	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(br, sig); err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, pngSignature) {
		return nil, errors.New("invalid PNG signature")
	}

	var keys []string
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(br, header); err != nil {
			if errors.Is(err, io.EOF) {
				return keys, nil
			}
			return keys, err
		}
		length := binary.BigEndian.Uint32(header[:4])
		chunk := string(header[4:])

		switch chunk {
		case "tEXt", "zTXt", "iTXt":
			data := make([]byte, length)
			if _, err := io.ReadFull(br, data); err != nil {
				return keys, err
			}
			if idx := bytes.IndexByte(data, 0); idx > 0 {
				keys = append(keys, string(data[:idx]))
			}
			length = 0
		case "tIME":
			keys = append(keys, chunk)
		}

		// chunk data still unread plus the CRC
		if _, err := io.CopyN(io.Discard, br, int64(length)+4); err != nil {
			return keys, err
		}
		if chunk == "IEND" {
			return keys, nil
		}
	}
}
