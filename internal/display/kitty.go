package display

import (
	"encoding/base64"
	"fmt"
	"io"
)

const (
	escapeStart = "\x1b_G"
	escapeEnd   = "\x1b\\"
	chunkSize   = 4096
)

// KittyEncoder writes PNG payloads using the kitty graphics protocol.
type KittyEncoder struct {
	out io.Writer
}

func NewKittyEncoder(out io.Writer) *KittyEncoder {
	return &KittyEncoder{out: out}
}

// Encode transmits and places one PNG image at the cursor.
func (e *KittyEncoder) Encode(png []byte) error {
	if len(png) == 0 {
		return nil
	}

	encoded := base64.StdEncoding.EncodeToString(png)
	chunks := splitIntoChunks(encoded, chunkSize)
	for i, chunk := range chunks {
		more := 0
		if i < len(chunks)-1 {
			more = 1
		}

		params := fmt.Sprintf("m=%d", more)
		if i == 0 {
			params = "a=T,f=100,q=2," + params
		}
		if _, err := fmt.Fprintf(e.out, "%s%s;%s%s", escapeStart, params, chunk, escapeEnd); err != nil {
			return err
		}
	}
	return nil
}

func splitIntoChunks(s string, size int) []string {
	chunks := make([]string, 0, len(s)/size+1)
	for len(s) > size {
		chunks = append(chunks, s[:size])
		s = s[size:]
	}
	return append(chunks, s)
}
