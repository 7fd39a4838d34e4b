package imgutil

import (
	"errors"
	"io"
	"strings"
)

// Kind identifies a decodable image type.
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG
	KindPNG
	KindGIF
	KindBMP
	KindTIFF
	KindWebP
)

// HeaderSize is the number of leading bytes Detect needs to tell every kind apart.
const HeaderSize = 12

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindPNG:
		return "png"
	case KindGIF:
		return "gif"
	case KindBMP:
		return "bmp"
	case KindTIFF:
		return "tiff"
	case KindWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// MediaType returns the IANA media type for k, or "application/octet-stream".
func (k Kind) MediaType() string {
	if k == KindUnknown {
		return "application/octet-stream"
	}
	return "image/" + k.String()
}

var (
	pngSig    = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	jpegSig   = []byte{0xff, 0xd8, 0xff}
	gifSig    = []byte("GIF8")
	bmpSig    = []byte("BM")
	tiffSigLE = []byte{0x49, 0x49, 0x2a, 0x00}
	tiffSigBE = []byte{0x4d, 0x4d, 0x00, 0x2a}
	riffSig   = []byte("RIFF")
	webpSig   = []byte("WEBP")
)

// Detect inspects the leading bytes of a file for known signatures.
// Short input is reported as KindUnknown.
func Detect(header []byte) Kind {
	switch {
	case hasPrefix(header, jpegSig):
		return KindJPEG
	case hasPrefix(header, pngSig):
		return KindPNG
	case hasPrefix(header, gifSig):
		return KindGIF
	case hasPrefix(header, tiffSigLE), hasPrefix(header, tiffSigBE):
		return KindTIFF
	case len(header) >= 12 && hasPrefix(header, riffSig) && hasPrefix(header[8:], webpSig):
		return KindWebP
	case hasPrefix(header, bmpSig) && len(header) >= 14:
		return KindBMP
	}
	return KindUnknown
}

// DetectHeader is Detect with an error for headers too short to judge.
func DetectHeader(header []byte) (Kind, error) {
	if len(header) < 8 {
		return KindUnknown, errors.New("header too short")
	}
	return Detect(header), nil
}

// SniffReader reads up to HeaderSize bytes from r and determines its type.
func SniffReader(r io.Reader) (Kind, error) {
	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return KindUnknown, err
	}
	return DetectHeader(header[:n])
}

// MediaTypeOf returns the declared media type when present, otherwise the
// type sniffed from data.
func MediaTypeOf(declared string, data []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return strings.ToLower(declared)
	}
	return Detect(data).MediaType()
}

// IsImageMediaType reports whether mediaType carries the "image/" prefix.
func IsImageMediaType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(mediaType), "image/")
}

func hasPrefix(buf, prefix []byte) bool {
	if len(buf) < len(prefix) {
		return false
	}
	for i := range prefix {
		if buf[i] != prefix[i] {
			return false
		}
	}
	return true
}
