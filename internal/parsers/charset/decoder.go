package charset

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Encoding represents a text encoding
type Encoding string

const (
	EncodingUTF8        Encoding = "utf-8"
	EncodingWindows1252 Encoding = "windows-1252"
	EncodingISO88591    Encoding = "iso-8859-1"
)

// ParseEncoding accepts common spellings of the supported encodings
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8", "utf8":
		return EncodingUTF8, nil
	case "windows-1252", "cp1252", "win1252":
		return EncodingWindows1252, nil
	case "iso-8859-1", "latin1", "latin-1":
		return EncodingISO88591, nil
	}
	return "", fmt.Errorf("unsupported encoding %q", s)
}

// DetectEncoding detects the encoding of a byte buffer. Spreadsheet exports
// that are not valid UTF-8 are assumed to be Windows-1252.
func DetectEncoding(data []byte) Encoding {
	if bytes.HasPrefix(data, utf8BOM) || utf8.Valid(data) {
		return EncodingUTF8
	}
	return EncodingWindows1252
}

// Decode converts a byte buffer from the specified encoding to a UTF-8
// string. A UTF-8 byte order mark is dropped. Data that is valid UTF-8 is
// returned as-is for the UTF-8 and Windows-1252 encodings, since exports
// are often mislabelled.
func Decode(data []byte, enc Encoding) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	switch enc {
	case EncodingUTF8, "":
		if utf8.Valid(data) {
			return string(data), nil
		}
		// Fall back to Windows-1252 only if NOT valid UTF-8
		return decodeWith(charmap.Windows1252, data)
	case EncodingWindows1252:
		if utf8.Valid(data) {
			return string(data), nil
		}
		return decodeWith(charmap.Windows1252, data)
	case EncodingISO88591:
		return decodeWith(charmap.ISO8859_1, data)
	}
	return "", fmt.Errorf("unsupported encoding %q", enc)
}

func decodeWith(enc encoding.Encoding, data []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", enc, err)
	}
	return string(out), nil
}

// ToUTF8Reader wraps a reader with a decoder to convert to UTF-8
func ToUTF8Reader(r io.Reader, enc Encoding) (io.Reader, error) {
	var decoder encoding.Encoding

	switch enc {
	case EncodingWindows1252:
		decoder = charmap.Windows1252
	case EncodingISO88591:
		decoder = charmap.ISO8859_1
	case EncodingUTF8, "":
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", enc)
	}

	return transform.NewReader(r, decoder.NewDecoder()), nil
}
