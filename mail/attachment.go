package mail

import (
	"bytes"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

// Kind is the coarse media category that decides how a file is attached.
type Kind int

const (
	KindBinary Kind = iota
	KindText
	KindImage
	KindAudio
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	default:
		return "binary"
	}
}

const octetStream = "application/octet-stream"

// compressedSuffixes are content encodings rather than content types.
var compressedSuffixes = map[string]struct{}{
	".gz":  {},
	".z":   {},
	".bz2": {},
	".xz":  {},
	".br":  {},
}

// extensionTypes is consulted before the system MIME table so the result
// does not depend on the host.
var extensionTypes = map[string]string{
	".txt":  "text/plain",
	".text": "text/plain",
	".log":  "text/plain",
	".csv":  "text/csv",
	".htm":  "text/html",
	".html": "text/html",
	".css":  "text/css",
	".xml":  "text/xml",
	".md":   "text/markdown",
	".ics":  "text/calendar",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".ico":  "image/vnd.microsoft.icon",
	".wav":  "audio/x-wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".mid":  "audio/midi",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".json": "application/json",
	".tar":  "application/x-tar",
}

// Classify infers the kind and media type of path from its extension.
// Compressed files and unknown extensions are application/octet-stream.
func Classify(path string) (Kind, string) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := compressedSuffixes[ext]; ok {
		return KindBinary, octetStream
	}

	ctype, ok := extensionTypes[ext]
	if !ok && ext != "" {
		ctype = mime.TypeByExtension(ext)
	}
	if ctype == "" {
		return KindBinary, octetStream
	}

	mediaType, _, err := mime.ParseMediaType(ctype)
	if err != nil || !strings.Contains(mediaType, "/") {
		return KindBinary, octetStream
	}

	main, _, _ := strings.Cut(mediaType, "/")
	switch main {
	case "text":
		return KindText, mediaType
	case "image":
		return KindImage, mediaType
	case "audio":
		return KindAudio, mediaType
	default:
		return KindBinary, mediaType
	}
}

// part reads the file and builds its MIME part. ok is false when the path
// is not a regular file.
func (a attachment) part() (p part, ok bool, err error) {
	info, err := os.Stat(a.path)
	if err != nil || !info.Mode().IsRegular() {
		return part{}, false, nil
	}

	data, err := os.ReadFile(a.path)
	if err != nil {
		return part{}, false, errors.Wrap(err, "failed to read attachment")
	}

	kind, mediaType := Classify(a.path)
	p = part{
		mediaType: mediaType,
		encoding:  encodingBase64,
		filename:  a.path,
		data:      data,
	}

	switch kind {
	case KindText:
		p.encoding = encodingQuotedPrintable
		if a.charset != "" {
			p.data, err = transcode(data, a.charset)
			if err != nil {
				return part{}, false, err
			}
			p.params = map[string]string{"charset": a.charset}
		}
	case KindImage:
		p.contentID = a.path
	}

	return p, true, nil
}

// transcode decodes data as charset and encodes it back, failing on input
// that does not survive the round trip.
func transcode(data []byte, charset string) ([]byte, error) {
	enc, err := lookupEncoding(charset)
	if err != nil {
		return nil, err
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode attachment as %s", charset)
	}

	encoded, err := enc.NewEncoder().Bytes(decoded)
	if err != nil || !bytes.Equal(encoded, data) {
		return nil, errors.Wrapf(ErrUndecodable, "attachment is not valid %s", charset)
	}
	return encoded, nil
}

// encodeText converts UTF-8 text into charset, failing on text the charset
// cannot represent.
func encodeText(text, charset string) ([]byte, error) {
	switch strings.ToLower(charset) {
	case "utf-8", "utf8":
		return []byte(text), nil
	case "us-ascii", "ascii":
		for i := 0; i < len(text); i++ {
			if text[i] >= utf8.RuneSelf {
				return nil, errors.Wrapf(ErrUnencodable, "text is not %s", charset)
			}
		}
		return []byte(text), nil
	}

	enc, err := lookupEncoding(charset)
	if err != nil {
		return nil, err
	}
	data, err := enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, errors.Wrapf(ErrUnencodable, "text is not representable in %s: %v", charset, err)
	}
	return data, nil
}

func lookupEncoding(charset string) (encoding.Encoding, error) {
	enc, err := ianaindex.MIME.Encoding(charset)
	if err != nil || enc == nil {
		enc, err = htmlindex.Get(charset)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unknown charset %q", charset)
	}
	if enc == nil {
		return nil, errors.Errorf("unsupported charset %q", charset)
	}
	return enc, nil
}
