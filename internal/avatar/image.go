package avatar

import (
	"bytes"
	"strings"
)

// Image types recognised by their leading bytes.
const (
	TypeJPEG = "jpeg"
	TypePNG  = "png"
	TypeGIF  = "gif"
	TypeWEBP = "webp"
)

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
)

// DetectImageType returns the image type encoded in the first bytes of data,
// or "" when the header matches none of the supported formats.
func DetectImageType(data []byte) string {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return TypeJPEG
	case bytes.HasPrefix(data, pngMagic):
		return TypePNG
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return TypeGIF
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return TypeWEBP
	}
	return ""
}

// ValidateImage reports whether data's header matches the type implied by
// ext. .jpg and .jpeg are interchangeable.
func ValidateImage(data []byte, ext string) bool {
	want := extensionType(ext)
	return want != "" && DetectImageType(data) == want
}

func extensionType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return TypeJPEG
	case ".png":
		return TypePNG
	case ".gif":
		return TypeGIF
	case ".webp":
		return TypeWEBP
	}
	return ""
}
