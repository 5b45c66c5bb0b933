package domain

import "fmt"

// ImageFormatJPEG is the encoding tag of normalized images.
const ImageFormatJPEG = "jpeg"

// EncodedImage is the in-memory, transport-ready form of one normalized
// attachment. It is owned by the item processor for the duration of one
// item and discarded after the inference call.
type EncodedImage struct {
	// Format is the encoding tag, e.g. "jpeg".
	Format string

	// Data holds the encoded binary payload.
	Data []byte

	// Base64 is the standard base64 text encoding of Data.
	Base64 string

	// Width and Height are the pixel dimensions after normalization.
	Width  int
	Height int
}

// MIMEType returns the media type matching Format.
func (e *EncodedImage) MIMEType() string {
	return "image/" + e.Format
}

// DataURL returns the image as a data URL suitable for chat-style requests.
func (e *EncodedImage) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", e.MIMEType(), e.Base64)
}
