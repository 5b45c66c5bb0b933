// Package imageprep turns raw attachment bytes into the upright, opaque,
// size-bounded JPEG payload sent to the inference service.
//
// Normalization applies the EXIF orientation, flattens transparency onto a
// white background, scales the longer side down to the configured maximum
// (never up) and re-encodes at the configured JPEG quality. Every failure
// wraps ErrNormalizeFailed and concerns only the one image being processed.
package imageprep
