// Package compressor implements the size-threshold codec used for large
// payload columns. Payloads under the threshold are stored as plain JSON
// text so they stay inspectable in the database; payloads over it are
// zstd-compressed into a blob column, with a flag column recording which
// form is populated.
package compressor

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// DefaultThreshold is the size above which payloads are compressed.
const DefaultThreshold = 10 * 1024

// zstdEncoder and zstdDecoder are reused across calls to avoid repeated
// initialization overhead. Both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("compressor: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compressor: zstd decoder initialization failed: " + err.Error())
	}
}

// DecodeError indicates a blob that could not be decompressed. It usually
// means the stored row is corrupted, so callers on the query side surface
// it to the user rather than treating it as empty data.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decompress data: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Stored is a payload in its storage form: exactly one of Text or Blob is
// meaningful, selected by Compressed. It maps onto the parallel
// *_json / *_compressed / is_compressed column triple.
type Stored struct {
	Text       string
	Blob       []byte
	Compressed bool
}

// normalize converts a payload into its canonical byte form. Strings and
// byte slices pass through unchanged; nil and empty maps count as absent so
// their column stays NULL; everything else is serialized as compact JSON.
func normalize(data any) ([]byte, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case map[string]any:
		if len(v) == 0 {
			return nil, nil
		}
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}
	return encoded, nil
}

// ShouldCompress reports whether a payload's canonical serialized size
// exceeds the threshold.
func ShouldCompress(data any, threshold int) bool {
	raw, err := normalize(data)
	if err != nil {
		return false
	}
	return len(raw) > threshold
}

// CompressIfLarge serializes a payload and compresses it when its size
// exceeds the threshold. The plain branch always yields a UTF-8 string
// suitable for a text column; the compressed branch yields an opaque blob.
func CompressIfLarge(data any, threshold int) (Stored, error) {
	raw, err := normalize(data)
	if err != nil {
		return Stored{}, err
	}

	if len(raw) > threshold {
		return Stored{
			Blob:       zstdEncoder.EncodeAll(raw, nil),
			Compressed: true,
		}, nil
	}
	return Stored{Text: string(raw)}, nil
}

// Compress unconditionally compresses a payload, regardless of size. Used
// where compression is policy-mandated, such as modification diffs.
func Compress(data any) ([]byte, error) {
	raw, err := normalize(data)
	if err != nil {
		return nil, err
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

// Decompress is the inverse of Compress. An empty or nil blob yields ""
// without error; a malformed blob yields a DecodeError.
func Decompress(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}

	raw, err := zstdDecoder.DecodeAll(blob, nil)
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	return string(raw), nil
}

// Extract recovers a payload from its storage form: it picks the populated
// column, decompresses when flagged, and attempts JSON parsing. A payload
// that is not valid JSON comes back as the raw string; an absent payload
// comes back as nil. Decompression failures are returned to the caller.
func Extract(jsonText *string, blob []byte, compressed bool) (any, error) {
	if compressed && len(blob) > 0 {
		text, err := Decompress(blob)
		if err != nil {
			return nil, err
		}
		return parseMaybeJSON(text), nil
	}
	if jsonText != nil && *jsonText != "" {
		return parseMaybeJSON(*jsonText), nil
	}
	return nil, nil
}

func parseMaybeJSON(text string) any {
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return text
	}
	return parsed
}

// FormatSize renders a byte count as a human-readable string.
func FormatSize(sizeBytes int64) string {
	size := float64(sizeBytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", size)
}
