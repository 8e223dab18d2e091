package remote

import (
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const encodingZstd = "zstd"

// compressZstd compresses data using zstd.
func compressZstd(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// decompressZstd decompresses zstd-compressed data.
func decompressZstd(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// readBody reads at most limit bytes from r, decoding zstd when the
// content encoding says so.
func readBody(r io.Reader, contentEncoding string, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, err
	}
	if !isZstdEncoded(contentEncoding) {
		return body, nil
	}
	return decompressZstd(body)
}

// isZstdEncoded checks if the content encoding includes zstd.
func isZstdEncoded(contentEncoding string) bool {
	return strings.Contains(contentEncoding, encodingZstd)
}
