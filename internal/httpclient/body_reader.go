package httpclient

import (
	"fmt"
	"io"
)

// maxBodyBytes caps how much of a response body is read. Larger bodies are
// reported as an error rather than read forever.
const maxBodyBytes = 256 << 20

// drainBody reads body to EOF, closes it and returns the byte count.
// Reading the whole body keeps the connection reusable and makes the
// measured duration include the transfer.
func drainBody(body io.ReadCloser) (int64, error) {
	if body == nil {
		return 0, nil
	}
	defer body.Close()

	n, err := io.Copy(io.Discard, io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return n, fmt.Errorf("read response body: %w", err)
	}
	if n > maxBodyBytes {
		return n, fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)
	}
	return n, nil
}
