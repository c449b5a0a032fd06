package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Content prompts carry the previous candidate on every retry, so request
// bodies are large and frequent enough to be worth pooling.
var bodyPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Buffers above this size are dropped so one huge prompt does not pin memory
const maxPooledBody = 64 * 1024

// newJSONRequest encodes body into a pooled buffer and builds an
// authenticated POST to endpoint. Call release once the response is read.
func newJSONRequest(ctx context.Context, endpoint, apiKey string, body any) (req *http.Request, release func(), err error) {
	buf := bodyPool.Get().(*bytes.Buffer)
	buf.Reset()
	release = func() {
		if buf.Cap() <= maxPooledBody {
			bodyPool.Put(buf)
		}
	}

	if err := json.NewEncoder(buf).Encode(body); err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf.Bytes()))
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, release, nil
}
