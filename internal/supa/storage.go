package supa

import (
	"context"
	"net/http"
)

// Upload stores an object in the given bucket under key. The caller keeps
// only the key; public URLs are resolved separately by consumers.
func (c *Client) Upload(ctx context.Context, accessToken, bucket, key, contentType string, data []byte) error {
	endpoint := "/storage/v1/object/" + bucket + "/" + key
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := c.do(ctx, http.MethodPost, endpoint, data, contentType, accessToken); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.ProofUploadBytes.Add(float64(len(data)))
	}
	return nil
}
