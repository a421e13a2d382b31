package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxMediaBytes bounds audio downloads; voice notes are far smaller.
const maxMediaBytes = 16 << 20

// FetchMedia downloads a media object (e.g. a voice note) by its Cloud API
// media id. Two round trips: resolve the id to a short-lived URL, then
// download with the same bearer token.
func (c *Channel) FetchMedia(ctx context.Context, mediaID string) (data []byte, mimeType string, err error) {
	metaURL := fmt.Sprintf("%s/%s", strings.TrimRight(c.config.APIBase, "/"), mediaID)
	req, err := http.NewRequestWithContext(ctx, "GET", metaURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: media meta request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: media meta: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("whatsapp: media meta: http %d", resp.StatusCode)
	}

	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, "", fmt.Errorf("whatsapp: decode media meta: %w", err)
	}
	if meta.URL == "" {
		return nil, "", fmt.Errorf("whatsapp: media %s has no url", mediaID)
	}

	dlReq, err := http.NewRequestWithContext(ctx, "GET", meta.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: media download request: %w", err)
	}
	dlReq.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	dlResp, err := c.client.Do(dlReq)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: media download: %w", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("whatsapp: media download: http %d", dlResp.StatusCode)
	}

	data, err = io.ReadAll(io.LimitReader(dlResp.Body, maxMediaBytes))
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: read media: %w", err)
	}
	return data, meta.MimeType, nil
}
