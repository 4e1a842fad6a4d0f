package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// fetchClaims GETs url with an authorized client and decodes the JSON object
// body, keeping numbers as json.Number so large ids survive intact.
func fetchClaims(ctx context.Context, client *http.Client, url string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("failed to get user info: status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var claims map[string]any
	if err := dec.Decode(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if claims == nil {
		return nil, fmt.Errorf("failed to decode user info: empty body")
	}
	return claims, nil
}
