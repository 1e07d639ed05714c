// Package pose looks up sign-language pose sequences for text on a remote service.
package pose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ayusman/signbridge/internal/sign"
)

// ErrFetch is returned when a pose lookup fails: transport error or non-2xx status.
var ErrFetch = errors.New("pose fetch failed")

// Client calls the remote text-to-pose service.
type Client struct {
	endpoint string
	spoken   string
	http     *http.Client
}

// NewClient creates a Client for endpoint. spoken is the spoken-language code, e.g. "en".
// A nil httpClient uses http.DefaultClient.
func NewClient(endpoint, spoken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint: endpoint,
		spoken:   spoken,
		http:     httpClient,
	}
}

// URL builds the lookup URL for variant and text.
func (c *Client) URL(variant sign.Variant, text string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: invalid endpoint %q: %v", ErrFetch, c.endpoint, err)
	}

	q := u.Query()
	q.Set("spoken", c.spoken)
	q.Set("signed", variant.Code())
	q.Set("text", text)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Lookup fetches the pose artifact for text. The whole body is returned on a 2xx response.
func (c *Client) Lookup(ctx context.Context, variant sign.Variant, text string) ([]byte, error) {
	target, err := c.URL(variant, text)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	return data, nil
}
