package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

// maxBody caps how much of a response HTTP reads before matching.
const maxBody = 4 << 20

// HTTP fetches URL and reports availability when the response is 2xx and,
// if Match is set, the body matches it.
type HTTP struct {
	URL    string
	Match  *regexp.Regexp
	Client *http.Client
}

// Check performs one GET.
func (h *HTTP) Check(ctx context.Context) (bool, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "slotwatch-probe")

	resp, err := client.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetching %s: %w", h.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("fetching %s: unexpected status %s", h.URL, resp.Status)
	}
	if h.Match == nil {
		return true, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", h.URL, err)
	}
	return h.Match.Match(body), nil
}
