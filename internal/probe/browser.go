package probe

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Browser loads URL in Chrome and reports availability when Selector
// matches at least one element (whose text matches Match, if set).
// Pages that render their slots client-side need this instead of HTTP.
type Browser struct {
	URL      string
	Selector string
	Match    *regexp.Regexp

	// ControlURL attaches to an already running Chrome. When empty a
	// headless Chrome is launched for each check and torn down afterwards.
	ControlURL string
}

// Check opens a fresh page, waits for load and queries Selector.
func (b *Browser) Check(ctx context.Context) (bool, error) {
	if b.Selector == "" {
		return false, errors.New("browser probe: selector is required")
	}

	controlURL := b.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(true).Context(ctx)
		defer l.Cleanup()
		defer l.Kill()

		url, err := l.Launch()
		if err != nil {
			return false, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return false, fmt.Errorf("connect to chrome: %w", err)
	}
	if b.ControlURL == "" {
		defer func() { _ = browser.Close() }()
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: b.URL})
	if err != nil {
		return false, fmt.Errorf("open %s: %w", b.URL, err)
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return false, fmt.Errorf("load %s: %w", b.URL, err)
	}

	elements, err := page.Elements(b.Selector)
	if err != nil {
		return false, fmt.Errorf("query %q: %w", b.Selector, err)
	}
	if len(elements) == 0 {
		return false, nil
	}
	if b.Match == nil {
		return true, nil
	}

	for _, el := range elements {
		text, err := el.Text()
		if err != nil {
			continue
		}
		if b.Match.MatchString(text) {
			return true, nil
		}
	}
	return false, nil
}
