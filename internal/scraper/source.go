package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	EventsURL = "https://www.theuctheatre.org/events"
	UserAgent = "uct-events/1.0 (github.com/pfrederiksen/uct-events)"
	Timeout   = 30 * time.Second
)

// Source supplies the raw markup of the listing page.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// HTTPSource fetches the page with a plain GET request.
type HTTPSource struct {
	client    *http.Client
	url       string
	userAgent string
}

// NewHTTPSource creates an HTTPSource. Empty arguments take the package defaults.
func NewHTTPSource(url, userAgent string, timeout time.Duration) *HTTPSource {
	if url == "" {
		url = EventsURL
	}
	if userAgent == "" {
		userAgent = UserAgent
	}
	if timeout <= 0 {
		timeout = Timeout
	}
	return &HTTPSource{
		client: &http.Client{
			Timeout: timeout,
		},
		url:       url,
		userAgent: userAgent,
	}
}

// Fetch downloads the listing page.
func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	return body, nil
}

// BrowserSource renders the page in headless Chrome before reading it, for
// listings that are filled in by JavaScript.
type BrowserSource struct {
	url       string
	userAgent string
	timeout   time.Duration
}

// NewBrowserSource creates a BrowserSource. Empty arguments take the package defaults.
func NewBrowserSource(url, userAgent string, timeout time.Duration) *BrowserSource {
	if url == "" {
		url = EventsURL
	}
	if userAgent == "" {
		userAgent = UserAgent
	}
	if timeout <= 0 {
		timeout = Timeout
	}
	return &BrowserSource{url: url, userAgent: userAgent, timeout: timeout}
}

// Fetch navigates to the page and returns the rendered document.
func (s *BrowserSource) Fetch(ctx context.Context) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(s.userAgent))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, s.timeout)
	defer cancelTimeout()

	var markup string
	tasks := chromedp.Tasks{
		chromedp.Navigate(s.url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	}
	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}

	return []byte(markup), nil
}

// FileSource reads a saved copy of the page.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads the file.
func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading page: %w", err)
	}
	return data, nil
}
