// Package media resolves short-link media URLs (tenor/giphy pages) to direct
// image URLs by scraping the page's Open Graph metadata. Resolution is
// best-effort; an unresolvable link is skipped, never an error for the
// surrounding operation.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"relaybot/internal/backoff"
	"relaybot/internal/llm"
	"relaybot/internal/types"
)

var shortLinkPattern = regexp.MustCompile(`https?://(?:tenor\.com|giphy\.com)/\S+`)

// FindLinks extracts recognized short-link URLs from message text.
func FindLinks(text string) []string {
	return shortLinkPattern.FindAllString(text, -1)
}

// Resolver fetches short-link pages with retries and extracts og:image URLs.
type Resolver struct {
	httpClient *http.Client
	policy     backoff.Policy
	logger     *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewResolver builds a resolver sharing the relay's backoff policy.
func NewResolver(policy backoff.Policy, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		policy:     policy,
		logger:     logger,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
}

// Resolve fetches every URL concurrently and returns the direct image URLs
// that could be extracted, in input order with unresolvable entries dropped.
func (r *Resolver) Resolve(ctx context.Context, urls []string) []string {
	if len(urls) == 0 {
		return nil
	}

	resolved := make([]string, len(urls))
	g, ctx := errgroup.WithContext(ctx)
	for i, u := range urls {
		g.Go(func() error {
			direct, err := r.resolveOne(ctx, u)
			if err != nil {
				r.logger.Warn("giving up on media link", zap.String("url", u), zap.Error(err))
				return nil
			}
			resolved[i] = direct
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(urls))
	for _, u := range resolved {
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, url string) (string, error) {
	page, err := r.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	direct := extractOGImage(strings.NewReader(page))
	if direct == "" {
		return "", fmt.Errorf("no og:image meta tag found")
	}
	r.logger.Debug("resolved media link",
		zap.String("url", url),
		zap.String("direct", direct))
	return direct, nil
}

// fetchKind classifies a page fetch failure for backoff. Unlike completion
// calls, any non-OK status is worth another try: short-link pages
// intermittently serve 4xx from edge caches.
func fetchKind(err error) types.ErrorKind {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusTooManyRequests {
			return types.KindRateLimited
		}
		return types.KindTransientService
	}
	return llm.Classify(err)
}

// fetch retrieves the page body, retrying failures under the same policy as
// completion calls.
func (r *Resolver) fetch(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		body, err := r.fetchOnce(ctx, url)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err

		decision := r.policy.Decide(fetchKind(err), attempt)
		if !decision.Retry {
			return "", &types.ExhaustedError{Attempts: attempt + 1, Last: lastErr}
		}
		r.logger.Debug("media fetch failed, backing off",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", decision.Delay),
			zap.Error(err))
		if err := r.sleep(ctx, decision.Delay); err != nil {
			return "", err
		}
	}
}

func (r *Resolver) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &llm.APIError{Status: resp.StatusCode, Message: "non-OK status for " + url}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// extractOGImage walks the HTML for <meta property="og:image" content=...>.
func extractOGImage(r io.Reader) string {
	tokenizer := html.NewTokenizer(r)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if !strings.EqualFold(token.Data, "meta") {
				continue
			}
			var property, content string
			for _, attr := range token.Attr {
				switch strings.ToLower(attr.Key) {
				case "property":
					property = attr.Val
				case "content":
					content = attr.Val
				}
			}
			if property == "og:image" && content != "" {
				return content
			}
		}
	}
}
