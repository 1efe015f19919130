// Package kyobo scrapes hashtag chips from the Kyobo book search page.
package kyobo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/yungbote/bookmatch-backend/internal/platform/breaker"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

const userAgent = "Mozilla/5.0 (compatible; bookmatch-crawler/1.0)"

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Result is what the search page says about one isbn. CategoryHint is the
// first tag on the page; Hashtags are the remaining tags, de-duplicated in
// order of appearance.
type Result struct {
	CategoryHint string   `json:"category_hint"`
	Hashtags     []string `json:"hashtags"`
}

type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string       { return fmt.Sprintf("kyobo http %d", e.StatusCode) }
func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

type Crawler struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
	cb   *breaker.Breaker
}

func NewCrawler(log *logger.Logger, cfg Config, cb *breaker.Breaker) (*Crawler, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://search.kyobobook.co.kr"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Crawler{
		log:  log.With("service", "KyoboCrawler"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		cb:   cb,
	}, nil
}

func (c *Crawler) Hashtags(ctx context.Context, isbn string) (Result, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return Result{}, fmt.Errorf("isbn required")
	}
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/search?keyword=" + url.QueryEscape(isbn)

	var res Result
	err := c.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9")
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return &HTTPError{StatusCode: resp.StatusCode}
		}
		res, err = ParseSearchPage(resp.Body)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	c.log.Debug("Kyobo tags crawled", "isbn", isbn, "category_hint", res.CategoryHint, "count", len(res.Hashtags))
	return res, nil
}

// ParseSearchPage extracts the text of every <a class="tag"> on the page.
func ParseSearchPage(r io.Reader) (Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Result{}, fmt.Errorf("kyobo parse: %w", err)
	}
	var tags []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "tag") {
			if t := strings.TrimSpace(strings.ReplaceAll(textOf(n), "#", "")); t != "" {
				tags = append(tags, t)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	if len(tags) == 0 {
		return Result{Hashtags: []string{}}, nil
	}
	out := Result{CategoryHint: tags[0], Hashtags: make([]string, 0, len(tags)-1)}
	seen := map[string]struct{}{}
	for _, t := range tags[1:] {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out.Hashtags = append(out.Hashtags, t)
	}
	return out, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, f := range strings.Fields(a.Val) {
			if f == class {
				return true
			}
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
