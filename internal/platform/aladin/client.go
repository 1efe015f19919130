// Package aladin fetches book metadata and the bestseller list from the
// Aladin Open API (ttb). Responses are requested as JSON (output=JS).
package aladin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/platform/breaker"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

const apiVersion = "20131101"

// ErrNotFound means the lookup succeeded but Aladin knows no such item.
var ErrNotFound = errors.New("aladin: item not found")

type Config struct {
	TTBKey  string
	BaseURL string
	Timeout time.Duration
	// BestsellerSize is how many ranked items one feed pull requests.
	BestsellerSize int
}

type Client struct {
	log  *logger.Logger
	cfg  Config
	http *http.Client
	cb   *breaker.Breaker
}

func NewClient(log *logger.Logger, cfg Config, cb *breaker.Breaker) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.TTBKey) == "" {
		return nil, fmt.Errorf("missing ALADIN_TTB_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://www.aladin.co.kr/ttb/api"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BestsellerSize <= 0 || cfg.BestsellerSize > 100 {
		cfg.BestsellerSize = 50
	}
	return &Client{
		log:  log.With("service", "AladinClient"),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		cb:   cb,
	}, nil
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string       { return fmt.Sprintf("aladin http %d: %s", e.StatusCode, e.Body) }
func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

type item struct {
	ISBN13      string `json:"isbn13"`
	ISBN        string `json:"isbn"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	PubDate     string `json:"pubDate"`
	Cover       string `json:"cover"`
	Description string `json:"description"`
	BestRank    int    `json:"bestRank"`
}

type listResponse struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	Item         []item `json:"item"`
}

// LookupByISBN fetches one book's metadata.
func (c *Client) LookupByISBN(ctx context.Context, isbn string) (catalog.BookInfo, error) {
	isbn = strings.TrimSpace(isbn)
	if isbn == "" {
		return catalog.BookInfo{}, fmt.Errorf("isbn required")
	}
	q := url.Values{}
	q.Set("itemIdType", "ISBN")
	q.Set("ItemId", isbn)
	q.Set("Cover", "Big")

	var resp listResponse
	if err := c.get(ctx, "/ItemLookUp.aspx", q, &resp); err != nil {
		return catalog.BookInfo{}, err
	}
	if len(resp.Item) == 0 {
		return catalog.BookInfo{}, ErrNotFound
	}
	return resp.Item[0].toBookInfo(), nil
}

// Bestsellers fetches the current ranked list. Order follows bestRank.
func (c *Client) Bestsellers(ctx context.Context) ([]catalog.RankedBook, error) {
	q := url.Values{}
	q.Set("QueryType", "Bestseller")
	q.Set("SearchTarget", "Book")
	q.Set("MaxResults", strconv.Itoa(c.cfg.BestsellerSize))
	q.Set("start", "1")

	var resp listResponse
	if err := c.get(ctx, "/ItemList.aspx", q, &resp); err != nil {
		return nil, err
	}
	out := make([]catalog.RankedBook, 0, len(resp.Item))
	for i, it := range resp.Item {
		rank := it.BestRank
		if rank <= 0 {
			rank = i + 1
		}
		out = append(out, catalog.RankedBook{BookInfo: it.toBookInfo(), Rank: rank})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out *listResponse) error {
	q.Set("ttbkey", c.cfg.TTBKey)
	q.Set("output", "JS")
	q.Set("Version", apiVersion)
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + q.Encode()

	return c.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
		}
		if err := json.Unmarshal(sanitizeJS(raw), out); err != nil {
			return fmt.Errorf("aladin decode: %w", err)
		}
		if out.ErrorCode != 0 {
			return fmt.Errorf("aladin api error %d: %s", out.ErrorCode, out.ErrorMessage)
		}
		return nil
	})
}

func (it item) toBookInfo() catalog.BookInfo {
	isbn := strings.TrimSpace(it.ISBN13)
	if isbn == "" {
		isbn = strings.TrimSpace(it.ISBN)
	}
	year := strings.TrimSpace(it.PubDate)
	if len(year) > 4 {
		year = year[:4]
	}
	return catalog.BookInfo{
		ISBN:        isbn,
		Title:       strings.TrimSpace(it.Title),
		Author:      strings.TrimSpace(it.Author),
		Publisher:   strings.TrimSpace(it.Publisher),
		PublishYear: year,
		CoverURL:    strings.Replace(it.Cover, "coversum", "cover500", 1),
		Description: strings.TrimSpace(it.Description),
	}
}

// The JS output occasionally ends with a trailing semicolon.
func sanitizeJS(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	s = strings.TrimSuffix(s, ";")
	return []byte(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
