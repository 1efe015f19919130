package aladin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	c, err := NewClient(logger.Nop(), Config{TTBKey: "ttb-test", BaseURL: "http://aladin.local/ttb/api"}, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.http = &http.Client{Transport: rt}
	return c
}

func body(s string) *http.Response {
	return &http.Response{StatusCode: 200, Header: make(http.Header), Body: io.NopCloser(bytes.NewBufferString(s))}
}

func TestLookupByISBNMapsFields(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		q := r.URL.Query()
		if r.URL.Path != "/ttb/api/ItemLookUp.aspx" {
			t.Fatalf("path: got=%q", r.URL.Path)
		}
		if q.Get("ttbkey") != "ttb-test" || q.Get("ItemId") != "9788936434120" || q.Get("itemIdType") != "ISBN" ||
			q.Get("output") != "JS" || q.Get("Version") != "20131101" {
			t.Fatalf("query: got=%v", q)
		}
		return body(`{"item":[{"isbn13":"9788936434120","title":"소년이 온다","author":"한강 (지은이)",
			"publisher":"창비","pubDate":"2014-05-19","cover":"https://image.aladin.co.kr/product/coversum/x.jpg",
			"description":"1980년 5월"}]};`), nil
	})

	info, err := c.LookupByISBN(context.Background(), "9788936434120")
	if err != nil {
		t.Fatalf("LookupByISBN: %v", err)
	}
	if info.PublishYear != "2014" {
		t.Fatalf("PublishYear: want=2014 got=%q", info.PublishYear)
	}
	if info.CoverURL != "https://image.aladin.co.kr/product/cover500/x.jpg" {
		t.Fatalf("CoverURL: got=%q", info.CoverURL)
	}
	if info.Title != "소년이 온다" || info.Publisher != "창비" {
		t.Fatalf("fields: got=%+v", info)
	}
}

func TestLookupByISBNEmptyIsNotFound(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return body(`{"item":[]}`), nil
	})
	if _, err := c.LookupByISBN(context.Background(), "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound got=%v", err)
	}
}

func TestBestsellersCarryRank(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Query().Get("QueryType") != "Bestseller" {
			t.Fatalf("QueryType: got=%q", r.URL.Query().Get("QueryType"))
		}
		return body(`{"item":[{"isbn13":"A","bestRank":1},{"isbn13":"B","bestRank":2},{"isbn13":"C"}]}`), nil
	})
	list, err := c.Bestsellers(context.Background())
	if err != nil {
		t.Fatalf("Bestsellers: %v", err)
	}
	if len(list) != 3 || list[1].ISBN != "B" || list[1].Rank != 2 || list[2].Rank != 3 {
		t.Fatalf("Bestsellers: got=%+v", list)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return body(`{"errorCode":3,"errorMessage":"invalid ttbkey"}`), nil
	})
	if _, err := c.Bestsellers(context.Background()); err == nil {
		t.Fatalf("want api error")
	}
}
