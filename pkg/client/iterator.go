package client

import (
	"context"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/droprescue/droprescue/pkg/drop"
	"github.com/droprescue/droprescue/pkg/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Result is one element of an enumeration: a fully hydrated Drop, or
// the raw listing record when the per-drop detail fetch failed.
// Exactly one of the two fields is set.
type Result struct {
	Drop   *drop.Drop
	Record map[string]interface{}
}

// listPage is the shape of one /v3/items response.
type listPage struct {
	Data  []map[string]interface{} `json:"data"`
	Links struct {
		NextURL struct {
			Href string `json:"href"`
		} `json:"next_url"`
	} `json:"links"`
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
}

// Iterator drives cursor pagination over the remote listing, yielding
// results in remote order. It is forward-only and not restartable;
// every Next call may perform network requests. Not safe for
// concurrent use.
type Iterator struct {
	c       *Client
	page    *listPage
	pos     int
	index   int
	started bool
	done    bool
}

// Next produces the next enumeration element, or io.EOF once the
// final page has been consumed. A record whose detail fetch returns a
// non-OK status degrades to Result.Record; transport and
// normalization failures terminate the enumeration.
func (it *Iterator) Next(ctx context.Context) (*Result, error) {
	for {
		if it.done {
			return nil, io.EOF
		}

		if !it.started {
			if err := it.fetchPage(ctx, it.c.itemsURL()); err != nil {
				it.done = true
				return nil, err
			}
			it.started = true
		}

		if it.pos >= len(it.page.Data) {
			next := it.page.Links.NextURL.Href
			if next == "" {
				it.done = true
				return nil, io.EOF
			}
			if err := it.fetchPage(ctx, next); err != nil {
				it.done = true
				return nil, err
			}
			it.pos = 0
			continue
		}

		record := it.page.Data[it.pos]
		it.pos++

		slug, _ := record["slug"].(string)
		d, err := drop.Fetch(ctx, it.c, it.c.detailURL(slug))

		var retrievalErr *drop.RetrievalError
		if errors.As(err, &retrievalErr) {
			it.c.l.Warn("detail retrieval failed, yielding raw record",
				zap.String("slug", slug),
				zap.Int("status", retrievalErr.StatusCode),
			)
			metrics.DetailRetrievalFailedCounter.WithLabelValues().Inc()
			return &Result{Record: record}, nil
		}
		if err != nil {
			it.done = true
			return nil, err
		}

		d.Index = it.index
		it.index++
		d.Total = it.page.Meta.Count
		return &Result{Drop: d}, nil
	}
}

func (it *Iterator) fetchPage(ctx context.Context, url string) error {
	it.c.l.Debug("fetching listing page", zap.String("url", url))

	response, err := it.c.Get(ctx, url)
	if err != nil {
		return errors.Wrap(err, "failed to get listing page")
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return errors.Errorf("bad response code %d from listing endpoint %s", response.StatusCode, url)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read listing page")
	}

	page := &listPage{}
	if err := json.Unmarshal(body, page); err != nil {
		return errors.Wrap(err, "failed to decode listing page")
	}

	it.page = page
	metrics.PagesFetchedCounter.WithLabelValues().Inc()
	return nil
}
