package source

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strconv"
	"time"

	"researchflow/internal/core/resource"
	perr "researchflow/internal/platform/errors"
)

// maxBundleBytes bounds a single page decode
const maxBundleBytes = 8 << 20

// Query is a single-type search with server-side parameters
type Query struct {
	Type   string
	Params url.Values
	Limit  int
}

// searchURL builds the first page URL for a typ search
func (c *Client) searchURL(typ string, params url.Values) string {
	u := c.opts.BaseURL + "/" + typ
	if params == nil {
		params = url.Values{}
	}
	if params.Get("_count") == "" {
		params.Set("_count", strconv.Itoa(c.opts.PageSize))
	}
	return u + "?" + params.Encode()
}

// page fetches and decodes one bundle page
func (c *Client) page(ctx context.Context, pageURL string) (Bundle, error) {
	resp, err := c.do(ctx, pageURL)
	if err != nil {
		return Bundle{}, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("url", pageURL).Msg("source close body failed")
		}
	}()

	var b Bundle
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBundleBytes))
	if err != nil {
		return Bundle{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "source read bundle failed")
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return Bundle{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "source decode bundle failed")
	}
	return b, nil
}

// ForEach walks every resource of typ, following paging links,
// stopping early when fn returns an error
func (c *Client) ForEach(ctx context.Context, typ string, fn func(resource.Resource) error) error {
	next := c.searchURL(typ, nil)
	for next != "" {
		b, err := c.page(ctx, next)
		if err != nil {
			return err
		}
		for _, e := range b.Entry {
			r, err := resource.FromJSON(typ, "", e.Resource)
			if err != nil {
				return err
			}
			if err := fn(r); err != nil {
				return err
			}
		}
		next = b.next()
	}
	return nil
}

// Changes returns resources of typ updated at or after since, oldest first,
// capped at max (max <= 0 means no cap)
func (c *Client) Changes(ctx context.Context, typ string, since time.Time, max int) ([]resource.Resource, error) {
	params := url.Values{}
	params.Set("_lastUpdated", "ge"+since.UTC().Format(time.RFC3339))
	params.Set("_sort", "_lastUpdated")

	var out []resource.Resource
	next := c.searchURL(typ, params)
	for next != "" {
		b, err := c.page(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, e := range b.Entry {
			r, err := resource.FromJSON(typ, "", e.Resource)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
			if max > 0 && len(out) >= max {
				return out, nil
			}
		}
		next = b.next()
	}
	return out, nil
}

// Execute runs q and returns matching resources up to q.Limit
func (c *Client) Execute(ctx context.Context, q Query) ([]resource.Resource, error) {
	if q.Type == "" {
		return nil, perr.InvalidArgf("source query needs a resource type")
	}

	var out []resource.Resource
	next := c.searchURL(q.Type, q.Params)
	for next != "" {
		b, err := c.page(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, e := range b.Entry {
			r, err := resource.FromJSON(q.Type, "", e.Resource)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
			if q.Limit > 0 && len(out) >= q.Limit {
				return out, nil
			}
		}
		next = b.next()
	}
	return out, nil
}
