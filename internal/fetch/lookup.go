package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pagefold/bindery/internal/collection"
)

// PageInfo implements collection.WikiLookup.
func (c *Client) PageInfo(ctx context.Context, title string) (*collection.PageInfo, error) {
	params := url.Values{}
	params.Set("titles", title)
	params.Set("prop", "info|revisions")
	params.Set("inprop", "url")
	params.Set("rvprop", "ids|timestamp")
	resp, err := c.apiQuery(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Query.Pages) == 0 {
		return &collection.PageInfo{}, nil
	}
	page := resp.Query.Pages[0]
	if page.Missing {
		return &collection.PageInfo{}, nil
	}
	info := &collection.PageInfo{
		Exists: true,
		URL:    page.CanonicalURL,
	}
	if len(page.Revisions) > 0 {
		info.LatestRevision = strconv.FormatInt(page.Revisions[0].RevID, 10)
		info.Timestamp = parseTimestamp(page.Revisions[0].Timestamp)
	}
	return info, nil
}

// RevisionTimestamp implements collection.WikiLookup.
func (c *Client) RevisionTimestamp(ctx context.Context, title, revision string) (int64, error) {
	params := url.Values{}
	params.Set("revids", revision)
	params.Set("prop", "revisions")
	params.Set("rvprop", "ids|timestamp")
	resp, err := c.apiQuery(ctx, params)
	if err != nil {
		return 0, err
	}
	for _, page := range resp.Query.Pages {
		for _, rev := range page.Revisions {
			if strconv.FormatInt(rev.RevID, 10) == revision {
				return parseTimestamp(rev.Timestamp), nil
			}
		}
	}
	return 0, fmt.Errorf("fetch: revision %s of %s not found", revision, title)
}

// PagesExist implements collection.WikiLookup. The result is keyed by DB
// key; batches of 50 titles per API call.
func (c *Client) PagesExist(ctx context.Context, titles []string) (map[string]bool, error) {
	exists := make(map[string]bool, len(titles))
	for start := 0; start < len(titles); start += apiBatchSize {
		end := start + apiBatchSize
		if end > len(titles) {
			end = len(titles)
		}
		params := url.Values{}
		params.Set("titles", strings.Join(titles[start:end], "|"))
		resp, err := c.apiQuery(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, page := range resp.Query.Pages {
			exists[collection.DBKey(page.Title)] = !page.Missing
		}
	}
	return exists, nil
}

// CategoryMembers implements collection.WikiLookup. Only main-namespace
// pages are returned.
func (c *Client) CategoryMembers(ctx context.Context, category string, limit int) ([]string, error) {
	params := url.Values{}
	params.Set("list", "categorymembers")
	params.Set("cmtitle", category)
	params.Set("cmnamespace", "0")
	params.Set("cmlimit", strconv.Itoa(limit))
	resp, err := c.apiQuery(ctx, params)
	if err != nil {
		return nil, err
	}
	members := make([]string, 0, len(resp.Query.CategoryMembers))
	for _, member := range resp.Query.CategoryMembers {
		members = append(members, member.Title)
	}
	return members, nil
}

// LinkedTitles implements collection.LinkSource: the outgoing main-namespace
// links of each given page, keyed by DB key.
func (c *Client) LinkedTitles(ctx context.Context, titles []string) (map[string][]string, error) {
	linked := make(map[string][]string, len(titles))
	for start := 0; start < len(titles); start += apiBatchSize {
		end := start + apiBatchSize
		if end > len(titles) {
			end = len(titles)
		}
		params := url.Values{}
		params.Set("titles", strings.Join(titles[start:end], "|"))
		params.Set("prop", "links")
		params.Set("plnamespace", "0")
		params.Set("pllimit", "max")
		resp, err := c.apiQuery(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, page := range resp.Query.Pages {
			dbkey := collection.DBKey(page.Title)
			for _, link := range page.Links {
				linked[dbkey] = append(linked[dbkey], link.Title)
			}
		}
	}
	return linked, nil
}
