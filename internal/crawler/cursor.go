package crawler

import (
	"net/url"
	"strconv"
	"strings"
)

// PageParam is the query parameter carrying the site's one-based page number.
const PageParam = "page"

// BuildURL returns the request URL for the given zero-based page index.
//
// Page 0 is the source URL without any page parameter. Page k > 0 carries
// page=k+1, because the site numbers the second page as 2. Any page
// parameter already present in sourceURL is dropped and the fragment is
// always stripped. Other query parameters are kept, re-encoded in key order.
// A query that does not parse cleanly, such as one using ';' inside a value,
// keeps its other pairs exactly as written.
//
// BuildURL never fails: input that does not parse as a URL is returned
// with only its fragment removed.
func BuildURL(sourceURL string, pageIndex int) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		if i := strings.IndexByte(sourceURL, '#'); i >= 0 {
			return sourceURL[:i]
		}
		return sourceURL
	}

	u.Fragment = ""
	u.RawFragment = ""

	page := ""
	if pageIndex > 0 {
		page = strconv.Itoa(pageIndex + 1)
	}

	if query, err := url.ParseQuery(u.RawQuery); err == nil {
		query.Del(PageParam)
		if page != "" {
			query.Set(PageParam, page)
		}
		u.RawQuery = query.Encode()
	} else {
		u.RawQuery = rewriteRawQuery(u.RawQuery, page)
	}
	u.ForceQuery = false

	return u.String()
}

// rewriteRawQuery drops every pair of rawQuery whose key is the page
// parameter and appends page=<page> when page is non-empty. The remaining
// pairs are kept verbatim and in order.
func rewriteRawQuery(rawQuery, page string) string {
	pairs := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(pairs)+1)
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if key == PageParam {
			continue
		}
		kept = append(kept, pair)
	}
	if page != "" {
		kept = append(kept, PageParam+"="+page)
	}
	return strings.Join(kept, "&")
}
