package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// maxBodyBytes caps a single response body.
const maxBodyBytes = 10 << 20

// StatusError is returned for non-200 responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// getBody performs a GET and returns the body of a 200 response.
func getBody(ctx context.Context, client *http.Client, rawURL, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}

// withQuery returns rawURL with params merged into its query string.
func withQuery(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", rawURL, err)
	}
	q := u.Query()
	for k, vs := range params {
		q[k] = vs
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// pageURL appends the 1-based page parameter for pages after the first.
func pageURL(base, param string, page int) string {
	if page <= 1 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + param + "=" + strconv.Itoa(page)
}

// resolve makes href absolute against base; on failure base is returned.
func resolve(base, href string) string {
	if href == "" {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return base
	}
	ref, err := url.Parse(href)
	if err != nil {
		return base
	}
	return b.ResolveReference(ref).String()
}

// collapse joins whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var (
	datePrefixRe = regexp.MustCompile(`(?i)^(posted on|last updated on|updated?:?)\s*`)
	dateSuffixRe = regexp.MustCompile(`\s*\|.*$`)
)

// Listing-page date layouts shared by the HTML fetchers.
var listingLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"1/2/2006",
	time.RFC3339,
}

// parseDate tries each layout in order and returns the first match.
func parseDate(s string, layouts ...string) *time.Time {
	s = collapse(s)
	if s == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// parseListingDate strips "Posted on" style prefixes and "| Last Updated"
// suffixes before parsing.
func parseListingDate(s string) *time.Time {
	s = datePrefixRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = dateSuffixRe.ReplaceAllString(s, "")
	return parseDate(s, listingLayouts...)
}

// hintFromURL guesses a document type hint from a listing URL.
func hintFromURL(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "blotter"), strings.Contains(lower, "arrest"):
		return "arrest_log"
	case strings.Contains(lower, "press"), strings.Contains(lower, "release"):
		return "press_release"
	default:
		return "activity_feed"
	}
}

// hintFromRecord guesses a hint for an open-data row from its type value,
// then from the dataset URL.
func hintFromRecord(typeValue, rawURL string) string {
	if typeValue != "" {
		t := strings.ToLower(typeValue)
		switch {
		case strings.Contains(t, "arrest"), strings.Contains(t, "booking"):
			return "arrest_log"
		case strings.Contains(t, "incident"), strings.Contains(t, "crime"), strings.Contains(t, "offense"):
			return "incident_reports"
		}
	}
	u := strings.ToLower(rawURL)
	switch {
	case strings.Contains(u, "arrest"), strings.Contains(u, "booking"):
		return "arrest_log"
	case strings.Contains(u, "incident"), strings.Contains(u, "crime"):
		return "incident_reports"
	default:
		return "open_data_api"
	}
}
