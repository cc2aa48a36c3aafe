package wikipedia

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/httputil"
	"github.com/wonny/rsscreen/pkg/logger"
)

// DefaultBaseURL is the English Wikipedia host
const DefaultBaseURL = "https://en.wikipedia.org"

// indexPages maps an index id to its constituents article
var indexPages = map[string]string{
	"sp500":     "/wiki/List_of_S%26P_500_companies",
	"sp400":     "/wiki/List_of_S%26P_400_companies",
	"sp600":     "/wiki/List_of_S%26P_600_companies",
	"nasdaq100": "/wiki/Nasdaq-100",
}

// Indexes returns the supported index ids
func Indexes() []string {
	out := make([]string, 0, len(indexPages))
	for id := range indexPages {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Client scrapes index constituent tables
// ⭐ SSOT: 지수 구성종목 스크래핑은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Wikipedia client
func NewClient(httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "wikipedia"),
		baseURL:    DefaultBaseURL,
	}
}

// WithBaseURL overrides the host (tests)
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// Constituents returns the members of one index with sector metadata
func (c *Client) Constituents(ctx context.Context, index string) ([]contracts.Security, error) {
	path, ok := indexPages[index]
	if !ok {
		return nil, fmt.Errorf("unknown index %q", index)
	}

	html, err := c.fetchHTML(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s constituents: %w", index, err)
	}

	securities, err := parseConstituents(html, index)
	if err != nil {
		return nil, fmt.Errorf("parse %s constituents: %w", index, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"index": index,
		"count": len(securities),
	}).Info("Fetched index constituents")

	return securities, nil
}

// fetchHTML fetches an article body
func (c *Client) fetchHTML(ctx context.Context, path string) (string, error) {
	resp, err := c.httpClient.Get(ctx, c.baseURL+path)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}

// columns holds header positions; -1 means absent
type columns struct {
	ticker   int
	sector   int
	industry int
}

// parseConstituents reads the first wikitable that has a ticker column.
// Column order differs between the index articles so positions come from the header row.
func parseConstituents(html, index string) ([]contracts.Security, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	tables := doc.Find("table#constituents")
	if tables.Length() == 0 {
		tables = doc.Find("table.wikitable")
	}

	var (
		out   []contracts.Security
		found bool
	)
	tables.EachWithBreak(func(_ int, table *goquery.Selection) bool {
		cols := headerColumns(table)
		if cols.ticker < 0 {
			return true
		}
		found = true

		seen := make(map[string]bool)
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() <= cols.ticker {
				return
			}
			ticker := strings.ToUpper(cellText(cells.Eq(cols.ticker)))
			if ticker == "" || seen[ticker] {
				return
			}
			seen[ticker] = true

			sec := contracts.Security{Ticker: ticker, Universe: index}
			if cols.sector >= 0 && cols.sector < cells.Length() {
				sec.Sector = cellText(cells.Eq(cols.sector))
			}
			if cols.industry >= 0 && cols.industry < cells.Length() {
				sec.Industry = cellText(cells.Eq(cols.industry))
			}
			out = append(out, sec)
		})
		return false
	})

	if !found {
		return nil, fmt.Errorf("no constituents table with a ticker column")
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("constituents table is empty")
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}

func headerColumns(table *goquery.Selection) columns {
	cols := columns{ticker: -1, sector: -1, industry: -1}
	table.Find("tr").First().Find("th").Each(func(i int, th *goquery.Selection) {
		h := strings.ToLower(cellText(th))
		switch {
		case cols.ticker < 0 && (h == "symbol" || h == "ticker" || strings.HasPrefix(h, "ticker symbol")):
			cols.ticker = i
		case cols.industry < 0 && strings.Contains(h, "sub-industry"):
			cols.industry = i
		case cols.sector < 0 && strings.Contains(h, "sector"):
			cols.sector = i
		}
	})
	return cols
}

// cellText strips footnote markers like "[3]"
func cellText(s *goquery.Selection) string {
	s = s.Clone()
	s.Find("sup").Remove()
	return strings.TrimSpace(s.Text())
}
