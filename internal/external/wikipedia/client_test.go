package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/pkg/config"
	"github.com/wonny/rsscreen/pkg/httputil"
	"github.com/wonny/rsscreen/pkg/logger"
)

const sp500HTML = `<html><body>
<table class="wikitable">
  <tr><th>Year</th><th>Count</th></tr>
  <tr><td>2024</td><td>503</td></tr>
</table>
<table class="wikitable sortable" id="constituents">
  <tbody>
  <tr><th>Symbol</th><th>Security</th><th>GICS Sector</th><th>GICS Sub-Industry</th><th>Headquarters</th></tr>
  <tr><td><a href="#">MSFT</a></td><td>Microsoft</td><td>Information Technology</td><td>Systems Software</td><td>Redmond</td></tr>
  <tr><td><a href="#">AAPL</a></td><td>Apple Inc.</td><td>Information Technology</td><td>Technology Hardware<sup>[4]</sup></td><td>Cupertino</td></tr>
  <tr><td>BRK.B</td><td>Berkshire Hathaway</td><td>Financials</td><td>Multi-Sector Holdings</td><td>Omaha</td></tr>
  <tr><td>aapl</td><td>Apple duplicate</td><td>x</td><td>y</td><td>z</td></tr>
  </tbody>
</table>
</body></html>`

// Nasdaq-100 article: ticker is the second column
const nasdaqHTML = `<html><body>
<table class="wikitable" id="constituents">
  <tr><th>Company</th><th>Ticker</th><th>GICS Sector</th><th>GICS Sub-Industry</th></tr>
  <tr><td>Adobe Inc.</td><td>ADBE</td><td>Information Technology</td><td>Application Software</td></tr>
  <tr><td>Amazon</td><td>AMZN</td><td>Consumer Discretionary</td><td>Broadline Retail</td></tr>
</table>
</body></html>`

func TestParseConstituents(t *testing.T) {
	got, err := parseConstituents(sp500HTML, "sp500")
	require.NoError(t, err)

	assert.Equal(t, []contracts.Security{
		{Ticker: "AAPL", Sector: "Information Technology", Industry: "Technology Hardware", Universe: "sp500"},
		{Ticker: "BRK.B", Sector: "Financials", Industry: "Multi-Sector Holdings", Universe: "sp500"},
		{Ticker: "MSFT", Sector: "Information Technology", Industry: "Systems Software", Universe: "sp500"},
	}, got)
}

func TestParseConstituents_TickerColumnPosition(t *testing.T) {
	got, err := parseConstituents(nasdaqHTML, "nasdaq100")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ADBE", got[0].Ticker)
	assert.Equal(t, "Application Software", got[0].Industry)
	assert.Equal(t, "Consumer Discretionary", got[1].Sector)
}

func TestParseConstituents_NoTable(t *testing.T) {
	_, err := parseConstituents(`<html><body><p>moved</p></body></html>`, "sp500")
	assert.Error(t, err)
}

func TestClient_Constituents(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(sp500HTML))
	}))
	defer srv.Close()

	httpClient := httputil.New(&config.Config{}, logger.NewNop()).DisableRetry()
	c := NewClient(httpClient, logger.NewNop()).WithBaseURL(srv.URL)

	got, err := c.Constituents(context.Background(), "sp500")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "/wiki/List_of_S%26P_500_companies", gotPath)

	_, err = c.Constituents(context.Background(), "ftse100")
	assert.Error(t, err)
}

func TestClient_Constituents_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	httpClient := httputil.New(&config.Config{}, logger.NewNop()).DisableRetry()
	c := NewClient(httpClient, logger.NewNop()).WithBaseURL(srv.URL)

	_, err := c.Constituents(context.Background(), "sp400")
	assert.Error(t, err)
}

func TestIndexes(t *testing.T) {
	assert.Equal(t, []string{"nasdaq100", "sp400", "sp500", "sp600"}, Indexes())
}
