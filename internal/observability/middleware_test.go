package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func newLoggedRouter(buf *bytes.Buffer, node string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zerolog.New(buf).Level(zerolog.DebugLevel)
	r := gin.New()
	r.Use(RequestLogger(logger, node), RequestMetricsMiddleware(node))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/link", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRequestLoggerTagsNode(t *testing.T) {
	var buf bytes.Buffer
	r := newLoggedRouter(&buf, "node-mw")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/link", nil))
	out := buf.String()
	if !strings.Contains(out, `"node":"node-mw"`) || !strings.Contains(out, `"route":"/link"`) {
		t.Fatalf("missing node or route: %q", out)
	}
}

func TestRequestLoggerQuietsScrapes(t *testing.T) {
	var buf bytes.Buffer
	r := newLoggedRouter(&buf, "node-mw")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if buf.Len() != 0 {
		t.Fatalf("health scrape logged at debug: %q", buf.String())
	}
}

func TestUnmatchedPathsShareOneLabel(t *testing.T) {
	var buf bytes.Buffer
	r := newLoggedRouter(&buf, "node-unmatched")

	for _, p := range []string{"/a", "/b/c", "/d?x=1"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}
	got := testutil.ToFloat64(httpRequests.WithLabelValues("node-unmatched", http.MethodGet, unmatchedRoute, "404"))
	if got != 3 {
		t.Fatalf("unmatched requests: got=%v want=3", got)
	}
	if !strings.Contains(buf.String(), `"level":"warn"`) || !strings.Contains(buf.String(), `"route":"unmatched"`) {
		t.Fatalf("404 not logged as unmatched warning: %q", buf.String())
	}
}
