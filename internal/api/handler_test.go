package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/snograph/snoquery/internal/index"
	"github.com/snograph/snoquery/internal/service"
	"github.com/snograph/snoquery/internal/store"
	"github.com/snograph/snoquery/pkg/config"
	"github.com/snograph/snoquery/pkg/metrics"
)

var testMetrics = metrics.New()

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	b := index.NewBuilder(nil)
	concepts := []index.ConceptDocument{
		{
			ID:  "138875005",
			FSN: "SNOMED CT Concept (SNOMED RT+CTV3)",
		},
		{
			ID:        "404684003",
			FSN:       "Clinical finding (finding)",
			Parents:   []string{"138875005"},
			Ancestors: []string{"138875005"},
		},
		{
			ID:             "22298006",
			FSN:            "Myocardial infarction (disorder)",
			Parents:        []string{"404684003"},
			Ancestors:      []string{"404684003", "138875005"},
			DescriptionIDs: []string{"745159014"},
		},
		{
			ID:        "900000000000455006",
			FSN:       "Reference set (foundation metadata concept)",
			Parents:   []string{"138875005"},
			Ancestors: []string{"138875005"},
		},
		{
			ID:        "900000000000497000",
			FSN:       "CTV3 simple map reference set (foundation metadata concept)",
			Parents:   []string{"900000000000455006"},
			Ancestors: []string{"900000000000455006", "138875005"},
		},
	}
	for _, c := range concepts {
		c.Active = true
		c.EffectiveTime = "20250801"
		b.Add(c.Flatten(b.Schema()))
	}

	cfg := config.QueryConfig{DefaultLimit: 1000, MaxResults: 10000, MaxClauseCount: 400000}
	info := &store.ReleaseInfo{EffectiveTime: "20250801"}
	svc := service.New(b.Freeze(), info, cfg, testMetrics)

	mux := http.NewServeMux()
	New(svc, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s response: %v", path, err)
		}
	}
	return resp.StatusCode
}

// TestSearchEndpoint checks the search route with a constraint expression.
func TestSearchEndpoint(t *testing.T) {
	srv := testServer(t)

	var page service.ConceptPage
	status := get(t, srv, "/api/v1/concepts?ecl=DESCENDANT_OF(138875005)", &page)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if page.Total != 4 {
		t.Fatalf("total = %d, want 4", page.Total)
	}
	for _, item := range page.Items {
		if item.ID == "138875005" {
			t.Errorf("results include the traversal origin: %v", page.Items)
		}
	}
}

// TestSearchIDsForm checks form=ids returns the identifier projection.
func TestSearchIDsForm(t *testing.T) {
	srv := testServer(t)

	var page service.IDPage
	status := get(t, srv, "/api/v1/concepts?ecl=DESCENDANT_OR_SELF_OF(404684003)&form=ids", &page)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if page.Total != 2 || len(page.IDs) != 2 {
		t.Fatalf("page = %+v, want 2 ids", page)
	}
}

// TestSearchBadParams checks parameter validation rejects with 400.
func TestSearchBadParams(t *testing.T) {
	srv := testServer(t)
	for _, path := range []string{
		"/api/v1/concepts?limit=0",
		"/api/v1/concepts?limit=abc",
		"/api/v1/concepts?offset=-1",
	} {
		if status := get(t, srv, path, nil); status != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", path, status)
		}
	}
}

// TestSearchInvalidConstraint checks a malformed expression maps to 400.
func TestSearchInvalidConstraint(t *testing.T) {
	srv := testServer(t)
	var body map[string]string
	status := get(t, srv, "/api/v1/concepts?ecl=DESCENDANT_OF%28", &body)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if body["error"] == "" {
		t.Fatal("error body is empty")
	}
}

// TestConceptEndpoint checks the direct lookup and its error statuses.
func TestConceptEndpoint(t *testing.T) {
	srv := testServer(t)

	var concept service.ConceptResult
	if status := get(t, srv, "/api/v1/concepts/22298006", &concept); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if concept.FSN != "Myocardial infarction (disorder)" {
		t.Errorf("fsn = %q", concept.FSN)
	}

	if status := get(t, srv, "/api/v1/concepts/999999999", nil); status != http.StatusNotFound {
		t.Errorf("unknown concept status = %d, want 404", status)
	}
	if status := get(t, srv, "/api/v1/concepts/12345", nil); status != http.StatusBadRequest {
		t.Errorf("malformed id status = %d, want 400", status)
	}
}

// TestTraversalEndpoints checks the ancestor and descendant routes.
func TestTraversalEndpoints(t *testing.T) {
	srv := testServer(t)

	var page service.ConceptPage
	if status := get(t, srv, "/api/v1/concepts/22298006/ancestors", &page); status != http.StatusOK {
		t.Fatalf("ancestors status = %d, want 200", status)
	}
	if page.Total != 2 {
		t.Errorf("ancestors total = %d, want 2", page.Total)
	}

	if status := get(t, srv, "/api/v1/concepts/404684003/descendants", &page); status != http.StatusOK {
		t.Fatalf("descendants status = %d, want 200", status)
	}
	if page.Total != 1 || page.Items[0].ID != "22298006" {
		t.Errorf("descendants page = %+v", page)
	}

	if status := get(t, srv, "/api/v1/concepts/999999999/descendants", nil); status != http.StatusNotFound {
		t.Errorf("unknown concept status = %d, want 404", status)
	}
}

// TestDescriptionEndpoint checks description-to-concept resolution.
func TestDescriptionEndpoint(t *testing.T) {
	srv := testServer(t)

	var concept service.ConceptResult
	if status := get(t, srv, "/api/v1/descriptions/745159014/concept", &concept); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if concept.ID != "22298006" {
		t.Errorf("concept id = %q, want 22298006", concept.ID)
	}

	var body map[string]string
	if status := get(t, srv, "/api/v1/descriptions/999999999/concept", &body); status != http.StatusNotFound {
		t.Errorf("absent description status = %d, want 404", status)
	}
	if body["error"] == "" {
		t.Error("error body is empty")
	}
}

// TestStatsEndpoint checks the release summary route.
func TestStatsEndpoint(t *testing.T) {
	srv := testServer(t)
	var stats service.Stats
	if status := get(t, srv, "/api/v1/stats", &stats); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if stats.ConceptCount != 5 || stats.EffectiveTime != "20250801" {
		t.Errorf("stats = %+v", stats)
	}
}

// TestRefsetsEndpoint checks refset listing is a paged concept result.
func TestRefsetsEndpoint(t *testing.T) {
	srv := testServer(t)

	var page service.ConceptPage
	if status := get(t, srv, "/api/v1/refsets", &page); status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].ID != "900000000000497000" {
		t.Fatalf("refset page = %+v", page)
	}

	if status := get(t, srv, "/api/v1/refsets?limit=abc", nil); status != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", status)
	}
}
