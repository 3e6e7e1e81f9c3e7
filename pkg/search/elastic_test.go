package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type recorded struct {
	method string
	path   string
	body   string
}

// fakeES answers like a single-node cluster and records document calls.
func fakeES(t *testing.T) (*Client, *[]recorded) {
	t.Helper()
	var mu sync.Mutex
	calls := &[]recorded{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		body, _ := io.ReadAll(r.Body)

		mu.Lock()
		*calls = append(*calls, recorded{r.Method, r.URL.Path, string(body)})
		mu.Unlock()

		switch {
		case r.URL.Path == "/":
			io.WriteString(w, `{"version":{"number":"8.19.0"}}`)
		case r.URL.Path == "/recipes" && r.Method == http.MethodPut:
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":{"type":"resource_already_exists_exception"}}`)
		case strings.HasSuffix(r.URL.Path, "/_search"):
			io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_id":"r1","_source":{"name":"Bread"}}]}}`)
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"result":"not_found"}`)
		default:
			io.WriteString(w, `{"result":"created"}`)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(&Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, calls
}

func TestIndexPutsDocument(t *testing.T) {
	c, calls := fakeES(t)

	if err := c.Index(context.Background(), "recipes", "r1", map[string]string{"name": "Bread"}); err != nil {
		t.Fatalf("Index: %v", err)
	}
	last := (*calls)[len(*calls)-1]
	if last.method != http.MethodPut || last.path != "/recipes/_doc/r1" {
		t.Fatalf("unexpected call %+v", last)
	}
	var doc map[string]string
	if err := json.Unmarshal([]byte(last.body), &doc); err != nil || doc["name"] != "Bread" {
		t.Fatalf("unexpected body %q", last.body)
	}
}

func TestCreateIndexToleratesExisting(t *testing.T) {
	c, _ := fakeES(t)
	if err := c.CreateIndex(context.Background(), "recipes", `{"mappings":{}}`); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
}

func TestDeleteMissingDocument(t *testing.T) {
	c, _ := fakeES(t)
	if err := c.Delete(context.Background(), "recipes", "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestSearchDecodesHits(t *testing.T) {
	c, _ := fakeES(t)

	res, err := c.Search(context.Background(), "recipes", map[string]any{"query": map[string]any{"match_all": map[string]any{}}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Hits.Total.Value != 1 || res.Hits.Hits[0].ID != "r1" {
		t.Fatalf("unexpected result %+v", res)
	}
}
