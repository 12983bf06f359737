package translate_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ubtue/ztsharvest/internal/translate"
)

func TestClient_Web_SingleMatchReturnsSingleBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte(`[{"title":"Article One"}]`))
	}))
	defer server.Close()

	c := translate.NewClient(server.URL, time.Second, 2)
	result, err := c.Web(t.Context(), "https://example.com/a", "", time.Second)
	if err != nil {
		t.Fatalf("Web: %v", err)
	}
	if result.Kind != translate.SingleBatch {
		t.Errorf("Kind = %v, want SingleBatch", result.Kind)
	}
}

func TestClient_Web_MultiMatchFollowsUpAndReturnsMultiBatch(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(300)
			w.Write([]byte(`{"https://example.com/a":"Article A","https://example.com/b":"Article B"}`))
			return
		}
		w.WriteHeader(200)
		w.Write([]byte(`[{"url":"https://example.com/a"},{"url":"https://example.com/b"}]`))
	}))
	defer server.Close()

	c := translate.NewClient(server.URL, time.Second, 2)
	result, err := c.Web(t.Context(), "https://example.com/landing", "", time.Second)
	if err != nil {
		t.Fatalf("Web: %v", err)
	}
	if result.Kind != translate.MultiBatch {
		t.Errorf("Kind = %v, want MultiBatch", result.Kind)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (initial + follow-up)", calls)
	}

	// Each child URL from the 300 response must be reported back so the
	// caller can cache an equivalent lookup for it (§4.5: a later direct
	// fetch of a child must be a cache hit, not a second round trip).
	wantChildren := map[string]bool{"https://example.com/a": true, "https://example.com/b": true}
	if len(result.ChildURLs) != len(wantChildren) {
		t.Fatalf("ChildURLs = %v, want %d entries", result.ChildURLs, len(wantChildren))
	}
	for _, child := range result.ChildURLs {
		if !wantChildren[child] {
			t.Errorf("unexpected child URL %q", child)
		}
	}
}

func TestClient_Web_PathologicalSingleChildMatchIsRejected(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(300)
			w.Write([]byte(`{"a":"Article A"}`))
			return
		}
		w.WriteHeader(200)
		w.Write([]byte(`[{"url":"https://example.com/landing"}]`))
	}))
	defer server.Close()

	c := translate.NewClient(server.URL, time.Second, 2)
	if _, err := c.Web(t.Context(), "https://example.com/landing", "", time.Second); err == nil {
		t.Errorf("expected an error when the follow-up echoes only the original url")
	}
}

func TestClient_Web_TranslatorUnavailableIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(501)
	}))
	defer server.Close()

	c := translate.NewClient(server.URL, time.Second, 2)
	result, err := c.Web(t.Context(), "https://example.com/a", "", time.Second)
	if err != nil {
		t.Fatalf("Web: %v", err)
	}
	if result.Kind != translate.TranslatorUnavailable {
		t.Errorf("Kind = %v, want TranslatorUnavailable", result.Kind)
	}
}

func TestClient_Web_TranslatorInternalErrorIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer server.Close()

	c := translate.NewClient(server.URL, time.Second, 2)
	if _, err := c.Web(t.Context(), "https://example.com/a", "", time.Second); err == nil {
		t.Errorf("expected an error for a translator 500")
	}
}

func TestClient_SearchMultiple_FiltersAlreadyDelivered(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		gotBody = body
		w.WriteHeader(200)
		w.Write([]byte(`[{"title":"x"}]`))
	}))
	defer server.Close()

	c := translate.NewClient(server.URL, time.Second, 2)
	ids := map[string]int{"id1": 0, "id2": 1}
	delivered := func(id string) bool { return id == "id1" }

	result, err := c.SearchMultiple(t.Context(), ids, delivered, 10, time.Second)
	if err != nil {
		t.Fatalf("SearchMultiple: %v", err)
	}
	if result.Kind != translate.SingleBatch {
		t.Errorf("Kind = %v, want SingleBatch", result.Kind)
	}
	if len(gotBody) == 0 {
		t.Fatalf("expected a network call for the undelivered id")
	}
}

func TestClient_SearchMultiple_EmptyFilteredBatchMakesNoCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(200)
	}))
	defer server.Close()

	c := translate.NewClient(server.URL, time.Second, 2)
	ids := map[string]int{"id1": 0}
	delivered := func(id string) bool { return true }

	result, err := c.SearchMultiple(t.Context(), ids, delivered, 10, time.Second)
	if err != nil {
		t.Fatalf("SearchMultiple: %v", err)
	}
	if called {
		t.Errorf("expected no network call when every id is already delivered")
	}
	if result.Kind != translate.SingleBatch {
		t.Errorf("zero-value Result.Kind should be SingleBatch, got %v", result.Kind)
	}
}

func TestClient_Export_ReturnsConvertedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("format") != "marc" {
			t.Errorf("format query param = %q, want marc", r.URL.Query().Get("format"))
		}
		w.WriteHeader(200)
		w.Write([]byte("converted"))
	}))
	defer server.Close()

	c := translate.NewClient(server.URL, time.Second, 2)
	body, err := c.Export(t.Context(), "marc", []byte(`{"title":"x"}`), time.Second)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if string(body) != "converted" {
		t.Errorf("body = %q, want converted", body)
	}
}
