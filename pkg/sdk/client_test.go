package assetdex

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("", WithUserID("u1"))
	if err == nil {
		t.Fatal("expected error when no base URL provided")
	}
}

func TestNew_RequiresUserID(t *testing.T) {
	_, err := New("http://localhost:8080")
	if err == nil {
		t.Fatal("expected error when no user id provided")
	}
}

func TestSearch_SendsHeadersAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization header: got %q", got)
		}
		if got := r.Header.Get("X-User-ID"); got != "u1" {
			t.Errorf("user header: got %q", got)
		}
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "grey sofa" {
			t.Errorf("query: got %q", req.Query)
		}
		_ = json.NewEncoder(w).Encode(SearchResponse{
			Assets: []Asset{{ID: "a1", FileName: "sofa.jpg"}},
			Total:  1, Page: 1, Limit: 20, Tier: "structured",
		})
	}))
	defer srv.Close()

	client, err := New(srv.URL, WithAPIKey("secret"), WithUserID("u1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Search(context.Background(), SearchRequest{Query: "grey sofa"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if resp.Total != 1 || len(resp.Assets) != 1 || resp.Assets[0].ID != "a1" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Tier != "structured" {
		t.Errorf("tier: got %q", resp.Tier)
	}
}

func TestSuggestions_QueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "sof" {
			t.Errorf("q param: got %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit param: got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string][]string{"suggestions": {"sofa", "soft"}})
	}))
	defer srv.Close()

	client, _ := New(srv.URL, WithUserID("u1"))
	terms, err := client.Suggestions(context.Background(), "sof", 5)
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	if len(terms) != 2 || terms[0] != "sofa" {
		t.Errorf("unexpected terms: %v", terms)
	}
}

func TestRegisterAsset_Accepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Asset{ID: "a1", Status: "pending"})
	}))
	defer srv.Close()

	client, _ := New(srv.URL, WithUserID("u1"))
	asset, err := client.RegisterAsset(context.Background(), RegisterAssetRequest{
		FileName:   "sofa.jpg",
		StorageKey: "s1/sofa.jpg",
		MimeType:   "image/jpeg",
		SiteID:     "s1",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if asset.Status != "pending" {
		t.Errorf("status: got %q", asset.Status)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		code   string
		want   error
	}{
		{http.StatusBadRequest, "validation_failed", ErrValidation},
		{http.StatusNotFound, "asset_not_found", ErrAssetNotFound},
		{http.StatusNotFound, "not_found", ErrNotFound},
		{http.StatusConflict, "already_exists", ErrAlreadyExists},
		{http.StatusUnauthorized, "bad_request", ErrUnauthorized},
		{http.StatusServiceUnavailable, "backend_unavailable", ErrBackendUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code": tc.code, "message": "boom",
				})
			}))
			defer srv.Close()

			client, _ := New(srv.URL, WithUserID("u1"))
			_, err := client.Asset(context.Background(), "a1")
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.StatusCode != tc.status {
				t.Errorf("status: got %d, want %d", apiErr.StatusCode, tc.status)
			}
		})
	}
}

func TestReprocess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/assets/reprocess" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(ReprocessResult{Reset: 3})
	}))
	defer srv.Close()

	client, _ := New(srv.URL, WithUserID("u1"))
	res, err := client.Reprocess(context.Background())
	if err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	if res.Reset != 3 {
		t.Errorf("reset: got %d, want 3", res.Reset)
	}
}
