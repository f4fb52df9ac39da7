package prompt

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/gptbot/internal/model/prompt"
)

func TestCatalogue(t *testing.T) {
	store, err := prompt.Default()
	if err != nil {
		t.Fatalf("prompt.Default err: %v", err)
	}

	r := chi.NewRouter()
	New(store).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/prompts", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var got prompt.Catalogue
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(got.Personas) != len(store.Catalogue().Personas) || len(got.GPTTopics) != 6 {
		t.Fatalf("unexpected catalogue: %+v", got)
	}
}
