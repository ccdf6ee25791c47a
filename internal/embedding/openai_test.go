package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinCortex/config"
)

func TestEmbedStrings_OrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Len(t, req.Input, 2)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}
		],"model":"text-embedding-3-small","usage":{"prompt_tokens":4,"total_tokens":4}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&Config{APIKey: "k", BaseURL: srv.URL, Model: "text-embedding-3-small"})
	vecs, err := e.EmbedStrings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)
}

func TestEmbedStrings_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(&Config{APIKey: "k", BaseURL: srv.URL, Model: "text-embedding-3-small"})
	_, err := e.EmbedStrings(context.Background(), []string{"a"})
	require.ErrorIs(t, err, ErrProvider)
}

func TestNewFromConfig_RequiresKey(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	_, err := NewFromConfig(cfg, nil)
	require.ErrorIs(t, err, config.ErrMissingCredentials)

	cfg.OpenAIAPIKey = "k"
	e, err := NewFromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", e.Model())
}
