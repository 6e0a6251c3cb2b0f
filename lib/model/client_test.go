// Copyright 2026 The Call-me-maybe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package model

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/scores":
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			var req scoresRequest
			if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if len(req.TokenIDs) == 0 {
				http.Error(w, "token_ids is empty", http.StatusUnprocessableEntity)
				return
			}
			scores := make([]float32, 3)
			scores[(req.TokenIDs[len(req.TokenIDs)-1]+1)%3] = 10
			w.Header().Set("Content-Type", "application/json")
			_ = sonic.ConfigDefault.NewEncoder(w).Encode(scoresResponse{Scores: scores})
		case "/v1/vocab.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"a": 0, "b": 1, "</s>": 2}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClientScoresFor(t *testing.T) {
	server := newServer(t)
	client := NewClient(WithBaseURL(server.URL+"/v1/"), WithLogger(zaptest.NewLogger(t)))

	scores, err := client.ScoresFor(context.Background(), []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 10}, scores)

	t.Run("status error", func(t *testing.T) {
		_, err := client.ScoresFor(context.Background(), []int{})
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
		assert.Contains(t, statusErr.Error(), "token_ids is empty")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.ScoresFor(ctx, []int{0})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestClientVocabulary(t *testing.T) {
	server := newServer(t)

	t.Run("remote", func(t *testing.T) {
		client := NewClient(WithBaseURL(server.URL+"/v1"), WithTimeout(5*time.Second))
		assert.Equal(t, server.URL+"/v1/vocab.json", client.VocabularySource())

		v, err := client.FetchVocabulary(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, v.Size())
		eos, ok := v.EOSTokenID()
		require.True(t, ok)
		assert.Equal(t, 2, eos)
	})

	t.Run("local path wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vocab.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"x": 0}`), 0o600))

		client := NewClient(WithBaseURL(server.URL+"/v1"), WithVocabularyPath(path))
		assert.Equal(t, path, client.VocabularySource())
		v, err := client.FetchVocabulary(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, v.Size())
	})

	t.Run("not found", func(t *testing.T) {
		client := NewClient(WithBaseURL(server.URL + "/other"))
		_, err := client.FetchVocabulary(context.Background())
		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	})
}
