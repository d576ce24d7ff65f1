package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tsclient "github.com/careloop/postop-followup/backend/internal/infrastructure/clients/typesense"
	"github.com/careloop/postop-followup/backend/pkg/config"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func TestRetrieveFailsClosedOnEmbeddingError(t *testing.T) {
	adapter := NewContextStoreAdapter(nil, &fakeEmbedder{err: fmt.Errorf("model unavailable")})

	snippets := adapter.Retrieve(context.Background(), "patient-1", "how is my wound", 5)

	assert.NotNil(t, snippets)
	assert.Empty(t, snippets)
}

func TestRetrieveZeroTopK(t *testing.T) {
	adapter := NewContextStoreAdapter(nil, &fakeEmbedder{vector: []float32{0.1}})

	assert.Empty(t, adapter.Retrieve(context.Background(), "patient-1", "anything", 0))
}

func TestRetrieveOnlySurfacesTheRequestedPatientsRecords(t *testing.T) {
	// The backend holds records for two patients and answers honoring the
	// filter_by clause; only patient A's record may come back.
	records := map[string]map[string]interface{}{
		"patient-a": {"id": "patient-a_1", "patient_id": "patient-a", "text": "knee replacement, allergic to penicillin"},
		"patient-b": {"id": "patient-b_1", "patient_id": "patient-b", "text": "hip replacement, on blood thinners"},
	}

	var gotFilter, gotVectorQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"ok":true}`)
		case "/collections/patient_context/documents/search":
			gotFilter = r.URL.Query().Get("filter_by")
			gotVectorQuery = r.URL.Query().Get("vector_query")
			hits := []map[string]interface{}{}
			for patientID, doc := range records {
				if gotFilter == "patient_id:="+patientID {
					hits = append(hits, map[string]interface{}{"document": doc})
				}
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{"found": len(hits), "hits": hits})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := tsclient.NewClient(&config.TypesenseConfig{URL: server.URL, APIKey: "test-key", EmbeddingDims: 2})
	require.NoError(t, err)

	adapter := NewContextStoreAdapter(client, &fakeEmbedder{vector: []float32{0.1, 0.2}})
	snippets := adapter.Retrieve(context.Background(), "patient-a", "how is my knee", 5)

	assert.Equal(t, "patient_id:=patient-a", gotFilter)
	assert.Equal(t, "embedding:([0.1,0.2], k:5)", gotVectorQuery)
	require.Len(t, snippets, 1)
	assert.Equal(t, "knee replacement, allergic to penicillin", snippets[0])
}

func TestPatientFilter(t *testing.T) {
	assert.Equal(t, "patient_id:=p1", patientFilter("p1"))
}

func TestFormatVectorQuery(t *testing.T) {
	tests := []struct {
		name     string
		vector   []float32
		k        int
		expected string
	}{
		{
			name:     "two components",
			vector:   []float32{0.5, -1.25},
			k:        3,
			expected: "embedding:([0.5,-1.25], k:3)",
		},
		{
			name:     "single component",
			vector:   []float32{1},
			k:        1,
			expected: "embedding:([1], k:1)",
		},
		{
			name:     "empty vector",
			vector:   nil,
			k:        5,
			expected: "embedding:([], k:5)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatVectorQuery(tt.vector, tt.k))
		})
	}
}
