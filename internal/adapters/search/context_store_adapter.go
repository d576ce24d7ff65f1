package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/domain/providers"
	tsclient "github.com/careloop/postop-followup/backend/internal/infrastructure/clients/typesense"
)

// ContextStoreAdapter implements the patient context store over Typesense
// vector search. Every record carries the owning patient id, and every
// query filters on it, so one patient's records never surface for another.
type ContextStoreAdapter struct {
	client   *tsclient.Client
	embedder providers.Embedder
}

// Ensure ContextStoreAdapter implements ContextStore
var _ providers.ContextStore = (*ContextStoreAdapter)(nil)

// NewContextStoreAdapter creates a new Typesense-backed context store.
func NewContextStoreAdapter(client *tsclient.Client, embedder providers.Embedder) *ContextStoreAdapter {
	return &ContextStoreAdapter{client: client, embedder: embedder}
}

// Retrieve returns up to topK context snippets for the patient ranked by
// similarity to the query. It never fails: embedding or search errors are
// logged and degrade to an empty result so the caller proceeds without
// background context.
func (a *ContextStoreAdapter) Retrieve(ctx context.Context, patientID, query string, topK int) []string {
	if topK <= 0 {
		return []string{}
	}

	vector, err := a.embedder.Embed(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("patient_id", patientID).Msg("context retrieval degraded: embedding failed")
		return []string{}
	}

	searchParams := &api.SearchCollectionParams{
		Q:           pointer.String("*"),
		QueryBy:     pointer.String("text"),
		FilterBy:    pointer.String(patientFilter(patientID)),
		VectorQuery: pointer.String(formatVectorQuery(vector, topK)),
		PerPage:     pointer.Int(topK),
	}

	result, err := a.client.Client().Collection(tsclient.PatientContextCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		log.Warn().Err(err).Str("patient_id", patientID).Msg("context retrieval degraded: search failed")
		return []string{}
	}

	snippets := []string{}
	if result.Hits == nil {
		return snippets
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document
		text, ok := doc["text"].(string)
		if !ok || text == "" {
			continue
		}
		snippets = append(snippets, text)
		if len(snippets) == topK {
			break
		}
	}
	return snippets
}

// Store embeds and indexes one context snippet for the patient, returning
// the generated record id.
func (a *ContextStoreAdapter) Store(ctx context.Context, patientID, text string, metadata map[string]string) (string, error) {
	vector, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("failed to embed context text: %w", err)
	}

	record := entities.ContextRecord{
		ID:        fmt.Sprintf("%s_%s", patientID, uuid.NewString()),
		PatientID: patientID,
		Text:      text,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}

	if _, err := a.client.Client().Collection(tsclient.PatientContextCollection).Documents().Upsert(ctx, recordToDocument(record, vector)); err != nil {
		return "", fmt.Errorf("failed to index context record: %w", err)
	}

	return record.ID, nil
}

func recordToDocument(record entities.ContextRecord, vector []float32) map[string]interface{} {
	document := map[string]interface{}{
		"id":         record.ID,
		"patient_id": record.PatientID,
		"text":       record.Text,
		"created_at": record.CreatedAt.Unix(),
		"embedding":  vector,
	}
	for key, value := range record.Metadata {
		document["meta_"+key] = value
	}
	return document
}

// DeleteAll removes every context record belonging to the patient.
func (a *ContextStoreAdapter) DeleteAll(ctx context.Context, patientID string) error {
	params := &api.DeleteDocumentsParams{FilterBy: pointer.String(patientFilter(patientID))}
	if _, err := a.client.Client().Collection(tsclient.PatientContextCollection).Documents().Delete(ctx, params); err != nil {
		return fmt.Errorf("failed to delete context records: %w", err)
	}
	return nil
}

// patientFilter scopes a Typesense query to one patient's records. Every
// read and delete goes through it.
func patientFilter(patientID string) string {
	return fmt.Sprintf("patient_id:=%s", patientID)
}

// formatVectorQuery renders a Typesense vector_query clause, e.g.
// "embedding:([0.12,0.34], k:5)".
func formatVectorQuery(vector []float32, k int) string {
	var b strings.Builder
	b.WriteString("embedding:([")
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteString("], k:")
	b.WriteString(strconv.Itoa(k))
	b.WriteString(")")
	return b.String()
}
