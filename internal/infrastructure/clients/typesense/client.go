package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/careloop/postop-followup/backend/pkg/config"
	"github.com/careloop/postop-followup/backend/pkg/retry"
)

const (
	// PatientContextCollection holds embedded per-patient context snippets.
	PatientContextCollection = "patient_context"
)

// Client represents a Typesense client
type Client struct {
	client        *typesense.Client
	embeddingDims int
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	retryConfig := retry.DefaultConfig()
	err := retry.DoWithLog(
		context.Background(),
		retryConfig,
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Int("attempt", attempt).Err(err).Dur("next_delay", nextDelay).
				Msg("Typesense connection attempt failed, retrying")
		},
	)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Msg("connected to Typesense")
	return &Client{client: client, embeddingDims: cfg.EmbeddingDims}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// EmbeddingDims returns the vector dimensionality the collection is built for.
func (c *Client) EmbeddingDims() int {
	return c.embeddingDims
}

// InitSchema ensures the patient context collection exists. The embedding
// field dimensionality must match the configured embedding model.
func (c *Client) InitSchema(ctx context.Context) error {
	_, err := c.client.Collection(PatientContextCollection).Retrieve(ctx)
	if err == nil {
		return nil
	}

	schema := &api.CollectionSchema{
		Name: PatientContextCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "patient_id", Type: "string", Facet: pointer.True()},
			{Name: "text", Type: "string"},
			{Name: "created_at", Type: "int64"},
			{Name: "embedding", Type: "float[]", NumDim: pointer.Int(c.embeddingDims)},
		},
		DefaultSortingField: pointer.String("created_at"),
	}

	_, err = c.client.Collections().Create(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}

	log.Info().Str("collection", PatientContextCollection).Msg("created Typesense collection")
	return nil
}
