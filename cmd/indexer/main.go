// Command indexer rebuilds the patient context collection in Typesense
// from Postgres. Run it after restoring a database, changing the embedding
// model, or whenever the collection drifts from the durable record.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careloop/postop-followup/backend/internal/adapters/database"
	"github.com/careloop/postop-followup/backend/internal/adapters/search"
	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/openai"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/postgres"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/typesense"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/observability"
	"github.com/careloop/postop-followup/backend/pkg/config"
)

func main() {
	var reset bool
	var intervalFlag string
	flag.BoolVar(&reset, "reset", false, "delete the context collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	observability.InitLogger("postop-indexer", os.Getenv("APP_ENV"))

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	if intervalValue != "" {
		parsed, err := time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatal().Str("interval", intervalValue).Err(err).Msg("Invalid interval")
		}
		if parsed <= 0 {
			log.Fatal().Msg("Interval must be greater than zero")
		}
		interval = parsed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, reset); err != nil {
			log.Error().Err(err).Msg("Reindex failed")
		}

		if interval <= 0 {
			break
		}

		reset = false
		log.Info().Dur("next_run_in", interval).Msg("Reindex complete")

		select {
		case <-ctx.Done():
			log.Info().Msg("Indexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, reset bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	patientRepo := database.NewPatientAdapter(pgClient)
	conversationRepo := database.NewConversationAdapter(pgClient)

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if reset || os.Getenv("RESET_TYPESENSE") == "true" {
		log.Info().Str("collection", typesense.PatientContextCollection).Msg("Deleting context collection before reindex")
		if _, err := tsClient.Client().Collection(typesense.PatientContextCollection).Delete(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to delete collection")
		}
	}

	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	modelClient, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		return err
	}
	contextStore := search.NewContextStoreAdapter(tsClient, modelClient)

	patients, err := patientRepo.List(ctx)
	if err != nil {
		return err
	}

	log.Info().Int("patients", len(patients)).Msg("Reindexing patient context")

	for _, patient := range patients {
		if patient == nil {
			continue
		}

		if err := contextStore.DeleteAll(ctx, patient.ID); err != nil {
			log.Warn().Err(err).Str("patient_id", patient.ID).Msg("Failed to clear existing context records")
		}

		stored := 0
		if profile := profileSnippet(patient); profile != "" {
			if _, err := contextStore.Store(ctx, patient.ID, profile, map[string]string{"source": "profile"}); err != nil {
				log.Warn().Err(err).Str("patient_id", patient.ID).Msg("Failed to store profile snippet")
			} else {
				stored++
			}
		}

		conversations, err := conversationRepo.ListByPatient(ctx, patient.ID)
		if err != nil {
			log.Warn().Err(err).Str("patient_id", patient.ID).Msg("Failed to load conversation history")
			continue
		}

		for _, conv := range conversations {
			snippet := conversationSnippet(conv)
			if snippet == "" {
				continue
			}
			if _, err := contextStore.Store(ctx, patient.ID, snippet, map[string]string{"source": "conversation"}); err != nil {
				log.Warn().Err(err).Str("patient_id", patient.ID).Msg("Failed to store conversation snippet")
				continue
			}
			stored++
		}

		log.Info().Str("patient_id", patient.ID).Str("name", patient.Name).Int("records", stored).Msg("Reindexed patient")
	}

	log.Info().Msg("Reindex finished")
	return nil
}

func profileSnippet(patient *entities.Patient) string {
	parts := []string{}
	if patient.SurgeryType != "" {
		parts = append(parts, patient.SurgeryType)
	}
	if patient.SurgeryDate != nil {
		parts = append(parts, "on "+patient.SurgeryDate.Format("2006-01-02"))
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf("%s had %s.", patient.Name, strings.Join(parts, " "))
}

func conversationSnippet(conv *entities.Conversation) string {
	if conv == nil || strings.TrimSpace(conv.PatientMessage) == "" {
		return ""
	}

	day := conv.CreatedAt.Format("2006-01-02")
	var b strings.Builder
	fmt.Fprintf(&b, "On %s the patient reported: %s", day, strings.TrimSpace(conv.PatientMessage))

	if len(conv.ExtractedSignals.Symptoms) > 0 {
		fmt.Fprintf(&b, " Symptoms: %s.", strings.Join(conv.ExtractedSignals.Symptoms, ", "))
	}
	if conv.ExtractedSignals.PainLevel != nil {
		fmt.Fprintf(&b, " Pain level %d/10.", *conv.ExtractedSignals.PainLevel)
	}
	if conv.RiskLevel != "" {
		fmt.Fprintf(&b, " Assessed risk: %s.", conv.RiskLevel)
	}
	return b.String()
}
