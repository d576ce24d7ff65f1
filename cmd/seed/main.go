// Command seed loads demo data for local development: one hospital, two
// doctors, three patients with conversation history and pain trends, one
// login per role, and a pair of open alerts.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/careloop/postop-followup/backend/internal/adapters/database"
	"github.com/careloop/postop-followup/backend/internal/adapters/search"
	"github.com/careloop/postop-followup/backend/internal/domain/entities"
	"github.com/careloop/postop-followup/backend/internal/domain/providers"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/openai"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/postgres"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/clients/typesense"
	"github.com/careloop/postop-followup/backend/internal/infrastructure/observability"
	"github.com/careloop/postop-followup/backend/pkg/config"
)

const seedPassword = "password123"

type seedConversation struct {
	patient   *entities.Patient
	message   string
	response  string
	symptoms  []string
	painLevel int
	risk      entities.RiskLevel
	daysAgo   int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("postop-seed", os.Getenv("APP_ENV"))

	ctx := context.Background()

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pgClient.Close()

	// Context records are optional: they need Typesense and a real
	// embedding key, neither of which local seeding strictly requires.
	var contextStore providers.ContextStore
	if tsClient, err := typesense.NewClient(&cfg.Typesense); err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable, skipping context records")
	} else if err := tsClient.InitSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("Typesense schema init failed, skipping context records")
	} else if modelClient, err := openai.NewClient(&cfg.OpenAI); err != nil {
		log.Warn().Err(err).Msg("Model client unavailable, skipping context records")
	} else {
		contextStore = search.NewContextStoreAdapter(tsClient, modelClient)
	}

	hospitals := database.NewHospitalAdapter(pgClient)
	doctors := database.NewDoctorAdapter(pgClient)
	patients := database.NewPatientAdapter(pgClient)
	users := database.NewUserAdapter(pgClient)
	conversations := database.NewConversationAdapter(pgClient)
	alerts := database.NewAlertAdapter(pgClient)

	hospital := &entities.Hospital{Name: "General Hospital", Phone: "+15550100"}
	if err := hospitals.Create(ctx, hospital); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed hospital")
	}

	drSmith := &entities.Doctor{Name: "Dr. Smith", Phone: "+15551234567", Email: "smith@hospital.com", Specialty: "Orthopedics", HospitalID: &hospital.ID}
	drJohnson := &entities.Doctor{Name: "Dr. Johnson", Phone: "+15551234568", Email: "johnson@hospital.com", Specialty: "Orthopedics", HospitalID: &hospital.ID}
	for _, doctor := range []*entities.Doctor{drSmith, drJohnson} {
		if err := doctors.Create(ctx, doctor); err != nil {
			log.Fatal().Err(err).Str("doctor", doctor.Name).Msg("Failed to seed doctor")
		}
	}

	john := seedPatient(ctx, patients, "John Doe", "+917893929482", "Knee Surgery", 9, hospital, drSmith)
	jane := seedPatient(ctx, patients, "Jane Smith", "+917893929483", "Hip Surgery", 14, hospital, drJohnson)
	robert := seedPatient(ctx, patients, "Robert Brown", "+917893929484", "Shoulder Surgery", 19, hospital, drSmith)

	seedUser(ctx, users, "patient", entities.RolePatient, &john.ID, nil)
	seedUser(ctx, users, "doctor", entities.RoleDoctor, nil, &drSmith.ID)
	seedUser(ctx, users, "admin", entities.RoleAdmin, nil, nil)

	seedConversations := []seedConversation{
		{john, "I have pain in my knee when walking", "Take pain medication as prescribed and do gentle exercises. Contact if pain increases.", []string{"knee pain"}, 6, entities.RiskMedium, 6},
		{john, "Pain is better today, swelling reduced", "Great progress! Continue with physical therapy. Pain management is going well.", []string{"swelling"}, 4, entities.RiskLow, 5},
		{john, "Had some discomfort tonight", "This is normal during recovery. Elevate your leg and apply ice. Call if severe pain occurs.", []string{"discomfort"}, 5, entities.RiskMedium, 4},
		{john, "Feeling much better now", "Excellent! Your recovery is on track. Continue current treatment plan.", []string{}, 3, entities.RiskLow, 3},
		{john, "Pain almost gone, can walk without crutches", "Fantastic progress! You are recovering well. Keep up with physical therapy.", []string{}, 2, entities.RiskLow, 2},
		{john, "Slight cramping, otherwise feeling great", "Cramping is normal during recovery. Continue exercises and stretches.", []string{"cramping"}, 1, entities.RiskLow, 1},
		{jane, "Hip surgery recovery, some pain and difficulty walking", "Pain is expected. Use crutches as advised and take prescribed pain medication.", []string{"hip pain", "difficulty walking"}, 7, entities.RiskMedium, 4},
		{jane, "Pain improving but still stiff", "Stiffness is normal. Continue gentle range of motion exercises.", []string{"stiffness"}, 5, entities.RiskMedium, 3},
		{robert, "Shoulder pain is severe after surgery", "I'm concerned. Please contact your doctor immediately or go to the ER. I've notified your care team.", []string{"severe shoulder pain"}, 8, entities.RiskHigh, 3},
		{robert, "Pain is better with medication", "Good. Continue current medication. Start gentle shoulder movements if pain allows.", []string{"shoulder pain"}, 6, entities.RiskMedium, 2},
	}

	for _, sc := range seedConversations {
		pain := sc.painLevel
		conv := &entities.Conversation{
			PatientID:      sc.patient.ID,
			DoctorID:       sc.patient.PrimaryDoctorID,
			Channel:        "whatsapp",
			PatientMessage: sc.message,
			AgentResponse:  sc.response,
			ExtractedSignals: entities.ExtractedSignals{
				Symptoms:  sc.symptoms,
				PainLevel: &pain,
			},
			RiskLevel: sc.risk,
			CreatedAt: time.Now().AddDate(0, 0, -sc.daysAgo),
		}
		if err := conversations.Create(ctx, conv); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed conversation")
		}
	}
	log.Info().Int("count", len(seedConversations)).Msg("Seeded conversations")

	highRisk := &entities.Alert{
		PatientID: robert.ID,
		DoctorID:  &drSmith.ID,
		AlertType: entities.AlertTypeHighRisk,
		Reason:    "Shoulder pain is severe after surgery",
		CreatedAt: time.Now().AddDate(0, 0, -3),
	}
	if err := alerts.Create(ctx, highRisk); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed alert")
	}
	log.Info().Msg("Seeded alerts")

	if contextStore != nil {
		records := map[*entities.Patient][]string{
			john:   {"Knee replacement surgery, discharged with crutches and a six-week physical therapy plan.", "Allergic to penicillin."},
			jane:   {"Hip replacement surgery, lives alone, daughter checks in on weekends."},
			robert: {"Rotator cuff repair, history of hypertension, on blood thinners."},
		}
		for patient, texts := range records {
			for _, text := range texts {
				if _, err := contextStore.Store(ctx, patient.ID, text, map[string]string{"source": "seed"}); err != nil {
					log.Warn().Err(err).Str("patient_id", patient.ID).Msg("Failed to store context record")
				}
			}
		}
		log.Info().Msg("Seeded context records")
	}

	log.Info().Msg("Database seeded. Logins: patient / doctor / admin, password " + seedPassword)
}

func seedPatient(ctx context.Context, repo interface {
	Create(ctx context.Context, patient *entities.Patient) error
}, name, phone, surgeryType string, daysSinceSurgery int, hospital *entities.Hospital, doctor *entities.Doctor) *entities.Patient {
	surgeryDate := time.Now().AddDate(0, 0, -daysSinceSurgery)
	patient := &entities.Patient{
		Phone:           phone,
		Name:            name,
		SurgeryDate:     &surgeryDate,
		SurgeryType:     surgeryType,
		HospitalID:      &hospital.ID,
		PrimaryDoctorID: &doctor.ID,
		IsActive:        true,
	}
	if err := repo.Create(ctx, patient); err != nil {
		log.Fatal().Err(err).Str("patient", name).Msg("Failed to seed patient")
	}
	return patient
}

func seedUser(ctx context.Context, repo interface {
	Create(ctx context.Context, user *entities.User) error
}, username string, role entities.Role, patientID, doctorID *string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash seed password")
	}
	user := &entities.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		PatientID:    patientID,
		DoctorID:     doctorID,
	}
	if err := repo.Create(ctx, user); err != nil {
		log.Fatal().Err(err).Str("username", username).Msg("Failed to seed user")
	}
}
