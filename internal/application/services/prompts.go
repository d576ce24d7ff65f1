package services

import (
	"fmt"
	"strings"

	"github.com/careloop/postop-followup/backend/internal/domain/entities"
)

// buildExtractionPrompt asks the model for a strict JSON judgment of one
// patient message, given whatever background context was retrieved. The
// schema mirrors entities.Judgment.
func buildExtractionPrompt(message string, contextSnippets []string) string {
	var b strings.Builder
	b.WriteString("You are a clinical triage assistant for post-surgical follow-up.\n")
	b.WriteString("Analyze the patient's message and respond with ONLY a JSON object, no prose:\n")
	b.WriteString(`{"symptoms": ["list of symptoms mentioned"], "pain_level": 0-10 or null, "risk": "LOW" | "MEDIUM" | "HIGH"}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- symptoms: concrete clinical symptoms only, lowercase, empty list if none\n")
	b.WriteString("- pain_level: the 0-10 pain score the patient reports, null if not stated\n")
	b.WriteString("- risk: HIGH for signs of infection, uncontrolled bleeding, breathing difficulty, chest pain, or pain 8+; MEDIUM for worsening symptoms; LOW otherwise\n")
	if len(contextSnippets) > 0 {
		b.WriteString("\nRelevant history:\n")
		b.WriteString(strings.Join(contextSnippets, "\n"))
		b.WriteString("\n")
	}
	b.WriteString("\nPatient message: ")
	b.WriteString(message)
	return b.String()
}

// buildResponsePrompt composes the generation prompt for a non-urgent reply.
// History is rendered oldest first so the model reads the thread in order.
func buildResponsePrompt(message string, judgment entities.Judgment, contextSnippets []string, history []entities.Exchange) string {
	var b strings.Builder
	b.WriteString("You are a warm, concise post-surgical follow-up assistant. ")
	b.WriteString("Reply to the patient in 2-4 sentences. Do not diagnose. ")
	b.WriteString("For LOW risk, reassure the patient and remind them to rest. ")
	b.WriteString("For MEDIUM risk, advise monitoring and contacting their doctor if symptoms worsen.\n")

	if len(contextSnippets) > 0 {
		b.WriteString("\nBackground about this patient:\n")
		for _, snippet := range contextSnippets {
			b.WriteString("- ")
			b.WriteString(snippet)
			b.WriteString("\n")
		}
	}

	if len(history) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, exchange := range history {
			fmt.Fprintf(&b, "Patient: %s\nAssistant: %s\n", exchange.Patient, exchange.Agent)
		}
	}

	fmt.Fprintf(&b, "\nRisk level: %s\n", judgment.Risk)
	if len(judgment.Symptoms) > 0 {
		fmt.Fprintf(&b, "Symptoms noted: %s\n", strings.Join(judgment.Symptoms, ", "))
	}
	if judgment.PainLevel != nil {
		fmt.Fprintf(&b, "Reported pain level: %d/10\n", *judgment.PainLevel)
	}

	b.WriteString("\nPatient message: ")
	b.WriteString(message)
	b.WriteString("\nAssistant:")
	return b.String()
}
