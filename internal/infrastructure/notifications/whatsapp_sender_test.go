package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/careloop/postop-followup/backend/pkg/config"
)

func TestNewWhatsAppCloudSender(t *testing.T) {
	tests := []struct {
		name          string
		accessToken   string
		phoneNumberID string
		wantErr       bool
	}{
		{
			name:          "Valid credentials",
			accessToken:   "test_token",
			phoneNumberID: "123456789",
			wantErr:       false,
		},
		{
			name:          "Missing access token",
			accessToken:   "",
			phoneNumberID: "123456789",
			wantErr:       true,
		},
		{
			name:          "Missing phone number ID",
			accessToken:   "test_token",
			phoneNumberID: "",
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewWhatsAppCloudSender(&config.WhatsAppConfig{
				AccessToken:   tt.accessToken,
				PhoneNumberID: tt.phoneNumberID,
			})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewWhatsAppCloudSender() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && sender == nil {
				t.Error("NewWhatsAppCloudSender() returned nil sender")
			}
		})
	}
}

func TestWhatsAppCloudSender_SendText(t *testing.T) {
	tests := []struct {
		name           string
		mockStatusCode int
		mockResponse   WhatsAppResponse
		wantID         string
		wantErr        bool
	}{
		{
			name:           "Successful send",
			mockStatusCode: http.StatusOK,
			mockResponse: WhatsAppResponse{
				MessagingProduct: "whatsapp",
				Messages: []struct {
					ID string `json:"id"`
				}{
					{ID: "wamid.test123"},
				},
			},
			wantID:  "wamid.test123",
			wantErr: false,
		},
		{
			name:           "API error",
			mockStatusCode: http.StatusUnauthorized,
			wantErr:        true,
		},
		{
			name:           "Missing message id",
			mockStatusCode: http.StatusOK,
			mockResponse:   WhatsAppResponse{MessagingProduct: "whatsapp"},
			wantErr:        true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				var msg WhatsAppTextMessage
				if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
					t.Errorf("failed to decode request body: %v", err)
				}
				if msg.Type != "text" {
					t.Errorf("expected text message, got %s", msg.Type)
				}
				w.WriteHeader(tt.mockStatusCode)
				_ = json.NewEncoder(w).Encode(tt.mockResponse)
			}))
			defer server.Close()

			sender, err := NewWhatsAppCloudSender(&config.WhatsAppConfig{
				AccessToken:   "test_token",
				PhoneNumberID: "123456789",
			})
			if err != nil {
				t.Fatalf("failed to create sender: %v", err)
			}
			sender.baseURL = server.URL

			id, err := sender.SendText(context.Background(), "+2348001234567", "Feeling better today")
			if (err != nil) != tt.wantErr {
				t.Errorf("SendText() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && id != tt.wantID {
				t.Errorf("SendText() id = %q, want %q", id, tt.wantID)
			}
		})
	}
}
