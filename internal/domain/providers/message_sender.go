package providers

import "context"

// MessageSender delivers an outbound text reply on the patient's channel.
// It returns the provider-assigned message id.
type MessageSender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}
