package provider

import "context"

// Provider is the outbound message delivery port. Address is the
// recipient's bot chat identifier.
type Provider interface {
	Send(ctx context.Context, address, text string) (*ProviderResponse, error)
}

// ProviderResponse stores provider call metadata for audit and logging.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
