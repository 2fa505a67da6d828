package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBotTimeout = 10 * time.Second

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
	Parameters struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// BotAPIProvider delivers messages through a Telegram-compatible bot
// API.
type BotAPIProvider struct {
	client  *resty.Client
	baseURL string
	token   string
}

func NewBotAPIProvider(baseURL, token string) (*BotAPIProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultBotTimeout)
	client.SetRetryCount(0)

	return NewBotAPIProviderWithClient(baseURL, token, client)
}

func NewBotAPIProviderWithClient(baseURL, token string, client *resty.Client) (*BotAPIProvider, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, fmt.Errorf("bot api url is required")
	}
	if _, err := url.ParseRequestURI(trimmedURL); err != nil {
		return nil, fmt.Errorf("invalid bot api url: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultBotTimeout)
	}
	client.SetRetryCount(0)

	return &BotAPIProvider{
		client:  client,
		baseURL: trimmedURL,
		token:   token,
	}, nil
}

// Send posts one message to the recipient's chat. Throttling (429)
// comes back transient with the provider's requested pause; a bad chat
// id or a blocked bot (400, 403) is permanent.
func (p *BotAPIProvider) Send(ctx context.Context, address, text string) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(address) == "" {
		return nil, &ProviderError{Message: "recipient address is empty", Transient: false}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ProviderError{Message: "message text is empty", Transient: false}
	}

	reqBody := sendMessageRequest{
		ChatID:                address,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", p.baseURL, p.token)

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(endpoint)
	if err != nil {
		return nil, &ProviderError{
			Message:   "bot api request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ProviderError{
			Message:   "bot api returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	var parsed sendMessageResponse
	_ = json.Unmarshal(response.Body(), &parsed)

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices && parsed.OK {
		return &ProviderResponse{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  strconv.FormatInt(parsed.Result.MessageID, 10),
		}, nil
	}

	return nil, &ProviderError{
		StatusCode: statusCode,
		Message:    botErrorMessage(statusCode, parsed.Description, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
		RetryAfter: retryAfterHint(response, parsed),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func botErrorMessage(statusCode int, description, body string) string {
	base := fmt.Sprintf("bot api returned status %d", statusCode)
	if desc := strings.TrimSpace(description); desc != "" {
		return fmt.Sprintf("%s: %s", base, desc)
	}
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}

func retryAfterHint(response *resty.Response, parsed sendMessageResponse) time.Duration {
	if parsed.Parameters.RetryAfter > 0 {
		return time.Duration(parsed.Parameters.RetryAfter) * time.Second
	}

	if header := strings.TrimSpace(response.Header().Get("Retry-After")); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 0
}
