package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Recipient is a registered party eligible to receive reminders. Address
// is the opaque delivery address understood by the outbound channel
// (for the bot provider, a chat id). Mentions of unregistered parties
// are skipped at ingestion and never queue a row.
type Recipient struct {
	ID          int64
	Address     string
	DisplayName string
	Phone       string
	UpdatedAt   time.Time
}

func (r *Recipient) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: recipient is nil", ErrValidation)
	}
	if r.ID <= 0 {
		return fmt.Errorf("%w: recipient id is required", ErrValidation)
	}
	if strings.TrimSpace(r.Address) == "" {
		return fmt.Errorf("%w: delivery address is required", ErrValidation)
	}
	return nil
}

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

// NormalizePhoneE164 normalizes a phone number to E.164. Russian-style
// local forms (leading 8, bare 7, bare mobile 9xx) get a +7 prefix.
// Returns an empty string when the input cannot be normalized.
func NormalizePhoneE164(phone string) string {
	clean := nonPhoneChars.ReplaceAllString(phone, "")

	switch {
	case strings.HasPrefix(clean, "8"):
		clean = "+7" + clean[1:]
	case strings.HasPrefix(clean, "7") && len(clean) == 11:
		clean = "+" + clean
	case strings.HasPrefix(clean, "9") && len(clean) == 10:
		clean = "+7" + clean
	}

	if !strings.HasPrefix(clean, "+") || len(clean) < 10 {
		return ""
	}
	return clean
}
