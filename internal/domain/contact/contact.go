// Package contact stores storefront contact-form messages.
package contact

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Message is a submitted contact-form entry.
type Message struct {
	ID        string
	Name      string
	Surname   string
	Company   string
	Email     string
	Telephone string
	Message   string
	CreatedAt time.Time
}

// Validate checks that all required fields are present.
func (m *Message) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"name", m.Name},
		{"surname", m.Surname},
		{"email", m.Email},
		{"telephone", m.Telephone},
		{"message", m.Message},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("required fields missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Repository is the persistent message store.
type Repository interface {
	Create(ctx context.Context, m *Message) error
}
