package app

import (
	"fmt"

	"bookmarket/internal/otp"
	"bookmarket/pkg/notify"
	"bookmarket/pkg/storage"
	"bookmarket/pkg/store"
)

// Relay delivers realtime frames to conversation rooms. Satisfied by
// relay.Hub; tests substitute a recorder.
type Relay interface {
	Broadcast(conversationID string, payload []byte, excludeSessionID string) int
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store

	// AdminEmails lists accounts that register with the admin flag set.
	// Without at least one entry the admin surface stays unreachable.
	AdminEmails []string

	Objects    storage.ObjectStore
	Events     notify.Publisher
	ResetCodes *otp.Store
	CodeSender otp.CodeSender
	Relay      Relay
}

// App is the marketplace core wiring storage, events and the realtime relay.
type App struct {
	store       store.Store
	objects     storage.ObjectStore
	events      notify.Publisher
	resetCodes  *otp.Store
	codeSender  otp.CodeSender
	relay       Relay
	adminEmails map[string]struct{}
}

// New constructs the application with database-backed storage.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	events := cfg.Events
	if events == nil {
		events = notify.NopPublisher{}
	}
	codeSender := cfg.CodeSender
	if codeSender == nil {
		codeSender = otp.LogSender{}
	}
	adminEmails := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, raw := range cfg.AdminEmails {
		email, err := otp.NormalizeEmail(raw)
		if err != nil {
			return nil, fmt.Errorf("admin email %q: %w", raw, err)
		}
		adminEmails[email] = struct{}{}
	}
	return &App{
		store:       dataStore,
		objects:     cfg.Objects,
		events:      events,
		resetCodes:  cfg.ResetCodes,
		codeSender:  codeSender,
		relay:       cfg.Relay,
		adminEmails: adminEmails,
	}, nil
}

// Store exposes the backing store for callers that resolve entities directly.
func (a *App) Store() store.Store {
	return a.store
}
