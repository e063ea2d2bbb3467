package config

import (
	"go.uber.org/zap"

	"github.com/bluefermion/marketfeedback/internal/apiclient"
	"github.com/bluefermion/marketfeedback/internal/feedback"
)

// APIClient returns the HTTP helper settings. A configured token is sent as a
// bearer Authorization header.
func (c *Config) APIClient(logger *zap.Logger) apiclient.Config {
	cfg := apiclient.Config{
		BaseURL: c.API.BaseURL,
		Prefix:  c.API.Prefix,
		Timeout: c.API.Timeout,
		Logger:  logger,
	}
	if c.API.Token != "" {
		cfg.Headers = map[string]string{"Authorization": "Bearer " + c.API.Token}
	}
	return cfg
}

// Machine returns the state machine settings.
func (c *Config) Machine(logger *zap.Logger) feedback.Config {
	return feedback.Config{
		StrictComment:      c.Feedback.StrictComment,
		EditAfterSubmit:    c.Feedback.EditAfterSubmit,
		LegacyFieldAliases: c.Feedback.LegacyAliases,
		ResetDelay:         c.Feedback.ResetDelay,
		Endpoint:           c.Feedback.Endpoint,
		Identity:           feedback.StaticIdentity(feedback.Identity{UserID: c.User.ID, Role: c.User.Role}),
		Logger:             logger,
	}
}
