package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Store
	out.Store = cfg.Store
	redact(&out.Store.DSN)
	redact(&out.Store.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Gate
	out.Gate = cfg.Gate
	redact(&out.Gate.APIKey)

	// Signer
	out.Signer = cfg.Signer
	redact(&out.Signer.PrivateKey)
	redact(&out.Signer.KeyPassword)

	// Server
	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Optimizer.SlippageBaseBps != nil {
		out.Optimizer.SlippageBaseBps = make(map[string]float64, len(cfg.Optimizer.SlippageBaseBps))
		for k, v := range cfg.Optimizer.SlippageBaseBps {
			out.Optimizer.SlippageBaseBps[k] = v
		}
	}

	return out
}

func redact(s *string) {
	if *s != "" {
		*s = "***"
	}
}
