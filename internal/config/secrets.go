package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Marketplace
	out.Marketplace = cfg.Marketplace
	redact(&out.Marketplace.ApiKey)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Server
	out.Server = cfg.Server
	redact(&out.Server.ApiKey)

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
	if cfg.Scan.Queries != nil {
		out.Scan.Queries = make([]string, len(cfg.Scan.Queries))
		copy(out.Scan.Queries, cfg.Scan.Queries)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
