package config

import "time"

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Log:          DefaultLogConfig(),
		LLM:          DefaultLLMConfig(),
		Conversation: DefaultConversationConfig(),
		Transcript:   DefaultTranscriptConfig(),
		Archive:      DefaultArchiveConfig(),
		Telemetry:    DefaultTelemetryConfig(),
		Auth:         DefaultAuthConfig(),
	}
}

// DefaultServerConfig returns the default HTTP listener configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0, // streaming endpoints keep connections open
		ShutdownTimeout: 15 * time.Second,
		MaxConns:        512,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultLLMConfig returns the default provider binding.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Credential: "",
		Model:      "",
		BaseURL:    "",
		Timeout:    60 * time.Second,
	}
}

// DefaultConversationConfig returns the defaults for new conversations.
func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		MaxTurns:  4,
		TurnDelay: 0,
	}
}

// DefaultTranscriptConfig returns the in-memory transcript store defaults.
func DefaultTranscriptConfig() TranscriptConfig {
	return TranscriptConfig{
		Backend:  "memory",
		Addr:     "localhost:6379",
		DB:       0,
		PoolSize: 10,
		TTL:      24 * time.Hour,
	}
}

// DefaultArchiveConfig returns the archive defaults: a local SQLite file,
// disabled until switched on.
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Enabled:         false,
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "colloquy",
		Name:            "colloquy.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultTelemetryConfig returns the trace export defaults.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "colloquy",
		SampleRate:   0.1,
	}
}

// DefaultAuthConfig returns the authentication defaults.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled:  false,
		Issuer:   "colloquy",
		TokenTTL: 24 * time.Hour,
	}
}
