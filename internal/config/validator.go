package config

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate performs comprehensive validation of the configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&cfg.Server, result)
	validateAPI(&cfg.API, result)
	validateMQTT(&cfg.MQTT, result)
	validateDatabase(&cfg.Database, result)

	if cfg.API.Enabled && cfg.API.Port == cfg.Server.Port {
		result.AddError("api.port", "port conflict detected: api and server ports must differ")
	}

	return result
}

func validateServer(s *ServerConfig, result *ValidationResult) {
	if s.Host != "" && net.ParseIP(s.Host) == nil && s.Host != "localhost" {
		result.AddWarning("server.bind_host", fmt.Sprintf("%q is not an IP address", s.Host))
	}
	validatePort(s.Port, "server.port", result)

	// A frame must at least hold the largest VarInt-prefixed handshake.
	if s.MaxFrameSize < 1024 {
		result.AddError("server.max_frame_size", "max frame size must be at least 1024 bytes")
	}
	if s.MaxFrameSize > 1<<21-1 {
		result.AddWarning("server.max_frame_size",
			fmt.Sprintf("max frame size %d exceeds the 3-byte length prefix", s.MaxFrameSize))
	}

	if s.HandshakeTimeoutMs < 100 {
		result.AddError("server.handshake_timeout_ms", "handshake timeout must be at least 100ms")
	}
	if s.LegacyLingerMs < 0 {
		result.AddError("server.legacy_linger_ms", "legacy linger cannot be negative")
	}
	if s.CompressionThreshold < -1 {
		result.AddError("server.compression_threshold", "compression threshold must be -1 (disabled) or >= 0")
	}
	if s.CompressionThreshold >= 0 && s.CompressionThreshold < 64 {
		result.AddWarning("server.compression_threshold",
			"thresholds below 64 bytes compress packets that grow when deflated")
	}

	if s.MaxPlayers < 0 {
		result.AddError("server.max_players", "max players cannot be negative")
	}
	if strings.TrimSpace(s.FaviconPath) != "" {
		if _, err := os.Stat(s.FaviconPath); os.IsNotExist(err) {
			result.AddWarning("server.favicon_path",
				fmt.Sprintf("file does not exist: %s", s.FaviconPath))
		}
	}
}

func validateAPI(a *APIConfig, result *ValidationResult) {
	if !a.Enabled {
		return
	}
	validatePort(a.Port, "api.port", result)

	if a.TLSEnabled {
		if strings.TrimSpace(a.TLSCertFile) == "" {
			result.AddError("api.tls_cert_file", "TLS certificate file is required when TLS is enabled")
		}
		if strings.TrimSpace(a.TLSKeyFile) == "" {
			result.AddError("api.tls_key_file", "TLS key file is required when TLS is enabled")
		}
	}

	if a.RateLimitRPS < 1 {
		result.AddWarning("api.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}
	if strings.TrimSpace(a.Token) == "" {
		result.AddWarning("api.token", "no API token set, control routes are unauthenticated")
	}
}

func validateMQTT(m *MQTTConfig, result *ValidationResult) {
	if !m.Enabled {
		return
	}
	if strings.TrimSpace(m.BrokerURL) == "" {
		result.AddError("mqtt.broker_url", "MQTT broker URL is required when enabled")
	}
	if m.Port < 1 || m.Port > 65535 {
		result.AddError("mqtt.port", "invalid MQTT port")
	}
	if strings.TrimSpace(m.TopicPrefix) == "" {
		result.AddWarning("mqtt.topic_prefix", "empty topic prefix, publishing at the broker root")
	}
}

func validateDatabase(d *DatabaseConfig, result *ValidationResult) {
	if !d.Enabled {
		return
	}
	if strings.TrimSpace(d.Path) == "" {
		result.AddError("database.path", "database path is required when enabled")
	}
	if d.RetentionDays < 1 {
		result.AddError("database.retention_days", "retention days must be at least 1")
	}
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a port is available for binding.
func IsPortAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
