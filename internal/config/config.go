package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	envVarListenAddr      = "SIGNALING_RELAY_LISTEN_ADDR"
	envVarMode            = "SIGNALING_RELAY_MODE"
	envVarLogFormat       = "SIGNALING_RELAY_LOG_FORMAT"
	envVarLogLevel        = "SIGNALING_RELAY_LOG_LEVEL"
	envVarShutdownTimeout = "SIGNALING_RELAY_SHUTDOWN_TIMEOUT"
	envVarAuditLogPath    = "SIGNALING_RELAY_AUDIT_LOG_PATH"
	envVarAllowedOrigins  = "ALLOWED_ORIGINS"

	// Engine knobs.
	envVarDefaultMessageEvent    = "DEFAULT_MESSAGE_EVENT"
	envVarDefaultMaxParticipants = "DEFAULT_MAX_PARTICIPANTS"
	envVarPasswordMaxTries       = "PASSWORD_MAX_TRIES"
	envVarPresencePollInterval   = "PRESENCE_POLL_INTERVAL"
	envVarPresencePollAttempts   = "PRESENCE_POLL_ATTEMPTS"

	// WebSocket hardening.
	envVarMaxSignalingMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxSignalingMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"
	envVarWSIdleTimeout                 = "WS_IDLE_TIMEOUT"
	envVarWSPingInterval                = "WS_PING_INTERVAL"
	envVarSendQueueSize                 = "SEND_QUEUE_SIZE"

	// Broadcast-relay extension cap.
	envVarBroadcastRelayLimit = "BROADCAST_RELAY_LIMIT"
)

const (
	DefaultListenAddr           = "127.0.0.1:8080"
	DefaultShutdownTimeout      = 15 * time.Second
	DefaultMode            Mode = ModeDev

	DefaultMaxParticipants      = 1000
	DefaultPasswordMaxTries     = 3
	DefaultPresencePollInterval = time.Second
	DefaultPresencePollAttempts = 600

	DefaultMaxSignalingMessageBytes      = int64(64 * 1024)
	DefaultMaxSignalingMessagesPerSecond = 50
	DefaultWSIdleTimeout                 = 60 * time.Second
	DefaultWSPingInterval                = 20 * time.Second
	// DefaultSendQueueSize bounds the per-connection outbound queue. A client
	// that cannot drain this many events is considered stalled and starts
	// losing messages rather than blocking the engine.
	DefaultSendQueueSize = 256

	DefaultBroadcastRelayLimit = 20
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type Config struct {
	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
	AllowedOrigins  []string

	// AuditLogPath enables the persistent audit sink when non-empty.
	AuditLogPath string

	// Engine defaults (per-connection handshakes may override capacity).
	DefaultMessageEvent    string
	DefaultMaxParticipants int
	PasswordMaxTries       int
	PresencePollInterval   time.Duration
	PresencePollAttempts   int

	// Per-connection WebSocket hardening.
	MaxSignalingMessageBytes      int64
	MaxSignalingMessagesPerSecond int
	WSIdleTimeout                 time.Duration
	WSPingInterval                time.Duration
	SendQueueSize                 int

	// BroadcastRelayLimit caps viewers per broadcaster in the optional
	// broadcast-relay extension.
	BroadcastRelayLimit int
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	modeDefault := string(DefaultMode)
	if raw, ok := lookup(envVarMode); ok && raw != "" {
		modeDefault = raw
	}

	logFormatDefault := envOrDefault(lookup, envVarLogFormat, defaultLogFormatForMode(modeDefault))
	logLevelDefault := envOrDefault(lookup, envVarLogLevel, defaultLogLevelForMode(modeDefault))

	shutdownTimeout, err := envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	presencePollInterval, err := envDurationOrDefault(lookup, envVarPresencePollInterval, DefaultPresencePollInterval)
	if err != nil {
		return Config{}, err
	}
	wsIdleTimeout, err := envDurationOrDefault(lookup, envVarWSIdleTimeout, DefaultWSIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	wsPingInterval, err := envDurationOrDefault(lookup, envVarWSPingInterval, DefaultWSPingInterval)
	if err != nil {
		return Config{}, err
	}

	maxParticipants, err := envIntOrDefault(lookup, envVarDefaultMaxParticipants, DefaultMaxParticipants)
	if err != nil {
		return Config{}, err
	}
	passwordMaxTries, err := envIntOrDefault(lookup, envVarPasswordMaxTries, DefaultPasswordMaxTries)
	if err != nil {
		return Config{}, err
	}
	presencePollAttempts, err := envIntOrDefault(lookup, envVarPresencePollAttempts, DefaultPresencePollAttempts)
	if err != nil {
		return Config{}, err
	}
	maxMessagesPerSecond, err := envIntOrDefault(lookup, envVarMaxSignalingMessagesPerSecond, DefaultMaxSignalingMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}
	sendQueueSize, err := envIntOrDefault(lookup, envVarSendQueueSize, DefaultSendQueueSize)
	if err != nil {
		return Config{}, err
	}
	broadcastRelayLimit, err := envIntOrDefault(lookup, envVarBroadcastRelayLimit, DefaultBroadcastRelayLimit)
	if err != nil {
		return Config{}, err
	}

	maxMessageBytes := DefaultMaxSignalingMessageBytes
	if raw, ok := lookup(envVarMaxSignalingMessageBytes); ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarMaxSignalingMessageBytes, raw, err)
		}
		maxMessageBytes = n
	}

	fs := flag.NewFlagSet("signaling-relay", flag.ContinueOnError)
	listenAddr := fs.String("listen-addr", envOrDefault(lookup, envVarListenAddr, DefaultListenAddr), "TCP address to listen on")
	modeStr := fs.String("mode", modeDefault, "run mode: dev or prod")
	logFormatStr := fs.String("log-format", logFormatDefault, "log format: text or json")
	logLevelStr := fs.String("log-level", logLevelDefault, "log level: debug, info, warn, error")
	allowedOriginsStr := fs.String("allowed-origins", envOrDefault(lookup, envVarAllowedOrigins, ""), "comma-separated allowed browser origins (\"*\" for any)")
	auditLogPath := fs.String("audit-log-path", envOrDefault(lookup, envVarAuditLogPath, ""), "path of the append-only audit log (empty disables auditing)")
	messageEvent := fs.String("message-event", envOrDefault(lookup, envVarDefaultMessageEvent, ""), "default relay payload event name")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	mode, err := parseMode(*modeStr)
	if err != nil {
		return Config{}, err
	}
	logFormat, err := parseLogFormat(*logFormatStr)
	if err != nil {
		return Config{}, err
	}
	logLevel, err := parseLogLevel(*logLevelStr)
	if err != nil {
		return Config{}, err
	}
	allowedOrigins, err := parseAllowedOrigins(*allowedOriginsStr)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:      *listenAddr,
		Mode:            mode,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		ShutdownTimeout: shutdownTimeout,
		AllowedOrigins:  allowedOrigins,
		AuditLogPath:    *auditLogPath,

		DefaultMessageEvent:    *messageEvent,
		DefaultMaxParticipants: maxParticipants,
		PasswordMaxTries:       passwordMaxTries,
		PresencePollInterval:   presencePollInterval,
		PresencePollAttempts:   presencePollAttempts,

		MaxSignalingMessageBytes:      maxMessageBytes,
		MaxSignalingMessagesPerSecond: maxMessagesPerSecond,
		WSIdleTimeout:                 wsIdleTimeout,
		WSPingInterval:                wsPingInterval,
		SendQueueSize:                 sendQueueSize,

		BroadcastRelayLimit: broadcastRelayLimit,
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.WSPingInterval > 0 && c.WSIdleTimeout > 0 && c.WSPingInterval >= c.WSIdleTimeout {
		return fmt.Errorf("%s (%s) must be shorter than %s (%s)",
			envVarWSPingInterval, c.WSPingInterval, envVarWSIdleTimeout, c.WSIdleTimeout)
	}
	if c.PresencePollInterval <= 0 {
		return fmt.Errorf("%s must be positive", envVarPresencePollInterval)
	}
	if c.PresencePollAttempts <= 0 {
		return fmt.Errorf("%s must be positive", envVarPresencePollAttempts)
	}
	if c.DefaultMaxParticipants <= 0 {
		return fmt.Errorf("%s must be positive", envVarDefaultMaxParticipants)
	}
	return nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}
	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

func parseAllowedOrigins(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part != "*" && !strings.HasPrefix(part, "http://") && !strings.HasPrefix(part, "https://") {
			return nil, fmt.Errorf("invalid allowed origin %q (expected \"*\" or http(s)://host[:port])", part)
		}
		out = append(out, part)
	}
	return out, nil
}
