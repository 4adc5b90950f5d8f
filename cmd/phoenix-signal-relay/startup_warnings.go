package main

import (
	"log/slog"
	"slices"

	"github.com/phoenix-visual-support/signal-relay/internal/config"
	"github.com/phoenix-visual-support/signal-relay/internal/session"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if slices.Contains(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (any site may create sessions and open signaling sockets)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.MaxSessions <= 0 {
		logger.Warn("startup security warning: MAX_SESSIONS is unset/0 (unlimited) while --mode=prod",
			"warning_code", "max_sessions_unlimited_in_prod",
			"max_sessions", cfg.MaxSessions,
			"mode", cfg.Mode,
		)
	}

	if cfg.SessionExpiryBasis == session.ExpireByLastActive {
		logger.Warn("startup security warning: SESSION_EXPIRY_BASIS=last_active lets busy sessions outlive SESSION_TTL indefinitely",
			"warning_code", "session_expiry_last_active",
			"session_ttl", cfg.SessionTTL,
			"mode", cfg.Mode,
		)
	}

	if err := cfg.ICEConfigError(); err != nil {
		logger.Warn("startup warning: ICE server configuration is invalid; /webrtc/ice and /readyz will report unavailable",
			"warning_code", "ice_config_invalid",
			"err", err,
			"mode", cfg.Mode,
		)
	}
}
