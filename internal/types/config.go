package types

type RunMode string

const (
	// ModeLocal is the mode for local development and one-shot scripts
	ModeLocal RunMode = "local"
	// ModeService is the mode for running embedded in a long-lived service
	ModeService RunMode = "service"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
)
