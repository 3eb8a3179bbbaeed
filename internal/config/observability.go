package config

// OTLPConfig holds OpenTelemetry trace export configuration.
//
// Tracing exports spans over OTLP/HTTP to any collector (local agent,
// vendor endpoint). An empty Endpoint disables trace export entirely.
// See internal/observability for setup details.
type OTLPConfig struct {
	// Endpoint is the OTLP/HTTP collector host:port (empty disables export)
	Endpoint string `mapstructure:"endpoint"`
	// Environment is the deployment environment tag (default: dev)
	Environment string `mapstructure:"environment"`
	// ServiceName is the reported service name (default: aether)
	ServiceName string `mapstructure:"service_name"`
}
