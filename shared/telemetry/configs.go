package telemetry

// OrchestratorServiceConfig is the telemetry configuration for the saga
// orchestrator service
var OrchestratorServiceConfig = Config{
	ServiceName:    "orchestrator-service",
	ServiceVersion: "1.0.0",
}

// WithOTLPEndpoint sets the OTLP endpoint for a config
func (c Config) WithOTLPEndpoint(endpoint string) Config {
	c.OTLPEndpoint = endpoint
	return c
}
