package observability

import (
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

// InstrumentGorm installs the OpenTelemetry plugin on db so every query is
// recorded as a child span of the request. Spans go to the global tracer
// provider, which is a no-op until SetupOTel enables export.
func InstrumentGorm(db *gorm.DB) error {
	return db.Use(tracing.NewPlugin(tracing.WithoutMetrics()))
}
