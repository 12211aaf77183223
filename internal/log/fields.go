package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldUserID    = "user_id"
	FieldMonth     = "month"
	FieldCategory  = "category"
	FieldBackend   = "backend"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentStorage  = "storage"
	ComponentBudget   = "budget"
	ComponentRollover = "rollover"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
)
