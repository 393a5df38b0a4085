package logger

// Standard field names for structured logging.
// Use these constants instead of raw strings so logs stay queryable.
const (
	// Identity
	FieldJobID  = "job_id"
	FieldItemID = "item_id"
	FieldActor  = "actor"

	// Operations
	FieldOperationType = "operation_type"
	FieldAction        = "action"
	FieldMethod        = "method"
	FieldPath          = "path"

	// Progress
	FieldBatch      = "batch"
	FieldProcessed  = "processed"
	FieldSuccessful = "successful"
	FieldFailed     = "failed"
	FieldTotal      = "total"
	FieldCount      = "count"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors and status
	FieldError  = "error"
	FieldStatus = "status"

	// Upstream
	FieldModel      = "model"
	FieldStatusCode = "status_code"
	FieldTokens     = "tokens"

	// Misc
	FieldSymbol  = "symbol"
	FieldAddress = "address"
	FieldWorker  = "worker_id"
)
