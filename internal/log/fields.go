package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldDate       = "date"
	FieldMetric     = "field_name"
	FieldSection    = "section_group"
	FieldReportID   = "report_id"
	FieldAttempt    = "attempt"
	FieldCount      = "count"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStaging   = "staging"
	ComponentReports   = "reports"
	ComponentStorage   = "storage"
	ComponentNotify    = "notify"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentCLI       = "cli"
)

const (
	OpSubmit   = "submit"
	OpFinalize = "finalize"
	OpCleanup  = "cleanup"
	OpNotify   = "notify"
	OpBackfill = "backfill"
	OpSweep    = "sweep"
)

// Fields is a small builder for structured log attributes.
type Fields map[string]any

func NewFields() Fields {
	return make(Fields)
}

func (f Fields) With(key string, value any) Fields {
	f[key] = value
	return f
}

func (f Fields) Date(d string) Fields { return f.With(FieldDate, d) }

func (f Fields) Err(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// Args flattens the fields into slog key/value pairs in key order.
func (f Fields) Args() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(f)*2)
	for _, k := range keys {
		args = append(args, k, f[k])
	}
	return args
}
