package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldAccount    = "account"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldDate       = "date"
)

// Component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentLedger       = "ledger"
	ComponentStorage      = "storage"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
	ComponentSubscription = "subscription"
	ComponentSheets       = "sheets"
	ComponentBackend      = "backend"
)

// Operation names
const (
	OpCreate  = "create"
	OpDelete  = "delete"
	OpList    = "list"
	OpSummary = "summary"
	OpProject = "project"
	OpProcess = "process"
	OpRender  = "render"
)

// Fields is an ordered list of key/value pairs for slog.
type Fields []any

func NewFields() Fields {
	return Fields{}
}

func (f Fields) With(key string, value any) Fields {
	return append(f, key, value)
}

func (f Fields) WithOperation(op string) Fields {
	return f.With(FieldOperation, op)
}

func (f Fields) WithError(err error) Fields {
	if err == nil {
		return f
	}
	return f.With(FieldError, err.Error())
}

func (f Fields) WithPeriod(year, month int) Fields {
	return f.With(FieldYear, year).With(FieldMonth, month)
}

// WithTransaction adds the fields that identify a transaction in logs.
func (f Fields) WithTransaction(account, amount, category, date string) Fields {
	return f.With(FieldAccount, account).
		With(FieldAmount, amount).
		With(FieldCategory, category).
		With(FieldDate, date)
}
