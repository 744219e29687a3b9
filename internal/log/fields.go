package log

import "kakeibo/internal/core"

// Attribute keys shared by every component.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldOwnerID       = "owner_id"
	FieldTransactionID = "transaction_id"
	FieldDate          = "date"
	FieldCurrency      = "currency"
	FieldCategory      = "category"
	FieldSessionID     = "session_id"
	FieldLoadSeq       = "load_seq"
	FieldCount         = "count"
	FieldSheetsRef     = "sheets_ref"
)

// Component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentSession   = "session"
	ComponentAuth      = "auth"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

// TransactionAttrs describes tx for a log line. Amounts and descriptions
// are left out.
func TransactionAttrs(ownerID string, tx core.Transaction) []any {
	return []any{
		FieldOwnerID, ownerID,
		FieldTransactionID, tx.ID,
		FieldDate, tx.Date.String(),
		FieldCurrency, tx.Currency,
		FieldCategory, tx.Category,
	}
}
