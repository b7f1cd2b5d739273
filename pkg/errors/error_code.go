package errors

// ErrorCode identifies a class of failure raised by the backtester.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidConfig    ErrorCode = 100
	ErrCodeInvalidParameter ErrorCode = 101
	ErrCodeInvalidDateRange ErrorCode = 103

	// Data errors (200-299)
	ErrCodeFetchFailed  ErrorCode = 200
	ErrCodeNoUsableData ErrorCode = 201
	ErrCodeParseFailed  ErrorCode = 203

	// Strategy errors (400-499)
	ErrCodeStrategyConfig ErrorCode = 400

	// Ledger errors (500-599)
	ErrCodeLedgerFailed ErrorCode = 500
	ErrCodeQueryFailed  ErrorCode = 501
	ErrCodeExportFailed ErrorCode = 502

	// Run errors (600-699)
	ErrCodeRunFailed    ErrorCode = 600
	ErrCodeNoProvider   ErrorCode = 602
	ErrCodeReportFailed ErrorCode = 603
)
