package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Input errors (100-199)
	ErrCodeUnorderedBars    ErrorCode = 100
	ErrCodeDuplicateBar     ErrorCode = 101
	ErrCodeMalformedBar     ErrorCode = 102
	ErrCodeEmptyFeed        ErrorCode = 103
	ErrCodeInvalidOrder     ErrorCode = 104
	ErrCodeInvalidIntent    ErrorCode = 105
	ErrCodeMissingBarField  ErrorCode = 106
	ErrCodeInvalidTimeRange ErrorCode = 107

	// Configuration errors (200-299)
	ErrCodeInvalidConfiguration   ErrorCode = 200
	ErrCodeInvalidInitialCash     ErrorCode = 201
	ErrCodeUnknownCommissionModel ErrorCode = 202
	ErrCodeUnknownSlippageModel   ErrorCode = 203
	ErrCodeInvalidCommissionParam ErrorCode = 204
	ErrCodeInvalidSlippageParam   ErrorCode = 205
	ErrCodeInvalidAnnualization   ErrorCode = 206
	ErrCodeUnknownStrategy        ErrorCode = 207
	ErrCodeStrategyConfigError    ErrorCode = 208

	// Order rejection errors (300-399)
	ErrCodeInsufficientCash   ErrorCode = 300
	ErrCodeInsufficientShares ErrorCode = 301
	ErrCodeShortNotAllowed    ErrorCode = 302

	// Lookahead violations (400-499)
	ErrCodeLookaheadFill     ErrorCode = 400
	ErrCodeLookaheadSnapshot ErrorCode = 401

	// State/store errors (500-599)
	ErrCodeStoreInitFailed  ErrorCode = 500
	ErrCodeStoreWriteFailed ErrorCode = 501
	ErrCodeStoreQueryFailed ErrorCode = 502
	ErrCodeStoreNil         ErrorCode = 503

	// Feed errors (600-699)
	ErrCodeFeedLoadFailed  ErrorCode = 600
	ErrCodeFeedQueryFailed ErrorCode = 601
	ErrCodeNoFeedSet       ErrorCode = 602
	ErrCodeNoStrategySet   ErrorCode = 603
)
