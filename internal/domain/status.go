package domain

type Outcome string
type RecordKind string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeCached          Outcome = "cached"
	OutcomeAPIError        Outcome = "api_error"
	OutcomeTransportError  Outcome = "transport_error"
	OutcomeValidationError Outcome = "validation_error"
)

const (
	RecordKindAttempt RecordKind = "attempt"
	RecordKindResult  RecordKind = "result"
)
