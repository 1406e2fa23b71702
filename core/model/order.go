package model

// ErrorCode classifies a terminal failure of a sizing job. It is persisted in
// the Orders table and reused as the HTTP status of the poll endpoint.
type ErrorCode string

const (
	CodeNone              ErrorCode = ""
	CodeInvalidInput      ErrorCode = "400"
	CodeMissingEntities   ErrorCode = "412"
	CodeMissingDataPoints ErrorCode = "422"
	CodeSolverNotOptimal  ErrorCode = "424"
	CodeInternal          ErrorCode = "500"
	CodeSolverTimeout     ErrorCode = "504"
)

// State is the externally visible state of an order.
type State string

const (
	StatePending           State = "PENDING"
	StateComplete          State = "COMPLETE"
	StateMissingEntities   State = "MISSING_ENTITIES"
	StateMissingDataPoints State = "MISSING_DATA_POINTS"
	StateInvalidInput      State = "INVALID_INPUT"
	StateSolverNotOptimal  State = "SOLVER_NOT_OPTIMAL"
	StateSolverTimeout     State = "SOLVER_TIMEOUT"
	StateInternalError     State = "INTERNAL_ERROR"
)

// State maps an error code of a processed order to its terminal state.
func (c ErrorCode) State() State {
	switch c {
	case CodeNone:
		return StateComplete
	case CodeInvalidInput:
		return StateInvalidInput
	case CodeMissingEntities:
		return StateMissingEntities
	case CodeMissingDataPoints:
		return StateMissingDataPoints
	case CodeSolverNotOptimal:
		return StateSolverNotOptimal
	case CodeSolverTimeout:
		return StateSolverTimeout
	default:
		return StateInternalError
	}
}

// Order is the durable record tracking one sizing job.
type Order struct {
	ID        string
	Processed bool
	Error     ErrorCode
	Message   string
	Clustered bool
}

// State returns PENDING until the order reached a terminal transition.
func (o Order) State() State {
	if !o.Processed {
		return StatePending
	}
	return o.Error.State()
}

// Terminal reports whether the order will not change anymore.
func (o Order) Terminal() bool { return o.Processed }
