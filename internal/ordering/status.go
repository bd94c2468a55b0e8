package ordering

type Status string

const (
	StatusSubmitted      Status = "SUBMITTED"
	StatusPendingPayment Status = "PENDING_PAYMENT"
	// Completed-order records keep the literal the client history screen
	// renders.
	StatusCompleted Status = "Completado"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusSubmitted:      {StatusPendingPayment: true, StatusCancelled: true},
	StatusPendingPayment: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
