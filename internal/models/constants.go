package models

// RequestStatus константы статусов заявок на услуги
const (
	RequestStatusPending    = "pending"
	RequestStatusAccepted   = "accepted"
	RequestStatusInProgress = "in_progress"
	RequestStatusCompleted  = "completed"
	RequestStatusCancelled  = "cancelled"
)

// ProposalStatus константы статусов откликов исполнителей
const (
	ProposalStatusPending   = "pending"
	ProposalStatusAccepted  = "accepted"
	ProposalStatusRejected  = "rejected"
	ProposalStatusWithdrawn = "withdrawn"
)

// PaymentStatus константы статусов оплаты
const (
	PaymentStatusUnpaid = "unpaid"
	PaymentStatusPaid   = "paid"
)

// Priority константы приоритета заявки (подсказка от клиента,
// не путать с вычисляемым priority score)
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidRequestStatuses список валидных статусов заявок
var ValidRequestStatuses = map[string]struct{}{
	RequestStatusPending:    {},
	RequestStatusAccepted:   {},
	RequestStatusInProgress: {},
	RequestStatusCompleted:  {},
	RequestStatusCancelled:  {},
}

// ValidProposalStatuses список валидных статусов откликов
var ValidProposalStatuses = map[string]struct{}{
	ProposalStatusPending:   {},
	ProposalStatusAccepted:  {},
	ProposalStatusRejected:  {},
	ProposalStatusWithdrawn: {},
}

// ValidPriorities список валидных приоритетов заявки
var ValidPriorities = map[string]struct{}{
	PriorityLow:    {},
	PriorityMedium: {},
	PriorityHigh:   {},
	PriorityUrgent: {},
}
