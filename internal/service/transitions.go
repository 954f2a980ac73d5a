package service

import "github.com/abdoElHodaky/smartfixapi/internal/models"

// transition — закрытый набор операций над заявкой. Новый статус или
// операция не добавятся без правки исчерпывающих switch ниже.
type transition int

const (
	transitionSubmitProposal transition = iota
	transitionAcceptProposal
	transitionStartService
	transitionCompleteService
	transitionApproveCompletion
	transitionCancelRequest
	transitionUpdateRequest
)

// String возвращает имя операции для сообщений об ошибках.
func (t transition) String() string {
	switch t {
	case transitionSubmitProposal:
		return "submit_proposal"
	case transitionAcceptProposal:
		return "accept_proposal"
	case transitionStartService:
		return "start_service"
	case transitionCompleteService:
		return "complete_service"
	case transitionApproveCompletion:
		return "approve_completion"
	case transitionCancelRequest:
		return "cancel_request"
	case transitionUpdateRequest:
		return "update_request"
	}
	return "unknown"
}

// allowedFrom сообщает, разрешена ли операция из данного статуса заявки.
// Отмена возможна из любого нетерминального статуса; повторная отмена
// и отмена завершённой заявки запрещены.
func (t transition) allowedFrom(status string) bool {
	switch t {
	case transitionSubmitProposal, transitionAcceptProposal, transitionUpdateRequest:
		return status == models.RequestStatusPending
	case transitionStartService:
		return status == models.RequestStatusAccepted
	case transitionCompleteService:
		return status == models.RequestStatusInProgress
	case transitionApproveCompletion:
		return status == models.RequestStatusCompleted
	case transitionCancelRequest:
		return status != models.RequestStatusCompleted && status != models.RequestStatusCancelled
	}
	return false
}
