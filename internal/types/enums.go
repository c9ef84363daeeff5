package types

// UserRole defines the permission tier of a company user.
type UserRole string

const (
	RoleOwner      UserRole = "owner"
	RoleAdmin      UserRole = "admin"
	RoleTechnician UserRole = "technician"
	RoleOffice     UserRole = "office"
)

// InspectionStatus tracks an inspection through its workflow.
type InspectionStatus string

const (
	InspectionDraft      InspectionStatus = "draft"
	InspectionScheduled  InspectionStatus = "scheduled"
	InspectionInProgress InspectionStatus = "in_progress"
	InspectionCompleted  InspectionStatus = "completed"
)

// EstimateStatus tracks an estimate from draft to approval.
type EstimateStatus string

const (
	EstimateDraft    EstimateStatus = "draft"
	EstimateSent     EstimateStatus = "sent"
	EstimateApproved EstimateStatus = "approved"
	EstimateDeclined EstimateStatus = "declined"
)

// WorkOrderStatus tracks a work order through execution.
type WorkOrderStatus string

const (
	WorkOrderPending    WorkOrderStatus = "pending"
	WorkOrderScheduled  WorkOrderStatus = "scheduled"
	WorkOrderInProgress WorkOrderStatus = "in_progress"
	WorkOrderCompleted  WorkOrderStatus = "completed"
	WorkOrderCancelled  WorkOrderStatus = "cancelled"
)

// workOrderTransitions enumerates the legal status transitions. A work order
// can be cancelled from any non-terminal state.
var workOrderTransitions = map[WorkOrderStatus][]WorkOrderStatus{
	WorkOrderPending:    {WorkOrderScheduled, WorkOrderCancelled},
	WorkOrderScheduled:  {WorkOrderInProgress, WorkOrderPending, WorkOrderCancelled},
	WorkOrderInProgress: {WorkOrderCompleted, WorkOrderCancelled},
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s WorkOrderStatus) CanTransitionTo(next WorkOrderStatus) bool {
	for _, allowed := range workOrderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EventType categorizes schedule calendar entries.
type EventType string

const (
	EventInspection EventType = "inspection"
	EventWorkOrder  EventType = "work_order"
	EventOther      EventType = "other"
)
