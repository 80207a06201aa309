package domain

import (
	"time"
)

// RecordKind identifies which store table a ServiceRecord was read from.
type RecordKind string

const (
	KindTicket     RecordKind = "ticket"
	KindOffer      RecordKind = "offer"
	KindAttendance RecordKind = "attendance"
	KindActivity   RecordKind = "activity"
	KindTarget     RecordKind = "target"
)

// IsValid checks the kind is one the record store serves.
func (k RecordKind) IsValid() bool {
	switch k {
	case KindTicket, KindOffer, KindAttendance, KindActivity, KindTarget:
		return true
	}
	return false
}

// TicketStatus represents the possible states of a field-service ticket.
type TicketStatus string

const (
	StatusOpen             TicketStatus = "OPEN"
	StatusAssigned         TicketStatus = "ASSIGNED"
	StatusInProgress       TicketStatus = "IN_PROGRESS"
	StatusOnHold           TicketStatus = "ON_HOLD"
	StatusEscalated        TicketStatus = "ESCALATED"
	StatusVisitStarted     TicketStatus = "VISIT_STARTED"
	StatusTraveling        TicketStatus = "TRAVELING"
	StatusArrived          TicketStatus = "ARRIVED"
	StatusOnsiteInProgress TicketStatus = "ONSITE_IN_PROGRESS"
	StatusOnsiteResolved   TicketStatus = "ONSITE_RESOLVED"
	StatusVisitCompleted   TicketStatus = "VISIT_COMPLETED"
	StatusResolved         TicketStatus = "RESOLVED"
	StatusClosed           TicketStatus = "CLOSED"
	StatusCancelled        TicketStatus = "CANCELLED"
)

// TicketStatuses is the complete status domain, in workflow order.
var TicketStatuses = []TicketStatus{
	StatusOpen, StatusAssigned, StatusInProgress, StatusOnHold, StatusEscalated,
	StatusVisitStarted, StatusTraveling, StatusArrived, StatusOnsiteInProgress,
	StatusOnsiteResolved, StatusVisitCompleted, StatusResolved, StatusClosed, StatusCancelled,
}

func (s TicketStatus) String() string {
	return string(s)
}

// IsValid checks if the status is part of the workflow.
func (s TicketStatus) IsValid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the ticket's service lifecycle.
func (s TicketStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// TicketPriority represents the urgency of a ticket.
type TicketPriority string

const (
	PriorityCritical TicketPriority = "CRITICAL"
	PriorityHigh     TicketPriority = "HIGH"
	PriorityMedium   TicketPriority = "MEDIUM"
	PriorityLow      TicketPriority = "LOW"
)

// TicketPriorities is the complete priority domain, most urgent first.
var TicketPriorities = []TicketPriority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

func (p TicketPriority) String() string {
	return string(p)
}

// IsValid checks if the priority is one of the known tiers.
func (p TicketPriority) IsValid() bool {
	for _, known := range TicketPriorities {
		if p == known {
			return true
		}
	}
	return false
}

// OfferStage is the sales funnel position of an offer.
type OfferStage string

const (
	StageProspect    OfferStage = "PROSPECT"
	StageQualified   OfferStage = "QUALIFIED"
	StageProposal    OfferStage = "PROPOSAL"
	StageNegotiation OfferStage = "NEGOTIATION"
	StageWon         OfferStage = "WON"
	StageLost        OfferStage = "LOST"
)

// OfferStages is the complete funnel, in order.
var OfferStages = []OfferStage{StageProspect, StageQualified, StageProposal, StageNegotiation, StageWon, StageLost}

func (s OfferStage) String() string {
	return string(s)
}

func (s OfferStage) IsValid() bool {
	for _, known := range OfferStages {
		if s == known {
			return true
		}
	}
	return false
}

// IsOpen reports whether the offer is still in the pipeline.
func (s OfferStage) IsOpen() bool {
	return s != StageWon && s != StageLost
}

// StatusTransition is one entry of a record's status history.
type StatusTransition struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
}

// ServiceRecord is a read-only snapshot of a trackable unit of work.
// Category carries the status (tickets), stage (offers) or activity type.
type ServiceRecord struct {
	ID          string             `json:"id"`
	Kind        RecordKind         `json:"kind"`
	Title       string             `json:"title,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	ClosedAt    *time.Time         `json:"closedAt,omitempty"`
	Category    string             `json:"category"`
	Priority    string             `json:"priority,omitempty"`
	ZoneID      string             `json:"zoneId,omitempty"`
	CustomerID  string             `json:"customerId,omitempty"`
	AssigneeID  string             `json:"assigneeId,omitempty"`
	AssetID     string             `json:"assetId,omitempty"`
	ProductType string             `json:"productType,omitempty"`
	CallType    string             `json:"callType,omitempty"`
	Value       float64            `json:"value,omitempty"`
	Transitions []StatusTransition `json:"transitions,omitempty"`
}

// IsClosed reports whether the record carries a close timestamp.
func (r ServiceRecord) IsClosed() bool {
	return r.ClosedAt != nil
}

// Include selects optional related data loaded with records.
type Include string

const (
	IncludeTransitions Include = "transitions"
)

// HasInclude reports whether includes contains want.
func HasInclude(includes []Include, want Include) bool {
	for _, inc := range includes {
		if inc == want {
			return true
		}
	}
	return false
}
