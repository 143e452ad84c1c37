package model

// Fields a specialist can ask the user for in SpecialistTurn.Awaiting.
const (
	FieldCustomerID   = "customer_id"
	FieldPolicyNumber = "policy_number"
	FieldClaimID      = "claim_id"
	FieldIncidentDate = "incident_date"
	FieldAmount       = "amount"
	FieldDescription  = "description"
)
