package model

import "strings"

// Customer is a policyholder profile.
type Customer struct {
	CustomerID  string `json:"customer_id"`
	NRIC        string `json:"nric"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"`
	Address     string `json:"address"`
	PostalCode  string `json:"postal_code"`
	Region      string `json:"region"`
}

// FullName joins first and last name.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// CustomerLookup identifies a customer by any one of its keys.
// Matching is OR across the non-empty fields.
type CustomerLookup struct {
	CustomerID string
	Email      string
	NRIC       string
}

// IsEmpty reports whether no identifier was supplied.
func (l CustomerLookup) IsEmpty() bool {
	return l.CustomerID == "" && l.Email == "" && l.NRIC == ""
}

// Policy types as stored.
const (
	PolicyTypeMotor  = "Motor"
	PolicyTypeLife   = "Life"
	PolicyTypeHealth = "Health"
	PolicyTypeHome   = "Home"
	PolicyTypeTravel = "Travel"
)

// PolicyStatusActive is the only status that counts toward an active account.
const PolicyStatusActive = "Active"

// Policy is an insurance contract owned by one customer.
type Policy struct {
	PolicyNumber     string  `json:"policy_number"`
	CustomerID       string  `json:"customer_id"`
	PolicyType       string  `json:"policy_type"`
	StartDate        string  `json:"start_date"`
	PremiumAmount    float64 `json:"premium_amount"`
	BillingFrequency string  `json:"billing_frequency"`
	Status           string  `json:"status"`
}

// VehicleDetail is the 1:1 extension of a Motor policy.
type VehicleDetail struct {
	PolicyNumber   string  `json:"policy_number"`
	VIN            string  `json:"vehicle_vin"`
	Make           string  `json:"vehicle_make"`
	Model          string  `json:"vehicle_model"`
	Year           int     `json:"vehicle_year"`
	LicensePlate   string  `json:"license_plate"`
	CoverageType   string  `json:"coverage_type"`
	Deductible     float64 `json:"deductible"`
	LiabilityLimit float64 `json:"liability_limit"`
}

// Bill is one invoice raised against a policy.
type Bill struct {
	BillID       string  `json:"bill_id"`
	PolicyNumber string  `json:"policy_number"`
	BillingDate  string  `json:"billing_date"`
	DueDate      string  `json:"due_date"`
	Amount       float64 `json:"amount"`
	Status       string  `json:"status"`
}

// Payment settles at most one bill.
type Payment struct {
	PaymentID     string  `json:"payment_id"`
	BillID        string  `json:"bill_id"`
	PaymentDate   string  `json:"payment_date"`
	Amount        float64 `json:"amount"`
	Status        string  `json:"status"`
	PaymentMethod string  `json:"payment_method"`
}

// BillStatusPaid is the resolved status of a settled bill.
const BillStatusPaid = "PAID"

// BillingEntry is a bill joined with its policy and optional payment.
type BillingEntry struct {
	BillID        string  `json:"bill_id"`
	PolicyNumber  string  `json:"policy_number"`
	PolicyType    string  `json:"policy_type"`
	DueDate       string  `json:"due_date"`
	Amount        float64 `json:"amount"`
	BillStatus    string  `json:"bill_status"`
	PaymentStatus string  `json:"payment_status,omitempty"`
	PaymentDate   string  `json:"payment_date,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
}

// FinalStatus resolves the bill's status: PAID when a successful payment exists,
// otherwise the bill's own status upper-cased.
func (b BillingEntry) FinalStatus() string {
	switch strings.ToLower(b.PaymentStatus) {
	case "success", "completed":
		return BillStatusPaid
	}
	if b.BillStatus == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(b.BillStatus)
}

// Unpaid reports whether the bill still needs settling.
func (b BillingEntry) Unpaid() bool {
	s := b.FinalStatus()
	return s != BillStatusPaid && s != "UNKNOWN"
}

// Claim statuses.
const (
	ClaimStatusPending = "Pending"
)

// Claim is a request for payout against a policy.
type Claim struct {
	ClaimID      string  `json:"claim_id"`
	PolicyNumber string  `json:"policy_number"`
	ClaimDate    string  `json:"claim_date"`
	ClaimAmount  float64 `json:"claim_amount"`
	Status       string  `json:"status"`
	Description  string  `json:"description"`
}

// ClaimSummary is a claim joined with the type of its policy.
type ClaimSummary struct {
	Claim
	PolicyType string `json:"policy_type"`
}

// NewClaim is the input to the file-claim write.
type NewClaim struct {
	PolicyNumber string
	IncidentDate string
	Description  string
	Amount       float64
}

// UserSummary is one row of the login directory.
type UserSummary struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PolicyType  string `json:"policyType"`
	CustomerID  string `json:"customerId"`
	Age         int    `json:"age"`
}
