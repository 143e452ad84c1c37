package model

// Report is the read-only customer aggregation served outside the conversation graph.
type Report struct {
	Metadata         ReportMetadata    `json:"report_metadata"`
	ExecutiveSummary ExecutiveSummary  `json:"executive_summary"`
	CustomerProfile  CustomerProfile   `json:"customer_profile"`
	PolicyPortfolio  []PortfolioPolicy `json:"policy_portfolio"`
	ClaimsHistory    []ClaimRecord     `json:"claims_history"`
}

type ReportMetadata struct {
	Title          string `json:"report_title"`
	GenerationDate string `json:"generation_date"`
	CustomerID     string `json:"customer_id"`
}

type ExecutiveSummary struct {
	AccountStatus      string   `json:"account_status"`
	PortfolioNarrative string   `json:"portfolio_narrative"`
	KeyFindings        []string `json:"key_findings"`
}

type CustomerProfile struct {
	Name        string         `json:"name"`
	NRIC        string         `json:"nric"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	DateOfBirth string         `json:"date_of_birth"`
	Address     ProfileAddress `json:"address"`
}

type ProfileAddress struct {
	FullAddress string `json:"full_address"`
	Region      string `json:"region"`
}

type PortfolioPolicy struct {
	PolicyID       string         `json:"policy_id"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	StartDate      string         `json:"start_date"`
	Premium        Premium        `json:"premium"`
	BillingHistory []BillSnapshot `json:"billing_history"`
}

type Premium struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Frequency string  `json:"frequency"`
}

type BillSnapshot struct {
	BillID  string `json:"bill_id"`
	DueDate string `json:"due_date"`
	Status  string `json:"status"`
}

type ClaimRecord struct {
	ClaimID          string  `json:"claim_id"`
	Date             string  `json:"date"`
	AssociatedPolicy string  `json:"associated_policy"`
	Amount           float64 `json:"amount"`
	Status           string  `json:"status"`
	Description      string  `json:"description"`
}
