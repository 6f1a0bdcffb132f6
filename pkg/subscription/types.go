package subscription

// Status represents the observable lifecycle state of a subscription.
type Status string

const (
	StatusTrialing  Status = "trialing"
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCanceling Status = "canceling"
	StatusCanceled  Status = "canceled"
)

// PlanID identifies a plan in the catalog.
type PlanID string

const (
	PlanStarter    PlanID = "starter"
	PlanPro        PlanID = "pro"
	PlanEnterprise PlanID = "enterprise"
)

// Resource represents a countable resource gated by plan limits.
type Resource string

const (
	ResourceProjects    Resource = "projects"
	ResourceTeamMembers Resource = "team_members"
	ResourceStorage     Resource = "storage" // measured in GB
)

const (
	// Unlimited indicates no limit for a resource (-1 chosen for SQL compatibility).
	Unlimited int64 = -1
)

// Money represents a monetary amount in the smallest currency unit.
// For example, 29.00 EUR would be Amount: 2900, Currency: "EUR".
type Money struct {
	Amount   int64  `yaml:"amount"`
	Currency string `yaml:"currency"` // ISO 4217 currency code
}

// PlanChange classifies a plan switch relative to the current plan.
type PlanChange string

const (
	PlanChangeUpgrade   PlanChange = "upgrade"
	PlanChangeDowngrade PlanChange = "downgrade"
	PlanChangeLateral   PlanChange = "lateral"
)

// CheckoutOptions contains caller-supplied options for a checkout session.
type CheckoutOptions struct {
	Email      string // billing email, required before any provider call
	SuccessURL string // redirect after successful payment
	CancelURL  string // redirect if the customer abandons checkout
}
