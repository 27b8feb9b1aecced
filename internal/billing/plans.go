package billing

// Plan describes a purchasable subscription plan backed by a Stripe price.
type Plan struct {
	ID                string
	DisplayName       string
	MonthlyPriceCents int64
	PriceID           string // set from configuration at startup
}

var Plans = map[string]*Plan{
	"monthly": {
		ID:                "monthly",
		DisplayName:       "ApexMind Monthly",
		MonthlyPriceCents: 1499,
	},
	"yearly": {
		ID:                "yearly",
		DisplayName:       "ApexMind Yearly",
		MonthlyPriceCents: 833,
	},
}

var PlanOrder = []string{"monthly", "yearly"}

func GetPlan(id string) *Plan {
	return Plans[id]
}

// ConfigurePrices binds configured Stripe price ids to the plan table.
func ConfigurePrices(monthlyPriceID, yearlyPriceID string) {
	Plans["monthly"].PriceID = monthlyPriceID
	Plans["yearly"].PriceID = yearlyPriceID
}
