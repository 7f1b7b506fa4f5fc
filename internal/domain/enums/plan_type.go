package enums

const (
	PlanSubscription = "subscription"
	PlanSingle       = "single"
)

func ValidPlanType(raw string) bool {
	switch raw {
	case PlanSubscription, PlanSingle:
		return true
	default:
		return false
	}
}
