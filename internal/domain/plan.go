package domain

// PlanTier enumerates subscription levels.
type PlanTier string

const (
	PlanFree     PlanTier = "free"
	PlanStarter  PlanTier = "starter"
	PlanPro      PlanTier = "pro"
	PlanAchiever PlanTier = "achiever"
)

// UnlimitedQuota is the sentinel reported for counters that are not metered.
const UnlimitedQuota = 9999

// PlanLimits caps per-tier usage. ValidityDays of 0 means the plan never
// lapses (only the free tier).
type PlanLimits struct {
	Submissions          int
	UnlimitedSubmissions bool
	GuidanceCalls        int
	ValidityDays         int
}

// Plan combines a tier's limits with its storefront attributes.
type Plan struct {
	Tier        PlanTier   `json:"tier"`
	DisplayName string     `json:"display_name"`
	PriceINR    int64      `json:"price_inr"`
	Limits      PlanLimits `json:"limits"`
}

// defaultLimits is the static limit table. Every tier referenced anywhere in
// the service must have an entry here.
var defaultLimits = map[PlanTier]PlanLimits{
	PlanFree:     {Submissions: 3, GuidanceCalls: 0, ValidityDays: 0},
	PlanStarter:  {UnlimitedSubmissions: true, GuidanceCalls: 1, ValidityDays: 30},
	PlanPro:      {UnlimitedSubmissions: true, GuidanceCalls: 3, ValidityDays: 90},
	PlanAchiever: {UnlimitedSubmissions: true, GuidanceCalls: 6, ValidityDays: 180},
}

// DefaultPlans is the static plan table served before any backend overlay.
var DefaultPlans = map[PlanTier]Plan{
	PlanFree:     {Tier: PlanFree, DisplayName: "Free", PriceINR: 0, Limits: defaultLimits[PlanFree]},
	PlanStarter:  {Tier: PlanStarter, DisplayName: "Starter", PriceINR: 499, Limits: defaultLimits[PlanStarter]},
	PlanPro:      {Tier: PlanPro, DisplayName: "Pro", PriceINR: 1499, Limits: defaultLimits[PlanPro]},
	PlanAchiever: {Tier: PlanAchiever, DisplayName: "Achiever", PriceINR: 2999, Limits: defaultLimits[PlanAchiever]},
}

// LimitsFor returns the limit entry for a tier, falling back to the free tier
// for unknown identifiers instead of failing.
func LimitsFor(tier PlanTier) PlanLimits {
	if l, ok := defaultLimits[tier]; ok {
		return l
	}
	return defaultLimits[PlanFree]
}

// KnownTier reports whether the tier has a limit entry.
func KnownTier(tier PlanTier) bool {
	_, ok := defaultLimits[tier]
	return ok
}
