// Package plans serves the plan/pricing table: static defaults available
// immediately, optionally overlaid by the backend's pricing_plans table when
// it is reachable. Freshness here is best-effort, not correctness-critical.
package plans

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"server/internal/backend"
	"server/internal/domain"
)

var titleCaser = cases.Title(language.English)

type Resolver struct {
	backend *backend.Client
	logger  zerolog.Logger

	mu    sync.RWMutex
	table map[domain.PlanTier]domain.Plan
}

func NewResolver(client *backend.Client, logger zerolog.Logger) *Resolver {
	table := make(map[domain.PlanTier]domain.Plan, len(domain.DefaultPlans))
	for tier, plan := range domain.DefaultPlans {
		table[tier] = plan
	}
	return &Resolver{backend: client, logger: logger, table: table}
}

// Plan resolves one tier, falling back to the free plan for unknown
// identifiers.
func (r *Resolver) Plan(tier domain.PlanTier) domain.Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.table[tier]; ok {
		return p
	}
	return r.table[domain.PlanFree]
}

// Snapshot returns the current table ordered by price.
func (r *Resolver) Snapshot() []domain.Plan {
	r.mu.RLock()
	out := make([]domain.Plan, 0, len(r.table))
	for _, p := range r.table {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PriceINR < out[j].PriceINR })
	return out
}

type pricingRow struct {
	Tier                 string `json:"tier"`
	DisplayName          string `json:"display_name"`
	PriceINR             int64  `json:"price_inr"`
	SubmissionQuota      int    `json:"submission_quota"`
	UnlimitedSubmissions bool   `json:"unlimited_submissions"`
	CallQuota            int    `json:"call_quota"`
	ValidityDays         int    `json:"validity_days"`
	Active               bool   `json:"active"`
}

// Refresh overlays the backend pricing table over the defaults. One attempt,
// no retry; any failure keeps the defaults and logs at debug level only.
func (r *Resolver) Refresh(ctx context.Context) {
	var rows []pricingRow
	if err := r.backend.Select(ctx, "", "pricing_plans", "", backend.Filters{"active": "true"}, &rows); err != nil {
		r.logger.Debug().Err(err).Msg("pricing overlay fetch failed, keeping defaults")
		return
	}
	if len(rows) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		tier := domain.PlanTier(row.Tier)
		if !row.Active || row.Tier == "" {
			continue
		}
		name := row.DisplayName
		if name == "" {
			name = titleCaser.String(row.Tier)
		}
		r.table[tier] = domain.Plan{
			Tier:        tier,
			DisplayName: name,
			PriceINR:    row.PriceINR,
			Limits: domain.PlanLimits{
				Submissions:          row.SubmissionQuota,
				UnlimitedSubmissions: row.UnlimitedSubmissions,
				GuidanceCalls:        row.CallQuota,
				ValidityDays:         row.ValidityDays,
			},
		}
	}
}

// Limits returns the limit entry for a tier from the live table, free tier
// for unknown identifiers.
func (r *Resolver) Limits(tier domain.PlanTier) domain.PlanLimits {
	return r.Plan(tier).Limits
}
