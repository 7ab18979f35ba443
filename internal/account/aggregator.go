// Package account derives the denormalized user view-model: session
// resolution, profile fetch, submission/call classification, and quota math.
// One process-wide current-user slot, written only here and by the explicit
// optimistic updates, observable through Subscribe.
package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"server/internal/backend"
	"server/internal/domain"
	"server/internal/plans"
	"server/internal/session"
)

type Aggregator struct {
	backend  *backend.Client
	sessions *session.Accessor
	plans    *plans.Resolver
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *domain.UserData
	subs    map[int]func(*domain.UserData)
	nextSub int
}

func NewAggregator(client *backend.Client, sessions *session.Accessor, resolver *plans.Resolver, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		backend:  client,
		sessions: sessions,
		plans:    resolver,
		logger:   logger,
		now:      time.Now,
		subs:     map[int]func(*domain.UserData){},
	}
}

// statusRecord is the lightweight row shape fetched for both collections.
type statusRecord struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// LoadSession resolves the stored session and recomputes the full view-model.
// It always reaches a terminal value: a populated UserData, or nil for an
// anonymous visitor. Read failures degrade to defaults rather than blocking.
func (a *Aggregator) LoadSession(ctx context.Context) (*domain.UserData, error) {
	env := a.sessions.Current()
	if env == nil {
		a.setCurrent(nil)
		return nil, nil
	}
	if env.Expired(a.now()) {
		a.sessions.Clear()
		a.setCurrent(nil)
		return nil, nil
	}

	profile := a.fetchProfile(ctx, env)

	if profile.Role.Elevated() {
		ud := &domain.UserData{
			UserID:          profile.ID,
			Name:            profile.Name,
			Email:           profile.Email,
			Phone:           profile.Phone,
			Plan:            profile.Plan,
			Role:            profile.Role,
			Unlimited:       true,
			SubmissionsLeft: domain.UnlimitedQuota,
			CallsLeft:       domain.UnlimitedQuota,
		}
		a.setCurrent(ud)
		return ud, nil
	}

	subCounts := a.fetchSubmissionCounts(ctx, env)
	callCounts := a.fetchCallCounts(ctx, env)

	limits := a.plans.Limits(profile.Plan)
	ud := &domain.UserData{
		UserID:          profile.ID,
		Name:            profile.Name,
		Email:           profile.Email,
		Phone:           profile.Phone,
		Plan:            profile.Plan,
		Role:            profile.Role,
		Submissions:     subCounts,
		Calls:           callCounts,
		SubmissionsLeft: domain.RemainingSubmissions(limits, subCounts.Total),
		CallsLeft:       domain.RemainingCalls(limits, callCounts.Total),
		PlanStart:       profile.PlanStart,
	}
	if until, days, ok := domain.Validity(profile.PlanStart, limits, a.now()); ok {
		ud.ValidUntil = until
		ud.DaysLeft = days
	}

	a.setCurrent(ud)
	return ud, ctx.Err()
}

// fetchProfile reads the backend profile row; on any failure it builds a
// minimal profile from the session identity so the caller still renders.
func (a *Aggregator) fetchProfile(ctx context.Context, env *session.Envelope) domain.Profile {
	var rows []domain.Profile
	err := a.backend.Select(ctx, env.AccessToken, "profiles", "", backend.Filters{"id": env.UserID}, &rows)
	if err == nil && len(rows) > 0 {
		p := rows[0]
		if p.Email == "" {
			p.Email = env.Email
		}
		if p.Plan == "" {
			p.Plan = domain.PlanFree
		}
		if p.Role == "" {
			p.Role = domain.RoleStudent
		}
		return p
	}
	if err != nil {
		a.logger.Warn().Err(err).Str("user_id", env.UserID).Msg("profile fetch failed, using session defaults")
	}
	name := env.Email
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	return domain.Profile{
		ID:    env.UserID,
		Name:  name,
		Email: env.Email,
		Plan:  domain.PlanFree,
		Role:  domain.RoleStudent,
	}
}

func (a *Aggregator) fetchSubmissionCounts(ctx context.Context, env *session.Envelope) domain.SubmissionCounts {
	var rows []statusRecord
	err := a.backend.Select(ctx, env.AccessToken, "submissions", "id,status", backend.Filters{"user_id": env.UserID}, &rows)
	if err != nil {
		a.logger.Warn().Err(err).Msg("submissions fetch failed, counting zero")
		return domain.SubmissionCounts{}
	}
	var counts domain.SubmissionCounts
	counts.Total = len(rows)
	for _, row := range rows {
		status, err := domain.ParseSubmissionStatus(row.Status)
		if err != nil {
			a.logger.Warn().Str("submission_id", row.ID).Str("status", row.Status).Msg("unrecognized submission status")
		}
		switch status {
		case domain.SubmissionCompleted:
			counts.Completed++
		case domain.SubmissionInReview:
			counts.InReview++
		case domain.SubmissionPending:
			counts.Pending++
		default:
			counts.Unknown++
		}
	}
	return counts
}

func (a *Aggregator) fetchCallCounts(ctx context.Context, env *session.Envelope) domain.CallCounts {
	var rows []statusRecord
	err := a.backend.Select(ctx, env.AccessToken, "guidance_calls", "id,status", backend.Filters{"user_id": env.UserID}, &rows)
	if err != nil {
		a.logger.Warn().Err(err).Msg("guidance calls fetch failed, counting zero")
		return domain.CallCounts{}
	}
	var counts domain.CallCounts
	counts.Total = len(rows)
	for _, row := range rows {
		status, err := domain.ParseCallStatus(row.Status)
		if err != nil {
			a.logger.Warn().Str("call_id", row.ID).Str("status", row.Status).Msg("unrecognized call status")
		}
		switch status {
		case domain.CallCompleted:
			counts.Completed++
		case domain.CallScheduled:
			counts.Scheduled++
		case domain.CallRequested:
			counts.Requested++
		default:
			counts.Unknown++
		}
	}
	return counts
}

// Current returns the view-model slot's value; nil means anonymous.
func (a *Aggregator) Current() *domain.UserData {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Subscribe registers an observer for slot writes and returns its cancel
// function. Observers run synchronously on the writing goroutine.
func (a *Aggregator) Subscribe(fn func(*domain.UserData)) func() {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

func (a *Aggregator) setCurrent(ud *domain.UserData) {
	a.mu.Lock()
	a.current = ud
	observers := make([]func(*domain.UserData), 0, len(a.subs))
	for _, fn := range a.subs {
		observers = append(observers, fn)
	}
	a.mu.Unlock()
	for _, fn := range observers {
		fn(ud)
	}
}

// ApplyPlanUpgrade patches the slot after a successful plan-upgrade write:
// the new tier's limits take effect immediately without a full reload.
func (a *Aggregator) ApplyPlanUpgrade(tier domain.PlanTier) {
	a.mu.Lock()
	ud := a.current
	a.mu.Unlock()
	if ud == nil {
		return
	}
	start := a.now()
	limits := a.plans.Limits(tier)
	patched := *ud
	patched.Plan = tier
	patched.PlanStart = &start
	patched.SubmissionsLeft = domain.RemainingSubmissions(limits, patched.Submissions.Total)
	patched.CallsLeft = domain.RemainingCalls(limits, patched.Calls.Total)
	patched.ValidUntil = ""
	patched.DaysLeft = 0
	if until, days, ok := domain.Validity(&start, limits, start); ok {
		patched.ValidUntil = until
		patched.DaysLeft = days
	}
	a.setCurrent(&patched)
}

// ApplyProfile patches the editable profile fields after a successful save.
func (a *Aggregator) ApplyProfile(name, phone string) {
	a.mu.Lock()
	ud := a.current
	a.mu.Unlock()
	if ud == nil {
		return
	}
	patched := *ud
	if name != "" {
		patched.Name = name
	}
	if phone != "" {
		patched.Phone = phone
	}
	a.setCurrent(&patched)
}
