package domain

import "testing"

func TestLimitsForUnknownTierFallsBackToFree(t *testing.T) {
	tests := []struct {
		name string
		tier PlanTier
	}{
		{name: "empty tier", tier: PlanTier("")},
		{name: "typo tier", tier: PlanTier("achievr")},
		{name: "legacy tier", tier: PlanTier("premium")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LimitsFor(tt.tier)
			want := LimitsFor(PlanFree)
			if got != want {
				t.Fatalf("LimitsFor(%q) = %+v, want free limits %+v", tt.tier, got, want)
			}
		})
	}
}

func TestLimitsForKnownTiers(t *testing.T) {
	for tier := range DefaultPlans {
		if !KnownTier(tier) {
			t.Errorf("tier %q in DefaultPlans has no limit entry", tier)
		}
	}
	if LimitsFor(PlanFree).Submissions != 3 {
		t.Fatalf("free tier submission quota = %d, want 3", LimitsFor(PlanFree).Submissions)
	}
	if !LimitsFor(PlanPro).UnlimitedSubmissions {
		t.Fatal("pro tier should not meter submissions")
	}
}

func TestRemainingSubmissions(t *testing.T) {
	free := LimitsFor(PlanFree)
	tests := []struct {
		name   string
		limits PlanLimits
		total  int
		want   int
	}{
		{name: "unused free quota", limits: free, total: 0, want: 3},
		{name: "partially used", limits: free, total: 2, want: 1},
		{name: "at quota", limits: free, total: 3, want: 0},
		{name: "over quota floors at zero", limits: free, total: 7, want: 0},
		{name: "unmetered tier reports sentinel", limits: LimitsFor(PlanStarter), total: 500, want: UnlimitedQuota},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingSubmissions(tt.limits, tt.total); got != tt.want {
				t.Fatalf("RemainingSubmissions(total=%d) = %d, want %d", tt.total, got, tt.want)
			}
		})
	}
}

func TestRemainingCalls(t *testing.T) {
	pro := LimitsFor(PlanPro)
	if got := RemainingCalls(pro, 1); got != 2 {
		t.Fatalf("RemainingCalls = %d, want 2", got)
	}
	if got := RemainingCalls(pro, 9); got != 0 {
		t.Fatalf("RemainingCalls over quota = %d, want 0", got)
	}
}
