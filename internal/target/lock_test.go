package target

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-scout/internal/domain"
	"trend-scout/internal/metadata"
)

func hunterConfig() Config {
	return Config{
		Names:   []string{"ClawSeek", "$ClawSeek", "Claw Seek"},
		Symbols: []string{"SEEK", "CSEEK"},
	}
}

func tok(id, name, symbol string) domain.Token {
	t := domain.Token{ID: id, Name: name, Symbol: symbol, MarketCap: 4000, CreatedAt: time.Unix(1700000000, 0)}
	t.Recompute()
	return t
}

func rec(mint, name, symbol string) *domain.OfficialRecord {
	return &domain.OfficialRecord{Mint: mint, Name: name, Symbol: symbol, DetectedAt: time.Unix(1700000100, 0).UTC()}
}

func TestNew_HuntingWithoutTarget(t *testing.T) {
	l := New(hunterConfig())
	assert.Nil(t, l.Current())
	assert.Equal(t, domain.StatusHunting, l.Status())
	assert.False(t, l.Pinned())
}

func TestNew_PinnedSeedsSkeleton(t *testing.T) {
	l := New(Config{Mint: "PinnedMint"})

	cur := l.Current()
	require.NotNil(t, cur)
	assert.True(t, cur.Skeleton)
	assert.Equal(t, "PinnedMint", cur.Token.ID)
	assert.Equal(t, domain.ProvenanceConfig, cur.Provenance)
	assert.Equal(t, metadata.Placeholder("PinnedMint"), cur.Token.ImageURL)
	assert.Equal(t, 1.0, cur.Token.BondingCurveProgress)
	assert.Equal(t, domain.StatusConfirmed, l.Status())
}

func TestMatchesName(t *testing.T) {
	l := New(hunterConfig())

	tests := []struct {
		name, symbol string
		want         bool
	}{
		{"ClawSeek", "", true},
		{"clawseek", "X", true},
		{"$CLAWSEEK", "X", true},
		{"Claw Seek", "", true},
		{"ClawSeek Inu", "X", false},
		{"Other", "seek", true},
		{"Other", "$cseek", true},
		{"Other", "SEEKER", false},
		{"", "", false},
		{"$", "$", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.MatchesName(tt.name, tt.symbol), "%q/%q", tt.name, tt.symbol)
	}
}

func TestOffer_HeuristicTentative(t *testing.T) {
	l := New(hunterConfig())

	res := l.Offer(tok("M1", "ClawSeek", "SEEK"))
	assert.True(t, res.Changed)
	assert.True(t, res.Claim)
	assert.Equal(t, domain.StatusTentative, l.Status())
	assert.Equal(t, domain.ProvenanceHeuristic, l.Current().Provenance)
}

func TestOffer_NonMatchingIgnored(t *testing.T) {
	l := New(hunterConfig())
	res := l.Offer(tok("M1", "Lobster King", "LOB"))
	assert.False(t, res.Changed)
	assert.Nil(t, l.Current())
}

func TestOffer_TentativeOnlyReconfirmsSameID(t *testing.T) {
	l := New(hunterConfig())
	l.Offer(tok("M1", "ClawSeek", "SEEK"))

	res := l.Offer(tok("M2", "ClawSeek", "SEEK"))
	assert.False(t, res.Changed)
	assert.Equal(t, "M1", l.ID())

	updated := tok("M1", "ClawSeek", "SEEK")
	updated.MarketCap = 9000
	res = l.Offer(updated)
	assert.True(t, res.Changed)
	assert.Equal(t, 9000.0, l.Current().Token.MarketCap)
}

func TestOffer_PinnedRejectsOtherIDs(t *testing.T) {
	cfg := hunterConfig()
	cfg.Mint = "Pinned"
	l := New(cfg)

	res := l.Offer(tok("Other", "ClawSeek", "SEEK"))
	assert.False(t, res.Changed)
	assert.Equal(t, "Pinned", l.ID())
	assert.True(t, l.Current().Skeleton)
}

func TestOffer_PinnedFillsSkeleton(t *testing.T) {
	l := New(Config{Mint: "Pinned"})

	res := l.Offer(tok("Pinned", "Anything", "ANY"))
	assert.True(t, res.Changed)
	assert.True(t, res.Claim)

	cur := l.Current()
	assert.False(t, cur.Skeleton)
	assert.Equal(t, "Anything", cur.Token.Name)
	assert.Equal(t, domain.ProvenanceConfig, cur.Provenance)
	assert.Equal(t, domain.StageConfirmed, cur.Stage)
}

func TestReconcile_EmptyRemoteClearsTentative(t *testing.T) {
	l := New(hunterConfig())
	l.Offer(tok("M1", "ClawSeek", "SEEK"))

	res := l.Reconcile(nil)
	assert.True(t, res.Changed)
	assert.Nil(t, l.Current())
	assert.Equal(t, domain.StatusHunting, l.Status())
}

func TestReconcile_EmptyRemoteHunting(t *testing.T) {
	l := New(hunterConfig())
	res := l.Reconcile(nil)
	assert.False(t, res.Changed)
	assert.Nil(t, l.Current())
	assert.Equal(t, domain.StatusHunting, l.Status())
}

func TestReconcile_MatchingRemoteOverwritesTentative(t *testing.T) {
	l := New(hunterConfig())
	l.Offer(tok("M1", "ClawSeek", "SEEK"))

	res := l.Reconcile(rec("M2", "Claw Seek", "CSEEK"))
	assert.True(t, res.Changed)
	cur := l.Current()
	assert.Equal(t, "M2", cur.Token.ID)
	assert.Equal(t, domain.ProvenanceRemote, cur.Provenance)
	assert.Equal(t, domain.StatusLocked, l.Status())
}

func TestReconcile_DisagreeingRemoteClears(t *testing.T) {
	l := New(hunterConfig())
	l.Offer(tok("M1", "ClawSeek", "SEEK"))

	res := l.Reconcile(rec("M9", "Something Else", "ELSE"))
	assert.True(t, res.Changed)
	assert.Nil(t, l.Current())
}

func TestReconcile_SameIDKeepsMarketData(t *testing.T) {
	l := New(hunterConfig())
	live := tok("M1", "ClawSeek", "SEEK")
	live.MarketCap = 20000
	live.Volume24h = 12
	l.Offer(live)

	l.Reconcile(rec("M1", "ClawSeek", "SEEK"))
	cur := l.Current()
	assert.Equal(t, 20000.0, cur.Token.MarketCap)
	assert.Equal(t, 12.0, cur.Token.Volume24h)
	assert.Equal(t, domain.StagePersisted, cur.Stage)
}

func TestReconcile_PinnedSkeletonSurvivesAbsence(t *testing.T) {
	l := New(Config{Mint: "Pinned"})

	res := l.Reconcile(nil)
	assert.False(t, res.Changed)
	assert.False(t, res.Claim)
	require.NotNil(t, l.Current())
	assert.True(t, l.Current().Skeleton)

	res = l.Reconcile(rec("Other", "x", "y"))
	assert.False(t, res.Changed)
	assert.Equal(t, "Pinned", l.ID())
}

func TestReconcile_PinnedAdoptsMatchingRecord(t *testing.T) {
	l := New(Config{Mint: "Pinned"})

	r := rec("Pinned", "Real Name", "REAL")
	r.ImageURI = "ipfs://QmImage"
	res := l.Reconcile(r)
	assert.True(t, res.Changed)

	cur := l.Current()
	assert.False(t, cur.Skeleton)
	assert.Equal(t, "Real Name", cur.Token.Name)
	assert.Equal(t, metadata.NormalizeURL("ipfs://QmImage", 0), cur.Token.ImageURL)
	assert.Equal(t, domain.ProvenanceConfig, cur.Provenance)
	assert.Equal(t, domain.StatusLocked, l.Status())
}

func TestReconcile_PinnedWithDataClaimsOnAbsence(t *testing.T) {
	l := New(Config{Mint: "Pinned"})
	l.Offer(tok("Pinned", "Real", "REAL"))

	res := l.Reconcile(nil)
	assert.True(t, res.Claim)
}

func TestReconcile_InFlightClaimNotCleared(t *testing.T) {
	l := New(hunterConfig())
	l.Offer(tok("M1", "ClawSeek", "SEEK"))
	_, ok := l.BeginClaim()
	require.True(t, ok)

	res := l.Reconcile(nil)
	assert.False(t, res.Changed)
	assert.Equal(t, "M1", l.ID())
}

func TestRemoteInsert(t *testing.T) {
	l := New(hunterConfig())
	l.Offer(tok("M1", "ClawSeek", "SEEK"))

	res := l.RemoteInsert(*rec("M7", "Unrelated", "UNR"))
	assert.False(t, res.Changed)
	assert.Equal(t, "M1", l.ID())

	res = l.RemoteInsert(*rec("M2", "CLAWSEEK", "X"))
	assert.True(t, res.Changed)
	assert.Equal(t, "M2", l.ID())
	assert.Equal(t, domain.StatusLocked, l.Status())
}

func TestRemoteInsert_PinnedIgnoresOtherIDs(t *testing.T) {
	cfg := hunterConfig()
	cfg.Mint = "Pinned"
	l := New(cfg)

	res := l.RemoteInsert(*rec("M2", "ClawSeek", "SEEK"))
	assert.False(t, res.Changed)
	assert.Equal(t, "Pinned", l.ID())
}

func TestClaim_SingleInFlight(t *testing.T) {
	l := New(hunterConfig())
	_, ok := l.BeginClaim()
	assert.False(t, ok, "nothing to claim")

	l.Offer(tok("M1", "ClawSeek", "SEEK"))
	r, ok := l.BeginClaim()
	require.True(t, ok)
	assert.Equal(t, "M1", r.Mint)
	assert.Equal(t, "ClawSeek", r.Name)
	assert.True(t, l.claiming)

	_, ok = l.BeginClaim()
	assert.False(t, ok)
}

func TestEndClaim_Won(t *testing.T) {
	l := New(hunterConfig())
	l.Offer(tok("M1", "ClawSeek", "SEEK"))
	r, _ := l.BeginClaim()

	res := l.EndClaim(&r)
	assert.True(t, res.Changed)
	assert.False(t, l.claiming)
	assert.Equal(t, domain.StatusLocked, l.Status())

	_, ok := l.BeginClaim()
	assert.False(t, ok, "persisted target needs no claim")
}

func TestEndClaim_DefersToExisting(t *testing.T) {
	l := New(hunterConfig())
	l.Offer(tok("M1", "ClawSeek", "SEEK"))
	l.BeginClaim()

	res := l.EndClaim(rec("M0", "ClawSeek", "SEEK"))
	assert.True(t, res.Changed)
	assert.Equal(t, "M0", l.ID())
}

func TestEndClaim_FailureKeepsTarget(t *testing.T) {
	l := New(hunterConfig())
	l.Offer(tok("M1", "ClawSeek", "SEEK"))
	l.BeginClaim()

	res := l.EndClaim(nil)
	assert.False(t, res.Changed)
	assert.Equal(t, domain.StatusTentative, l.Status())
	assert.False(t, l.claiming)
}

func TestRestore(t *testing.T) {
	l := New(hunterConfig())
	ok := l.Restore(&domain.OfficialTarget{Token: tok("M1", "ClawSeek", "SEEK"), Stage: domain.StagePersisted})
	require.True(t, ok)
	assert.Equal(t, domain.ProvenanceCache, l.Current().Provenance)
	assert.Equal(t, domain.StatusLocked, l.Status())
}

func TestRestore_RejectsStale(t *testing.T) {
	l := New(hunterConfig())
	assert.False(t, l.Restore(&domain.OfficialTarget{Token: tok("M1", "OldTarget", "OLD")}))
	assert.False(t, l.Restore(nil))
	assert.Nil(t, l.Current())

	pinned := New(Config{Mint: "Pinned"})
	assert.False(t, pinned.Restore(&domain.OfficialTarget{Token: tok("M1", "ClawSeek", "SEEK")}))
	assert.True(t, pinned.Current().Skeleton)
}

func TestOverrideImage_AppliedOnEveryChange(t *testing.T) {
	cfg := hunterConfig()
	cfg.OverrideImage = "/clawseek_logo.jpg"
	l := New(cfg)

	l.Offer(tok("M1", "ClawSeek", "SEEK"))
	assert.Equal(t, "/clawseek_logo.jpg", l.Current().Token.ImageURL)

	l.Patch("M1", func(t domain.Token) domain.Token {
		t.ImageURL = "https://ipfs.io/ipfs/QmOther"
		return t
	})
	assert.Equal(t, "/clawseek_logo.jpg", l.Current().Token.ImageURL)

	r := rec("M2", "ClawSeek", "SEEK")
	r.ImageURI = "ipfs://QmRemote"
	l.RemoteInsert(*r)
	assert.Equal(t, "/clawseek_logo.jpg", l.Current().Token.ImageURL)
}

func TestApplyDeltas(t *testing.T) {
	l := New(hunterConfig())
	assert.False(t, l.ApplyDeltas(map[string]domain.TradeDelta{"M1": {Mint: "M1"}}, 200))

	l.Offer(tok("M1", "ClawSeek", "SEEK"))
	assert.False(t, l.ApplyDeltas(nil, 200))
	assert.False(t, l.ApplyDeltas(map[string]domain.TradeDelta{"M2": {Mint: "M2", VolumeAdd: 1}}, 200))

	changed := l.ApplyDeltas(map[string]domain.TradeDelta{
		"M1": {Mint: "M1", VolumeAdd: 8, MarketCapSol: 50, HasMarketCap: true},
	}, 200)
	assert.True(t, changed)
	cur := l.Current()
	assert.Equal(t, 10000.0, cur.Token.MarketCap)
	assert.Equal(t, 8.0, cur.Token.Volume24h)
	assert.InDelta(t, 9.836, cur.Token.BondingCurveProgress, 0.001)
}

func TestPatch_OtherIDIgnored(t *testing.T) {
	l := New(hunterConfig())
	l.Offer(tok("M1", "ClawSeek", "SEEK"))
	assert.False(t, l.Patch("M2", func(t domain.Token) domain.Token { return t }))
	assert.False(t, l.Patch("M1", func(t domain.Token) domain.Token { return t }), "identity patch is not a change")
}

func TestFill_PinnedSkeletonBecomesClaimable(t *testing.T) {
	l := New(Config{Mint: "PinnedMint"})

	res := l.Fill("PinnedMint", func(t domain.Token) domain.Token {
		t.Name, t.MarketCap = "Real", 30000
		return t
	})
	assert.True(t, res.Changed)
	assert.True(t, res.Claim)

	cur := l.Current()
	assert.False(t, cur.Skeleton)
	assert.Equal(t, "Real", cur.Token.Name)
	assert.Equal(t, 30000.0, cur.Token.MarketCap)
}

func TestFill_PersistedNeedsNoClaim(t *testing.T) {
	l := New(hunterConfig())
	l.Reconcile(rec("M1", "ClawSeek", "SEEK"))

	res := l.Fill("M1", func(t domain.Token) domain.Token {
		t.MarketCap = 30000
		return t
	})
	assert.True(t, res.Changed)
	assert.False(t, res.Claim)
	assert.Equal(t, Result{}, l.Fill("Other", func(t domain.Token) domain.Token { return t }))
}
