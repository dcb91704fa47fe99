// Package wheel builds covering designs: greedy randomized construction with
// optional group quotas, plus exhaustive enumeration under a size cap.
package wheel

import (
	"context"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/okian/wheelsmith/internal/domain/bounds"
	"github.com/okian/wheelsmith/internal/domain/combin"
	"github.com/okian/wheelsmith/internal/domain/dedupe"
	"github.com/okian/wheelsmith/internal/domain/groups"
	"github.com/okian/wheelsmith/internal/domain/model"
	"github.com/okian/wheelsmith/internal/domain/scoring"
	"github.com/okian/wheelsmith/pkg/logger"
)

// Build constructs a wheel for req. Infeasible group configurations are
// rejected before any ticket is drawn. Step and quota ceilings never fail
// the build; the tickets collected so far are returned.
func Build(ctx context.Context, req model.BuildRequest, opts ...Option) (*model.Wheel, error) {
	const op = "wheel.build"
	cfg := newConfig(opts)
	start := time.Now()

	mode := req.Mode
	if mode == "" {
		mode = model.ModeGreedy
	}
	if !mode.Valid() {
		return nil, model.Errorf(op, model.ErrInvalidParameters, "unknown mode %q", mode)
	}
	pool, err := model.NormalizePool(req.Pool)
	if err != nil {
		return nil, err
	}
	n, k, m := len(pool), req.K, req.M
	if err := model.CheckParams(op, n, k, m); err != nil {
		return nil, err
	}
	set, err := groups.ResolveFixed(pool, k, req.Constraints, req.Fixed)
	if err != nil {
		return nil, err
	}
	lb := bounds.LowerBound(n, k, m)

	w := &model.Wheel{Mode: mode, LowerBound: lb.String()}
	switch mode {
	case model.ModeUniverseK, model.ModeUniverseM:
		var tickets []model.Ticket
		if mode == model.ModeUniverseK {
			tickets, err = UniverseK(pool, set)
		} else {
			tickets, err = UniverseM(pool, set, m)
		}
		if err != nil {
			return nil, err
		}
		w.Tickets = tickets
		w.Termination = model.TerminatedEnumerated
		cfg.log.Debug(ctx, "universe enumerated",
			logger.String("mode", string(mode)), logger.Int("tickets", len(tickets)))
		return w, nil
	}

	scorer, err := scoring.New(n, k, m, set.Coverable)
	if err != nil {
		return nil, err
	}
	limit, err := resolveLimit(op, mode, req.Limit, lb, n, k, cfg.maxSteps)
	if err != nil {
		return nil, err
	}
	if limit == 0 && !scorer.Exact() {
		// Without exact bookkeeping coverage can't be observed; stop at the bound.
		limit = clampLimit(lb, n, k, cfg.maxSteps)
	}

	b := newBuilder(pool, set, scorer, NewLehmer(req.Seed), max(req.Effort, minCandidates))
	term := model.TerminatedSteps
	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if limit > 0 && len(b.tickets) >= limit {
			term = model.TerminatedLimit
			break
		}
		if limit == 0 && scorer.Remaining() == 0 {
			term = model.TerminatedCovered
			break
		}
		if steps >= cfg.maxSteps {
			break
		}
		steps++
		if !b.step(ctx, limit == 0) {
			term = model.TerminatedExhausted
			break
		}
	}

	w.Tickets = make([]model.Ticket, len(b.tickets))
	for i, t := range b.tickets {
		w.Tickets[i] = pool.Values(t)
	}
	w.Exact = scorer.Exact()
	w.Steps = steps
	w.Termination = term
	w.Uncovered = scorer.Remaining()

	cfg.log.Debug(ctx, "wheel built",
		logger.String("mode", string(mode)),
		logger.Int("tickets", len(w.Tickets)),
		logger.Int("steps", steps),
		logger.String("termination", string(term)),
		logger.Bool("exact", w.Exact),
		logger.Uint64("uncovered", w.Uncovered),
		logger.Duration("elapsed", time.Since(start)))
	return w, nil
}

// resolveLimit returns the ticket target of a mode; 0 means run to coverage.
func resolveLimit(op string, mode model.Mode, limit int, lb *big.Int, n, k, maxSteps int) (int, error) {
	switch mode {
	case model.ModeScan:
		if limit <= 0 {
			return 0, model.Errorf(op, model.ErrInvalidParameters, "scan mode needs a positive limit, got %d", limit)
		}
		return clampLimit(big.NewInt(int64(limit)), n, k, maxSteps), nil
	case model.ModeLowerBound:
		return clampLimit(lb, n, k, maxSteps), nil
	}
	return 0, nil
}

// clampLimit bounds a ticket target by C(n,k) and by the step ceiling.
func clampLimit(target *big.Int, n, k, maxSteps int) int {
	t := new(big.Int).Set(target)
	if all := combin.Binomial(n, k); t.Cmp(all) > 0 {
		t = all
	}
	if t.Cmp(big.NewInt(int64(maxSteps))) > 0 {
		return maxSteps
	}
	return int(t.Int64())
}

type builder struct {
	pool       model.Pool
	set        *groups.Set
	scorer     scoring.Scorer
	rng        *Lehmer
	seen       dedupe.Deduper
	candidates int
	tickets    [][]int

	perm    []int
	members [][]int
	quota   []int
	in      []bool
}

func newBuilder(pool model.Pool, set *groups.Set, scorer scoring.Scorer, rng *Lehmer, candidates int) *builder {
	b := &builder{
		pool:       pool,
		set:        set,
		scorer:     scorer,
		rng:        rng,
		seen:       dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0)),
		candidates: candidates,
		perm:       make([]int, len(pool)),
		in:         make([]bool, len(pool)),
	}
	for i := range b.perm {
		b.perm[i] = i
	}
	for _, g := range set.Groups() {
		b.members = append(b.members, slices.Clone(g.Members))
	}
	b.quota = make([]int, len(b.members))
	return b
}

// step samples candidates, keeps the best unseen one and accepts it. When
// directed is set and no candidate gains anything, an uncovered target is
// completed into a ticket instead. It returns false when nothing new could
// be drawn.
func (b *builder) step(ctx context.Context, directed bool) bool {
	var best []int
	var bestGain uint64
	for c := 0; c < b.candidates; c++ {
		t, ok := b.draw()
		if !ok || b.seen.Seen(ctx, dedupe.Key(t)) {
			continue
		}
		g := b.scorer.Gain(t)
		if best == nil || g > bestGain {
			best, bestGain = t, g
		}
		if g >= b.scorer.MaxGain() {
			break
		}
	}
	if best == nil {
		if t, ok := b.draw(); ok && !b.seen.Seen(ctx, dedupe.Key(t)) {
			best, bestGain = t, b.scorer.Gain(t)
		}
	}
	if directed && (best == nil || bestGain == 0) {
		if exact, ok := b.scorer.(*scoring.ExactScorer); ok {
			if t, ok := b.complete(exact); ok {
				best = t
			}
		}
	}
	if best == nil {
		return false
	}
	b.seen.SeenAndRecord(ctx, dedupe.Key(best))
	b.scorer.Mark(best)
	b.tickets = append(b.tickets, best)
	return true
}

// draw returns a fresh random ticket of sorted pool indices.
func (b *builder) draw() ([]int, bool) {
	k := b.set.K()
	if !b.set.Constrained() {
		n := len(b.perm)
		for i := 0; i < k; i++ {
			j := i + b.rng.Intn(n-i)
			b.perm[i], b.perm[j] = b.perm[j], b.perm[i]
		}
		t := slices.Clone(b.perm[:k])
		slices.Sort(t)
		return t, true
	}
	if !b.quotas() {
		return nil, false
	}
	t := make([]int, 0, k)
	for g, mem := range b.members {
		q := b.quota[g]
		for i := 0; i < q; i++ {
			j := i + b.rng.Intn(len(mem)-i)
			mem[i], mem[j] = mem[j], mem[i]
		}
		t = append(t, mem[:q]...)
	}
	slices.Sort(t)
	return t, true
}

// quotas fills b.quota with a per-group slot count summing to k: a random
// draw inside each [min,max], then random single-slot nudges toward k.
func (b *builder) quotas() bool {
	gs := b.set.Groups()
	k := b.set.K()
	budget := perturbPerSlot * (k + 1) * len(gs)
	for attempt := 0; attempt < maxQuotaAttempts; attempt++ {
		sum := 0
		for i, g := range gs {
			b.quota[i] = g.Min + b.rng.Intn(g.Max-g.Min+1)
			sum += b.quota[i]
		}
		for tries := 0; sum != k && tries < budget; tries++ {
			i := b.rng.Intn(len(gs))
			switch {
			case sum < k && b.quota[i] < gs[i].Max:
				b.quota[i]++
				sum++
			case sum > k && b.quota[i] > gs[i].Min:
				b.quota[i]--
				sum--
			}
		}
		if sum == k {
			return true
		}
	}
	return false
}

// complete extends an uncovered target into a valid ticket, adding numbers
// in random order and skipping any that would break a quota.
func (b *builder) complete(s *scoring.ExactScorer) ([]int, bool) {
	target, ok := s.Uncovered(uint64(b.rng.Float() * float64(s.Size())))
	if !ok {
		return nil, false
	}
	k := b.set.K()
	clear(b.in)
	t := make([]int, 0, k)
	for _, x := range target {
		t = append(t, x)
		b.in[x] = true
	}
	n := len(b.perm)
	for i := 0; i < n && len(t) < k; i++ {
		j := i + b.rng.Intn(n-i)
		b.perm[i], b.perm[j] = b.perm[j], b.perm[i]
		x := b.perm[i]
		if b.in[x] {
			continue
		}
		t = append(t, x)
		if !b.set.Feasible(t) {
			t = t[:len(t)-1]
			continue
		}
		b.in[x] = true
	}
	if len(t) < k {
		return nil, false
	}
	slices.Sort(t)
	return t, true
}
