package matching

import (
	"context"

	"roomies/backend/internal/analysis"
	"roomies/backend/internal/models"

	"golang.org/x/sync/errgroup"
)

// RankedCandidates scores every active profile against identity's and returns
// them best first. The requester, profiles with a confirmed or declined
// relation to the requester, and blocked profiles are left out, as are
// profiles that cannot be scored.
func (s *Service) RankedCandidates(ctx context.Context, identity string) ([]analysis.Ranked, error) {
	subject, err := s.store.GetProfileByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}
	pool, err := s.store.ListActiveProfiles(ctx, identity)
	if err != nil {
		return nil, err
	}
	excluded, err := s.excludedFor(ctx, identity)
	if err != nil {
		return nil, err
	}

	candidates := pool[:0]
	for _, p := range pool {
		if _, skip := excluded[p.IdentityID]; !skip {
			candidates = append(candidates, p)
		}
	}

	scored := make([]analysis.Ranked, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ScoreWorkers)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := analysis.Score(subject, c)
			scored[i] = analysis.Ranked{Profile: c, Score: r.Score, Breakdown: r.Breakdown}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := scored[:0]
	for _, r := range scored {
		if len(r.Breakdown) > 0 {
			ranked = append(ranked, r)
		}
	}
	analysis.SortRanked(ranked)
	if s.cfg.CandidateLimit > 0 && len(ranked) > s.cfg.CandidateLimit {
		ranked = ranked[:s.cfg.CandidateLimit]
	}
	return ranked, nil
}

func (s *Service) excludedFor(ctx context.Context, identity string) (map[string]struct{}, error) {
	excluded, err := s.blocks.Counterparts(ctx, identity)
	if err != nil {
		return nil, err
	}
	final, err := s.store.ListMatchesForIdentity(ctx, identity, models.MatchConfirmed, models.MatchDeclined)
	if err != nil {
		return nil, err
	}
	for _, rec := range final {
		excluded[rec.Other(identity)] = struct{}{}
	}
	return excluded, nil
}

// Compatibility scores identity against target.
func (s *Service) Compatibility(ctx context.Context, identity, target string) (analysis.Result, error) {
	a, err := s.store.GetProfileByIdentity(ctx, identity)
	if err != nil {
		return analysis.Result{}, err
	}
	b, err := s.store.GetProfileByIdentity(ctx, target)
	if err != nil {
		return analysis.Result{}, err
	}
	return analysis.Score(a, b), nil
}
