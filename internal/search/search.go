// Package search resolves a company name to a registry entry by walking a
// cascade of search terms over the registry's paginated results.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/dbd"
	"github.com/sells-group/dbd-scraper/internal/match"
	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/names"
	"github.com/sells-group/dbd-scraper/internal/resilience"
	"github.com/sells-group/dbd-scraper/internal/session"
)

// Options tunes the search. Waits are minimum settle times after a
// navigation or page turn.
type Options struct {
	MaxPages            int
	SimilarityThreshold float64
	PageLoadWait        time.Duration
	PageTurnWait        time.Duration
}

// DefaultOptions mirrors the default configuration.
func DefaultOptions() Options {
	return Options{
		MaxPages:            20,
		SimilarityThreshold: match.DefaultThreshold,
		PageLoadWait:        10 * time.Second,
		PageTurnWait:        3 * time.Second,
	}
}

// Orchestrator runs the search cascade for one company at a time. It holds
// no per-company state and may be shared by workers; the session may not.
type Orchestrator struct {
	site dbd.Site
	opts Options
	eval match.Evaluator
	log  *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(site dbd.Site, opts Options) *Orchestrator {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	return &Orchestrator{
		site: site,
		opts: opts,
		eval: match.NewEvaluator(opts.SimilarityThreshold),
		log:  zap.L().With(zap.String("component", "search")),
	}
}

// Resolve searches for company. It returns ok=false when neither the
// cascade nor the fallback round produced an accepted match. Errors are
// session or context failures only.
func (o *Orchestrator) Resolve(ctx context.Context, s session.Session, company model.Company) (model.Match, bool, error) {
	log := o.log.With(zap.String("company", company.Name))
	terms := names.SearchTerms(company.Name)

	for _, term := range terms {
		res, err := o.runTerm(ctx, s, company.Name, term, log)
		if err != nil {
			return model.Match{}, false, err
		}
		if res.outcome != outcomeExhausted {
			log.Info("company matched",
				zap.String("reg_number", res.match.RegNumber),
				zap.String("strategy", res.match.Strategy),
				zap.Stringer("outcome", res.outcome),
			)
			return res.match, true, nil
		}
	}

	return o.fallback(ctx, s, company.Name, terms, log)
}

// settle navigates and waits for the page to settle.
func (o *Orchestrator) settle(ctx context.Context, s session.Session, url string) error {
	if err := s.Navigate(ctx, url); err != nil {
		return eris.Wrapf(err, "search: navigate %s", url)
	}
	return resilience.Sleep(ctx, o.opts.PageLoadWait)
}

// fallbackTerm is the first token of the core name, or the last cascade
// term when the core name is empty.
func fallbackTerm(target string, terms []model.SearchTerm) string {
	if tokens := strings.Fields(names.CoreName(target)); len(tokens) > 0 {
		return tokens[0]
	}
	if len(terms) > 0 {
		return terms[len(terms)-1].Text
	}
	return ""
}

// fallback runs one broadened query and accepts the most similar candidate
// on its first page if it clears the threshold.
func (o *Orchestrator) fallback(ctx context.Context, s session.Session, target string, terms []model.SearchTerm, log *zap.Logger) (model.Match, bool, error) {
	term := fallbackTerm(target, terms)
	if term == "" {
		return model.Match{}, false, nil
	}
	log.Debug("fallback round", zap.String("term", term))

	if err := o.settle(ctx, s, o.site.SearchURL(term)); err != nil {
		return model.Match{}, false, err
	}
	text, err := s.TextSnapshot(ctx)
	if err != nil {
		return model.Match{}, false, eris.Wrap(err, "search: read fallback results")
	}

	var candidates []match.Candidate
	switch {
	case dbd.IsProfileURL(s.CurrentLocation()):
		if reg, name, ok := dbd.ExtractDetail(text); ok {
			candidates = append(candidates, match.Candidate{RegNumber: reg, Text: name})
		}
	case dbd.HasNoData(text):
	default:
		candidates = dbd.ResultLines(text)
	}

	best, ok := o.eval.Best(target, candidates)
	if !ok {
		log.Info("company not found",
			zap.Int("candidates", len(candidates)),
			zap.Float64("best_score", best.Score),
		)
		return model.Match{}, false, nil
	}

	m := model.Match{
		RegNumber:   best.RegNumber,
		DisplayName: best.Text,
		Kind:        model.MatchSimilarity,
		Score:       best.Score,
		Strategy:    model.StrategyFallback,
	}
	log.Info("company matched by similarity",
		zap.String("reg_number", m.RegNumber),
		zap.Float64("score", m.Score),
	)
	return m, true, nil
}
