package search

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dbd-scraper/internal/dbd"
	"github.com/sells-group/dbd-scraper/internal/match"
	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/resilience"
	"github.com/sells-group/dbd-scraper/internal/session"
)

// state is a step of the per-term protocol.
type state int

const (
	stateInit state = iota
	stateDirectRedirect
	stateResultsList
	stateNoResults
)

// outcome is how a term ended.
type outcome int

const (
	outcomeExhausted outcome = iota
	outcomeMatched
	outcomeRedirected
)

func (o outcome) String() string {
	switch o {
	case outcomeMatched:
		return "matched"
	case outcomeRedirected:
		return "redirected"
	default:
		return "exhausted"
	}
}

type termResult struct {
	outcome outcome
	match   model.Match
}

var exhausted = termResult{outcome: outcomeExhausted}

// runTerm drives one search term to a terminal outcome:
//
//	Init -> DirectRedirect  (registry jumped to a profile)
//	Init -> NoResults       (no-data marker)
//	Init -> ResultsList -> DirectRedirect (late redirect while paging)
func (o *Orchestrator) runTerm(ctx context.Context, s session.Session, target string, term model.SearchTerm, log *zap.Logger) (termResult, error) {
	log = log.With(zap.String("term", term.Text), zap.Int("position", term.Position))

	var text string
	st := stateInit
	for {
		switch st {
		case stateInit:
			if err := o.settle(ctx, s, o.site.SearchURL(term.Text)); err != nil {
				return exhausted, err
			}
			if dbd.IsProfileURL(s.CurrentLocation()) {
				st = stateDirectRedirect
				continue
			}
			var err error
			if text, err = s.TextSnapshot(ctx); err != nil {
				return exhausted, eris.Wrap(err, "search: read results")
			}
			if dbd.HasNoData(text) {
				st = stateNoResults
			} else {
				st = stateResultsList
			}

		case stateDirectRedirect:
			return o.directRedirect(ctx, s, target, log)

		case stateNoResults:
			log.Debug("no results")
			return exhausted, nil

		case stateResultsList:
			res, redirected, err := o.scanResults(ctx, s, target, term, text, log)
			if err != nil || !redirected {
				return res, err
			}
			st = stateDirectRedirect
		}
	}
}

// scanResults pages through a results list looking for the first exact
// core-name match. redirected is true when the session moved to a profile
// page mid-scan.
func (o *Orchestrator) scanResults(ctx context.Context, s session.Session, target string, term model.SearchTerm, text string, log *zap.Logger) (termResult, bool, error) {
	pages := dbd.PageCount(text)
	if pages > o.opts.MaxPages {
		pages = o.opts.MaxPages
	}

	for page := 1; page <= pages; page++ {
		if page > 1 {
			ok, err := s.SubmitPageNumber(ctx, page)
			if err != nil {
				return exhausted, false, eris.Wrapf(err, "search: turn to page %d", page)
			}
			if !ok {
				break
			}
			if err := resilience.Sleep(ctx, o.opts.PageTurnWait); err != nil {
				return exhausted, false, err
			}
			if text, err = s.TextSnapshot(ctx); err != nil {
				return exhausted, false, eris.Wrap(err, "search: read results")
			}
		}

		candidates := dbd.ResultLines(text)
		log.Debug("scanning results page", zap.Int("page", page), zap.Int("pages", pages), zap.Int("candidates", len(candidates)))

		for _, c := range candidates {
			if match.IsExact(target, c.Text) {
				return termResult{
					outcome: outcomeMatched,
					match: model.Match{
						RegNumber:   c.RegNumber,
						DisplayName: c.Text,
						Kind:        model.MatchExact,
						Strategy:    model.StrategyForPosition(term.Position),
					},
				}, false, nil
			}
		}

		// The snapshot is scanned first; a redirect that landed after it
		// was read only counts when the page held no exact hit.
		if dbd.IsProfileURL(s.CurrentLocation()) {
			return exhausted, true, nil
		}
	}
	return exhausted, false, nil
}

// directRedirect reads the profile the registry landed on. A core-name
// mismatch is logged but still accepted.
func (o *Orchestrator) directRedirect(ctx context.Context, s session.Session, target string, log *zap.Logger) (termResult, error) {
	text, err := s.TextSnapshot(ctx)
	if err != nil {
		return exhausted, eris.Wrap(err, "search: read profile")
	}
	reg, name, ok := dbd.ExtractDetail(text)
	if !ok {
		log.Warn("redirected to a profile without a registration number", zap.String("location", s.CurrentLocation()))
		return exhausted, nil
	}
	if !match.IsExact(target, name) {
		log.Warn("accepting direct redirect with a different core name",
			zap.String("reg_number", reg),
			zap.String("display_name", name),
		)
	}
	return termResult{
		outcome: outcomeRedirected,
		match: model.Match{
			RegNumber:   reg,
			DisplayName: name,
			Kind:        model.MatchExact,
			Strategy:    model.StrategyDirect,
		},
	}, nil
}
