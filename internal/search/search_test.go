package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dbd-scraper/internal/dbd"
	"github.com/sells-group/dbd-scraper/internal/model"
	"github.com/sells-group/dbd-scraper/internal/session"
	"github.com/sells-group/dbd-scraper/internal/session/sessiontest"
)

var site = dbd.NewSite("http://dbd.test")

func testOptions() Options {
	return Options{MaxPages: 20, SimilarityThreshold: 0.95}
}

type pages = map[string][]*sessiontest.Page

func resolve(t *testing.T, opts Options, p pages, name string) (model.Match, bool, *sessiontest.Fake) {
	t.Helper()
	fake := sessiontest.New(p)
	m, ok, err := NewOrchestrator(site, opts).Resolve(context.Background(), fake, model.Company{Name: name})
	require.NoError(t, err)
	return m, ok, fake
}

func TestResolve_DirectRedirect(t *testing.T) {
	profile := site.ProfileURL("5", "0105561000001")
	p := pages{
		site.SearchURL("เอบีซี จำกัด"): {{
			Location: profile,
			Text:     "ข้อมูลนิติบุคคล\nชื่อนิติบุคคล : บริษัท เอบีซี จำกัด\nเลขทะเบียนนิติบุคคล : 0105561000001",
		}},
	}

	m, ok, fake := resolve(t, testOptions(), p, "บริษัท เอบีซี จำกัด")
	require.True(t, ok)
	assert.Equal(t, "0105561000001", m.RegNumber)
	assert.Equal(t, "บริษัท เอบีซี จำกัด", m.DisplayName)
	assert.Equal(t, model.MatchExact, m.Kind)
	assert.Equal(t, model.StrategyDirect, m.Strategy)
	assert.Len(t, fake.Navigations(), 1)
}

func TestResolve_DirectRedirectMismatchAccepted(t *testing.T) {
	p := pages{
		site.SearchURL("เอบีซี จำกัด"): {{
			Location: site.ProfileURL("5", "0105561000007"),
			Text:     "ชื่อนิติบุคคล : บริษัท อื่นๆ จำกัด\nเลขทะเบียนนิติบุคคล : 0105561000007",
		}},
	}

	m, ok, _ := resolve(t, testOptions(), p, "บริษัท เอบีซี จำกัด")
	require.True(t, ok)
	assert.Equal(t, "0105561000007", m.RegNumber)
	assert.Equal(t, model.StrategyDirect, m.Strategy)
}

func TestResolve_ExactMatchOnSecondPageOfFourthTerm(t *testing.T) {
	base := site.SearchURL("เอบีซี")
	p := pages{
		site.SearchURL("เอบีซี จำกัด (มหาชน)"): {{Text: dbd.NoDataMarker}},
		site.SearchURL("เอบีซี จำกัด(มหาชน)"):  {{Text: dbd.NoDataMarker}},
		site.SearchURL("เอบีซี จำกัด"):         {{Text: "1 0105561000009 บริษัท เอบีซี เทรดดิ้ง จำกัด"}},
		base:                         {{Text: "หน้า 1 / 3\n1 0105561000009 บริษัท เอบีซี เทรดดิ้ง จำกัด"}},
		sessiontest.PageURL(base, 2): {{Text: "หน้า 2 / 3\n2 0107561000001 บริษัท เอบีซี จำกัด (มหาชน) ยังดำเนินกิจการอยู่"}},
		sessiontest.PageURL(base, 3): {{Text: "หน้า 3 / 3\n3 0107561000002 บริษัท เอบีซี จำกัด (มหาชน)"}},
	}

	m, ok, fake := resolve(t, testOptions(), p, "บริษัท เอบีซี จำกัด (มหาชน)")
	require.True(t, ok)
	assert.Equal(t, "0107561000001", m.RegNumber)
	assert.Equal(t, model.MatchExact, m.Kind)
	assert.Equal(t, "4", m.Strategy)
	assert.NotContains(t, fake.Navigations(), sessiontest.PageURL(base, 3))
}

func TestResolve_NoResults(t *testing.T) {
	p := pages{}
	for _, term := range []string{"เอบีซี จำกัด", "เอบีซี"} {
		p[site.SearchURL(term)] = []*sessiontest.Page{{Text: "ผลการค้นหา\n" + dbd.NoDataMarker}}
	}

	_, ok, fake := resolve(t, testOptions(), p, "บริษัท เอบีซี จำกัด")
	assert.False(t, ok)
	// Two cascade terms and the fallback query.
	assert.Equal(t, []string{
		site.SearchURL("เอบีซี จำกัด"),
		site.SearchURL("เอบีซี"),
		site.SearchURL("เอบีซี"),
	}, fake.Navigations())
}

func TestResolve_MaxPagesCap(t *testing.T) {
	base := site.SearchURL("เอบีซี จำกัด")
	p := pages{
		base:                         {{Text: "หน้า 1 / 10\n1 0105561000009 บริษัท เอบีซี เทรดดิ้ง จำกัด"}},
		sessiontest.PageURL(base, 2): {{Text: "2 0105561000008 บริษัท เอบีซี ฟู้ด จำกัด"}},
		sessiontest.PageURL(base, 3): {{Text: "3 0105561000001 บริษัท เอบีซี จำกัด"}},
	}
	opts := testOptions()
	opts.MaxPages = 2

	_, ok, fake := resolve(t, opts, p, "บริษัท เอบีซี จำกัด")
	assert.False(t, ok)
	assert.NotContains(t, fake.Navigations(), sessiontest.PageURL(base, 3))
	assert.Contains(t, fake.Navigations(), sessiontest.PageURL(base, 2))
}

func TestResolve_LateRedirect(t *testing.T) {
	profile := site.ProfileURL("5", "0105561000001")
	p := pages{
		site.SearchURL("เอบีซี จำกัด"): {{Text: "กำลังค้นหา", LateLocation: profile}},
		profile: {{Text: "ชื่อนิติบุคคล : บริษัท เอบีซี จำกัด\nเลขทะเบียนนิติบุคคล : 0105561000001"}},
	}

	m, ok, _ := resolve(t, testOptions(), p, "บริษัท เอบีซี จำกัด")
	require.True(t, ok)
	assert.Equal(t, "0105561000001", m.RegNumber)
	assert.Equal(t, model.StrategyDirect, m.Strategy)
}

func TestResolve_ListHitBeforeLateRedirect(t *testing.T) {
	profile := site.ProfileURL("5", "0105561000009")
	p := pages{
		site.SearchURL("เอบีซี จำกัด"): {{
			Text:         "1 0105561000001 บริษัท เอบีซี จำกัด ยังดำเนินกิจการอยู่",
			LateLocation: profile,
		}},
		profile: {{Text: "ชื่อนิติบุคคล : บริษัท เอบีซี จำกัด\nเลขทะเบียนนิติบุคคล : 0105561000009"}},
	}

	m, ok, _ := resolve(t, testOptions(), p, "บริษัท เอบีซี จำกัด")
	require.True(t, ok)
	assert.Equal(t, "0105561000001", m.RegNumber)
	assert.Equal(t, model.StrategyForPosition(1), m.Strategy)
	assert.Equal(t, model.MatchExact, m.Kind)
}

func fallbackPages() pages {
	return pages{
		site.SearchURL("เอ"): {{Text: "1 0105561000005 บริษัท เอ บี ซี ดี จำกัด\n2 0105561000006 บริษัท เอ จี จำกัด"}},
	}
}

func TestResolve_FallbackAccepted(t *testing.T) {
	opts := testOptions()
	opts.SimilarityThreshold = 0.7

	m, ok, _ := resolve(t, opts, fallbackPages(), "บริษัท เอ บี ซี จำกัด")
	require.True(t, ok)
	assert.Equal(t, "0105561000005", m.RegNumber)
	assert.Equal(t, model.MatchSimilarity, m.Kind)
	assert.Equal(t, model.StrategyFallback, m.Strategy)
	assert.InDelta(t, 0.75, m.Score, 1e-9)
	assert.Equal(t, "similarity_75%", m.TypeLabel())
}

func TestResolve_FallbackBelowThreshold(t *testing.T) {
	_, ok, _ := resolve(t, testOptions(), fallbackPages(), "บริษัท เอ บี ซี จำกัด")
	assert.False(t, ok)
}

func TestResolve_SessionFaultPropagates(t *testing.T) {
	fake := sessiontest.New(pages{})
	fake.FailOn[site.SearchURL("เอบีซี จำกัด")] = session.Fault(errors.New("browser crashed"))

	_, _, err := NewOrchestrator(site, testOptions()).Resolve(context.Background(), fake, model.Company{Name: "บริษัท เอบีซี จำกัด"})
	require.Error(t, err)
	assert.True(t, session.IsFault(err))
}

func TestResolve_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := testOptions()
	opts.PageLoadWait = 1

	_, _, err := NewOrchestrator(site, opts).Resolve(ctx, sessiontest.New(pages{}), model.Company{Name: "บริษัท เอบีซี จำกัด"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallbackTerm(t *testing.T) {
	assert.Equal(t, "เอ", fallbackTerm("บริษัท เอ บี จำกัด", nil))
	assert.Equal(t, "x", fallbackTerm("บริษัท จำกัด", []model.SearchTerm{{Text: "y", Position: 1}, {Text: "x", Position: 2}}))
	assert.Equal(t, "", fallbackTerm("", nil))
}
