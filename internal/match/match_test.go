package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsExact(t *testing.T) {
	assert.True(t, IsExact("บริษัท เอบีซี จำกัด", "1 0105561000001 บริษัท เอบีซี จำกัด"))
	assert.True(t, IsExact("บริษัท เอบีซี จำกัด (มหาชน)", "บริษัท  เอบีซี จำกัด"))
	assert.False(t, IsExact("บริษัท เอบีซี จำกัด", "บริษัท เอบีซี เทรดดิ้ง จำกัด"))
	assert.False(t, IsExact("บริษัท", "บริษัท"))
}

func TestSimilarity_Identity(t *testing.T) {
	for _, n := range []string{"บริษัท เอบีซี จำกัด", "เอ บี ซี", "ห้างหุ้นส่วนจำกัด สมชาย ก่อสร้าง"} {
		assert.Equal(t, 1.0, Similarity(n, n), n)
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"บริษัท เอ บี ซี จำกัด", "บริษัท เอ บี จำกัด"},
		{"เอ บี", "ซี ดี"},
		{"บริษัท เอ จำกัด", "1 0105561000001 บริษัท เอ บี ซี ดี จำกัด"},
	}
	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]))
	}
}

func TestSimilarity_Values(t *testing.T) {
	assert.InDelta(t, 2.0/3.0, Similarity("เอ บี ซี", "เอ บี"), 1e-9)
	assert.Equal(t, 0.0, Similarity("เอ บี", "ซี ดี"))
	assert.Equal(t, 0.0, Similarity("", "เอ"))
	assert.Equal(t, 0.0, Similarity("บริษัท จำกัด", "เอ"))
}

func TestEvaluator_Best(t *testing.T) {
	e := NewEvaluator(0.5)
	cands := []Candidate{
		{RegNumber: "0105561000001", Text: "1 0105561000001 บริษัท เอ บี จำกัด"},
		{RegNumber: "0105561000002", Text: "2 0105561000002 บริษัท เอ บี ซี ดี จำกัด"},
		{RegNumber: "0105561000003", Text: "3 0105561000003 บริษัท เอ บี ซี จำกัด"},
	}

	best, ok := e.Best("บริษัท เอ บี ซี จำกัด", cands)
	assert.True(t, ok)
	assert.Equal(t, "0105561000003", best.RegNumber)
	assert.Equal(t, 1.0, best.Score)
}

func TestEvaluator_Best_TieFirstWins(t *testing.T) {
	e := NewEvaluator(0.5)
	cands := []Candidate{
		{RegNumber: "0105561000001", Text: "บริษัท เอ บี จำกัด"},
		{RegNumber: "0105561000002", Text: "บริษัท เอ ซี จำกัด"},
	}
	best, ok := e.Best("บริษัท เอ บี ซี จำกัด", cands)
	assert.True(t, ok)
	assert.Equal(t, "0105561000001", best.RegNumber)
}

func TestEvaluator_Best_BelowThreshold(t *testing.T) {
	e := NewEvaluator(0)
	assert.Equal(t, DefaultThreshold, e.Threshold)

	best, ok := e.Best("บริษัท เอ บี ซี จำกัด", []Candidate{{RegNumber: "0105561000001", Text: "บริษัท เอ บี จำกัด"}})
	assert.False(t, ok)
	assert.InDelta(t, 2.0/3.0, best.Score, 1e-9)

	_, ok = e.Best("บริษัท เอ จำกัด", nil)
	assert.False(t, ok)
}
