package query

import (
	"reflect"
	"testing"
)

func TestParse_PlainTerms(t *testing.T) {
	p := Parse("grey sofa")
	if !reflect.DeepEqual(p.Terms, []string{"grey", "sofa"}) {
		t.Errorf("unexpected terms: %v", p.Terms)
	}
	if len(p.Filters) != 0 {
		t.Errorf("expected no filters, got %v", p.Filters)
	}
}

func TestParse_QuotedSpanIsAtomic(t *testing.T) {
	p := Parse(`"modern grey" sofa`)
	if !reflect.DeepEqual(p.Terms, []string{"modern grey", "sofa"}) {
		t.Errorf("unexpected terms: %v", p.Terms)
	}
}

func TestParse_KeyValueFilter(t *testing.T) {
	p := Parse("category:photo sofa")
	if got := p.Filters["category"]; got != "photo" {
		t.Errorf("expected category=photo, got %q", got)
	}
	if !reflect.DeepEqual(p.Terms, []string{"sofa"}) {
		t.Errorf("unexpected terms: %v", p.Terms)
	}
}

func TestParse_FilterKeyLowercased(t *testing.T) {
	p := Parse("Type:image/jpeg")
	if got := p.Filters["type"]; got != "image/jpeg" {
		t.Errorf("expected type=image/jpeg, got %q", got)
	}
}

func TestParse_SplitAtFirstColonOnly(t *testing.T) {
	p := Parse("site:a:b")
	if got := p.Filters["site"]; got != "a:b" {
		t.Errorf("expected site=a:b, got %q", got)
	}
}

func TestParse_QuotedFilterValue(t *testing.T) {
	p := Parse(`category:"floor plan"`)
	if got := p.Filters["category"]; got != "floor plan" {
		t.Errorf("expected quoted value with quotes stripped, got %q", got)
	}
}

func TestParse_ColonInsideQuotesStaysFreeText(t *testing.T) {
	p := Parse(`"before:after"`)
	if len(p.Filters) != 0 {
		t.Errorf("colon inside quotes must not start a filter, got %v", p.Filters)
	}
	if !reflect.DeepEqual(p.Terms, []string{"before:after"}) {
		t.Errorf("unexpected terms: %v", p.Terms)
	}
}

func TestParse_EmptyKeyOrValueStaysFreeText(t *testing.T) {
	p := Parse(":photo category:")
	if len(p.Filters) != 0 {
		t.Errorf("expected no filters, got %v", p.Filters)
	}
	if !reflect.DeepEqual(p.Terms, []string{":photo", "category:"}) {
		t.Errorf("unexpected terms: %v", p.Terms)
	}
}

func TestParse_RepeatedKeyKeepsLast(t *testing.T) {
	p := Parse("category:photo category:render")
	if got := p.Filters["category"]; got != "render" {
		t.Errorf("expected last occurrence to win, got %q", got)
	}
}

func TestParse_UnterminatedQuoteRunsToEnd(t *testing.T) {
	p := Parse(`"grey sofa`)
	if !reflect.DeepEqual(p.Terms, []string{"grey sofa"}) {
		t.Errorf("unexpected terms: %v", p.Terms)
	}
}

func TestParse_WhitespaceOnly(t *testing.T) {
	p := Parse("   \t  ")
	if p.HasTerms() || len(p.Filters) != 0 {
		t.Errorf("expected empty parse, got %+v", p)
	}
}

func TestJoinedTerms(t *testing.T) {
	p := Parse(`grey "sectional sofa" fabric`)
	if got := p.JoinedTerms(); got != "grey sectional sofa fabric" {
		t.Errorf("unexpected joined terms: %q", got)
	}
}
