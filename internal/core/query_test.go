package core

import (
	"errors"
	"testing"
)

func TestBuildQueryPlan(t *testing.T) {
	tests := []struct {
		name    string
		params  QueryParams
		want    QueryPlan
		wantErr bool
	}{
		{"empty", QueryParams{}, QueryPlan{Kind: PlanAll}, false},
		{"name wins", QueryParams{Name: " Chad ", Region: "Africa"}, QueryPlan{Kind: PlanByName, Value: "Chad"}, false},
		{"currency over region", QueryParams{CurrencyCode: "XAF", Region: "Africa", Sort: "gdp_desc"}, QueryPlan{Kind: PlanByCurrency, Value: "XAF"}, false},
		{"region with sort", QueryParams{Region: "Africa", Sort: "gdp_asc"}, QueryPlan{Kind: PlanByRegion, Value: "Africa", Sort: SortGDPAsc}, false},
		{"region bad sort", QueryParams{Region: "Africa", Sort: "banana"}, QueryPlan{}, true},
		{"all bad sort", QueryParams{Sort: "banana"}, QueryPlan{}, true},
		{"all valid sort dropped", QueryParams{Sort: "gdp_desc"}, QueryPlan{Kind: PlanAll}, false},
		{"blank values are unset", QueryParams{Name: "  ", CurrencyCode: " "}, QueryPlan{Kind: PlanAll}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildQueryPlan(tt.params)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidParameter) {
					t.Fatalf("BuildQueryPlan() error = %v, want ErrInvalidParameter", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildQueryPlan() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildQueryPlan() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPlanKindString(t *testing.T) {
	for kind, want := range map[PlanKind]string{
		PlanAll:        "all",
		PlanByName:     "name",
		PlanByCurrency: "currency_code",
		PlanByRegion:   "region",
	} {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
