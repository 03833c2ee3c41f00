package core

import (
	"fmt"
	"strings"
)

// SortOrder orders region listings by estimated GDP.
type SortOrder string

const (
	SortNone    SortOrder = ""
	SortGDPDesc SortOrder = "gdp_desc"
	SortGDPAsc  SortOrder = "gdp_asc"
)

// ParseSortOrder accepts "", "gdp_desc" and "gdp_asc".
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.TrimSpace(s)) {
	case SortNone:
		return SortNone, nil
	case SortGDPDesc:
		return SortGDPDesc, nil
	case SortGDPAsc:
		return SortGDPAsc, nil
	default:
		return SortNone, invalidParameter("sort must be one of %s, %s", SortGDPDesc, SortGDPAsc)
	}
}

// QueryParams are the raw listing filters. Empty strings mean unset.
type QueryParams struct {
	Name         string
	CurrencyCode string
	Region       string
	Sort         string
}

// PlanKind selects which single filter a listing applies.
type PlanKind int

const (
	PlanAll PlanKind = iota
	PlanByName
	PlanByCurrency
	PlanByRegion
)

func (k PlanKind) String() string {
	switch k {
	case PlanByName:
		return "name"
	case PlanByCurrency:
		return "currency_code"
	case PlanByRegion:
		return "region"
	default:
		return "all"
	}
}

// QueryPlan is one store read.
//
// PlanByName matches case-insensitively. PlanByCurrency and PlanByRegion match
// exactly. A non-empty Sort restricts the read to rows with a known GDP.
type QueryPlan struct {
	Kind  PlanKind
	Value string
	Sort  SortOrder
}

func (p QueryPlan) String() string {
	if p.Sort == SortNone {
		return fmt.Sprintf("%s=%q", p.Kind, p.Value)
	}
	return fmt.Sprintf("%s=%q sort=%s", p.Kind, p.Value, p.Sort)
}

// queryRule is one entry of the filter precedence list. The first rule that
// applies produces the plan; later filters are ignored.
type queryRule struct {
	applies func(QueryParams) bool
	plan    func(QueryParams) (QueryPlan, error)
}

var queryRules = []queryRule{
	{
		applies: func(p QueryParams) bool { return p.Name != "" },
		plan: func(p QueryParams) (QueryPlan, error) {
			return QueryPlan{Kind: PlanByName, Value: p.Name}, nil
		},
	},
	{
		applies: func(p QueryParams) bool { return p.CurrencyCode != "" },
		plan: func(p QueryParams) (QueryPlan, error) {
			return QueryPlan{Kind: PlanByCurrency, Value: p.CurrencyCode}, nil
		},
	},
	{
		applies: func(p QueryParams) bool { return p.Region != "" },
		plan: func(p QueryParams) (QueryPlan, error) {
			sort, err := ParseSortOrder(p.Sort)
			if err != nil {
				return QueryPlan{}, err
			}
			return QueryPlan{Kind: PlanByRegion, Value: p.Region, Sort: sort}, nil
		},
	},
	{
		applies: func(QueryParams) bool { return true },
		plan: func(p QueryParams) (QueryPlan, error) {
			// Sort is validated but not applied without a region.
			if _, err := ParseSortOrder(p.Sort); err != nil {
				return QueryPlan{}, err
			}
			return QueryPlan{Kind: PlanAll}, nil
		},
	},
}

// BuildQueryPlan picks the single read for p: name, then currency_code, then
// region (the only filter that honours sort), then everything.
func BuildQueryPlan(p QueryParams) (QueryPlan, error) {
	p = QueryParams{
		Name:         strings.TrimSpace(p.Name),
		CurrencyCode: strings.TrimSpace(p.CurrencyCode),
		Region:       strings.TrimSpace(p.Region),
		Sort:         strings.TrimSpace(p.Sort),
	}

	for _, r := range queryRules {
		if r.applies(p) {
			return r.plan(p)
		}
	}
	return QueryPlan{Kind: PlanAll}, nil
}
