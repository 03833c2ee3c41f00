package database

import (
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/JonMunkholm/countries/internal/core"
)

const (
	tableCountries = "countries"

	colID              = "id"
	colName            = "name"
	colRegion          = "region"
	colPopulation      = "population"
	colCurrencyCode    = "currency_code"
	colExchangeRate    = "exchange_rate"
	colEstimatedGDP    = "estimated_gdp"
	colFlagURL         = "flag_url"
	colLastRefreshedAt = "last_refreshed_at"

	aliasTotal     = "total"
	aliasLastFresh = "last_refreshed_at"

	dialectPostgres = "postgres"

	// insertChunk keeps one INSERT well under the 65535 bind-parameter limit.
	insertChunk = 500
)

var dialect = goqu.Dialect(dialectPostgres)

var selectColumns = []any{
	colID, colName, colRegion, colPopulation, colCurrencyCode,
	colExchangeRate, colEstimatedGDP, colFlagURL, colLastRefreshedAt,
}

// countryRow mirrors one countries row.
type countryRow struct {
	ID              int64     `db:"id"`
	Name            string    `db:"name"`
	Region          *string   `db:"region"`
	Population      *int64    `db:"population"`
	CurrencyCode    *string   `db:"currency_code"`
	ExchangeRate    *float64  `db:"exchange_rate"`
	EstimatedGDP    *float64  `db:"estimated_gdp"`
	FlagURL         *string   `db:"flag_url"`
	LastRefreshedAt time.Time `db:"last_refreshed_at"`
}

func (r countryRow) toCountry() core.Country {
	return core.Country{
		ID:              r.ID,
		Name:            r.Name,
		Region:          r.Region,
		Population:      r.Population,
		CurrencyCode:    r.CurrencyCode,
		ExchangeRate:    r.ExchangeRate,
		EstimatedGDP:    r.EstimatedGDP,
		FlagURL:         r.FlagURL,
		LastRefreshedAt: r.LastRefreshedAt.UTC(),
	}
}

// nameMatches compares names case-insensitively.
func nameMatches(name string) exp.Expression {
	return goqu.Func("LOWER", goqu.C(colName)).Eq(goqu.Func("LOWER", name))
}

// buildSelectPlan renders the single read described by plan.
func buildSelectPlan(plan core.QueryPlan) (string, []any, error) {
	ds := dialect.From(tableCountries).Select(selectColumns...).Prepared(true)

	switch plan.Kind {
	case core.PlanByName:
		ds = ds.Where(nameMatches(plan.Value))
	case core.PlanByCurrency:
		ds = ds.Where(goqu.C(colCurrencyCode).Eq(plan.Value))
	case core.PlanByRegion:
		ds = ds.Where(goqu.C(colRegion).Eq(plan.Value))
	case core.PlanAll:
	default:
		return "", nil, fmt.Errorf("unknown plan kind %d", plan.Kind)
	}

	switch plan.Sort {
	case core.SortGDPDesc:
		ds = ds.Where(goqu.C(colEstimatedGDP).IsNotNull()).
			Order(goqu.C(colEstimatedGDP).Desc(), goqu.C(colID).Asc())
	case core.SortGDPAsc:
		ds = ds.Where(goqu.C(colEstimatedGDP).IsNotNull()).
			Order(goqu.C(colEstimatedGDP).Asc(), goqu.C(colID).Asc())
	default:
		ds = ds.Order(goqu.C(colID).Asc())
	}

	return ds.ToSQL()
}

func buildSelectByName(name string) (string, []any, error) {
	return dialect.From(tableCountries).
		Select(selectColumns...).
		Where(nameMatches(name)).
		Order(goqu.C(colID).Asc()).
		Limit(1).
		Prepared(true).
		ToSQL()
}

func buildDeleteByName(name string) (string, []any, error) {
	return dialect.Delete(tableCountries).
		Where(nameMatches(name)).
		Prepared(true).
		ToSQL()
}

func buildStatus() (string, []any, error) {
	return dialect.From(tableCountries).
		Select(
			goqu.COUNT(goqu.Star()).As(aliasTotal),
			goqu.MAX(colLastRefreshedAt).As(aliasLastFresh),
		).
		Prepared(true).
		ToSQL()
}

func buildListNames() (string, []any, error) {
	return dialect.From(tableCountries).Select(colName).Prepared(true).ToSQL()
}

// nullable passes absent values as an untyped nil so they render as NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func mutableFields(c core.Country) goqu.Record {
	return goqu.Record{
		colPopulation:      nullable(c.Population),
		colCurrencyCode:    nullable(c.CurrencyCode),
		colExchangeRate:    nullable(c.ExchangeRate),
		colEstimatedGDP:    nullable(c.EstimatedGDP),
		colFlagURL:         nullable(c.FlagURL),
		colLastRefreshedAt: c.LastRefreshedAt,
	}
}

func insertRecord(c core.Country) goqu.Record {
	rec := mutableFields(c)
	rec[colName] = c.Name
	rec[colRegion] = nullable(c.Region)
	return rec
}

func buildInsert(records []core.Country) (string, []any, error) {
	rows := make([]any, len(records))
	for i, c := range records {
		rows[i] = insertRecord(c)
	}
	return dialect.Insert(tableCountries).Rows(rows...).Prepared(true).ToSQL()
}

// buildUpdate revises the mutable fields of the row named c.Name, ignoring
// case. Name and region keep their stored values.
func buildUpdate(c core.Country) (string, []any, error) {
	return dialect.Update(tableCountries).
		Set(mutableFields(c)).
		Where(nameMatches(c.Name)).
		Prepared(true).
		ToSQL()
}
