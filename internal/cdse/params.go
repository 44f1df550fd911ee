package cdse

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Collection names in the CDSE catalog.
const (
	CollectionSentinel1 = "SENTINEL-1"
	CollectionSentinel2 = "SENTINEL-2"
)

// Query represents an OData product search.
type Query struct {
	Collection  string // e.g. "SENTINEL-1"
	ProductType string // productType string attribute, e.g. "GRD", "S2MSI2A"

	// Spatial filter as WKT in EPSG:4326
	Intersects string

	// Sensing start bounds (inclusive)
	Start *time.Time
	End   *time.Time

	OrderBy string // e.g. "ContentDate/Start asc"
	Top     int    // page size
}

// Filter builds the $filter expression.
func (q *Query) Filter() string {
	var clauses []string

	if q.Intersects != "" {
		clauses = append(clauses, fmt.Sprintf("OData.CSC.Intersects(area=geography'SRID=4326;%s')", q.Intersects))
	}
	if q.Collection != "" {
		clauses = append(clauses, fmt.Sprintf("Collection/Name eq %s", quote(q.Collection)))
	}
	if q.Start != nil {
		clauses = append(clauses, "ContentDate/Start ge "+formatODataTime(q.Start))
	}
	if q.End != nil {
		clauses = append(clauses, "ContentDate/Start le "+formatODataTime(q.End))
	}
	if q.ProductType != "" {
		clauses = append(clauses, "Attributes/OData.CSC.StringAttribute/any(att:att/Name eq 'productType' and "+
			"att/OData.CSC.StringAttribute/Value eq "+quote(q.ProductType)+")")
	}

	return strings.Join(clauses, " and ")
}

// ToURLValues converts the query to OData system query options.
func (q *Query) ToURLValues() url.Values {
	values := url.Values{}

	if f := q.Filter(); f != "" {
		values.Set("$filter", f)
	}
	if q.OrderBy != "" {
		values.Set("$orderby", q.OrderBy)
	}
	if q.Top > 0 {
		values.Set("$top", strconv.Itoa(q.Top))
	}

	return values
}

// quote renders s as an OData string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// formatODataTime formats t the way the catalog expects: millisecond
// precision UTC.
func formatODataTime(t *time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
