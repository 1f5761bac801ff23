package echoapi

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/shule/core"
)

var (
	orderingParam = "ordering"
	limitParam    = "limit"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=name,-createdAt`. Fields are snake_cased and dropped unless allowed.
func (ord *Ordering) Bind(ctx echo.Context, allowed []string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		field = snakeCase(field)
		if !strmangle.SetInclude(field, allowed) {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// snakeCase turns a camelCase query field ("createdAt") into its column name ("created_at").
func snakeCase(field string) string {
	var b strings.Builder
	for i, r := range field {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// bindLimit reads `?limit=`; it returns 0 when absent or invalid.
func bindLimit(ctx echo.Context) int {
	n, err := strconv.Atoi(ctx.QueryParam(limitParam))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
