package service

import (
	"sort"
	"strconv"
	"strings"

	"researchflow/internal/core/clinterm"
	"researchflow/internal/core/resource"
	perr "researchflow/internal/platform/errors"
	"researchflow/internal/services/catalog/domain"
)

// predicates translates caller filters into column predicates.
// Filter keys must name declared view fields; anything else is rejected
// up front so a typo never silently matches nothing.
//
// Value prefixes >=, <=, > and < select range comparisons, everything
// else is equality. Text fields match by case-insensitive substring on
// the reduced core term.
func predicates(v domain.ViewSpec, filters map[string]string) ([]string, []any, error) {
	if len(filters) == 0 {
		return nil, nil, nil
	}

	// deterministic clause order regardless of map iteration
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		clauses []string
		args    []any
	)
	for _, k := range keys {
		f, ok := v.Field(k)
		if !ok {
			return nil, nil, perr.InvalidArgf("view %q has no field %q", v.Name, k)
		}
		val := filters[k]

		if f.Text {
			clauses = append(clauses, "positionCaseInsensitive("+f.FilterColumn()+", ?) > 0")
			args = append(args, clinterm.CoreTerm(val))
			continue
		}

		op := "="
		switch {
		case strings.HasPrefix(val, ">="):
			op, val = ">=", val[2:]
		case strings.HasPrefix(val, "<="):
			op, val = "<=", val[2:]
		case strings.HasPrefix(val, ">"):
			op, val = ">", val[1:]
		case strings.HasPrefix(val, "<"):
			op, val = "<", val[1:]
		}
		if f.Ref {
			// the column holds the local id, accept either form
			_, val = resource.SplitRef(val)
		}
		clauses = append(clauses, f.FilterColumn()+" "+op+" ?")
		args = append(args, val)
	}
	return clauses, args, nil
}

// buildSelect renders the single-view query.
// ORDER BY id keeps repeated calls against an unrefreshed table identical.
func buildSelect(v domain.ViewSpec, filters map[string]string, limit int) (string, []any, error) {
	clauses, args, err := predicates(v, filters)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + strings.Join(v.Columns(), ", ") + " FROM " + v.TableName())
	if len(clauses) > 0 {
		sb.WriteString(" WHERE " + strings.Join(clauses, " AND "))
	}
	sb.WriteString(" ORDER BY id")
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	return sb.String(), args, nil
}

// buildJoin renders the multi-view query. Each leg's filters are applied
// inside its own subquery (pushdown) and the legs join on the shared
// local id, so only ids present in every leg survive.
func buildJoin(legs []JoinLeg, limit int) (string, []any, error) {
	if len(legs) < 2 {
		return "", nil, perr.InvalidArgf("join needs at least two views")
	}

	var (
		sb   strings.Builder
		args []any
	)
	for i, leg := range legs {
		clauses, legArgs, err := predicates(leg.View, leg.Filters)
		if err != nil {
			return "", nil, err
		}
		sub := "SELECT DISTINCT id FROM " + leg.View.TableName()
		if len(clauses) > 0 {
			sub += " WHERE " + strings.Join(clauses, " AND ")
		}

		if i == 0 {
			sb.WriteString("SELECT t0.id FROM (" + sub + ") AS t0")
		} else {
			alias := "t" + strconv.Itoa(i)
			sb.WriteString(" INNER JOIN (" + sub + ") AS " + alias + " ON t0.id = " + alias + ".id")
		}
		args = append(args, legArgs...)
	}
	sb.WriteString(" ORDER BY t0.id")
	if limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	return sb.String(), args, nil
}
