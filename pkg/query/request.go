package query

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Query-string keys understood by ApplyValues.
const (
	KeySort   = "sort"
	KeyStart  = "_start"
	KeyEnd    = "_end"
	KeyFields = "fields"

	filterPrefix = "filter."
	paramPrefix  = "param."
)

// ApplyValues applies a query string to qc:
//
//	filter.<attr>.op=<OPERATOR>       defaults to EQUALS, or IN when values is set
//	filter.<attr>.value=<v>
//	filter.<attr>.value2=<v>          upper bound for BETWEEN
//	filter.<attr>.values=<a>,<b>      set operand, also accepted repeated
//	sort=<attr>[.asc|.desc],...
//	_start=<n>&_end=<n>               rows [start, end)
//	fields=<attr>,...                 include hidden attributes
//	param.<name>=<v>
//
// Filters are applied in attribute name order. Malformed values are
// reported together; operator and attribute checks are left to Validate.
func ApplyValues(qc *Context, values url.Values) error {
	var errs []error

	filters := make(map[string]*Filter)
	for key, vals := range values {
		switch {
		case strings.HasPrefix(key, paramPrefix):
			name := strings.TrimPrefix(key, paramPrefix)
			if name != "" && len(vals) > 0 {
				qc.Param(name, vals[0])
			}
		case strings.HasPrefix(key, filterPrefix):
			if err := collectFilter(filters, strings.TrimPrefix(key, filterPrefix), vals); err != nil {
				errs = append(errs, err)
			}
		}
	}

	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := filters[name]
		if f.Operator == "" {
			f.Operator = OpEquals
			if len(f.Values) > 0 {
				f.Operator = OpIn
			}
		}
		qc.Where(*f)
	}

	for _, term := range splitList(values[KeySort]) {
		attr, dir, err := parseSortTerm(term)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		qc.OrderBy(attr, dir)
	}

	if fields := splitList(values[KeyFields]); len(fields) > 0 {
		qc.Select(fields...)
	}

	if err := applyWindow(qc, values); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func collectFilter(filters map[string]*Filter, rest string, vals []string) error {
	dot := strings.LastIndex(rest, ".")
	if dot <= 0 {
		return fmt.Errorf("malformed filter key %q", filterPrefix+rest)
	}
	attr, part := rest[:dot], rest[dot+1:]

	f, ok := filters[attr]
	if !ok {
		f = &Filter{Attribute: attr}
		filters[attr] = f
	}
	if len(vals) == 0 {
		return nil
	}

	switch part {
	case "op":
		f.Operator = Operator(vals[0])
	case "value":
		f.Value = vals[0]
	case "value2":
		f.Value2 = vals[0]
	case "values":
		for _, v := range splitList(vals) {
			f.Values = append(f.Values, v)
		}
	default:
		return fmt.Errorf("unknown filter field %q for attribute %q", part, attr)
	}
	return nil
}

func parseSortTerm(term string) (string, Direction, error) {
	if dot := strings.LastIndex(term, "."); dot > 0 {
		if dir, err := ParseDirection(term[dot+1:]); err == nil {
			return term[:dot], dir, nil
		}
	}
	if term == "" {
		return "", "", errors.New("empty sort term")
	}
	return term, Asc, nil
}

func applyWindow(qc *Context, values url.Values) error {
	startText, endText := values.Get(KeyStart), values.Get(KeyEnd)
	if startText == "" && endText == "" {
		return nil
	}

	start := 0
	if startText != "" {
		n, err := strconv.Atoi(startText)
		if err != nil {
			return fmt.Errorf("invalid %s %q", KeyStart, startText)
		}
		start = n
	}
	if endText == "" {
		qc.Limit(start, qc.def.DefaultPageSize)
		return nil
	}
	end, err := strconv.Atoi(endText)
	if err != nil {
		return fmt.Errorf("invalid %s %q", KeyEnd, endText)
	}
	qc.Page(start, end)
	return nil
}

// splitList flattens repeated and comma-separated values, dropping blanks.
func splitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
