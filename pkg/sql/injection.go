package sql

import (
	"fmt"
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a bound value that libinjection flags.
// Values are always bound, never interpolated, so a hit is reported as
// suspicious input rather than treated as an exploit.
type InjectionCheckResult struct {
	Name        string // parameter or filter the value came from
	Value       any
	Fingerprint string // libinjection fingerprint, e.g. "s&1c"
}

func (r *InjectionCheckResult) String() string {
	return fmt.Sprintf("%s (fingerprint %s)", r.Name, r.Fingerprint)
}

// CheckValueForInjection runs libinjection over a bound value.
//
// Strings are checked directly; []string and []any (IN-list filter values)
// are checked element by element and the first hit is returned. Numbers,
// booleans and temporal values cannot carry SQL and return nil.
//
// Example:
//
//	CheckValueForInjection("lastName", "Smith")                // nil
//	CheckValueForInjection("search", "'; DROP TABLE users--") // Fingerprint "s;Tn" or similar
func CheckValueForInjection(name string, value any) *InjectionCheckResult {
	switch v := value.(type) {
	case string:
		if isSQLi, fingerprint := libinjection.IsSQLi(v); isSQLi {
			return &InjectionCheckResult{Name: name, Value: v, Fingerprint: string(fingerprint)}
		}
	case []string:
		for _, s := range v {
			if r := CheckValueForInjection(name, s); r != nil {
				return r
			}
		}
	case []any:
		for _, elem := range v {
			if r := CheckValueForInjection(name, elem); r != nil {
				return r
			}
		}
	}
	return nil
}

// CheckAllValues checks every value in the map and returns the hits sorted
// by name, so repeated checks of the same input report in the same order.
func CheckAllValues(values map[string]any) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	for name, value := range values {
		if r := CheckValueForInjection(name, value); r != nil {
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}
