// Package merge folds an incoming set of activities and records (an anonymous identity's data or
// an imported backup) into the current owner's namespace without silently losing data.
package merge

import "strconv"

// UniqueName returns candidate unchanged when it is free, otherwise the first of
// candidate(1), candidate(2), ... not present in existing.
//
// Callers resolving several names in one batch must add each returned name to existing
// before resolving the next one.
func UniqueName(candidate string, existing map[string]struct{}) string {
	if _, taken := existing[candidate]; !taken {
		return candidate
	}
	for n := 1; ; n++ {
		name := candidate + "(" + strconv.Itoa(n) + ")"
		if _, taken := existing[name]; !taken {
			return name
		}
	}
}

func nameSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
