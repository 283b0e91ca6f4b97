package merge

import "strings"

// MergeMarker is the sentinel written between an existing memo and a memo folded in by a merge.
const MergeMarker = "-----START OF MERGED MEMO-----"

const mergeSeparator = "\n" + MergeMarker + "\n"

// Reconciliation is the outcome of comparing an incoming memo with the stored one.
type Reconciliation struct {
	Memo string
	// Warn is set when the memos were concatenated and need a human look.
	Warn bool
}

// Changed reports whether the reconciled memo differs from current.
func (r Reconciliation) Changed(current string) bool {
	return r.Memo != current
}

// ReconcileMemo decides the memo of a record that exists on both sides of a merge.
// A memo that already carries MergeMarker is never appended to again, so repeated imports of
// the same backup settle after the first concatenation.
func ReconcileMemo(incoming, current string) Reconciliation {
	switch {
	case incoming == "":
		return Reconciliation{Memo: current}
	case incoming == current:
		return Reconciliation{Memo: current}
	case current == "":
		return Reconciliation{Memo: incoming}
	case strings.Contains(current, MergeMarker):
		return Reconciliation{Memo: current}
	default:
		return Reconciliation{Memo: current + mergeSeparator + incoming, Warn: true}
	}
}
