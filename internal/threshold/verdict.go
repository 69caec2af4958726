package threshold

import "sort"

// Verdict summarises a set of threshold results.
type Verdict string

const (
	VerdictPass         Verdict = "pass"
	VerdictFail         Verdict = "fail"
	VerdictInconclusive Verdict = "inconclusive"
)

// NewVerdict returns VerdictFail if any threshold failed, VerdictInconclusive
// if none failed but some had no data, and VerdictPass otherwise.
func NewVerdict(results []Result) Verdict {
	missing := false
	for _, r := range results {
		switch r.Status {
		case StatusFail:
			return VerdictFail
		case StatusMissing:
			missing = true
		}
	}
	if missing {
		return VerdictInconclusive
	}
	return VerdictPass
}

// Failed returns the results with StatusFail.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Status == StatusFail {
			out = append(out, r)
		}
	}
	return out
}

func sortedKeys(set map[string][]string) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
