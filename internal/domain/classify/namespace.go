package classify

import "strings"

// InferRootNamespace returns the most frequent prefix of minDepth segments
// among namespaces. Ties go to the prefix seen first. Namespaces shorter than
// minDepth do not vote. Returns "" when nothing votes.
func InferRootNamespace(namespaces []string, minDepth int) string {
	if minDepth <= 0 {
		minDepth = 1
	}
	counts := make(map[string]int)
	var order []string
	for _, ns := range namespaces {
		segs := SplitNamespace(ns)
		if len(segs) < minDepth {
			continue
		}
		sep := "."
		if strings.Contains(ns, "/") {
			sep = "/"
		}
		prefix := strings.Join(segs[:minDepth], sep)
		if counts[prefix] == 0 {
			order = append(order, prefix)
		}
		counts[prefix]++
	}

	best, bestN := "", 0
	for _, p := range order {
		if counts[p] > bestN {
			best, bestN = p, counts[p]
		}
	}
	return best
}

// JoinNamespace appends segments to a namespace using its separator.
func JoinNamespace(ns string, segs ...string) string {
	sep := "."
	if strings.Contains(ns, "/") {
		sep = "/"
	}
	parts := SplitNamespace(ns)
	parts = append(parts, segs...)
	return strings.Join(parts, sep)
}
