package labelset

// Overlap counts labels present in both sets. It walks the smaller set and
// probes the larger one's index, so it is symmetric and O(min(|a|, |b|)).
func Overlap(a, b LabelSet) int {
	small, large := a, b
	if small.Len() > large.Len() {
		small, large = large, small
	}

	count := 0
	for _, l := range small.labels {
		if large.Contains(l) {
			count++
		}
	}
	return count
}
