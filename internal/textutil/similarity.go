package textutil

const (
	winklerBoostThreshold = 0.7
	winklerPrefixScale    = 0.1
	winklerMaxPrefix      = 4
)

// Similarity scores two titles in [0,1] using Jaro-Winkler over their compact
// folded forms. Identical folded titles score 1.
func Similarity(a, b string) float64 {
	ca := CompactTitle(a)
	cb := CompactTitle(b)
	if ca == "" || cb == "" {
		return 0
	}
	if ca == cb {
		return 1
	}
	return JaroWinkler(ca, cb)
}

// JaroWinkler computes the Jaro-Winkler similarity of two strings, comparing
// runes. The common-prefix boost is only applied when the Jaro score reaches 0.7.
func JaroWinkler(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	j := jaro(ra, rb)
	if j < winklerBoostThreshold {
		return j
	}
	prefix := 0
	for prefix < len(ra) && prefix < len(rb) && prefix < winklerMaxPrefix {
		if ra[prefix] != rb[prefix] {
			break
		}
		prefix++
	}
	return j + float64(prefix)*winklerPrefixScale*(1-j)
}

func jaro(a, b []rune) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	window := max(len(a), len(b))/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(a))
	bMatched := make([]bool, len(b))
	matches := 0
	for i := range a {
		lo := max(0, i-window)
		hi := min(len(b), i+window+1)
		for j := lo; j < hi; j++ {
			if bMatched[j] || a[i] != b[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := range a {
		if !aMatched[i] {
			continue
		}
		for !bMatched[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(len(a)) + m/float64(len(b)) + (m-float64(transpositions)/2)/m) / 3
}
