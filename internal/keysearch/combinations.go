package keysearch

// Combinations returns every non-empty subset of fields, smallest first.
// Subsets of the same size are in lexicographic order of field position, so
// for [a b c] the result is a, b, c, ab, ac, bc, abc. The result always has
// 2^n - 1 entries.
func Combinations(fields []string) [][]string {
	n := len(fields)
	if n == 0 {
		return nil
	}
	out := make([][]string, 0, (1<<n)-1)
	idx := make([]int, n)
	for k := 1; k <= n; k++ {
		for i := 0; i < k; i++ {
			idx[i] = i
		}
		for {
			subset := make([]string, k)
			for i := 0; i < k; i++ {
				subset[i] = fields[idx[i]]
			}
			out = append(out, subset)

			// advance to the next k-combination
			i := k - 1
			for i >= 0 && idx[i] == n-k+i {
				i--
			}
			if i < 0 {
				break
			}
			idx[i]++
			for j := i + 1; j < k; j++ {
				idx[j] = idx[j-1] + 1
			}
		}
	}
	return out
}
