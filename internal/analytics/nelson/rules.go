package nelson

// ruleFunc returns the indices of the values flagged by one rule.
// values are in time order; indices may repeat.
type ruleFunc func(values []float64, stats PartitionStats) []int

// ruleFuncs is indexed by rule id - 1
var ruleFuncs = [RuleCount]ruleFunc{
	outlierRule,
	shiftRule,
	trendRule,
	alternationRule,
	twoOfThreeRule,
	fourOfFiveRule,
	stratificationRule,
	mixtureRule,
}

// Rule 1: a point more than 3σ from the mean
func outlierRule(values []float64, stats PartitionStats) []int {
	var out []int
	for i, v := range values {
		if stats.beyond(v, outlierSigma) != 0 {
			out = append(out, i)
		}
	}
	return out
}

// Rule 2: nine or more points strictly on one side of the mean
func shiftRule(values []float64, stats PartitionStats) []int {
	return pointRuns(len(values), shiftRunLength, func(i int) int {
		return stats.side(values[i])
	}, nil)
}

// Rule 3: six or more points strictly increasing or strictly decreasing
func trendRule(values []float64, _ PartitionStats) []int {
	return stepRuns(values, trendRunLength, func(prev, cur int) bool {
		return cur == prev
	})
}

// Rule 4: fourteen or more points alternating up and down
func alternationRule(values []float64, _ PartitionStats) []int {
	return stepRuns(values, alternationRunLength, func(prev, cur int) bool {
		return cur == -prev
	})
}

// Rule 5: two of three points beyond 2σ on the same side
func twoOfThreeRule(values []float64, stats PartitionStats) []int {
	return windowRuns(values, stats, twoOfThreeWindow, twoOfThreeCount, twoOfThreeSigma)
}

// Rule 6: four of five points beyond 1σ on the same side
func fourOfFiveRule(values []float64, stats PartitionStats) []int {
	return windowRuns(values, stats, fourOfFiveWindow, fourOfFiveCount, fourOfFiveSigma)
}

// Rule 7: fifteen or more points within 1σ of the mean
func stratificationRule(values []float64, stats PartitionStats) []int {
	return pointRuns(len(values), stratificationRunLength, func(i int) int {
		if stats.within(values[i], stratificationSigma) {
			return 1
		}
		return 0
	}, nil)
}

// Rule 8: eight or more points beyond 1σ with both sides represented
func mixtureRule(values []float64, stats PartitionStats) []int {
	sides := make([]int, len(values))
	for i, v := range values {
		sides[i] = stats.beyond(v, mixtureSigma)
	}
	return pointRuns(len(values), mixtureRunLength, func(i int) int {
		if sides[i] != 0 {
			return 1
		}
		return 0
	}, func(start, end int) bool {
		above, below := false, false
		for i := start; i < end; i++ {
			switch sides[i] {
			case 1:
				above = true
			case -1:
				below = true
			}
		}
		return above && below
	})
}

// pointRuns returns every index inside a maximal run of at least minLen
// points. key assigns a point to a run: consecutive points sharing a
// non-zero key form a run, a zero key belongs to none. accept, when set,
// can reject a run of sufficient length; the run is [start, end).
func pointRuns(n, minLen int, key func(i int) int, accept func(start, end int) bool) []int {
	if n < minLen {
		return nil
	}

	var out []int
	start := 0
	for start < n {
		k := key(start)
		if k == 0 {
			start++
			continue
		}

		end := start + 1
		for end < n && key(end) == k {
			end++
		}

		if end-start >= minLen && (accept == nil || accept(start, end)) {
			for i := start; i < end; i++ {
				out = append(out, i)
			}
		}
		start = end
	}
	return out
}

// stepRuns returns every index inside a maximal run of at least minPoints
// points whose consecutive steps satisfy continues. Step j is the sign of
// values[j+1]-values[j]; a zero step never belongs to a run, so equal
// neighbours always break it. A run of s steps covers s+1 points.
func stepRuns(values []float64, minPoints int, continues func(prev, cur int) bool) []int {
	n := len(values)
	if n < minPoints || n < 2 {
		return nil
	}

	steps := make([]int, n-1)
	for j := range steps {
		steps[j] = sign(values[j+1] - values[j])
	}

	var out []int
	j := 0
	for j < len(steps) {
		if steps[j] == 0 {
			j++
			continue
		}

		end := j + 1
		for end < len(steps) && steps[end] != 0 && continues(steps[end-1], steps[end]) {
			end++
		}

		// steps [j, end) cover points [j, end]
		if end-j+1 >= minPoints {
			for i := j; i <= end; i++ {
				out = append(out, i)
			}
		}
		j = end
	}
	return out
}

// windowRuns evaluates every sliding window of the given size and flags,
// within each window holding at least count points beyond k σ on one side,
// exactly those points. Overlapping windows OR their flags.
func windowRuns(values []float64, stats PartitionStats, window, count int, k float64) []int {
	n := len(values)
	if n < window {
		return nil
	}

	sides := make([]int, n)
	for i, v := range values {
		sides[i] = stats.beyond(v, k)
	}

	flagged := make([]bool, n)
	for start := 0; start+window <= n; start++ {
		above, below := 0, 0
		for i := start; i < start+window; i++ {
			switch sides[i] {
			case 1:
				above++
			case -1:
				below++
			}
		}

		for _, side := range [2]int{1, -1} {
			c := above
			if side == -1 {
				c = below
			}
			if c < count {
				continue
			}
			for i := start; i < start+window; i++ {
				if sides[i] == side {
					flagged[i] = true
				}
			}
		}
	}

	var out []int
	for i, f := range flagged {
		if f {
			out = append(out, i)
		}
	}
	return out
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
