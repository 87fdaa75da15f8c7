// Package nelson evaluates the eight Nelson control-chart rules over
// time-ordered metric series.
//
// Every rule is an independent scanner over one partition's ordered values
// and the partition's PartitionStats. A point may be flagged by any number
// of rules; results are returned as one ViolationRecord per input point.
package nelson

import (
	"fmt"
)

// Rule identifies one of the eight Nelson rules (1..8)
type Rule int

const (
	RuleOutlier        Rule = iota + 1 // One point beyond 3σ
	RuleShift                          // Nine points on one side of the mean
	RuleTrend                          // Six points steadily increasing or decreasing
	RuleAlternation                    // Fourteen points alternating up and down
	RuleTwoOfThree                     // Two of three beyond 2σ, same side
	RuleFourOfFive                     // Four of five beyond 1σ, same side
	RuleStratification                 // Fifteen points within 1σ
	RuleMixture                        // Eight points beyond 1σ, both sides
)

// RuleCount is the number of Nelson rules
const RuleCount = 8

// Fixed thresholds from the Nelson rule definitions
const (
	outlierSigma = 3.0

	shiftRunLength       = 9
	trendRunLength       = 6
	alternationRunLength = 14

	twoOfThreeWindow = 3
	twoOfThreeCount  = 2
	twoOfThreeSigma  = 2.0

	fourOfFiveWindow = 5
	fourOfFiveCount  = 4
	fourOfFiveSigma  = 1.0

	stratificationRunLength = 15
	stratificationSigma     = 1.0

	mixtureRunLength = 8
	mixtureSigma     = 1.0
)

type ruleInfo struct {
	name        string
	description string
}

var rules = [RuleCount]ruleInfo{
	{"outlier", "One point is more than 3 standard deviations from the mean."},
	{"shift", "Nine (or more) points in a row are on the same side of the mean."},
	{"trend", "Six (or more) points in a row are continually increasing (or decreasing)."},
	{"alternation", "Fourteen (or more) points in a row alternate in direction, increasing then decreasing."},
	{"two_of_three", "Two out of three points in a row are more than 2 standard deviations from the mean in the same direction."},
	{"four_of_five", "Four out of five points in a row are more than 1 standard deviation from the mean in the same direction."},
	{"stratification", "Fifteen points in a row are all within 1 standard deviation of the mean on either side of the mean."},
	{"mixture", "Eight points in a row exist, but none within 1 standard deviation of the mean, and the points are in both directions from the mean."},
}

// AllRules returns the eight rules in id order
func AllRules() []Rule {
	out := make([]Rule, RuleCount)
	for i := range out {
		out[i] = Rule(i + 1)
	}
	return out
}

// ParseRule converts a numeric rule id into a Rule
func ParseRule(id int) (Rule, error) {
	r := Rule(id)
	if !r.Valid() {
		return 0, fmt.Errorf("unknown nelson rule: %d (valid: 1-%d)", id, RuleCount)
	}
	return r, nil
}

// Valid reports whether r is one of the eight rules
func (r Rule) Valid() bool {
	return r >= RuleOutlier && r <= RuleMixture
}

// Name returns a short machine-friendly name (e.g. "trend")
func (r Rule) Name() string {
	if !r.Valid() {
		return "unknown"
	}
	return rules[r-1].name
}

// Description returns the canonical wording of the rule
func (r Rule) Description() string {
	if !r.Valid() {
		return ""
	}
	return rules[r-1].description
}

func (r Rule) String() string {
	return fmt.Sprintf("Rule %d", int(r))
}

// ViolationRecord holds one flag per rule for a single observation.
// Index i holds the flag for Rule(i+1).
type ViolationRecord [RuleCount]bool

// Violates reports whether the observation is flagged by rule r
func (v ViolationRecord) Violates(r Rule) bool {
	if !r.Valid() {
		return false
	}
	return v[r-1]
}

// Any reports whether the observation is flagged by at least one rule
func (v ViolationRecord) Any() bool {
	for _, f := range v {
		if f {
			return true
		}
	}
	return false
}

// Rules returns the rules flagging the observation, in id order
func (v ViolationRecord) Rules() []Rule {
	out := make([]Rule, 0)
	for i, f := range v {
		if f {
			out = append(out, Rule(i+1))
		}
	}
	return out
}

func (v *ViolationRecord) set(r Rule) {
	v[r-1] = true
}

// RuleSummary counts flagged observations per rule.
// Index i holds the count for Rule(i+1).
type RuleSummary [RuleCount]int

// Count returns the number of observations flagged by rule r
func (s RuleSummary) Count(r Rule) int {
	if !r.Valid() {
		return 0
	}
	return s[r-1]
}

// Violated returns the rules with at least one flagged observation
func (s RuleSummary) Violated() []Rule {
	out := make([]Rule, 0)
	for i, c := range s {
		if c > 0 {
			out = append(out, Rule(i+1))
		}
	}
	return out
}

// Summarize counts flags per rule over records
func Summarize(records []ViolationRecord) RuleSummary {
	var s RuleSummary
	for _, rec := range records {
		for i, f := range rec {
			if f {
				s[i]++
			}
		}
	}
	return s
}
