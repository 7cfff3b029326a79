package resource

import "strings"

// RiskLevel is the ordinal severity assigned by the compliance engine.
type RiskLevel string

// Risk levels from least to most severe.
const (
	RiskSecure   RiskLevel = "Secure"
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

// RiskLevels lists all levels from most to least severe.
var RiskLevels = []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow, RiskSecure}

var riskRank = map[RiskLevel]int{
	RiskSecure:   0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// Rank returns the ordinal of the level. Unknown levels rank below Secure.
func (l RiskLevel) Rank() int {
	rank, ok := riskRank[l]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether l is one of the known levels.
func (l RiskLevel) Valid() bool {
	_, ok := riskRank[l]
	return ok
}

// Raise returns the more severe of l and other. It never downgrades.
func (l RiskLevel) Raise(other RiskLevel) RiskLevel {
	if other.Rank() > l.Rank() {
		return other
	}
	return l
}

// IsCriticalOrHigh reports whether l counts towards the critical-risk total.
func (l RiskLevel) IsCriticalOrHigh() bool {
	return l == RiskCritical || l == RiskHigh
}

// ParseRiskLevel matches a level case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	for level := range riskRank {
		if strings.EqualFold(string(level), s) {
			return level, true
		}
	}
	return "", false
}
