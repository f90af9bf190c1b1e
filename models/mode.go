package models

import "strings"

// RankingMode selects the ranker's weight table.
type RankingMode string

const (
	ModeCheapest RankingMode = "cheapest"
	ModeFastest  RankingMode = "fastest"
	ModeReliable RankingMode = "reliable"
	ModeBalanced RankingMode = "balanced"
)

// Modes lists every ranking mode.
var Modes = []RankingMode{ModeCheapest, ModeFastest, ModeReliable, ModeBalanced}

// ParseMode maps s to a RankingMode, defaulting to balanced.
func ParseMode(s string) RankingMode {
	switch m := RankingMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCheapest, ModeFastest, ModeReliable, ModeBalanced:
		return m
	default:
		return ModeBalanced
	}
}
