// Package timewindow converts user input into the check-history window sent
// to getAllCheckResults.
//
// The dashboard has shipped two slider scales for the same window: a linear
// one in seconds and an exponential one. Both are provided; neither is
// treated as canonical.
package timewindow

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	MinSeconds     = 300
	MaxSeconds     = 172800
	DefaultSeconds = MaxSeconds

	MinCount     = 2
	MaxCount     = 7
	DefaultCount = MaxCount
)

// Linear clamps a window given in seconds.
func Linear(seconds int) int {
	return clamp(seconds, MinSeconds, MaxSeconds)
}

// Exponential maps a slider position in [0, 1] onto the window so that equal
// slider steps multiply the window by the same factor.
func Exponential(position float64) int {
	if math.IsNaN(position) || position <= 0 {
		return MinSeconds
	}
	if position >= 1 {
		return MaxSeconds
	}
	v := float64(MinSeconds) * math.Pow(float64(MaxSeconds)/float64(MinSeconds), position)
	return Linear(int(math.Round(v)))
}

// Position is the inverse of Exponential.
func Position(seconds int) float64 {
	seconds = Linear(seconds)
	return math.Log(float64(seconds)/MinSeconds) / math.Log(float64(MaxSeconds)/MinSeconds)
}

// Count clamps the number of intervals the window is split into.
func Count(n int) int {
	return clamp(n, MinCount, MaxCount)
}

// Parse reads a window as bare seconds ("300") or a Go duration ("6m0s",
// "48h") and clamps it.
func Parse(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSeconds, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative window %q", s)
		}
		return Linear(n), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("window %q: want seconds or a duration like 48h", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative window %q", s)
	}
	return Linear(int(d / time.Second)), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
