package ai

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	pricePattern   = regexp.MustCompile(`\$([0-9][0-9,]*(?:\.[0-9]+)?)\$`)
	numberRegex    = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)
	unitRegex      = regexp.MustCompile(`^[ \t]*(?:per|/)[ \t]*([a-zA-Z]+)`)
	ErrParseFailed = errors.New("parse_failed")
)

// ParsePrice extracts the suggested price from a model reply. It first tries
// the strict $<number>$ envelope and falls back to the longest number in the
// text (e.g. "2,350 per quintal").
func ParsePrice(text string) (float64, error) {
	val, _, err := ParsePriceWithUnit(text)
	return val, err
}

// ParsePriceWithUnit returns the parsed price and the unit after "per" or "/", if any.
func ParsePriceWithUnit(text string) (float64, string, error) {
	if m := pricePattern.FindStringSubmatch(text); len(m) >= 2 {
		v, err := parseNumber(m[1])
		if err != nil {
			return 0, "", err
		}
		return v, "", nil
	}
	matches := numberRegex.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return 0, "", fmt.Errorf("%w: no price found", ErrParseFailed)
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if (m[1] - m[0]) > (best[1] - best[0]) {
			best = m
		}
	}
	v, err := parseNumber(text[best[0]:best[1]])
	if err != nil {
		return 0, "", err
	}
	unit := ""
	if post := text[best[1]:]; post != "" {
		if u := unitRegex.FindStringSubmatch(post); len(u) >= 2 {
			unit = strings.ToLower(u[1])
		}
	}
	return v, unit, nil
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: price must be positive", ErrParseFailed)
	}
	return v, nil
}
