// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// IntParam parses an optional integer parameter. Blank input yields def;
// anything else must be a base-10 integer.
//
//	n, _ := utils.IntParam("-1", 0) // -1
//	n, _ = utils.IntParam("", 0)    // 0
//	_, err := utils.IntParam("x", 0) // error
func IntParam(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("not an integer: %q", s)
	}
	return n, nil
}
