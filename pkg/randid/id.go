// Package randid provides random ID generation utilities.
package randid

import (
	"math/rand/v2"
	"strconv"
)

// Generate creates a random alphanumeric ID of the specified length.
func Generate(length int) string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = chars[rand.IntN(len(chars))]
	}
	return string(b)
}

// Numbered returns prefix joined with a random number in [0, upper] by a dash,
// e.g. "publish-417". An upper bound below zero is treated as zero.
func Numbered(prefix string, upper int) string {
	if upper < 0 {
		upper = 0
	}
	return prefix + "-" + strconv.Itoa(rand.IntN(upper+1))
}
