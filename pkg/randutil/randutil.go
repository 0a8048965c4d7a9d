// Package randutil implements random utilities.
package randutil

import (
	"encoding/hex"
	"math/rand"
)

const ll = "0123456789abcdefghijklmnopqrstuvwxyz"

// String returns a random string with a readable word prefix.
// Useful for run names that humans have to tell apart.
func String(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = ll[rand.Intn(len(ll))]
	}

	pfx := randoms[rand.Intn(len(randoms))]
	s := pfx + string(b)
	if len(s) > n {
		s = s[:n]
	}

	return s
}

func Bytes(n int) []byte {
	return []byte(String(n))
}

// openssl rand -hex 32
func Hex(n int) string {
	return hex.EncodeToString(Bytes(n))
}

var randoms = []string{
	"autumn", "sun", "dream", "cherry", "tree", "frost", "morning",
	"sparkling", "wandering", "snowy", "butterfly", "boldly", "green",
	"river", "breeze", "proud", "floral", "polished", "ancient",
	"delight", "lively", "waterfall", "embark", "flower", "atlas",
	"grass", "haze", "glacial", "mountain", "snowflake", "misty",
	"summer", "icy", "spring", "winter", "twilight", "dawn", "blue",
	"coral", "bird", "galaxy", "wind", "sea", "ocean", "sunrise",
	"tropical", "snow", "lake", "sunset", "pine", "leaf", "glitter",
	"forest", "cloud", "sound", "sky", "surf", "water", "wildflower",
	"wave", "amber", "falling", "star", "otter",
}
