package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		"Tree ID":     "treeid",
		" tree_id ":   "treeid",
		"Latitude":    "latitude",
		"Common-Name": "commonname",
		"":            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeHeader(in), in)
	}
}
