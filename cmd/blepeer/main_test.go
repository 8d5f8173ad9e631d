package main

import (
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	// Assertions compare plain text.
	color.NoColor = true
	os.Exit(m.Run())
}

func TestFormatVersion(t *testing.T) {
	cases := map[string]string{
		"1.2.3": "v1.2.3",
		"dev":   "dev",
		"":      "",
	}
	for in, want := range cases {
		assert.Equal(t, want, formatVersion(in), "formatVersion(%q)", in)
	}
}
