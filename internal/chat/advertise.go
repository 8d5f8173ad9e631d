package chat

import "unicode/utf8"

const (
	adStructHeader = 2  // length + AD type
	uuid128Size    = 16 // complete list of 128-bit service UUIDs
	uuid16Size     = 2
)

// FitAdvertisedName truncates name so that the local-name AD structure and
// the service UUID list fit in ceiling bytes. Truncation happens on a rune
// boundary. An empty string is returned when nothing fits.
func FitAdvertisedName(name string, services []string, ceiling int) string {
	budget := ceiling
	if len(services) > 0 {
		budget -= adStructHeader
		for _, s := range services {
			budget -= uuidSize(s)
		}
	}
	budget -= adStructHeader

	if budget <= 0 {
		return ""
	}
	if len(name) <= budget {
		return name
	}

	cut := budget
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

func uuidSize(u string) int {
	n := 0
	for i := 0; i < len(u); i++ {
		if u[i] != '-' {
			n++
		}
	}
	if n <= 4 {
		return uuid16Size
	}
	return uuid128Size
}
