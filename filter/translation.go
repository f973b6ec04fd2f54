package filter

// BuildAvailableLocales reconciles the stored list of available locales
// with the locales currently present on an object's translations. Stored
// order is kept, locales no longer present are dropped and new ones are
// appended in the order they appear.
func BuildAvailableLocales(available, present []string) []string {
	inPresent := make(map[string]bool, len(present))
	for _, l := range present {
		inPresent[l] = true
	}

	out := make([]string, 0, len(present))
	seen := make(map[string]bool, len(present))
	for _, l := range available {
		if inPresent[l] && !seen[l] {
			out = append(out, l)
			seen[l] = true
		}
	}
	for _, l := range present {
		if l != "" && !seen[l] {
			out = append(out, l)
			seen[l] = true
		}
	}
	return out
}
