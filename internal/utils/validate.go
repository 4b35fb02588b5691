package utils

import "strings"

// MissingFields returns the names of required fields whose values are empty
// after trimming, in the order given. Handlers use the result to build a 400
// response that lists every missing field at once.
func MissingFields(required []string, values map[string]string) []string {
	var missing []string
	for _, name := range required {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
