// internal/campaign/spintax.go
package campaign

import (
	"math/rand"
	"regexp"
	"strings"
)

var (
	namePlaceholder = regexp.MustCompile(`(?i)\{nom\}`)
	spinGroup       = regexp.MustCompile(`\{([^{}]+)\}`)
)

// ApplySpintax substitutes {nom} with name ("Client" when empty), then picks one
// alternative from every {a|b|c} group. A nil rng uses the global source.
func ApplySpintax(template, name string, rng *rand.Rand) string {
	if name == "" {
		name = "Client"
	}
	out := namePlaceholder.ReplaceAllLiteralString(template, name)
	return spinGroup.ReplaceAllStringFunc(out, func(group string) string {
		choices := strings.Split(group[1:len(group)-1], "|")
		if rng == nil {
			return choices[rand.Intn(len(choices))]
		}
		return choices[rng.Intn(len(choices))]
	})
}
