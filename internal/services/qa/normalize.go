package qa

import (
	"fmt"
	"regexp"
	"strings"
)

// Normalizer canonicalizes a question before it is used as a lookup key.
// The exact same transformation runs on the store and lookup paths; a
// mismatch would make learned answers permanently unreachable.
type Normalizer struct {
	username string
	nameRe   *regexp.Regexp
	spaceRe  *regexp.Regexp
}

// NewNormalizer builds a normalizer for the bot's display name and
// Telegram username. name matching also strips Hindi particles attached
// to the name ("laila ko", "laila se", ...).
func NewNormalizer(name, username string) *Normalizer {
	return &Normalizer{
		username: "@" + strings.ToLower(username),
		nameRe:   regexp.MustCompile(fmt.Sprintf(`(?i)\b%s\s*(ko|ka|ki|se|ne)?\b\s*`, regexp.QuoteMeta(name))),
		spaceRe:  regexp.MustCompile(`\s+`),
	}
}

// Normalize lower-cases text, strips the bot's mention and name tokens,
// and collapses whitespace. Idempotent.
func (n *Normalizer) Normalize(text string) string {
	cleaned := strings.ToLower(text)
	cleaned = strings.ReplaceAll(cleaned, n.username, "")
	cleaned = n.nameRe.ReplaceAllString(cleaned, "")
	cleaned = n.spaceRe.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
