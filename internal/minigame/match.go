package minigame

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// normalize folds case and composes to NFC so "Café", "CAFÉ" and a
// decomposed "café" compare equal.
func normalize(s string) string {
	folded := cases.Fold().String(strings.TrimSpace(s))
	return norm.NFC.String(folded)
}

// Matches reports whether guess equals answer ignoring case and Unicode
// normalisation form.
func Matches(guess, answer string) bool {
	return normalize(guess) == normalize(answer)
}
