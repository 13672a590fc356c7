package minigame

import (
	"fmt"

	"github.com/roach88/guildkeeper/internal/random"
)

const scrambleAttempts = 10

// Scramble returns a permutation of word that differs from it. Words with
// fewer than two distinct letters cannot be scrambled and return
// ErrInvalidRound.
func Scramble(word string, rng random.Source) (string, error) {
	runes := []rune(word)
	pivot := -1
	for i := 1; i < len(runes); i++ {
		if runes[i] != runes[0] {
			pivot = i
			break
		}
	}
	if pivot < 0 {
		return "", fmt.Errorf("%w: %q has fewer than two distinct letters", ErrInvalidRound, word)
	}

	out := make([]rune, len(runes))
	for attempt := 0; attempt < scrambleAttempts; attempt++ {
		copy(out, runes)
		for i := len(out) - 1; i > 0; i-- {
			j := rng.IntN(i + 1)
			out[i], out[j] = out[j], out[i]
		}
		if string(out) != word {
			return string(out), nil
		}
	}

	// Swapping two different letters always changes the word.
	copy(out, runes)
	out[0], out[pivot] = out[pivot], out[0]
	return string(out), nil
}
