package minigame

import (
	"fmt"

	"github.com/roach88/guildkeeper/internal/random"
)

// Question is a trivia entry in a Bank.
type Question struct {
	Question string   `yaml:"question"`
	Options  []string `yaml:"options"`
	Answer   int      `yaml:"answer"`
}

// Bank is the pool rounds are drawn from.
type Bank struct {
	Questions []Question `yaml:"questions"`
	Words     []string   `yaml:"words"`
}

// DefaultBank returns the built-in questions and words.
func DefaultBank() Bank {
	return Bank{
		Questions: []Question{
			{Question: "What is the largest planet in our solar system?", Options: []string{"Mars", "Jupiter", "Saturn", "Neptune"}, Answer: 1},
			{Question: "How many continents are there?", Options: []string{"5", "6", "7", "8"}, Answer: 2},
			{Question: "Which gas do plants absorb from the air?", Options: []string{"Oxygen", "Nitrogen", "Carbon dioxide", "Helium"}, Answer: 2},
			{Question: "What is the chemical symbol for gold?", Options: []string{"Ag", "Au", "Gd", "Go"}, Answer: 1},
			{Question: "Which ocean is the largest?", Options: []string{"Atlantic", "Indian", "Arctic", "Pacific"}, Answer: 3},
			{Question: "How many sides does a hexagon have?", Options: []string{"5", "6", "7", "8"}, Answer: 1},
			{Question: "Who painted the Mona Lisa?", Options: []string{"Van Gogh", "Picasso", "Da Vinci", "Rembrandt"}, Answer: 2},
			{Question: "What is the capital of Indonesia?", Options: []string{"Jakarta", "Bandung", "Surabaya", "Medan"}, Answer: 0},
		},
		Words: []string{
			"python", "discord", "gateway", "keyboard", "program",
			"network", "channel", "message", "server", "planet",
			"giveaway", "reminder", "counting", "trivia", "gopher",
		},
	}
}

// Validate checks every entry against the round rules.
func (b Bank) Validate() error {
	for i, q := range b.Questions {
		if q.Question == "" {
			return fmt.Errorf("%w: question %d is empty", ErrInvalidRound, i)
		}
		if n := len(q.Options); n < MinOptions || n > MaxOptions {
			return fmt.Errorf("%w: question %d has %d options", ErrInvalidRound, i, n)
		}
		if q.Answer < 0 || q.Answer >= len(q.Options) {
			return fmt.Errorf("%w: question %d answer out of range", ErrInvalidRound, i)
		}
	}
	for _, w := range b.Words {
		if _, err := Scramble(w, random.Fixed(0)); err != nil {
			return err
		}
	}
	return nil
}

// PickQuestion returns a random question. ok is false for an empty bank.
func (b Bank) PickQuestion(rng random.Source) (Question, bool) {
	if len(b.Questions) == 0 {
		return Question{}, false
	}
	return b.Questions[rng.IntN(len(b.Questions))], true
}

// PickWord returns a random word. ok is false for an empty bank.
func (b Bank) PickWord(rng random.Source) (string, bool) {
	if len(b.Words) == 0 {
		return "", false
	}
	return b.Words[rng.IntN(len(b.Words))], true
}
