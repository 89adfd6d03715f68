package challenge

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"
)

// Generator produces the problems for a new challenge.
type Generator interface {
	Generate(ctx context.Context, subject Subject, grade int, settings Settings) ([]Problem, error)
}

//go:embed words.yaml
var wordsYAML []byte

// Translation pairs a German word with its English meaning.
type Translation struct {
	DE string `yaml:"de"`
	EN string `yaml:"en"`
}

// Vocabulary holds the word lists used by the language quizzes.
type Vocabulary struct {
	German  map[int][]string      `yaml:"german"`
	English map[int][]Translation `yaml:"english"`
}

// LoadVocabulary parses a YAML word list.
func LoadVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	for _, grade := range []int{2, 3} {
		if len(v.German[grade]) == 0 || len(v.English[grade]) == 0 {
			return nil, fmt.Errorf("vocabulary has no words for grade %d", grade)
		}
	}
	return &v, nil
}

// SimpleGenerator builds quizzes locally from arithmetic and the embedded
// word lists.
type SimpleGenerator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	vocab *Vocabulary
}

// NewSimpleGenerator creates a generator seeded with seed. A zero seed uses
// the current time.
func NewSimpleGenerator(seed int64) *SimpleGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	vocab, err := LoadVocabulary(wordsYAML)
	if err != nil {
		panic(err)
	}
	return &SimpleGenerator{rng: rand.New(rand.NewSource(seed)), vocab: vocab}
}

// Generate implements Generator.
func (g *SimpleGenerator) Generate(_ context.Context, subject Subject, grade int, settings Settings) ([]Problem, error) {
	if err := ValidateGrade(grade); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	problems := make([]Problem, 0, settings.ProblemCount)
	for i := 0; i < settings.ProblemCount; i++ {
		switch subject {
		case Math:
			problems = append(problems, g.math(i, settings))
		case German:
			problems = append(problems, g.spelling(grade))
		case English:
			problems = append(problems, g.vocabulary(i, grade))
		default:
			return nil, fmt.Errorf("no generator for subject %q", subject)
		}
	}
	return problems, nil
}

func (g *SimpleGenerator) between(lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return lo + g.rng.Intn(hi-lo+1)
}

// math rotates through addition, subtraction and multiplication.
func (g *SimpleGenerator) math(i int, s Settings) Problem {
	maxNumber := max(s.MaxNumber, 10)
	maxMul := max(s.MaxMultiplication, 1)
	switch i % 3 {
	case 0:
		a, b := g.between(1, maxNumber/2), g.between(1, maxNumber/2)
		return arithmetic(fmt.Sprintf("%d + %d", a, b), a+b, "addition")
	case 1:
		a := g.between(10, maxNumber)
		b := g.between(1, a)
		return arithmetic(fmt.Sprintf("%d - %d", a, b), a-b, "subtraction")
	default:
		a, b := g.between(1, maxMul), g.between(1, 10)
		return arithmetic(fmt.Sprintf("%d × %d", a, b), a*b, "multiplication")
	}
}

func arithmetic(expr string, answer int, kind string) Problem {
	return Problem{
		Question:      fmt.Sprintf("Was ist %s?", expr),
		CorrectAnswer: fmt.Sprint(answer),
		Type:          kind,
	}
}

func (g *SimpleGenerator) spelling(grade int) Problem {
	words := g.vocab.German[grade]
	word := words[g.rng.Intn(len(words))]
	options := []string{word, strings.ToLower(word), strings.ToUpper(word), word + "e"}
	g.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	return Problem{
		Question:      fmt.Sprintf("Wie schreibt man %q?", word),
		CorrectAnswer: word,
		Options:       options,
		Type:          "spelling",
	}
}

func (g *SimpleGenerator) vocabulary(i, grade int) Problem {
	words := g.vocab.English[grade]
	w := words[i%len(words)]
	options := []string{w.EN, w.EN + "s", w.DE, strings.ToUpper(w.EN)}
	g.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	return Problem{
		Question:      fmt.Sprintf("Wie heißt %q auf Englisch?", w.DE),
		CorrectAnswer: w.EN,
		Options:       options,
		Type:          "vocabulary",
	}
}
