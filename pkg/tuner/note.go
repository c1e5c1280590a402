package tuner

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

/*
 * A4Value is the semitone value of the reference pitch.
 */
const A4Value = 69

var (
	ErrInvalidFrequency = errors.New("frequency must be positive and finite")
	ErrInvalidNote      = errors.New("invalid note name")
)

var noteStrings = [12]string{"C", "C♯", "D", "D♯", "E", "F", "F♯", "G", "G♯", "A", "A♯", "B"}

/*
 * Note is a single detection.
 */
type Note struct {
	Name      string  // Pitch class, e.g. "A" or "C♯".
	Value     int     // Semitone value relative to the reference pitch, A4 = 69.
	Cents     int     // Deviation from the nearest semitone, truncated toward -inf.
	Octave    int     // Scientific pitch notation.
	Frequency float64 // Raw estimate in Hz.
	Clarity   float64 // Estimator confidence in [0, 1].
}

func (n Note) String() string {
	return fmt.Sprintf("%s%d %+d¢", n.Name, n.Octave, n.Cents)
}

func validFrequency(hz float64) bool {
	return hz > 0 && !math.IsInf(hz, 1)
}

/*
 * NoteFromFrequency maps a frequency onto the equal tempered scale anchored at
 * a4.
 */
func NoteFromFrequency(frequency, clarity, a4 float64) (Note, error) {
	if !validFrequency(frequency) {
		return Note{}, fmt.Errorf("frequency %g: %w", frequency, ErrInvalidFrequency)
	}

	if !validFrequency(a4) {
		return Note{}, fmt.Errorf("reference pitch %g: %w", a4, ErrInvalidFrequency)
	}

	value := int(math.Round(12*math.Log2(frequency/a4))) + A4Value
	ideal := FrequencyOf(value, a4)
	cents := int(math.Floor(1200 * math.Log2(frequency/ideal)))

	return Note{
		Name:      noteStrings[((value%12)+12)%12],
		Value:     value,
		Cents:     cents,
		Octave:    int(math.Floor(float64(value)/12)) - 1,
		Frequency: frequency,
		Clarity:   clarity,
	}, nil
}

/*
 * FrequencyOf returns the ideal frequency of a semitone value.
 */
func FrequencyOf(value int, a4 float64) float64 {
	return a4 * math.Pow(2, float64(value-A4Value)/12)
}

/*
 * ParseNote parses names like "A4", "C#3", "C♯3" or "Bb2" into a semitone
 * value.
 */
func ParseNote(s string) (int, error) {
	s = strings.TrimSpace(s)

	if s == "" {
		return 0, ErrInvalidNote
	}

	letter := strings.ToUpper(s[:1])
	class := -1

	for i, name := range noteStrings {
		if name == letter {
			class = i
			break
		}
	}

	if class < 0 {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidNote)
	}

	rest := s[1:]

	switch {
	case strings.HasPrefix(rest, "#"):
		class++
		rest = rest[1:]
	case strings.HasPrefix(rest, "♯"):
		class++
		rest = strings.TrimPrefix(rest, "♯")
	case strings.HasPrefix(rest, "b"):
		class--
		rest = rest[1:]
	case strings.HasPrefix(rest, "♭"):
		class--
		rest = strings.TrimPrefix(rest, "♭")
	}

	octave, err := strconv.Atoi(rest)

	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidNote)
	}

	return (octave+1)*12 + class, nil
}
