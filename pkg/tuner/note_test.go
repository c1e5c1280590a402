package tuner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteFromFrequency(t *testing.T) {
	tests := []struct {
		name      string
		frequency float64
		a4        float64
		want      Note
	}{
		{"reference", 440, 440, Note{Name: "A", Value: 69, Octave: 4, Cents: 0}},
		{"reference 432", 432, 432, Note{Name: "A", Value: 69, Octave: 4, Cents: 0}},
		{"reference 415.3", 415.3, 415.3, Note{Name: "A", Value: 69, Octave: 4, Cents: 0}},
		{"octave below", 220, 440, Note{Name: "A", Value: 57, Octave: 3, Cents: 0}},
		{"sharp", 445, 440, Note{Name: "A", Value: 69, Octave: 4, Cents: 19}},
		{"flat truncates toward -inf", 435, 440, Note{Name: "A", Value: 69, Octave: 4, Cents: -20}},
		{"octave above", 880, 440, Note{Name: "A", Value: 81, Octave: 5, Cents: 0}},
		{"low E", 82.41, 440, Note{Name: "E", Value: 40, Octave: 2, Cents: 0}},
		{"sharp name", 466.16, 440, Note{Name: "A♯", Value: 70, Octave: 4, Cents: -1}},
		{"negative value", 3, 440, Note{Name: "G", Value: -17, Octave: -3, Cents: -36}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NoteFromFrequency(tt.frequency, 0.99, tt.a4)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.Equal(t, tt.want.Value, got.Value)
			assert.Equal(t, tt.want.Octave, got.Octave)
			assert.Equal(t, tt.want.Cents, got.Cents)
			assert.Equal(t, tt.frequency, got.Frequency)
			assert.Equal(t, 0.99, got.Clarity)
		})
	}
}

func TestNoteFromFrequencyInvalid(t *testing.T) {
	for _, f := range []float64{0, -440, math.NaN(), math.Inf(1)} {
		_, err := NoteFromFrequency(f, 1, 440)
		assert.ErrorIs(t, err, ErrInvalidFrequency, "frequency %g", f)
	}

	_, err := NoteFromFrequency(440, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestNoteOctaveDoubling(t *testing.T) {
	for _, f := range []float64{30.1, 55, 73.42, 100, 196, 261, 300, 512.5, 1000, 1500} {
		low, err := NoteFromFrequency(f, 1, 440)
		require.NoError(t, err)
		high, err := NoteFromFrequency(2*f, 1, 440)
		require.NoError(t, err)

		assert.Equal(t, low.Value+12, high.Value, "frequency %g", f)
		assert.Equal(t, low.Name, high.Name, "frequency %g", f)
		assert.Equal(t, low.Octave+1, high.Octave, "frequency %g", f)
	}
}

func TestNoteCentsRange(t *testing.T) {
	for f := 60.0; f < 2000; f *= 1.013 {
		n, err := NoteFromFrequency(f, 1, 440)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n.Cents, -51)
		assert.LessOrEqual(t, n.Cents, 50)
		assert.InDelta(t, f, FrequencyOf(n.Value, 440), FrequencyOf(n.Value, 440)*0.03)
	}
}

func TestNoteString(t *testing.T) {
	n, err := NoteFromFrequency(445, 1, 440)
	require.NoError(t, err)
	assert.Equal(t, "A4 +19¢", n.String())
}

func TestParseNote(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"A4", 69, false},
		{"C4", 60, false},
		{"c#3", 49, false},
		{"C♯3", 49, false},
		{"Bb2", 46, false},
		{"E♭5", 75, false},
		{"E2", 40, false},
		{"A-1", 9, false},
		{"", 0, true},
		{"H2", 0, true},
		{"A", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNote(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidNote)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFrequencyOf(t *testing.T) {
	assert.Equal(t, 440.0, FrequencyOf(69, 440))
	assert.Equal(t, 220.0, FrequencyOf(57, 440))
	assert.InDelta(t, 261.6256, FrequencyOf(60, 440), 1e-4)
	assert.Equal(t, 432.0, FrequencyOf(69, 432))
}
