// Package sm2 implements the SM-2 derived grading function that advances
// a flashcard's scheduling state after a review. It is pure: no I/O, no
// clock access, and it cannot fail for any grade in range.
package sm2

import (
	"math"
	"time"

	"github.com/conorfennell/studydeck/internal/domain"
)

// Grade is the quality of a review on the classic SM-2 scale, 0 (total
// failure) to 5 (perfect recall). The full scale exists for compatibility
// with the SM-2 family; the binary review UI only ever produces Known and
// Unknown.
type Grade int

const (
	// Unknown is the grade recorded when the user did not recall the card.
	Unknown Grade = 1
	// Known is the grade recorded when the user recalled the card.
	Known Grade = 4

	// MinEasiness is the algorithmic floor for a card's easiness factor.
	MinEasiness = 1.3

	// passingGrade is the lowest grade counted as a successful review.
	passingGrade = 3
)

// ForKnown maps the binary review outcome onto the SM-2 grade scale.
func ForKnown(known bool) Grade {
	if known {
		return Known
	}
	return Unknown
}

// Review applies one review with the given grade at time now and returns
// the updated card. All non-scheduling fields pass through unchanged, and
// the input card's history is never mutated: the returned card carries a
// fresh history slice with exactly one appended entry.
//
// Callers are responsible for clamping grade to [0, 5].
func Review(card domain.Flashcard, grade Grade, now time.Time) domain.Flashcard {
	q := float64(grade)
	easiness := card.Easiness + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	if easiness < MinEasiness {
		easiness = MinEasiness
	}
	card.Easiness = easiness

	if grade < passingGrade {
		card.Repetition = 0
		card.Interval = 1
	} else {
		card.Repetition++
		switch card.Repetition {
		case 1:
			card.Interval = 1
		case 2:
			card.Interval = 6
		default:
			// Round half away from zero; over many reviews the drift this
			// introduces is part of the algorithm, not an error.
			card.Interval = int(math.Round(float64(card.Interval) * easiness))
		}
	}

	card.DueDate = now.UTC().Truncate(time.Second).Add(time.Duration(card.Interval) * 24 * time.Hour)

	history := make([]domain.Review, len(card.History), len(card.History)+1)
	copy(history, card.History)
	card.History = append(history, domain.Review{Date: now.UTC(), Quality: int(grade)})

	return card
}
