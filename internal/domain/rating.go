package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrDuplicateRating indicates the user already rated this book. Ratings cannot
// be edited once submitted.
var ErrDuplicateRating = errors.New("domain: user already rated this book")

// MinGrade and MaxGrade bound the accepted rating values.
const (
	MinGrade = 0
	MaxGrade = 5
)

// ValidateGrade checks that a grade falls within the accepted range.
func ValidateGrade(grade int) error {
	if grade < MinGrade || grade > MaxGrade {
		return fmt.Errorf("grade must be between %d and %d", MinGrade, MaxGrade)
	}
	return nil
}

// AddRating appends a new rating for userID and recomputes the average. The scan
// over existing ratings is linear; ratings per book are expected to stay small.
func (b *Book) AddRating(userID string, grade int) error {
	if err := ValidateGrade(grade); err != nil {
		return err
	}
	for _, r := range b.Ratings {
		if r.UserID == userID {
			return ErrDuplicateRating
		}
	}
	b.Ratings = append(b.Ratings, Rating{UserID: userID, Grade: grade})
	b.AverageRating = AverageGrade(b.Ratings)
	return nil
}

// AverageGrade computes the mean of all grades rounded half-up to two decimals.
// Returns 0 for an empty slice.
func AverageGrade(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	total := 0
	for _, r := range ratings {
		total += r.Grade
	}
	mean := float64(total) / float64(len(ratings))
	return math.Round(mean*100) / 100
}
