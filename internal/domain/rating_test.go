package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestAverageGrade(t *testing.T) {
	tests := []struct {
		name    string
		ratings []Rating
		want    float64
	}{
		{"empty", nil, 0},
		{"single", []Rating{{UserID: "u1", Grade: 5}}, 5},
		{"two-users", []Rating{{UserID: "u1", Grade: 5}, {UserID: "u2", Grade: 3}}, 4.0},
		{"rounds-up", []Rating{{Grade: 5}, {Grade: 5}, {Grade: 0}}, 3.33},
		{"half-up", []Rating{{Grade: 1}, {Grade: 2}, {Grade: 2}, {Grade: 2}, {Grade: 2}, {Grade: 0}, {Grade: 0}, {Grade: 0}}, 1.13},
		{"all-zero", []Rating{{Grade: 0}, {Grade: 0}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AverageGrade(tt.ratings)
			if math.Abs(got-tt.want) > 0.0001 {
				t.Fatalf("AverageGrade() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAddRating_SequentialUsers(t *testing.T) {
	book := Book{Title: "Dune", Author: "Herbert", Year: 1965, Genre: "SciFi"}

	if err := book.AddRating("u1", 5); err != nil {
		t.Fatalf("first rating: %v", err)
	}
	if book.AverageRating != 5 {
		t.Fatalf("average after seed = %v, want 5", book.AverageRating)
	}

	if err := book.AddRating("u2", 3); err != nil {
		t.Fatalf("second rating: %v", err)
	}
	if book.AverageRating != 4.0 {
		t.Fatalf("average after u2 = %v, want 4.0", book.AverageRating)
	}

	// Duplicate submission from u2 must be rejected without mutating the book.
	err := book.AddRating("u2", 1)
	if !errors.Is(err, ErrDuplicateRating) {
		t.Fatalf("duplicate rating error = %v, want ErrDuplicateRating", err)
	}
	if len(book.Ratings) != 2 {
		t.Fatalf("ratings count after duplicate = %d, want 2", len(book.Ratings))
	}
	if book.AverageRating != 4.0 {
		t.Fatalf("average after duplicate = %v, want 4.0", book.AverageRating)
	}
}

func TestAddRating_RunningAverage(t *testing.T) {
	var book Book
	grades := []int{4, 2, 5, 3, 1}
	sum := 0
	for i, grade := range grades {
		user := fmt.Sprintf("user-%d", i)
		if err := book.AddRating(user, grade); err != nil {
			t.Fatalf("AddRating(%s, %d): %v", user, grade, err)
		}
		sum += grade
		want := math.Round(float64(sum)/float64(i+1)*100) / 100
		if book.AverageRating != want {
			t.Fatalf("average after %d ratings = %v, want %v", i+1, book.AverageRating, want)
		}
	}
}

func TestAddRating_GradeBounds(t *testing.T) {
	var book Book
	for _, grade := range []int{-1, 6, 100} {
		if err := book.AddRating("u1", grade); err == nil {
			t.Fatalf("AddRating with grade %d should fail", grade)
		}
	}
	if len(book.Ratings) != 0 {
		t.Fatalf("invalid grades must not be stored, got %d ratings", len(book.Ratings))
	}
	for _, grade := range []int{MinGrade, MaxGrade} {
		book = Book{}
		if err := book.AddRating("u1", grade); err != nil {
			t.Fatalf("AddRating with boundary grade %d: %v", grade, err)
		}
	}
}

func BenchmarkAddRating(b *testing.B) {
	base := Book{}
	for i := 0; i < 200; i++ {
		if err := base.AddRating(fmt.Sprintf("seed-%d", i), i%6); err != nil {
			b.Fatalf("seed rating: %v", err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		book := base
		book.Ratings = append([]Rating(nil), base.Ratings...)
		if err := book.AddRating("bench-user", 4); err != nil {
			b.Fatalf("AddRating: %v", err)
		}
	}
}
