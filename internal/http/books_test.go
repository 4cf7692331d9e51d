package httpserver

import (
	"net/http/httptest"
	"testing"

	"github.com/vieux-grimoire/books-api/internal/config"
)

func TestParseBookPayload(t *testing.T) {
	payload, err := parseBookPayload([]byte(`{"_id":"evil","_userId":"evil","title":"Dune","author":"Herbert","genre":"SciFi","year":1965,"averageRating":99}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.Title == nil || *payload.Title != "Dune" {
		t.Fatalf("title = %+v", payload.Title)
	}
	if payload.Year == nil || *payload.Year != 1965 {
		t.Fatalf("year = %+v", payload.Year)
	}

	if _, err := parseBookPayload([]byte(`{broken`)); err == nil {
		t.Fatal("expected error for malformed JSON")
	}

	empty, err := parseBookPayload(nil)
	if err != nil {
		t.Fatalf("empty payload should parse: %v", err)
	}
	if empty.Title != nil {
		t.Fatalf("empty payload produced fields: %+v", empty)
	}
}

func TestValidateRequiredFields(t *testing.T) {
	title, author, genre := "T", "A", "G"
	year := 2000

	full := bookPayload{Title: &title, Author: &author, Genre: &genre, Year: &year}
	if err := validateRequiredFields(full); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blank := ""
	cases := []struct {
		name    string
		payload bookPayload
	}{
		{"missing title", bookPayload{Author: &author, Genre: &genre, Year: &year}},
		{"blank title", bookPayload{Title: &blank, Author: &author, Genre: &genre, Year: &year}},
		{"missing author", bookPayload{Title: &title, Genre: &genre, Year: &year}},
		{"missing genre", bookPayload{Title: &title, Author: &author, Year: &year}},
		{"missing year", bookPayload{Title: &title, Author: &author, Genre: &genre}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := validateRequiredFields(c.payload); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuildUpdateParams(t *testing.T) {
	title := " Trimmed "
	params, err := buildUpdateParams(bookPayload{Title: &title})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.Title == nil || *params.Title != "Trimmed" {
		t.Fatalf("title = %+v", params.Title)
	}
	if params.Author != nil || params.Genre != nil || params.Year != nil {
		t.Fatalf("absent fields must stay nil: %+v", params)
	}

	blank := "  "
	if _, err := buildUpdateParams(bookPayload{Genre: &blank}); err == nil {
		t.Fatal("blank genre should be rejected")
	}
}

func TestImageURL(t *testing.T) {
	req := httptest.NewRequest("GET", "http://api.example.com/api/books", nil)

	srv := &Server{cfg: config.Config{PublicBaseURL: "https://cdn.example.com/"}}
	if got := srv.imageURL(req, "cover.jpg"); got != "https://cdn.example.com/images/cover.jpg" {
		t.Fatalf("imageURL with base = %q", got)
	}

	srv = &Server{cfg: config.Config{}}
	if got := srv.imageURL(req, "cover.jpg"); got != "http://api.example.com/images/cover.jpg" {
		t.Fatalf("imageURL from request = %q", got)
	}

	req.Header.Set("X-Forwarded-Proto", "https")
	if got := srv.imageURL(req, "cover.jpg"); got != "https://api.example.com/images/cover.jpg" {
		t.Fatalf("imageURL with forwarded proto = %q", got)
	}
}

func TestImageFilename(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://localhost:8080/images/cover-123.jpg", "cover-123.jpg"},
		{"https://cdn.example.com/images/a.jpg", "a.jpg"},
		{"http://localhost/uploads/other.jpg", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := imageFilename(tt.url); got != tt.want {
			t.Fatalf("imageFilename(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
