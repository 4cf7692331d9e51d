package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vieux-grimoire/books-api/internal/domain"
)

// BooksRepository provides persistence helpers for book entities. Ratings are
// stored denormalized as a JSON array on the book row, mirroring the embedded
// document the API exposes.
type BooksRepository struct {
	pool *pgxpool.Pool
}

const bookColumns = `
    id,
    owner_id,
    title,
    author,
    genre,
    year,
    image_url,
    ratings,
    average_rating,
    created_at,
    updated_at
`

// BookCreateParams bundles the fields required to create a book.
type BookCreateParams struct {
	OwnerID       string
	Title         string
	Author        string
	Genre         string
	Year          int
	ImageURL      string
	Ratings       []domain.Rating
	AverageRating float64
}

// BookUpdateParams carries the client-updatable fields. Nil pointers leave the
// stored value untouched. Owner, ratings and average are never client-updatable.
type BookUpdateParams struct {
	Title    *string
	Author   *string
	Genre    *string
	Year     *int
	ImageURL *string
}

// Create inserts a new book row and returns the stored entity.
func (r *BooksRepository) Create(ctx context.Context, params BookCreateParams) (domain.Book, error) {
	ratingsJSON, err := marshalRatings(params.Ratings)
	if err != nil {
		return domain.Book{}, err
	}

	query := fmt.Sprintf(`
        INSERT INTO books (owner_id, title, author, genre, year, image_url, ratings, average_rating)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING %s
    `, bookColumns)

	row := r.pool.QueryRow(ctx, query,
		params.OwnerID, params.Title, params.Author, params.Genre, params.Year,
		params.ImageURL, ratingsJSON, params.AverageRating)
	return scanBook(row)
}

// GetByID fetches a book by its identifier. Ids that are not well-formed UUIDs
// cannot match any row and report ErrNotFound without hitting the database.
func (r *BooksRepository) GetByID(ctx context.Context, id string) (domain.Book, error) {
	if uuid.Validate(id) != nil {
		return domain.Book{}, ErrNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM books WHERE id = $1`, bookColumns)
	row := r.pool.QueryRow(ctx, query, id)
	book, err := scanBook(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Book{}, ErrNotFound
		}
		return domain.Book{}, err
	}
	return book, nil
}

// Update merges the provided fields into the stored book. Absent fields keep
// their current values.
func (r *BooksRepository) Update(ctx context.Context, id string, params BookUpdateParams) (domain.Book, error) {
	if uuid.Validate(id) != nil {
		return domain.Book{}, ErrNotFound
	}
	query := fmt.Sprintf(`
        UPDATE books
        SET title = COALESCE($2, title),
            author = COALESCE($3, author),
            genre = COALESCE($4, genre),
            year = COALESCE($5, year),
            image_url = COALESCE($6, image_url),
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, bookColumns)

	row := r.pool.QueryRow(ctx, query, id, params.Title, params.Author, params.Genre, params.Year, params.ImageURL)
	book, err := scanBook(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Book{}, ErrNotFound
		}
		return domain.Book{}, err
	}
	return book, nil
}

// Delete removes a book row.
func (r *BooksRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every book in insertion order. The collection is expected to
// stay small; no pagination is offered.
func (r *BooksRepository) List(ctx context.Context) ([]domain.Book, error) {
	query := fmt.Sprintf(`SELECT %s FROM books ORDER BY created_at ASC, id ASC`, bookColumns)
	return r.queryBooks(ctx, query)
}

// TopRated returns at most limit books ordered by average rating descending.
func (r *BooksRepository) TopRated(ctx context.Context, limit int) ([]domain.Book, error) {
	query := fmt.Sprintf(`SELECT %s FROM books ORDER BY average_rating DESC, created_at ASC LIMIT $1`, bookColumns)
	return r.queryBooks(ctx, query, limit)
}

// SaveRatings persists a book's full ratings array together with the recomputed
// average in a single update. Last writer wins on concurrent submissions.
func (r *BooksRepository) SaveRatings(ctx context.Context, id string, ratings []domain.Rating, average float64) (domain.Book, error) {
	if uuid.Validate(id) != nil {
		return domain.Book{}, ErrNotFound
	}
	ratingsJSON, err := marshalRatings(ratings)
	if err != nil {
		return domain.Book{}, err
	}

	query := fmt.Sprintf(`
        UPDATE books
        SET ratings = $2,
            average_rating = $3,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, bookColumns)

	row := r.pool.QueryRow(ctx, query, id, ratingsJSON, average)
	book, err := scanBook(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Book{}, ErrNotFound
		}
		return domain.Book{}, err
	}
	return book, nil
}

func (r *BooksRepository) queryBooks(ctx context.Context, query string, args ...interface{}) ([]domain.Book, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := make([]domain.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return books, nil
}

func scanBook(row pgx.Row) (domain.Book, error) {
	var (
		book        domain.Book
		ratingsJSON []byte
	)

	err := row.Scan(
		&book.ID,
		&book.OwnerID,
		&book.Title,
		&book.Author,
		&book.Genre,
		&book.Year,
		&book.ImageURL,
		&ratingsJSON,
		&book.AverageRating,
		&book.CreatedAt,
		&book.UpdatedAt,
	)
	if err != nil {
		return domain.Book{}, err
	}

	if len(ratingsJSON) > 0 {
		if err := json.Unmarshal(ratingsJSON, &book.Ratings); err != nil {
			return domain.Book{}, fmt.Errorf("decode ratings: %w", err)
		}
	}

	return book, nil
}

func marshalRatings(ratings []domain.Rating) ([]byte, error) {
	if ratings == nil {
		ratings = []domain.Rating{}
	}
	return json.Marshal(ratings)
}
