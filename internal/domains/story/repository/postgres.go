package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"blackcat/internal/domains/story/model"
	"blackcat/pkg/database"
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresRepository struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func NewPostgresRepository(pool *pgxpool.Pool) StoryRepository {
	return &postgresRepository{pool: pool, q: pool}
}

func (r *postgresRepository) WithTx(ctx context.Context, fn func(tx StoryRepository) error) error {
	if r.inTx {
		return fn(r)
	}
	return database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&postgresRepository{pool: r.pool, q: tx, inTx: true})
	})
}

// ========================================
// STORIES
// ========================================

const storyColumns = `s.id, s.title, s.public, s.shareable, s.available, s.to_be_deleted, s.created_at, s.updated_at`

func scanStory(row pgx.Row) (*model.Story, error) {
	var s model.Story
	err := row.Scan(&s.ID, &s.Title, &s.Public, &s.Shareable, &s.Available, &s.ToBeDeleted, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrStoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *postgresRepository) CreateStory(ctx context.Context, story *model.Story) error {
	query := `
		INSERT INTO stories (title, public, shareable, available, to_be_deleted)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.q.QueryRow(ctx, query, story.Title, story.Public, story.Shareable, story.Available, story.ToBeDeleted).
		Scan(&story.ID, &story.CreatedAt, &story.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetStory(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	return scanStory(r.q.QueryRow(ctx, `SELECT `+storyColumns+` FROM stories s WHERE s.id = $1`, id))
}

func (r *postgresRepository) LockStory(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	return scanStory(r.q.QueryRow(ctx, `SELECT `+storyColumns+` FROM stories s WHERE s.id = $1 FOR UPDATE`, id))
}

func (r *postgresRepository) SetAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	return r.execOne(ctx, model.ErrStoryNotFound,
		`UPDATE stories SET available = $2, updated_at = NOW() WHERE id = $1`, id, available)
}

func (r *postgresRepository) UpdateSettings(ctx context.Context, id uuid.UUID, public, shareable, toBeDeleted bool) error {
	return r.execOne(ctx, model.ErrStoryNotFound,
		`UPDATE stories SET public = $2, shareable = $3, to_be_deleted = $4, updated_at = NOW() WHERE id = $1`,
		id, public, shareable, toBeDeleted)
}

func (r *postgresRepository) DeleteStory(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, model.ErrStoryNotFound, `DELETE FROM stories WHERE id = $1`, id)
}

// ========================================
// WRITERS
// ========================================

func (r *postgresRepository) AddWriter(ctx context.Context, w *model.StoryWriter) error {
	query := `
		INSERT INTO story_writers (story_id, writer_id, active, "delete")
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (story_id, writer_id) DO NOTHING
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query, w.StoryID, w.WriterID, w.Active, w.Delete).Scan(&w.ID, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// already a writer; keep the existing row untouched
		existing, getErr := r.GetWriter(ctx, w.StoryID, w.WriterID)
		if getErr != nil {
			return getErr
		}
		*w = *existing
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert story writer: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetWriter(ctx context.Context, storyID, writerID uuid.UUID) (*model.StoryWriter, error) {
	var w model.StoryWriter
	err := r.q.QueryRow(ctx, `
		SELECT id, story_id, writer_id, active, "delete", created_at
		FROM story_writers WHERE story_id = $1 AND writer_id = $2
	`, storyID, writerID).Scan(&w.ID, &w.StoryID, &w.WriterID, &w.Active, &w.Delete, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrWriterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *postgresRepository) ListWriters(ctx context.Context, storyID uuid.UUID) ([]model.WriterInfo, error) {
	rows, err := r.q.Query(ctx, `
		SELECT sw.writer_id, u.username, u.email, sw.active, sw."delete"
		FROM story_writers sw
		JOIN users u ON u.id = sw.writer_id
		WHERE sw.story_id = $1
		ORDER BY sw.created_at, u.username
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("query writers: %w", err)
	}
	defer rows.Close()

	writers := make([]model.WriterInfo, 0)
	for rows.Next() {
		var w model.WriterInfo
		if err := rows.Scan(&w.WriterID, &w.Username, &w.Email, &w.Active, &w.Delete); err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	return writers, rows.Err()
}

func (r *postgresRepository) CountActiveWriters(ctx context.Context, storyID uuid.UUID) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM story_writers WHERE story_id = $1 AND active`, storyID).Scan(&n)
	return n, err
}

func (r *postgresRepository) SetWriterActive(ctx context.Context, storyID, writerID uuid.UUID, active bool) error {
	return r.execOne(ctx, model.ErrWriterNotFound,
		`UPDATE story_writers SET active = $3 WHERE story_id = $1 AND writer_id = $2`, storyID, writerID, active)
}

func (r *postgresRepository) SetWriterDeleteVote(ctx context.Context, storyID, writerID uuid.UUID, vote bool) error {
	return r.execOne(ctx, model.ErrWriterNotFound,
		`UPDATE story_writers SET "delete" = $3 WHERE story_id = $1 AND writer_id = $2`, storyID, writerID, vote)
}

// ========================================
// SNIPPETS
// ========================================

func (r *postgresRepository) InsertSnippet(ctx context.Context, s *model.Snippet) error {
	query := `
		INSERT INTO snippets (story_id, author_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, seq, edited, created_at
	`
	err := r.q.QueryRow(ctx, query, s.StoryID, s.AuthorID, s.Text).Scan(&s.ID, &s.Seq, &s.Edited, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snippet: %w", err)
	}
	return nil
}

const snippetColumns = `sn.id, sn.story_id, sn.author_id, sn.text, sn.edited, sn.seq, sn.created_at`

func scanSnippet(row pgx.Row) (*model.Snippet, error) {
	var s model.Snippet
	err := row.Scan(&s.ID, &s.StoryID, &s.AuthorID, &s.Text, &s.Edited, &s.Seq, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrSnippetNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *postgresRepository) GetSnippet(ctx context.Context, storyID, snippetID uuid.UUID) (*model.Snippet, error) {
	return scanSnippet(r.q.QueryRow(ctx,
		`SELECT `+snippetColumns+` FROM snippets sn WHERE sn.story_id = $1 AND sn.id = $2`, storyID, snippetID))
}

func (r *postgresRepository) UpdateSnippetText(ctx context.Context, snippetID uuid.UUID, text string) error {
	return r.execOne(ctx, model.ErrSnippetNotFound,
		`UPDATE snippets SET text = $2, edited = TRUE WHERE id = $1`, snippetID, text)
}

func (r *postgresRepository) LastSnippet(ctx context.Context, storyID uuid.UUID) (*model.Snippet, error) {
	s, err := scanSnippet(r.q.QueryRow(ctx,
		`SELECT `+snippetColumns+` FROM snippets sn WHERE sn.story_id = $1 ORDER BY sn.seq DESC LIMIT 1`, storyID))
	if errors.Is(err, model.ErrSnippetNotFound) {
		return nil, nil
	}
	return s, err
}

func (r *postgresRepository) ListSnippets(ctx context.Context, storyID uuid.UUID) ([]model.SnippetWithAuthor, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+snippetColumns+`, COALESCE(u.username, '')
		FROM snippets sn
		LEFT JOIN users u ON u.id = sn.author_id
		WHERE sn.story_id = $1
		ORDER BY sn.seq
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("query snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.SnippetWithAuthor, 0)
	for rows.Next() {
		var s model.SnippetWithAuthor
		if err := rows.Scan(&s.ID, &s.StoryID, &s.AuthorID, &s.Text, &s.Edited, &s.Seq, &s.CreatedAt, &s.AuthorUsername); err != nil {
			return nil, err
		}
		snippets = append(snippets, s)
	}
	return snippets, rows.Err()
}

// ========================================
// LISTINGS
// ========================================

func (r *postgresRepository) ListPublicStories(ctx context.Context, writerUsername string) ([]model.StoryWithWriters, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+storyColumns+`,
			COALESCE(ARRAY_AGG(u.username ORDER BY u.username) FILTER (WHERE u.username IS NOT NULL), '{}')
		FROM stories s
		LEFT JOIN story_writers sw ON sw.story_id = s.id
		LEFT JOIN users u ON u.id = sw.writer_id
		WHERE s.public
		  AND ($1 = '' OR EXISTS (
			SELECT 1 FROM story_writers fw
			JOIN users fu ON fu.id = fw.writer_id
			WHERE fw.story_id = s.id AND fu.username = $1))
		GROUP BY s.id
		ORDER BY s.created_at DESC
	`, writerUsername)
	if err != nil {
		return nil, fmt.Errorf("query public stories: %w", err)
	}
	defer rows.Close()

	stories := make([]model.StoryWithWriters, 0)
	for rows.Next() {
		var s model.StoryWithWriters
		if err := rows.Scan(&s.ID, &s.Title, &s.Public, &s.Shareable, &s.Available, &s.ToBeDeleted,
			&s.CreatedAt, &s.UpdatedAt, &s.Writers); err != nil {
			return nil, err
		}
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

func (r *postgresRepository) ListStoriesByWriter(ctx context.Context, writerID uuid.UUID) ([]model.PersonalStory, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+storyColumns+`, sw.active, sw."delete"
		FROM stories s
		JOIN story_writers sw ON sw.story_id = s.id
		WHERE sw.writer_id = $1
		ORDER BY s.created_at DESC
	`, writerID)
	if err != nil {
		return nil, fmt.Errorf("query personal stories: %w", err)
	}
	defer rows.Close()

	stories := make([]model.PersonalStory, 0)
	for rows.Next() {
		var s model.PersonalStory
		if err := rows.Scan(&s.ID, &s.Title, &s.Public, &s.Shareable, &s.Available, &s.ToBeDeleted,
			&s.CreatedAt, &s.UpdatedAt, &s.Active, &s.DeleteVote); err != nil {
			return nil, err
		}
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

func (r *postgresRepository) ListToBeDeleted(ctx context.Context, limit int) ([]model.Story, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.Query(ctx,
		`SELECT `+storyColumns+` FROM stories s WHERE s.to_be_deleted ORDER BY s.updated_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query stories to delete: %w", err)
	}
	defer rows.Close()

	stories := make([]model.Story, 0)
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		stories = append(stories, *s)
	}
	return stories, rows.Err()
}

// execOne runs a statement that must touch exactly one row
func (r *postgresRepository) execOne(ctx context.Context, notFound error, sql string, args ...any) error {
	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}
