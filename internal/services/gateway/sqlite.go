package gateway

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/monngon/feed-service/internal/services/db/entities"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SqliteGateway is a file-backed stand-in for the remote store, used by the
// demo binary and feedctl so the engine can run without hosted
// infrastructure. It keeps the same tables the Postgres store does.
type SqliteGateway struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func CreateSqliteGateway(path string, queryTimeout time.Duration) (*SqliteGateway, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite store: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping sqlite store: %v", err)
	}
	if err := migrateSqlite(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteGateway{db: db, queryTimeout: queryTimeout}, nil
}

func migrateSqlite(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("unable to load migrations: %v", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("unable to create migration driver: %v", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("unable to create migrator: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("unable to apply migrations: %v", err)
	}
	return nil
}

func (g *SqliteGateway) Shutdown() error {
	return g.db.Close()
}

func (g *SqliteGateway) withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, g.queryTimeout)
}

func (g *SqliteGateway) FetchAllPosts(parent context.Context) ([]entities.Post, error) {
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	rows, err := g.db.QueryContext(ctx, `SELECT id, author_id, author_name, author_avatar, title, location,
			latitude, longitude, image_url, rating, note, likes, created_at
		FROM posts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("error at fetching posts: %v", err)
	}
	defer rows.Close()

	result := make([]entities.Post, 0)
	for rows.Next() {
		var post entities.Post
		err := rows.Scan(&post.Id, &post.AuthorId, &post.AuthorName, &post.AuthorAvatar,
			&post.Title, &post.Location, &post.Latitude, &post.Longitude,
			&post.ImageURL, &post.Rating, &post.Note, &post.LikeCount, &post.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error at scanning post row: %v", err)
		}
		result = append(result, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error at iterating post rows: %v", err)
	}
	return result, nil
}

func (g *SqliteGateway) FetchCommentsForPosts(parent context.Context, postIds []string) ([]entities.Comment, error) {
	result := make([]entities.Comment, 0)
	if len(postIds) == 0 {
		return result, nil
	}
	ctx, cancel := g.withTimeout(parent)
	defer cancel()

	placeholders := make([]string, len(postIds))
	args := make([]any, len(postIds))
	for i, postId := range postIds {
		placeholders[i] = "?"
		args[i] = postId
	}
	query := fmt.Sprintf(`SELECT id, post_id, author_name, author_avatar, text, likes, created_at
		FROM comments WHERE post_id IN (%s) ORDER BY created_at ASC`, strings.Join(placeholders, ", "))

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error at fetching comments: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var comment entities.Comment
		err := rows.Scan(&comment.Id, &comment.PostId, &comment.AuthorName, &comment.AuthorAvatar,
			&comment.Text, &comment.LikeCount, &comment.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error at scanning comment row: %v", err)
		}
		result = append(result, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error at iterating comment rows: %v", err)
	}
	return result, nil
}

func (g *SqliteGateway) InsertPost(parent context.Context, post entities.Post) (Created, error) {
	created := Created{Id: ulid.Make().String(), CreatedAt: time.Now().UTC()}
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	_, err := g.db.ExecContext(ctx, `INSERT INTO posts
			(id, author_id, author_name, author_avatar, title, location, latitude, longitude, image_url, rating, note, likes, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.Id, post.AuthorId, post.AuthorName, post.AuthorAvatar,
		post.Title, post.Location, post.Latitude, post.Longitude,
		post.ImageURL, post.Rating, post.Note, post.LikeCount, created.CreatedAt)
	if err != nil {
		return Created{}, fmt.Errorf("error at creating post: %v", err)
	}
	return created, nil
}

func (g *SqliteGateway) UpdatePost(parent context.Context, id string, fields PostFields) error {
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	res, err := g.db.ExecContext(ctx, `UPDATE posts
		SET title = COALESCE(?, title),
			location = COALESCE(?, location),
			latitude = COALESCE(?, latitude),
			longitude = COALESCE(?, longitude),
			image_url = COALESCE(?, image_url),
			rating = COALESCE(?, rating),
			note = COALESCE(?, note),
			likes = COALESCE(?, likes)
		WHERE id = ?`,
		fields.Title, fields.Location, fields.Latitude, fields.Longitude,
		fields.ImageURL, fields.Rating, fields.Note, fields.Likes, id)
	if err != nil {
		return fmt.Errorf("error at updating post '%v': %v", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error at counting affected rows for post '%v': %v", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("error at updating post '%v': no such post", id)
	}
	return nil
}

func (g *SqliteGateway) DeletePost(parent context.Context, id string) error {
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	if _, err := g.db.ExecContext(ctx, `DELETE FROM comments WHERE post_id = ?`, id); err != nil {
		return fmt.Errorf("error at deleting comments of post '%v': %v", id, err)
	}
	if _, err := g.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("error at deleting post '%v': %v", id, err)
	}
	return nil
}

func (g *SqliteGateway) InsertComment(parent context.Context, comment entities.Comment) (Created, error) {
	created := Created{Id: ulid.Make().String(), CreatedAt: time.Now().UTC()}
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	_, err := g.db.ExecContext(ctx, `INSERT INTO comments
			(id, post_id, author_name, author_avatar, text, likes, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		created.Id, comment.PostId, comment.AuthorName, comment.AuthorAvatar,
		comment.Text, comment.LikeCount, created.CreatedAt)
	if err != nil {
		return Created{}, fmt.Errorf("error at creating comment: %v", err)
	}
	return created, nil
}

func (g *SqliteGateway) UpdateCommentLikes(parent context.Context, commentId string, likes int) error {
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	res, err := g.db.ExecContext(ctx, `UPDATE comments SET likes = ? WHERE id = ?`, likes, commentId)
	if err != nil {
		return fmt.Errorf("error at updating likes of comment '%v': %v", commentId, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error at counting affected rows for comment '%v': %v", commentId, err)
	}
	if affected == 0 {
		return fmt.Errorf("error at updating likes of comment '%v': no such comment", commentId)
	}
	return nil
}
