package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/monngon/feed-service/internal/services/db/entities"
)

const (
	FETCH_POSTS_QUERY = `SELECT id, COALESCE(author_id, ''), COALESCE(author_name, ''), COALESCE(author_avatar, ''),
			COALESCE(title, ''), COALESCE(location, ''), latitude, longitude,
			COALESCE(image_url, ''), rating, COALESCE(note, ''), likes, created_at
		FROM posts
		ORDER BY created_at DESC`

	FETCH_COMMENTS_QUERY = `SELECT id, post_id, COALESCE(author_name, ''), COALESCE(author_avatar, ''),
			text, likes, created_at
		FROM comments
		WHERE post_id = ANY($1)
		ORDER BY created_at ASC`

	CREATE_POST_QUERY = `INSERT INTO posts
			(id, author_id, author_name, author_avatar, title, location, latitude, longitude, image_url, rating, note, likes, created_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	UPDATE_POST_QUERY = `UPDATE posts
		SET title = COALESCE($2, title),
			location = COALESCE($3, location),
			latitude = COALESCE($4, latitude),
			longitude = COALESCE($5, longitude),
			image_url = COALESCE($6, image_url),
			rating = COALESCE($7, rating),
			note = COALESCE($8, note),
			likes = COALESCE($9, likes)
		WHERE id = $1`

	DELETE_POST_QUERY          = `DELETE FROM posts WHERE id = $1`
	DELETE_POST_COMMENTS_QUERY = `DELETE FROM comments WHERE post_id = $1`

	CREATE_COMMENT_QUERY = `INSERT INTO comments
			(id, post_id, author_name, author_avatar, text, likes, created_at)
		VALUES($1, $2, $3, $4, $5, $6, $7)`

	UPDATE_COMMENT_LIKES_QUERY = `UPDATE comments SET likes = $2 WHERE id = $1`
)

// PostgresGateway talks to the Postgres-backed remote store, the same shape
// the hosted backend keeps the journal in.
type PostgresGateway struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

func CreatePostgresGateway(databaseURL string, queryTimeout time.Duration) (*PostgresGateway, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create postgres pool: %v", err)
	}
	return &PostgresGateway{pool: pool, queryTimeout: queryTimeout}, nil
}

func (g *PostgresGateway) Shutdown() error {
	g.pool.Close()
	return nil
}

func (g *PostgresGateway) withTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, g.queryTimeout)
}

func (g *PostgresGateway) FetchAllPosts(parent context.Context) ([]entities.Post, error) {
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	rows, err := g.pool.Query(ctx, FETCH_POSTS_QUERY)
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

func (g *PostgresGateway) FetchCommentsForPosts(parent context.Context, postIds []string) ([]entities.Comment, error) {
	result := make([]entities.Comment, 0)
	if len(postIds) == 0 {
		return result, nil
	}
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	rows, err := g.pool.Query(ctx, FETCH_COMMENTS_QUERY, postIds)
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

func (g *PostgresGateway) InsertPost(parent context.Context, post entities.Post) (Created, error) {
	created := Created{Id: ulid.Make().String(), CreatedAt: time.Now().UTC()}
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	_, err := g.pool.Exec(ctx, CREATE_POST_QUERY,
		created.Id, post.AuthorId, post.AuthorName, post.AuthorAvatar,
		post.Title, post.Location, post.Latitude, post.Longitude,
		post.ImageURL, post.Rating, post.Note, post.LikeCount, created.CreatedAt)
	if err != nil {
		return Created{}, fmt.Errorf("error at creating post: %v", err)
	}
	return created, nil
}

func (g *PostgresGateway) UpdatePost(parent context.Context, id string, fields PostFields) error {
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	res, err := g.pool.Exec(ctx, UPDATE_POST_QUERY,
		id, fields.Title, fields.Location, fields.Latitude, fields.Longitude,
		fields.ImageURL, fields.Rating, fields.Note, fields.Likes)
	if err != nil {
		return fmt.Errorf("error at updating post '%v': %v", id, err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("error at updating post '%v': no such post", id)
	}
	return nil
}

func (g *PostgresGateway) DeletePost(parent context.Context, id string) error {
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	if _, err := g.pool.Exec(ctx, DELETE_POST_COMMENTS_QUERY, id); err != nil {
		return fmt.Errorf("error at deleting comments of post '%v': %v", id, err)
	}
	if _, err := g.pool.Exec(ctx, DELETE_POST_QUERY, id); err != nil {
		return fmt.Errorf("error at deleting post '%v': %v", id, err)
	}
	return nil
}

func (g *PostgresGateway) InsertComment(parent context.Context, comment entities.Comment) (Created, error) {
	created := Created{Id: ulid.Make().String(), CreatedAt: time.Now().UTC()}
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	_, err := g.pool.Exec(ctx, CREATE_COMMENT_QUERY,
		created.Id, comment.PostId, comment.AuthorName, comment.AuthorAvatar,
		comment.Text, comment.LikeCount, created.CreatedAt)
	if err != nil {
		return Created{}, fmt.Errorf("error at creating comment: %v", err)
	}
	return created, nil
}

func (g *PostgresGateway) UpdateCommentLikes(parent context.Context, commentId string, likes int) error {
	ctx, cancel := g.withTimeout(parent)
	defer cancel()
	res, err := g.pool.Exec(ctx, UPDATE_COMMENT_LIKES_QUERY, commentId, likes)
	if err != nil {
		return fmt.Errorf("error at updating likes of comment '%v': %v", commentId, err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("error at updating likes of comment '%v': no such comment", commentId)
	}
	return nil
}
