package gateway

import (
	"context"
	"time"

	"github.com/monngon/feed-service/internal/services/db/entities"
)

// Created is the remote store's answer to an insert: the canonical identity
// and the authoritative creation time.
type Created struct {
	Id        string
	CreatedAt time.Time
}

// PostFields is a partial update; nil fields keep their stored value.
type PostFields struct {
	Title     *string
	Location  *string
	Latitude  *float64
	Longitude *float64
	ImageURL  *string
	Rating    *float64
	Note      *string
	Likes     *int
}

// Gateway is the narrow seam to the remote store of record. Every call is
// request/response, fallible, and carries no ordering guarantee relative to
// other calls. Implementations never see session-local state (liked flags,
// submission state); those fields are excluded from persistence.
type Gateway interface {
	// FetchAllPosts returns every post, most recent first, without comments.
	FetchAllPosts(ctx context.Context) ([]entities.Post, error)

	// FetchCommentsForPosts returns the comments of the given posts in
	// insertion order.
	FetchCommentsForPosts(ctx context.Context, postIds []string) ([]entities.Comment, error)

	// InsertPost stores a new post and issues its canonical identity. The
	// post's Id field is ignored.
	InsertPost(ctx context.Context, post entities.Post) (Created, error)

	UpdatePost(ctx context.Context, id string, fields PostFields) error

	DeletePost(ctx context.Context, id string) error

	// InsertComment stores a new comment (comment.PostId names the parent)
	// and issues its canonical identity.
	InsertComment(ctx context.Context, comment entities.Comment) (Created, error)

	UpdateCommentLikes(ctx context.Context, commentId string, likes int) error

	Shutdown() error
}

func applyPostFields(post *entities.Post, fields PostFields) {
	if fields.Title != nil {
		post.Title = *fields.Title
	}
	if fields.Location != nil {
		post.Location = *fields.Location
	}
	if fields.Latitude != nil {
		post.Latitude = fields.Latitude
	}
	if fields.Longitude != nil {
		post.Longitude = fields.Longitude
	}
	if fields.ImageURL != nil {
		post.ImageURL = *fields.ImageURL
	}
	if fields.Rating != nil {
		post.Rating = fields.Rating
	}
	if fields.Note != nil {
		post.Note = *fields.Note
	}
	if fields.Likes != nil {
		post.LikeCount = *fields.Likes
	}
}
