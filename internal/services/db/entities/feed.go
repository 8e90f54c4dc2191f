package entities

import (
	"strconv"
	"time"
)

// CommentSubmitState tracks the per-post comment submission machine.
// It is session-local and never leaves the process.
type CommentSubmitState int

const (
	CommentIdle CommentSubmitState = iota
	CommentSubmitting
)

type BadgeVariant string

const (
	BadgeRating   BadgeVariant = "rating"
	BadgeFavorite BadgeVariant = "favorite"
)

const FavoriteBadgeLabel = "Yêu thích"

// Badge is the presentational rating marker of a post: either a numeric
// rating badge or the favorite badge, never both.
type Badge struct {
	Variant BadgeVariant `json:"variant"`
	Label   string       `json:"label"`
}

type Post struct {
	Id           string    `json:"id"`
	AuthorId     string    `json:"author_id,omitempty"`
	AuthorName   string    `json:"author_name,omitempty"`
	AuthorAvatar string    `json:"author_avatar,omitempty"`
	Title        string    `json:"title"`
	Location     string    `json:"location,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	Rating       *float64  `json:"rating,omitempty"`
	Note         string    `json:"note,omitempty"`
	LikeCount    int       `json:"likes"`
	CreatedAt    time.Time `json:"created_at"`
	Comments     []Comment `json:"-"`

	// Session-local state, reset on every hydration.
	Liked       bool               `json:"-"`
	SubmitState CommentSubmitState `json:"-"`
}

type Comment struct {
	Id           string    `json:"id"`
	PostId       string    `json:"post_id"`
	AuthorName   string    `json:"author_name"`
	AuthorAvatar string    `json:"author_avatar,omitempty"`
	Text         string    `json:"text"`
	LikeCount    int       `json:"likes"`
	CreatedAt    time.Time `json:"created_at"`

	Liked bool `json:"-"`
}

// Badge derives the presentational badge: a post without a numeric rating
// carries the favorite badge.
func (p *Post) Badge() Badge {
	if p.Rating == nil {
		return Badge{Variant: BadgeFavorite, Label: FavoriteBadgeLabel}
	}
	return Badge{Variant: BadgeRating, Label: strconv.FormatFloat(*p.Rating, 'f', 1, 64)}
}

// Clone returns a deep copy, so view layers can hold snapshots without
// aliasing the store's comment slices.
func (p Post) Clone() Post {
	result := p
	if p.Comments != nil {
		result.Comments = make([]Comment, len(p.Comments))
		copy(result.Comments, p.Comments)
	}
	if p.Latitude != nil {
		lat := *p.Latitude
		result.Latitude = &lat
	}
	if p.Longitude != nil {
		lon := *p.Longitude
		result.Longitude = &lon
	}
	if p.Rating != nil {
		rating := *p.Rating
		result.Rating = &rating
	}
	return result
}
