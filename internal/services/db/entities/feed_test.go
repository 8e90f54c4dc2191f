package entities

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestBadgeDerivation(t *testing.T) {
	rating := 4.25
	rated := Post{Rating: &rating}
	assert.Equal(t, Badge{Variant: BadgeRating, Label: "4.2"}, rated.Badge())

	favorite := Post{}
	assert.Equal(t, Badge{Variant: BadgeFavorite, Label: FavoriteBadgeLabel}, favorite.Badge())
}

func TestCloneDoesNotAliasComments(t *testing.T) {
	rating := 5.0
	post := Post{
		Id:       "p1",
		Rating:   &rating,
		Comments: []Comment{{Id: "c1", Text: "original"}},
	}

	clone := post.Clone()
	clone.Comments[0].Text = "changed"
	*clone.Rating = 1.0

	assert.Equal(t, "original", post.Comments[0].Text)
	assert.Equal(t, 5.0, *post.Rating)
}
