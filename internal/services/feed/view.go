package feed

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/monngon/feed-service/internal/services/db/entities"
)

type Filter string

const (
	FilterAll   Filter = "all"
	FilterMine  Filter = "mine"
	FilterSaved Filter = "saved"
)

// ViewQuery is the set of inputs the view layer projects a snapshot through.
type ViewQuery struct {
	Filter        Filter
	Search        string
	SavedIds      map[string]bool
	CurrentUserId string
}

// Select is a pure projection: filter first, then a case-insensitive
// substring search over title and location. The snapshot's relative order
// is preserved and the input is never mutated.
func Select(posts []entities.Post, query ViewQuery) []entities.Post {
	result := make([]entities.Post, 0, len(posts))
	search := strings.ToLower(strings.TrimSpace(query.Search))
	for _, post := range posts {
		switch query.Filter {
		case FilterMine:
			if post.AuthorId == "" || post.AuthorId != query.CurrentUserId {
				continue
			}
		case FilterSaved:
			if !query.SavedIds[post.Id] {
				continue
			}
		}
		if search != "" {
			title := strings.ToLower(post.Title)
			location := strings.ToLower(post.Location)
			if !strings.Contains(title, search) && !strings.Contains(location, search) {
				continue
			}
		}
		result = append(result, post)
	}
	return result
}

// SortCommentsByLikes returns a new slice ordered most liked first, the
// ordering the comment sheet displays. Ties keep insertion order.
func SortCommentsByLikes(comments []entities.Comment) []entities.Comment {
	result := make([]entities.Comment, len(comments))
	copy(result, comments)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LikeCount > result[j].LikeCount
	})
	return result
}

// SortCommentsByRecency returns a new slice ordered most recent first.
func SortCommentsByRecency(comments []entities.Comment) []entities.Comment {
	result := make([]entities.Comment, len(comments))
	copy(result, comments)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// TimeAgoLabel renders the journal's relative timestamp.
func TimeAgoLabel(createdAt time.Time, now time.Time) string {
	mins := int(now.Sub(createdAt).Minutes())
	if mins < 1 {
		return "vừa xong"
	}
	if mins < 60 {
		return fmt.Sprintf("%d phút", mins)
	}
	hours := mins / 60
	if hours < 24 {
		return fmt.Sprintf("%d giờ", hours)
	}
	return fmt.Sprintf("%d ngày", hours/24)
}
