package feed

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/monngon/feed-service/internal/services"
	"github.com/monngon/feed-service/internal/services/db/entities"
	feedService "github.com/monngon/feed-service/internal/services/feed"
	"github.com/monngon/feed-service/internal/services/session"
)

const IdentityKey = "identity"

type CommentView struct {
	Id           string `json:"id"`
	PostId       string `json:"post_id"`
	AuthorName   string `json:"author_name"`
	AuthorAvatar string `json:"author_avatar,omitempty"`
	Text         string `json:"text"`
	Likes        int    `json:"likes"`
	Liked        bool   `json:"liked"`
	CreatedAt    string `json:"created_at"`
	TimeAgo      string `json:"time_ago"`
}

type PostView struct {
	Id           string         `json:"id"`
	AuthorId     string         `json:"author_id,omitempty"`
	AuthorName   string         `json:"author_name,omitempty"`
	AuthorAvatar string         `json:"author_avatar,omitempty"`
	Title        string         `json:"title"`
	Location     string         `json:"location,omitempty"`
	Latitude     *float64       `json:"latitude,omitempty"`
	Longitude    *float64       `json:"longitude,omitempty"`
	ImageURL     string         `json:"image_url,omitempty"`
	Badge        entities.Badge `json:"badge"`
	Note         string         `json:"note,omitempty"`
	Likes        int            `json:"likes"`
	Liked        bool           `json:"liked"`
	Saved        bool           `json:"saved"`
	Submitting   bool           `json:"submitting"`
	CreatedAt    string         `json:"created_at"`
	Comments     []CommentView  `json:"comments,omitempty"`
}

type CreatePostRequest struct {
	Title     string   `json:"title"`
	Location  string   `json:"location"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	ImageURL  string   `json:"image_url"`
	Rating    *float64 `json:"rating"`
	Note      string   `json:"note"`
}

type UpdatePostRequest struct {
	Title    *string  `json:"title"`
	Location *string  `json:"location"`
	Note     *string  `json:"note"`
	Rating   *float64 `json:"rating"`
}

type CreateCommentRequest struct {
	Text string `json:"text"`
}

func GetFeed(c *gin.Context) {
	filter := feedService.Filter(c.DefaultQuery("filter", string(feedService.FilterAll)))
	search := c.DefaultQuery("q", "")

	ident, hasSession := currentIdentity(c)
	if filter == feedService.FilterMine && !hasSession {
		c.JSON(http.StatusUnauthorized, "Sign in to see your own posts")
		return
	}

	engine := services.Instance().Feed()
	posts := engine.Feed(filter, search, ident.UserId)
	result := make([]PostView, 0, len(posts))
	for _, post := range posts {
		result = append(result, toPostView(engine, post, false))
	}
	c.JSON(http.StatusOK, result)
}

func GetPost(c *gin.Context) {
	engine := services.Instance().Feed()
	post, ok := engine.Post(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, "Post not found")
		return
	}
	c.JSON(http.StatusOK, toPostView(engine, post, true))
}

func CreatePost(c *gin.Context) {
	ident, ok := currentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, "Sign in to post")
		return
	}
	var request CreatePostRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, "Unable to parse post")
		return
	}

	location := request.Location
	if location == "" && request.Latitude != nil && request.Longitude != nil {
		location = services.Instance().Geo().ResolveLocation(c.Request.Context(), *request.Latitude, *request.Longitude)
	}

	engine := services.Instance().Feed()
	post := engine.CreatePost(ident, feedService.CreatePostInput{
		Title:     request.Title,
		Location:  location,
		Latitude:  request.Latitude,
		Longitude: request.Longitude,
		ImageURL:  request.ImageURL,
		Rating:    request.Rating,
		Note:      request.Note,
	})
	c.JSON(http.StatusCreated, toPostView(engine, post, false))
}

func UpdatePost(c *gin.Context) {
	ident, ok := currentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, "Sign in to edit")
		return
	}
	var request UpdatePostRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, "Unable to parse edit")
		return
	}
	engine := services.Instance().Feed()
	err := engine.EditPost(ident, c.Param("id"), feedService.PostEdit{
		Title:    request.Title,
		Location: request.Location,
		Note:     request.Note,
		Rating:   request.Rating,
	})
	if err != nil {
		respondMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func DeletePost(c *gin.Context) {
	ident, ok := currentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, "Sign in to delete")
		return
	}
	engine := services.Instance().Feed()
	if err := engine.DeletePost(ident, c.Param("id")); err != nil {
		respondMutationError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func ToggleLike(c *gin.Context) {
	engine := services.Instance().Feed()
	postId := c.Param("id")
	if !engine.ToggleLike(postId) {
		c.JSON(http.StatusNotFound, "Post not found")
		return
	}
	post, _ := engine.Post(postId)
	c.JSON(http.StatusOK, gin.H{"id": post.Id, "likes": post.LikeCount, "liked": post.Liked})
}

func ToggleSave(c *gin.Context) {
	engine := services.Instance().Feed()
	postId := c.Param("id")
	if _, ok := engine.Post(postId); !ok {
		c.JSON(http.StatusNotFound, "Post not found")
		return
	}
	saved := engine.ToggleSaved(postId)
	c.JSON(http.StatusOK, gin.H{"id": postId, "saved": saved})
}

func CreateComment(c *gin.Context) {
	ident, ok := currentIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, "Sign in to comment")
		return
	}
	var request CreateCommentRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, "Unable to parse comment")
		return
	}
	engine := services.Instance().Feed()
	comment, err := engine.AddComment(ident, c.Param("id"), request.Text)
	if err != nil {
		respondMutationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCommentView(comment))
}

func ToggleCommentLike(c *gin.Context) {
	engine := services.Instance().Feed()
	if !engine.ToggleCommentLike(c.Param("id"), c.Param("commentId")) {
		c.JSON(http.StatusNotFound, "Comment not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// Sync re-hydrates the feed from the remote store, discarding optimistic
// state. Session-local likes reset by design.
func Sync(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	services.Instance().Feed().Hydrate(ctx)
	c.JSON(http.StatusOK, gin.H{"posts": services.Instance().Feed().Store().Len()})
}

func respondMutationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, feedService.ErrPostNotFound):
		c.JSON(http.StatusNotFound, "Post not found")
	case errors.Is(err, feedService.ErrNotAuthor):
		c.JSON(http.StatusForbidden, "Only the author may do that")
	case errors.Is(err, feedService.ErrCommentInFlight):
		c.JSON(http.StatusConflict, "A comment for this post is already being submitted")
	case errors.Is(err, feedService.ErrEmptyComment):
		c.JSON(http.StatusBadRequest, "Comment text is empty")
	default:
		c.JSON(http.StatusInternalServerError, "Unable to apply mutation")
	}
}

func currentIdentity(c *gin.Context) (session.Identity, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return session.Identity{}, false
	}
	ident, ok := value.(session.Identity)
	return ident, ok
}

func toPostView(engine *feedService.Engine, post entities.Post, includeComments bool) PostView {
	view := PostView{
		Id:           post.Id,
		AuthorId:     post.AuthorId,
		AuthorName:   post.AuthorName,
		AuthorAvatar: post.AuthorAvatar,
		Title:        post.Title,
		Location:     post.Location,
		Latitude:     post.Latitude,
		Longitude:    post.Longitude,
		ImageURL:     post.ImageURL,
		Badge:        post.Badge(),
		Note:         post.Note,
		Likes:        post.LikeCount,
		Liked:        post.Liked,
		Saved:        engine.IsSaved(post.Id),
		Submitting:   post.SubmitState == entities.CommentSubmitting,
		CreatedAt:    post.CreatedAt.Format(time.RFC3339),
	}
	if includeComments {
		sorted := feedService.SortCommentsByLikes(post.Comments)
		view.Comments = make([]CommentView, 0, len(sorted))
		for _, comment := range sorted {
			view.Comments = append(view.Comments, toCommentView(comment))
		}
	}
	return view
}

func toCommentView(comment entities.Comment) CommentView {
	return CommentView{
		Id:           comment.Id,
		PostId:       comment.PostId,
		AuthorName:   comment.AuthorName,
		AuthorAvatar: comment.AuthorAvatar,
		Text:         comment.Text,
		Likes:        comment.LikeCount,
		Liked:        comment.Liked,
		CreatedAt:    comment.CreatedAt.Format(time.RFC3339),
		TimeAgo:      feedService.TimeAgoLabel(comment.CreatedAt, time.Now()),
	}
}
