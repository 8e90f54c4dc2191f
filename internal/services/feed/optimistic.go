package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/monngon/feed-service/internal/pkg/log"
	"github.com/monngon/feed-service/internal/services/db/entities"
	"github.com/monngon/feed-service/internal/services/gateway"
	"github.com/monngon/feed-service/internal/services/session"
)

var (
	ErrCommentInFlight = errors.New("a comment submission for this post is already in flight")
	ErrEmptyComment    = errors.New("comment text is empty")
	ErrPostNotFound    = errors.New("no such post")
	ErrNotAuthor       = errors.New("only the author may change this post")
)

const defaultPostTitle = "Món ngon"

// Notice is a non-blocking failure report. Every gateway failure funnels
// through the engine's single NoticeFunc; the Op field lets a presentation
// layer decide which operations deserve a visible toast.
type Notice struct {
	Op       string
	EntityId string
	Err      error
	Time     time.Time
}

type NoticeFunc func(notice Notice)

// CreatePostInput is the capture subsystem's hand-off: an uploaded image
// URL plus the user-entered metadata of one journal entry. A nil Rating
// marks the entry as a favorite instead of a rated dish.
type CreatePostInput struct {
	Title     string
	Location  string
	Latitude  *float64
	Longitude *float64
	ImageURL  string
	Rating    *float64
	Note      string
}

// PostEdit is a partial edit of author-owned display metadata.
type PostEdit struct {
	Title    *string
	Location *string
	Note     *string
	Rating   *float64
}

// Engine applies every user-initiated write to the FeedStore immediately
// and reconciles with the remote store asynchronously. Gateway outcomes
// never block or roll back optimistic state: a creation's confirmation only
// swaps the temporary identity for the canonical one, and a failure only
// raises a notice. The engine models a single session; liked flags, the
// saved set and composed drafts all reset with the process.
type Engine struct {
	store      *FeedStore
	gateway    gateway.Gateway
	dispatcher *Dispatcher
	notify     NoticeFunc

	mu      sync.Mutex
	saved   map[string]bool
	drafts  map[string]string
	aliases map[string]string // temporary post id -> canonical id, kept so late completions still find their target
}

type EngineConfig struct {
	Gateway     gateway.Gateway
	CallTimeout time.Duration
	Notify      NoticeFunc
}

func CreateEngine(config EngineConfig) *Engine {
	notify := config.Notify
	if notify == nil {
		notify = func(notice Notice) {
			log.Error("mutation failed", notice.Op+" ("+notice.EntityId+"): "+notice.Err.Error())
		}
	}
	callTimeout := config.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Engine{
		store:      CreateFeedStore(),
		gateway:    config.Gateway,
		dispatcher: CreateDispatcher(callTimeout),
		notify:     notify,
		saved:      make(map[string]bool),
		drafts:     make(map[string]string),
		aliases:    make(map[string]string),
	}
}

func (e *Engine) Store() *FeedStore {
	return e.store
}

// Hydrate loads the remote feed once. A failed fetch leaves the feed empty
// and raises a notice; it never propagates. Per-user like state does not
// exist remotely, so hydration resets every liked flag.
func (e *Engine) Hydrate(ctx context.Context) {
	posts, err := e.gateway.FetchAllPosts(ctx)
	if err != nil {
		e.notify(Notice{Op: "hydrate", Err: err, Time: time.Now()})
		e.store.Hydrate(nil)
		return
	}
	postIds := make([]string, 0, len(posts))
	for _, post := range posts {
		postIds = append(postIds, post.Id)
	}
	comments, err := e.gateway.FetchCommentsForPosts(ctx, postIds)
	if err != nil {
		// The feed is still usable without comments.
		e.notify(Notice{Op: "hydrate comments", Err: err, Time: time.Now()})
		comments = nil
	}
	byPost := make(map[string][]entities.Comment)
	for _, comment := range comments {
		byPost[comment.PostId] = append(byPost[comment.PostId], comment)
	}
	for i := range posts {
		posts[i].Comments = byPost[posts[i].Id]
	}
	e.store.Hydrate(posts)
}

// CreatePost stages a new post under a temporary identity, prepends it to
// the feed, and dispatches the remote insert. The returned post is the
// optimistic record; its identity is swapped in place once the remote store
// confirms.
func (e *Engine) CreatePost(ident session.Identity, input CreatePostInput) entities.Post {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = strings.TrimSpace(input.Location)
	}
	if title == "" {
		title = defaultPostTitle
	}
	post := entities.Post{
		Id:           NewTempId(),
		AuthorId:     ident.UserId,
		AuthorName:   ident.Name,
		AuthorAvatar: ident.AvatarURL,
		Title:        title,
		Location:     input.Location,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		ImageURL:     input.ImageURL,
		Rating:       input.Rating,
		Note:         input.Note,
		CreatedAt:    time.Now(),
	}
	e.store.InsertLocal(post)

	tempId := post.Id
	var created gateway.Created
	e.dispatcher.Dispatch("insert post",
		func(ctx context.Context) error {
			var err error
			created, err = e.gateway.InsertPost(ctx, post)
			return err
		},
		func(err error) {
			if err != nil {
				// The optimistic post stays visible under its temporary
				// identity; the divergence is surfaced, not repaired.
				e.notify(Notice{Op: "insert post", EntityId: tempId, Err: err, Time: time.Now()})
				return
			}
			e.recordAlias(tempId, created.Id)
			e.store.ReconcileIdentity(tempId, created.Id)
		})
	return post
}

// ToggleLike flips the session-local heart of a post and moves the shared
// counter by exactly one. The new state is computed from the store's
// current value inside the mutation, so rapid toggles cannot act on a stale
// snapshot. Returns false when the post is absent.
func (e *Engine) ToggleLike(postId string) bool {
	var likes int
	found := e.store.Mutate(postId, func(post *entities.Post) {
		if post.Liked {
			post.Liked = false
			if post.LikeCount > 0 {
				post.LikeCount--
			}
		} else {
			post.Liked = true
			post.LikeCount++
		}
		likes = post.LikeCount
	})
	if !found {
		return false
	}
	remoteId := e.resolve(postId)
	e.dispatcher.Dispatch("update post likes",
		func(ctx context.Context) error {
			return e.gateway.UpdatePost(ctx, remoteId, gateway.PostFields{Likes: &likes})
		},
		func(err error) {
			if err != nil {
				e.notify(Notice{Op: "update post likes", EntityId: remoteId, Err: err, Time: time.Now()})
			}
		})
	return true
}

// ToggleCommentLike is ToggleLike for a single comment.
func (e *Engine) ToggleCommentLike(postId string, commentId string) bool {
	var likes int
	found := e.store.MutateComment(postId, commentId, func(comment *entities.Comment) {
		if comment.Liked {
			comment.Liked = false
			if comment.LikeCount > 0 {
				comment.LikeCount--
			}
		} else {
			comment.Liked = true
			comment.LikeCount++
		}
		likes = comment.LikeCount
	})
	if !found {
		return false
	}
	remoteId := e.resolve(commentId)
	e.dispatcher.Dispatch("update comment likes",
		func(ctx context.Context) error {
			return e.gateway.UpdateCommentLikes(ctx, remoteId, likes)
		},
		func(err error) {
			if err != nil {
				e.notify(Notice{Op: "update comment likes", EntityId: remoteId, Err: err, Time: time.Now()})
			}
		})
	return true
}

// AddComment stages a comment optimistically and dispatches the remote
// insert. Submission is gated per post: while one submission is in flight
// the post rejects another, other posts are unaffected. The composed text
// is kept as the post's draft and cleared only on remote success, so a
// failed submission can be retried without retyping.
func (e *Engine) AddComment(ident session.Identity, postId string, text string) (entities.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return entities.Comment{}, ErrEmptyComment
	}
	gated := false
	found := e.store.Mutate(postId, func(post *entities.Post) {
		if post.SubmitState == entities.CommentSubmitting {
			gated = true
			return
		}
		post.SubmitState = entities.CommentSubmitting
	})
	if !found {
		return entities.Comment{}, ErrPostNotFound
	}
	if gated {
		return entities.Comment{}, ErrCommentInFlight
	}
	e.setDraft(postId, text)

	comment := entities.Comment{
		Id:           NewTempId(),
		PostId:       postId,
		AuthorName:   ident.Name,
		AuthorAvatar: ident.AvatarURL,
		Text:         text,
		CreatedAt:    time.Now(),
	}
	e.store.AppendComment(postId, comment)

	tempId := comment.Id
	var created gateway.Created
	e.dispatcher.Dispatch("insert comment",
		func(ctx context.Context) error {
			toInsert := comment
			toInsert.PostId = e.resolve(postId)
			var err error
			created, err = e.gateway.InsertComment(ctx, toInsert)
			return err
		},
		func(err error) {
			defer e.idleSubmitState(postId)
			if err != nil {
				e.notify(Notice{Op: "insert comment", EntityId: tempId, Err: err, Time: time.Now()})
				return
			}
			e.store.ReconcileIdentity(tempId, created.Id)
			e.clearDraft(postId)
		})
	return comment, nil
}

// Draft returns the post's composed comment text that has not yet been
// confirmed by the remote store.
func (e *Engine) Draft(postId string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drafts[postId]
}

// EditPost applies an author-only partial edit locally and dispatches it.
func (e *Engine) EditPost(ident session.Identity, postId string, edit PostEdit) error {
	if err := e.requireAuthor(ident, postId); err != nil {
		return err
	}
	e.store.Mutate(postId, func(post *entities.Post) {
		if edit.Title != nil {
			post.Title = *edit.Title
		}
		if edit.Location != nil {
			post.Location = *edit.Location
		}
		if edit.Note != nil {
			post.Note = *edit.Note
		}
		if edit.Rating != nil {
			post.Rating = edit.Rating
		}
	})
	remoteId := e.resolve(postId)
	e.dispatcher.Dispatch("update post",
		func(ctx context.Context) error {
			return e.gateway.UpdatePost(ctx, remoteId, gateway.PostFields{
				Title:    edit.Title,
				Location: edit.Location,
				Note:     edit.Note,
				Rating:   edit.Rating,
			})
		},
		func(err error) {
			if err != nil {
				e.notify(Notice{Op: "update post", EntityId: remoteId, Err: err, Time: time.Now()})
			}
		})
	return nil
}

// DeletePost removes an author-owned post locally at once; the remote
// deletion is fire-and-forget.
func (e *Engine) DeletePost(ident session.Identity, postId string) error {
	if err := e.requireAuthor(ident, postId); err != nil {
		return err
	}
	e.store.Remove(postId)
	remoteId := e.resolve(postId)
	e.dispatcher.Dispatch("delete post",
		func(ctx context.Context) error {
			return e.gateway.DeletePost(ctx, remoteId)
		},
		func(err error) {
			if err != nil {
				e.notify(Notice{Op: "delete post", EntityId: remoteId, Err: err, Time: time.Now()})
			}
		})
	return nil
}

// ToggleSaved flips a post's membership in the session-local saved set and
// returns the new state. Saving is independent of liking and never leaves
// the process.
func (e *Engine) ToggleSaved(postId string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.saved[postId] {
		delete(e.saved, postId)
		return false
	}
	e.saved[postId] = true
	return true
}

func (e *Engine) IsSaved(postId string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saved[postId]
}

// Feed projects the current snapshot through the view layer.
func (e *Engine) Feed(filter Filter, search string, currentUserId string) []entities.Post {
	return Select(e.store.Snapshot(), ViewQuery{
		Filter:        filter,
		Search:        search,
		SavedIds:      e.savedIds(),
		CurrentUserId: currentUserId,
	})
}

func (e *Engine) Post(postId string) (entities.Post, bool) {
	return e.store.Get(postId)
}

// Drain waits for every in-flight gateway call; used on shutdown.
func (e *Engine) Drain() {
	e.dispatcher.Drain()
}

func (e *Engine) requireAuthor(ident session.Identity, postId string) error {
	post, ok := e.store.Get(postId)
	if !ok {
		return ErrPostNotFound
	}
	if ident.UserId == "" || post.AuthorId != ident.UserId {
		return ErrNotAuthor
	}
	return nil
}

func (e *Engine) savedIds() map[string]bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make(map[string]bool, len(e.saved))
	for id := range e.saved {
		result[id] = true
	}
	return result
}

func (e *Engine) setDraft(postId string, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drafts[postId] = text
}

func (e *Engine) clearDraft(postId string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.drafts, postId)
}

func (e *Engine) recordAlias(tempId string, canonicalId string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aliases[tempId] = canonicalId
}

// resolve maps a possibly-temporary identity to the canonical one when the
// reconciliation has already happened, so completions and follow-up
// mutations dispatched against a stale id still reach the remote entity.
func (e *Engine) resolve(id string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if canonical, ok := e.aliases[id]; ok {
		return canonical
	}
	return id
}

// idleSubmitState returns a post's comment machine to idle, trying the
// canonical identity when the post was reconciled while the call was in
// flight.
func (e *Engine) idleSubmitState(postId string) {
	reset := func(post *entities.Post) {
		post.SubmitState = entities.CommentIdle
	}
	if !e.store.Mutate(postId, reset) {
		e.store.Mutate(e.resolve(postId), reset)
	}
}
