package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/monngon/feed-service/internal/services/db/entities"
	"github.com/monngon/feed-service/internal/services/gateway"
	"github.com/monngon/feed-service/internal/services/session"
)

type fakeGateway struct {
	mu                 sync.Mutex
	failFetch          bool
	failInsertPost     bool
	failInsertComment  bool
	blockComment       chan struct{}
	posts              []entities.Post
	comments           []entities.Comment
	inserted           []entities.Post
	insertedComments   []entities.Comment
	postUpdates        map[string]gateway.PostFields
	commentLikeUpdates map[string]int
	deleted            []string
	nextId             int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		postUpdates:        make(map[string]gateway.PostFields),
		commentLikeUpdates: make(map[string]int),
	}
}

func (g *fakeGateway) issueId() string {
	g.nextId++
	return fmt.Sprintf("srv-%d", g.nextId)
}

func (g *fakeGateway) FetchAllPosts(ctx context.Context) ([]entities.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failFetch {
		return nil, fmt.Errorf("store unavailable")
	}
	return append([]entities.Post(nil), g.posts...), nil
}

func (g *fakeGateway) FetchCommentsForPosts(ctx context.Context, postIds []string) ([]entities.Comment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]entities.Comment(nil), g.comments...), nil
}

func (g *fakeGateway) InsertPost(ctx context.Context, post entities.Post) (gateway.Created, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failInsertPost {
		return gateway.Created{}, fmt.Errorf("insert rejected")
	}
	created := gateway.Created{Id: g.issueId(), CreatedAt: time.Now()}
	post.Id = created.Id
	g.inserted = append(g.inserted, post)
	return created, nil
}

func (g *fakeGateway) UpdatePost(ctx context.Context, id string, fields gateway.PostFields) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.postUpdates[id] = fields
	return nil
}

func (g *fakeGateway) DeletePost(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, id)
	return nil
}

func (g *fakeGateway) InsertComment(ctx context.Context, comment entities.Comment) (gateway.Created, error) {
	if g.blockComment != nil {
		<-g.blockComment
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failInsertComment {
		return gateway.Created{}, fmt.Errorf("insert rejected")
	}
	created := gateway.Created{Id: g.issueId(), CreatedAt: time.Now()}
	comment.Id = created.Id
	g.insertedComments = append(g.insertedComments, comment)
	return created, nil
}

func (g *fakeGateway) UpdateCommentLikes(ctx context.Context, commentId string, likes int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commentLikeUpdates[commentId] = likes
	return nil
}

func (g *fakeGateway) Shutdown() error {
	return nil
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) record(notice Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, notice)
}

func (r *noticeRecorder) ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]string, 0, len(r.notices))
	for _, notice := range r.notices {
		result = append(result, notice.Op)
	}
	return result
}

func newTestEngine(gw *fakeGateway) (*Engine, *noticeRecorder) {
	recorder := &noticeRecorder{}
	engine := CreateEngine(EngineConfig{
		Gateway:     gw,
		CallTimeout: 5 * time.Second,
		Notify:      recorder.record,
	})
	return engine, recorder
}

var mai = session.Identity{UserId: "u1", Name: "Mai"}
var lan = session.Identity{UserId: "u2", Name: "Lan"}

func TestCreatePostReconcilesIdentity(t *testing.T) {
	gw := newFakeGateway()
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	five := 5.0
	post := engine.CreatePost(mai, CreatePostInput{Title: "Bún Chả Hương Liên", Rating: &five})
	// The UI sees the post before any network round-trip completes.
	assert.Equal(t, true, IsTempId(post.Id))
	assert.Equal(t, 1, engine.Store().Len())

	engine.Drain()

	got, ok := engine.Post("srv-1")
	assert.Equal(t, true, ok)
	assert.Equal(t, "Bún Chả Hương Liên", got.Title)
	assert.Equal(t, "u1", got.AuthorId)
	assert.Equal(t, "Mai", got.AuthorName)
	assert.Equal(t, entities.BadgeRating, got.Badge().Variant)
	assert.Equal(t, "5.0", got.Badge().Label)
	assert.Equal(t, 1, engine.Store().Len())
}

func TestCreatePostFailureKeepsOptimisticPost(t *testing.T) {
	gw := newFakeGateway()
	gw.failInsertPost = true
	engine, recorder := newTestEngine(gw)

	post := engine.CreatePost(mai, CreatePostInput{Title: "Cơm Tấm Cali"})
	engine.Drain()

	// No automatic removal: the post stays under its temporary identity.
	got, ok := engine.Post(post.Id)
	assert.Equal(t, true, ok)
	assert.Equal(t, true, IsTempId(got.Id))
	assert.Equal(t, []string{"insert post"}, recorder.ops())
}

func TestCreatePostFallsBackToLocationTitle(t *testing.T) {
	gw := newFakeGateway()
	engine, _ := newTestEngine(gw)

	post := engine.CreatePost(mai, CreatePostInput{Location: "Hà Nội"})
	assert.Equal(t, "Hà Nội", post.Title)

	post = engine.CreatePost(mai, CreatePostInput{})
	assert.Equal(t, defaultPostTitle, post.Title)
	// No rating marks a favorite entry.
	assert.Equal(t, entities.BadgeFavorite, post.Badge().Variant)
	engine.Drain()
}

func TestToggleLikeUpAndDown(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1", Title: "Phở", LikeCount: 3}}
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	assert.Equal(t, true, engine.ToggleLike("p1"))
	got, _ := engine.Post("p1")
	assert.Equal(t, 4, got.LikeCount)
	assert.Equal(t, true, got.Liked)
	engine.Drain()
	assert.Equal(t, 4, *gw.postUpdates["p1"].Likes)

	assert.Equal(t, true, engine.ToggleLike("p1"))
	got, _ = engine.Post("p1")
	assert.Equal(t, 3, got.LikeCount)
	assert.Equal(t, false, got.Liked)
	engine.Drain()
	assert.Equal(t, 3, *gw.postUpdates["p1"].Likes)
}

func TestRapidTogglesComputeFromCurrentState(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1", LikeCount: 3}}
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	// An even number of toggles always returns to the initial count.
	for i := 0; i < 100; i++ {
		engine.ToggleLike("p1")
	}
	got, _ := engine.Post("p1")
	assert.Equal(t, 3, got.LikeCount)
	assert.Equal(t, false, got.Liked)
	engine.Drain()
}

func TestLikeCountNeverNegative(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1", LikeCount: 0}}
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	engine.ToggleLike("p1")
	engine.ToggleLike("p1")
	got, _ := engine.Post("p1")
	assert.Equal(t, 0, got.LikeCount)
	engine.Drain()
}

func TestToggleLikeAbsentPost(t *testing.T) {
	gw := newFakeGateway()
	engine, _ := newTestEngine(gw)
	assert.Equal(t, false, engine.ToggleLike("nope"))
}

func TestToggleCommentLike(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1"}}
	gw.comments = []entities.Comment{{Id: "c1", PostId: "p1", LikeCount: 1}}
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	assert.Equal(t, true, engine.ToggleCommentLike("p1", "c1"))
	got, _ := engine.Post("p1")
	assert.Equal(t, 2, got.Comments[0].LikeCount)
	assert.Equal(t, true, got.Comments[0].Liked)

	engine.Drain()
	assert.Equal(t, 2, gw.commentLikeUpdates["c1"])
}

func TestCommentSubmissionGateIsPerPost(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1"}, {Id: "p2"}}
	gw.blockComment = make(chan struct{})
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	_, err := engine.AddComment(mai, "p1", "xin chào")
	assert.Equal(t, nil, err)

	// The optimistic comment is visible while the call is outstanding.
	got, _ := engine.Post("p1")
	assert.Equal(t, 1, len(got.Comments))
	assert.Equal(t, true, IsTempId(got.Comments[0].Id))
	assert.Equal(t, entities.CommentSubmitting, got.SubmitState)

	// A second submission for the same post is rejected while in flight.
	_, err = engine.AddComment(mai, "p1", "lần nữa")
	assert.Equal(t, ErrCommentInFlight, err)

	// Another post is unaffected.
	_, err = engine.AddComment(mai, "p2", "ngon quá")
	assert.Equal(t, nil, err)

	close(gw.blockComment)
	engine.Drain()

	got, _ = engine.Post("p1")
	assert.Equal(t, entities.CommentIdle, got.SubmitState)
	assert.Equal(t, 2, len(gw.insertedComments))
}

func TestCommentSuccessReconcilesAndClearsDraft(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1"}}
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	comment, err := engine.AddComment(mai, "p1", "ngon tuyệt")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, IsTempId(comment.Id))

	engine.Drain()

	got, _ := engine.Post("p1")
	assert.Equal(t, 1, len(got.Comments))
	assert.Equal(t, "srv-1", got.Comments[0].Id)
	assert.Equal(t, "ngon tuyệt", got.Comments[0].Text)
	assert.Equal(t, "", engine.Draft("p1"))
}

func TestCommentFailurePreservesDraftForRetry(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1"}}
	gw.failInsertComment = true
	engine, recorder := newTestEngine(gw)
	engine.Hydrate(context.Background())

	_, err := engine.AddComment(mai, "p1", "văn bản soạn dở")
	assert.Equal(t, nil, err)
	engine.Drain()

	// The machine is idle again, the composed text survives, and the
	// optimistic comment is not rolled back.
	got, _ := engine.Post("p1")
	assert.Equal(t, entities.CommentIdle, got.SubmitState)
	assert.Equal(t, "văn bản soạn dở", engine.Draft("p1"))
	assert.Equal(t, 1, len(got.Comments))
	assert.Equal(t, []string{"insert comment"}, recorder.ops())

	// The user can retry without retyping.
	gw.failInsertComment = false
	_, err = engine.AddComment(mai, "p1", engine.Draft("p1"))
	assert.Equal(t, nil, err)
	engine.Drain()
	assert.Equal(t, "", engine.Draft("p1"))
}

func TestAddCommentValidation(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1"}}
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	_, err := engine.AddComment(mai, "p1", "   ")
	assert.Equal(t, ErrEmptyComment, err)

	_, err = engine.AddComment(mai, "nope", "hello")
	assert.Equal(t, ErrPostNotFound, err)
}

func TestHydrateFailureLeavesEmptyFeed(t *testing.T) {
	gw := newFakeGateway()
	gw.failFetch = true
	engine, recorder := newTestEngine(gw)

	engine.Hydrate(context.Background())

	assert.Equal(t, 0, engine.Store().Len())
	assert.Equal(t, []string{"hydrate"}, recorder.ops())
}

func TestHydrateAttachesCommentsAndResetsLikes(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1", LikeCount: 7}}
	gw.comments = []entities.Comment{
		{Id: "c1", PostId: "p1", Text: "a"},
		{Id: "c2", PostId: "p1", Text: "b"},
	}
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	got, _ := engine.Post("p1")
	assert.Equal(t, 2, len(got.Comments))
	assert.Equal(t, 7, got.LikeCount)
	assert.Equal(t, false, got.Liked)
}

func TestEditPostAuthorOnly(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1", AuthorId: "u1", Title: "cũ"}}
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	title := "mới"
	err := engine.EditPost(lan, "p1", PostEdit{Title: &title})
	assert.Equal(t, ErrNotAuthor, err)

	err = engine.EditPost(mai, "p1", PostEdit{Title: &title})
	assert.Equal(t, nil, err)
	got, _ := engine.Post("p1")
	assert.Equal(t, "mới", got.Title)

	engine.Drain()
	assert.Equal(t, "mới", *gw.postUpdates["p1"].Title)
}

func TestDeletePostAuthorOnly(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1", AuthorId: "u1"}}
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	err := engine.DeletePost(lan, "p1")
	assert.Equal(t, ErrNotAuthor, err)
	assert.Equal(t, 1, engine.Store().Len())

	err = engine.DeletePost(mai, "p1")
	assert.Equal(t, nil, err)
	// Local removal is immediate; remote deletion is fire-and-forget.
	assert.Equal(t, 0, engine.Store().Len())

	engine.Drain()
	assert.Equal(t, []string{"p1"}, gw.deleted)
}

func TestToggleSaved(t *testing.T) {
	gw := newFakeGateway()
	gw.posts = []entities.Post{{Id: "p1", AuthorId: "u1"}, {Id: "p2", AuthorId: "u2"}}
	engine, _ := newTestEngine(gw)
	engine.Hydrate(context.Background())

	assert.Equal(t, true, engine.ToggleSaved("p1"))
	assert.Equal(t, true, engine.IsSaved("p1"))

	result := engine.Feed(FilterSaved, "", "u1")
	assert.Equal(t, 1, len(result))
	assert.Equal(t, "p1", result[0].Id)

	assert.Equal(t, false, engine.ToggleSaved("p1"))
	assert.Equal(t, false, engine.IsSaved("p1"))
	assert.Equal(t, 0, len(engine.Feed(FilterSaved, "", "u1")))
}

func TestLateLikeDispatchUsesCanonicalIdentity(t *testing.T) {
	gw := newFakeGateway()
	engine, _ := newTestEngine(gw)

	post := engine.CreatePost(mai, CreatePostInput{Title: "Phở"})
	engine.Drain()

	// The reconciled post is addressable by its stale temporary id too; the
	// remote update reaches the canonical entity.
	assert.Equal(t, "srv-1", engine.resolve(post.Id))
	assert.Equal(t, true, engine.ToggleLike("srv-1"))
	engine.Drain()
	_, ok := gw.postUpdates["srv-1"]
	assert.Equal(t, true, ok)
}
