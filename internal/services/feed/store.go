package feed

import (
	"sync"

	"github.com/monngon/feed-service/internal/services/db/entities"
)

// FeedStore is the single source of truth for the current session's posts.
// Every operation is synchronous and holds no network state; mutations
// arriving from completed gateway calls re-enter through the same lock as
// UI-initiated ones, which serializes them into one total order.
//
// Absent targets are never an error: a reconciliation or mutation may race
// a local delete, and losing that race is legal.
type FeedStore struct {
	posts []entities.Post
	rwm   sync.RWMutex
}

func CreateFeedStore() *FeedStore {
	return &FeedStore{
		posts: make([]entities.Post, 0),
	}
}

// Hydrate replaces the entire collection. Session-local state is reset:
// the remote store keeps no per-user like ledger, so every post comes back
// unliked and idle.
func (store *FeedStore) Hydrate(posts []entities.Post) {
	store.rwm.Lock()
	defer store.rwm.Unlock()
	store.posts = make([]entities.Post, 0, len(posts))
	for _, post := range posts {
		p := post.Clone()
		p.Liked = false
		p.SubmitState = entities.CommentIdle
		for i := range p.Comments {
			p.Comments[i].Liked = false
		}
		store.posts = append(store.posts, p)
	}
}

// InsertLocal prepends a new post; the feed's canonical ordering is most
// recent first. A post whose identity is already held is skipped, keeping
// identities unique.
func (store *FeedStore) InsertLocal(post entities.Post) {
	store.rwm.Lock()
	defer store.rwm.Unlock()
	if store.indexOf(post.Id) >= 0 {
		return
	}
	resliced := make([]entities.Post, 0, len(store.posts)+1)
	resliced = append(resliced, post.Clone())
	resliced = append(resliced, store.posts...)
	store.posts = resliced
}

// ReconcileIdentity swaps a temporary identity for the canonical one issued
// by the remote store, leaving every other field untouched. It is a no-op
// when the entity has been deleted locally in the interim.
func (store *FeedStore) ReconcileIdentity(tempId string, canonicalId string) {
	store.rwm.Lock()
	defer store.rwm.Unlock()
	if i := store.indexOf(tempId); i >= 0 {
		store.posts[i].Id = canonicalId
		for j := range store.posts[i].Comments {
			store.posts[i].Comments[j].PostId = canonicalId
		}
		return
	}
	for i := range store.posts {
		comments := store.posts[i].Comments
		for j := range comments {
			if comments[j].Id == tempId {
				comments[j].Id = canonicalId
				return
			}
		}
	}
}

// Mutate applies a transformation to exactly one post. The updater sees the
// current value, so read-modify-write sequences cannot act on a stale
// snapshot. Returns false when the post is absent.
func (store *FeedStore) Mutate(id string, updater func(post *entities.Post)) bool {
	store.rwm.Lock()
	defer store.rwm.Unlock()
	i := store.indexOf(id)
	if i < 0 {
		return false
	}
	updater(&store.posts[i])
	return true
}

// MutateComment is Mutate for a single comment of a post.
func (store *FeedStore) MutateComment(postId string, commentId string, updater func(comment *entities.Comment)) bool {
	store.rwm.Lock()
	defer store.rwm.Unlock()
	i := store.indexOf(postId)
	if i < 0 {
		return false
	}
	comments := store.posts[i].Comments
	for j := range comments {
		if comments[j].Id == commentId {
			updater(&comments[j])
			return true
		}
	}
	return false
}

func (store *FeedStore) Remove(id string) {
	store.rwm.Lock()
	defer store.rwm.Unlock()
	i := store.indexOf(id)
	if i < 0 {
		return
	}
	resliced := make([]entities.Post, 0, cap(store.posts))
	resliced = append(resliced, store.posts[:i]...)
	resliced = append(resliced, store.posts[i+1:]...)
	store.posts = resliced
}

// AppendComment adds a comment to the end of a post's comment sequence;
// storage order is insertion order, display ordering is a view concern.
func (store *FeedStore) AppendComment(postId string, comment entities.Comment) {
	store.rwm.Lock()
	defer store.rwm.Unlock()
	i := store.indexOf(postId)
	if i < 0 {
		return
	}
	for _, c := range store.posts[i].Comments {
		if c.Id == comment.Id {
			return
		}
	}
	comment.PostId = store.posts[i].Id
	store.posts[i].Comments = append(store.posts[i].Comments, comment)
}

func (store *FeedStore) RemoveComment(postId string, commentId string) {
	store.rwm.Lock()
	defer store.rwm.Unlock()
	i := store.indexOf(postId)
	if i < 0 {
		return
	}
	comments := store.posts[i].Comments
	for j := range comments {
		if comments[j].Id == commentId {
			resliced := make([]entities.Comment, 0, cap(comments))
			resliced = append(resliced, comments[:j]...)
			resliced = append(resliced, comments[j+1:]...)
			store.posts[i].Comments = resliced
			return
		}
	}
}

// Get returns a deep copy of one post.
func (store *FeedStore) Get(id string) (entities.Post, bool) {
	store.rwm.RLock()
	defer store.rwm.RUnlock()
	i := store.indexOf(id)
	if i < 0 {
		return entities.Post{}, false
	}
	return store.posts[i].Clone(), true
}

// Snapshot returns a deep copy of the whole collection in storage order.
func (store *FeedStore) Snapshot() []entities.Post {
	store.rwm.RLock()
	defer store.rwm.RUnlock()
	result := make([]entities.Post, 0, len(store.posts))
	for _, post := range store.posts {
		result = append(result, post.Clone())
	}
	return result
}

func (store *FeedStore) Len() int {
	store.rwm.RLock()
	defer store.rwm.RUnlock()
	return len(store.posts)
}

func (store *FeedStore) indexOf(id string) int {
	for i := range store.posts {
		if store.posts[i].Id == id {
			return i
		}
	}
	return -1
}
