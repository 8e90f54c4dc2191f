package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oklog/ulid/v2"

	"github.com/monngon/feed-service/internal/services/db/entities"
)

/*
Redis layout of the remote store:
HASHMAP (REDIS_POSTS_KEY): post_id -> {full json post info}
SORTEDSET (REDIS_FEED_KEY): [(-create_date, post_id) ...]

HASHMAP (REDIS_COMMENTS_KEY): comment_id -> {full json comment info}
SORTEDSET (post_id_comments): [(create_date, comment_id) ...]

The feed set is scored by negative create date so an ascending range walk
returns most recent posts first. Comment sets are scored by create date, so
an ascending walk returns insertion order.
*/

const (
	REDIS_POSTS_KEY    = "posts"
	REDIS_FEED_KEY     = "feed"
	REDIS_COMMENTS_KEY = "comments"
)

type RedisGateway struct {
	client       *redis.Client
	queryTimeout time.Duration
}

func CreateRedisGateway(addr string, password string, db int, queryTimeout time.Duration) *RedisGateway {
	return &RedisGateway{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		queryTimeout: queryTimeout,
	}
}

func (g *RedisGateway) Shutdown() error {
	return g.client.Close()
}

func (g *RedisGateway) withTimeout(parent context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, g.queryTimeout)
	defer cancel()
	return fn(ctx)
}

func (g *RedisGateway) FetchAllPosts(parent context.Context) ([]entities.Post, error) {
	result := make([]entities.Post, 0)
	err := g.withTimeout(parent, func(ctx context.Context) error {
		postIds, err := g.client.ZRangeByScore(ctx, REDIS_FEED_KEY, &redis.ZRangeBy{
			Min: "-inf",
			Max: "+inf",
		}).Result()
		if err != nil {
			return fmt.Errorf("unable to read feed set: %v", err)
		}
		for _, postId := range postIds {
			postStr, err := g.client.HGet(ctx, REDIS_POSTS_KEY, PostKey(postId)).Result()
			if err != nil {
				return fmt.Errorf("unable to get feed post '%v': %v", postId, err)
			}
			var post entities.Post
			if err := json.Unmarshal([]byte(postStr), &post); err != nil {
				return fmt.Errorf("unable to unmarshal feed post '%v': %v", postId, err)
			}
			result = append(result, post)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (g *RedisGateway) FetchCommentsForPosts(parent context.Context, postIds []string) ([]entities.Comment, error) {
	result := make([]entities.Comment, 0)
	err := g.withTimeout(parent, func(ctx context.Context) error {
		for _, postId := range postIds {
			commentIds, err := g.client.ZRangeByScore(ctx, PostCommentsKey(postId), &redis.ZRangeBy{
				Min: "-inf",
				Max: "+inf",
			}).Result()
			if err != nil {
				return fmt.Errorf("unable to read comments set of post '%v': %v", postId, err)
			}
			if len(commentIds) == 0 {
				continue
			}
			commentKeys := make([]string, 0, len(commentIds))
			for _, commentId := range commentIds {
				commentKeys = append(commentKeys, CommentKey(commentId))
			}
			commentVals, err := g.client.HMGet(ctx, REDIS_COMMENTS_KEY, commentKeys...).Result()
			if err != nil {
				return fmt.Errorf("unable to get comments of post '%v': %v", postId, err)
			}
			for _, commentVal := range commentVals {
				commentStr, ok := commentVal.(string)
				if !ok {
					return fmt.Errorf("unable to cast comment json to string")
				}
				var comment entities.Comment
				if err := json.Unmarshal([]byte(commentStr), &comment); err != nil {
					return fmt.Errorf("unable to unmarshal comment: %v", err)
				}
				result = append(result, comment)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (g *RedisGateway) InsertPost(parent context.Context, post entities.Post) (Created, error) {
	created := Created{Id: ulid.Make().String(), CreatedAt: time.Now().UTC()}
	post.Id = created.Id
	post.CreatedAt = created.CreatedAt
	post.Comments = nil
	postVal, err := json.Marshal(post)
	if err != nil {
		return Created{}, fmt.Errorf("unable to marshal post: %v", err)
	}
	err = g.withTimeout(parent, func(ctx context.Context) error {
		if err := g.client.HSet(ctx, REDIS_POSTS_KEY, PostKey(post.Id), string(postVal)).Err(); err != nil {
			return err
		}
		return g.client.ZAdd(ctx, REDIS_FEED_KEY, &redis.Z{
			Score:  float64(post.CreatedAt.Unix() * -1),
			Member: post.Id,
		}).Err()
	})
	if err != nil {
		return Created{}, fmt.Errorf("unable to insert post: %v", err)
	}
	return created, nil
}

func (g *RedisGateway) UpdatePost(parent context.Context, id string, fields PostFields) error {
	return g.withTimeout(parent, func(ctx context.Context) error {
		postStr, err := g.client.HGet(ctx, REDIS_POSTS_KEY, PostKey(id)).Result()
		if err != nil {
			return fmt.Errorf("unable to get feed post '%v': %v", id, err)
		}
		var post entities.Post
		if err := json.Unmarshal([]byte(postStr), &post); err != nil {
			return fmt.Errorf("unable to unmarshal feed post '%v': %v", id, err)
		}
		applyPostFields(&post, fields)
		postVal, err := json.Marshal(post)
		if err != nil {
			return fmt.Errorf("unable to marshal post '%v': %v", id, err)
		}
		return g.client.HSet(ctx, REDIS_POSTS_KEY, PostKey(id), string(postVal)).Err()
	})
}

func (g *RedisGateway) DeletePost(parent context.Context, id string) error {
	return g.withTimeout(parent, func(ctx context.Context) error {
		commentIds, err := g.client.ZRangeByScore(ctx, PostCommentsKey(id), &redis.ZRangeBy{
			Min: "-inf",
			Max: "+inf",
		}).Result()
		if err != nil {
			return fmt.Errorf("unable to read comments set of post '%v': %v", id, err)
		}
		for _, commentId := range commentIds {
			if err := g.client.HDel(ctx, REDIS_COMMENTS_KEY, CommentKey(commentId)).Err(); err != nil {
				return fmt.Errorf("unable to delete comment '%v': %v", commentId, err)
			}
		}
		if err := g.client.Del(ctx, PostCommentsKey(id)).Err(); err != nil {
			return fmt.Errorf("unable to delete comments set of post '%v': %v", id, err)
		}
		if err := g.client.ZRem(ctx, REDIS_FEED_KEY, id).Err(); err != nil {
			return fmt.Errorf("unable to remove post '%v' from feed set: %v", id, err)
		}
		return g.client.HDel(ctx, REDIS_POSTS_KEY, PostKey(id)).Err()
	})
}

func (g *RedisGateway) InsertComment(parent context.Context, comment entities.Comment) (Created, error) {
	created := Created{Id: ulid.Make().String(), CreatedAt: time.Now().UTC()}
	comment.Id = created.Id
	comment.CreatedAt = created.CreatedAt
	commentVal, err := json.Marshal(comment)
	if err != nil {
		return Created{}, fmt.Errorf("unable to marshal comment: %v", err)
	}
	err = g.withTimeout(parent, func(ctx context.Context) error {
		if err := g.client.HSet(ctx, REDIS_COMMENTS_KEY, CommentKey(comment.Id), string(commentVal)).Err(); err != nil {
			return err
		}
		return g.client.ZAdd(ctx, PostCommentsKey(comment.PostId), &redis.Z{
			Score:  float64(comment.CreatedAt.Unix()),
			Member: comment.Id,
		}).Err()
	})
	if err != nil {
		return Created{}, fmt.Errorf("unable to insert comment: %v", err)
	}
	return created, nil
}

func (g *RedisGateway) UpdateCommentLikes(parent context.Context, commentId string, likes int) error {
	return g.withTimeout(parent, func(ctx context.Context) error {
		commentStr, err := g.client.HGet(ctx, REDIS_COMMENTS_KEY, CommentKey(commentId)).Result()
		if err != nil {
			return fmt.Errorf("unable to get comment '%v': %v", commentId, err)
		}
		var comment entities.Comment
		if err := json.Unmarshal([]byte(commentStr), &comment); err != nil {
			return fmt.Errorf("unable to unmarshal comment '%v': %v", commentId, err)
		}
		comment.LikeCount = likes
		commentVal, err := json.Marshal(comment)
		if err != nil {
			return fmt.Errorf("unable to marshal comment '%v': %v", commentId, err)
		}
		return g.client.HSet(ctx, REDIS_COMMENTS_KEY, CommentKey(commentId), string(commentVal)).Err()
	})
}

func PostKey(postId string) string {
	return "post_" + postId
}

func CommentKey(commentId string) string {
	return "comment_" + commentId
}

func PostCommentsKey(postId string) string {
	return "post_" + postId + "_comments"
}
