package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/monngon/feed-service/internal/services/db/entities"
	"github.com/monngon/feed-service/internal/services/gateway"
)

const FeedCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Feed store control.

Seeds, lists and clears a remote feed store without going through the
service. The default store is a local sqlite file.

Usage:
    feedctl seed [--store=<kind>] [--db=<target>]
    feedctl list [--store=<kind>] [--db=<target>]
    feedctl clear [--store=<kind>] [--db=<target>]

Options:
    --store=<kind>  Store kind: sqlite, postgres or redis [default: sqlite]
    --db=<target>   Sqlite path, postgres url, or redis host:port [default: feed.db]`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], FeedCtlVersion)
	if err != nil {
		panic(err)
	}

	gw := openGateway(opts)
	defer gw.Shutdown()

	if seed_, _ := opts.Bool("seed"); seed_ {
		seed(gw)
	} else if list_, _ := opts.Bool("list"); list_ {
		list(gw)
	} else if clear_, _ := opts.Bool("clear"); clear_ {
		clear(gw)
	}
}

func openGateway(opts docopt.Opts) gateway.Gateway {
	kind, _ := opts.String("--store")
	target, _ := opts.String("--db")
	timeout := 30 * time.Second

	switch kind {
	case "sqlite":
		gw, err := gateway.CreateSqliteGateway(target, timeout)
		if err != nil {
			Err.Fatalf("unable to open sqlite store: %s", err)
		}
		return gw
	case "postgres":
		gw, err := gateway.CreatePostgresGateway(target, timeout)
		if err != nil {
			Err.Fatalf("unable to open postgres store: %s", err)
		}
		return gw
	case "redis":
		return gateway.CreateRedisGateway(target, "", 0, timeout)
	default:
		Err.Fatalf("unknown store kind: %s", kind)
		return nil
	}
}

func rating(value float64) *float64 {
	return &value
}

// seed loads the journal's sample entries.
func seed(gw gateway.Gateway) {
	ctx := context.Background()
	entries := []struct {
		post     entities.Post
		comments []string
	}{
		{
			post: entities.Post{
				AuthorName: "Mai",
				Title:      "Bún Chả Hương Liên",
				Location:   "Lê Văn Hưu, Hà Nội",
				Rating:     rating(5.0),
			},
			comments: []string{
				"Thịt nướng hôm nay tuyệt vời, đậm đà lắm!",
				"Em thích cái nước chấm, chua ngọt vừa miệng.",
			},
		},
		{
			post: entities.Post{
				AuthorName: "Mai",
				Title:      "Cơm Tấm Cali",
				Rating:     rating(4.2),
			},
			comments: []string{"Sườn hơi khô một chút nhỉ?"},
		},
		{
			post: entities.Post{
				AuthorName: "Mai",
				Title:      "Phở 10 Lý Quốc Sư",
				Location:   "Lý Quốc Sư, Hà Nội",
			},
		},
	}

	for _, entry := range entries {
		created, err := gw.InsertPost(ctx, entry.post)
		if err != nil {
			Err.Fatalf("unable to seed post '%s': %s", entry.post.Title, err)
		}
		for _, text := range entry.comments {
			_, err := gw.InsertComment(ctx, entities.Comment{
				PostId:     created.Id,
				AuthorName: "Lan",
				Text:       text,
			})
			if err != nil {
				Err.Fatalf("unable to seed comment on '%s': %s", entry.post.Title, err)
			}
		}
		Out.Printf("seeded %s (%s)", entry.post.Title, created.Id)
	}
}

func list(gw gateway.Gateway) {
	ctx := context.Background()
	posts, err := gw.FetchAllPosts(ctx)
	if err != nil {
		Err.Fatalf("unable to list posts: %s", err)
	}
	postIds := make([]string, 0, len(posts))
	for _, post := range posts {
		postIds = append(postIds, post.Id)
	}
	comments, err := gw.FetchCommentsForPosts(ctx, postIds)
	if err != nil {
		Err.Fatalf("unable to list comments: %s", err)
	}
	counts := make(map[string]int)
	for _, comment := range comments {
		counts[comment.PostId]++
	}
	for _, post := range posts {
		badge := post.Badge()
		Out.Printf("%s  %-28s %-8s likes=%d comments=%d  %s",
			post.Id, post.Title, badge.Label, post.LikeCount, counts[post.Id],
			post.CreatedAt.Format(time.RFC3339))
	}
	Out.Printf("%d posts", len(posts))
}

func clear(gw gateway.Gateway) {
	ctx := context.Background()
	posts, err := gw.FetchAllPosts(ctx)
	if err != nil {
		Err.Fatalf("unable to fetch posts: %s", err)
	}
	for _, post := range posts {
		if err := gw.DeletePost(ctx, post.Id); err != nil {
			Err.Fatalf("unable to delete post '%s': %s", post.Id, err)
		}
	}
	Out.Printf("deleted %d posts", len(posts))
}
