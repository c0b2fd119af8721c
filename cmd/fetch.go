package main

import (
	"context"
	"fmt"

	"github.com/subwave-fm/subwave/internal/feed"
	"github.com/subwave-fm/subwave/internal/models"
	"github.com/subwave-fm/subwave/internal/shared"
	"github.com/urfave/cli/v3"
)

func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch one feed page through the proxy and print the playable songs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:    "subreddit",
				Aliases: []string{"s"},
				Usage:   "Subreddit to fetch (defaults to the first configured one)",
			},
			&cli.StringFlag{
				Name:    "query",
				Aliases: []string{"q"},
				Usage:   "Free-text search instead of a subreddit listing",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort order (hot, new, top)",
			},
			&cli.StringFlag{
				Name:  "after",
				Usage: "Pagination cursor from a previous page",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of items per page",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print the JSON output",
			},
		},
		Action: r.Fetch,
	}
}

func commentsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "comments",
		Usage: "Fetch the comment tree for a post permalink",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:  "permalink",
				Usage: "Post permalink, e.g. /r/listentothis/comments/abc/title/",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Comment sort order",
			},
		},
		Action: r.Comments,
	}
}

// Fetch retrieves one listing page and prints the parsed songs plus the
// next-page cursor.
func (r *Runner) Fetch(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	client := feed.NewClient(config.Feed.ProxyURL, r.httpClient)

	req := feed.ListingRequest{
		Subreddit: cmd.String("subreddit"),
		Query:     cmd.String("query"),
		Sort:      cmd.String("sort"),
		After:     cmd.String("after"),
		Limit:     int(cmd.Int("limit")),
	}
	if req.Sort == "" {
		req.Sort = config.Feed.Sort
	}
	if req.Limit == 0 {
		req.Limit = config.Feed.PageLimit
	}
	if req.Subreddit == "" && req.Query == "" {
		if len(config.Feed.Subreddits) == 0 {
			return fmt.Errorf("%w: no subreddit configured", shared.ErrMissingArgument)
		}
		req.Subreddit = config.Feed.Subreddits[0]
	}

	r.logger.Info("fetching feed page", "subreddit", req.Subreddit, "query", req.Query, "after", req.After)

	listing, err := client.Listing(ctx, req)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	songs, after := feed.ParseListing(listing)
	return r.writeJSON(struct {
		Songs []models.Song `json:"songs"`
		After string        `json:"after,omitempty"`
	}{songs, after}, cmd.Bool("pretty"))
}

// Comments retrieves a post's comment listing and prints it raw.
func (r *Runner) Comments(ctx context.Context, cmd *cli.Command) error {
	permalink := cmd.String("permalink")
	if permalink == "" {
		return fmt.Errorf("%w: --permalink is required", shared.ErrMissingArgument)
	}

	config := r.loadConfig(cmd)
	client := feed.NewClient(config.Feed.ProxyURL, r.httpClient)

	raw, err := client.Comments(ctx, permalink, cmd.String("sort"))
	if err != nil {
		return fmt.Errorf("comments fetch failed: %w", err)
	}

	return r.writePlain("%s\n", raw)
}
