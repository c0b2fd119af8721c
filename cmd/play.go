package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/subwave-fm/subwave/internal/backend"
	"github.com/subwave-fm/subwave/internal/feed"
	"github.com/subwave-fm/subwave/internal/playback"
	"github.com/subwave-fm/subwave/internal/shared"
	"github.com/subwave-fm/subwave/internal/ui"
	"github.com/urfave/cli/v3"
)

func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Launch the interactive player",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
			},
			&cli.StringFlag{
				Name:    "subreddit",
				Aliases: []string{"s"},
				Usage:   "Subreddit to play from (defaults to the first configured one)",
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
		},
		Action: r.Play,
	}
}

// Play wires the adapters, coordinator and pipeline together and runs the
// TUI until the user quits.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/subwave-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	coordinator := playback.NewCoordinator(config.Player.Volume, fileLogger)
	sink := coordinator.Events()

	session := &backend.Session{
		Binary: config.Player.MpvBinary,
		Socket: config.Player.IPCSocket,
		Logger: fileLogger,
	}
	defer session.Shutdown()

	coordinator.Register(backend.NewFile(sink, r.httpClient, fileLogger))
	coordinator.Register(backend.NewYouTube(func() (backend.Conn, error) {
		return session.Dial(backend.ProfileMilliseconds)
	}, sink, fileLogger))
	coordinator.Register(backend.NewVimeo(func() (backend.Conn, error) {
		return session.Dial(backend.ProfilePercent)
	}, sink, fileLogger))
	coordinator.Register(backend.NewSoundCloud(func() (backend.Conn, error) {
		return session.Dial(backend.ProfileMilliseconds)
	}, sink, fileLogger))

	go coordinator.Run(ctx)

	client := feed.NewClient(config.Feed.ProxyURL, r.httpClient)
	pipeline := feed.NewPipeline(client, coordinator, fileLogger)

	req := feed.ListingRequest{
		Subreddit: cmd.String("subreddit"),
		Query:     cmd.String("query"),
		Sort:      cmd.String("sort"),
		Limit:     config.Feed.PageLimit,
	}
	if req.Sort == "" {
		req.Sort = config.Feed.Sort
	}
	if req.Subreddit == "" && req.Query == "" {
		if len(config.Feed.Subreddits) == 0 {
			return fmt.Errorf("%w: no subreddit configured", shared.ErrMissingArgument)
		}
		req.Subreddit = config.Feed.Subreddits[0]
	}
	pipeline.Fetch(ctx, req)

	model := ui.NewModel(ctx, coordinator, pipeline)
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
