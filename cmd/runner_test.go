package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/subwave-fm/subwave/internal/shared"
	tu "github.com/subwave-fm/subwave/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
		})

		t.Run("with nil dependencies uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected default http client")
			}
		})
	})

	t.Run("register returns all commands", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"setup", "serve", "fetch", "comments", "play"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("command %d: expected %q, got %q", i, name, commands[i].Name)
			}
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes compact JSON with newline", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("writeJSON: %v", err)
			}
			if got := output.String(); got != "{\"key\":\"value\"}\n" {
				t.Errorf("unexpected output %q", got)
			}
		})

		t.Run("pretty prints when asked", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("writeJSON: %v", err)
			}
			if !strings.Contains(output.String(), "  \"key\"") {
				t.Errorf("expected indentation, got %q", output.String())
			}
		})

		t.Run("fails on a broken writer", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writeJSON("data", false); err == nil {
				t.Error("expected an error from the failing writer")
			}
		})
	})

	t.Run("Fetch prints parsed songs", func(t *testing.T) {
		proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/listing" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			w.Write([]byte(`{"data":{"after":"c1","children":[
				{"kind":"t3","data":{"id":"aa","title":"One","url":"https://youtu.be/aa","permalink":"/r/m/comments/aa/one/"}},
				{"kind":"t3","data":{"id":"bb","title":"Text post","is_self":true}}
			]}}`))
		}))
		defer proxy.Close()

		config := shared.DefaultConfig()
		config.Feed.ProxyURL = proxy.URL
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: config, Output: output, HTTPClient: proxy.Client()})

		app := fetchCommand(runner)
		if err := app.Run(context.Background(), []string{"fetch", "--subreddit", "music"}); err != nil {
			t.Fatalf("fetch: %v", err)
		}

		var result struct {
			Songs []struct {
				ID   string `json:"id"`
				Kind string `json:"kind"`
			} `json:"songs"`
			After string `json:"after"`
		}
		if err := json.Unmarshal(output.Bytes(), &result); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, output.String())
		}
		if len(result.Songs) != 1 || result.Songs[0].ID != "aa" {
			t.Errorf("expected the one playable song, got %+v", result.Songs)
		}
		if result.After != "c1" {
			t.Errorf("cursor lost: %q", result.After)
		}
	})

	t.Run("Comments requires a permalink", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		app := commentsCommand(runner)
		if err := app.Run(context.Background(), []string{"comments"}); err == nil {
			t.Error("expected an error without --permalink")
		}
	})

	t.Run("Setup creates config and cache", func(t *testing.T) {
		dir := t.TempDir()
		wd := tu.MustGetwd(t)
		tu.MustChdir(t, dir)
		defer tu.MustChdir(t, wd)

		configPath := filepath.Join(dir, "config.toml")

		config := shared.DefaultConfig()
		config.Cache.Path = filepath.Join(dir, "cache.db")
		runner := NewRunner(RunnerOpts{Config: config, Output: &bytes.Buffer{}})

		app := setupCommand(runner)
		if err := app.Run(context.Background(), []string{"setup", "--config", configPath}); err != nil {
			t.Fatalf("setup: %v", err)
		}

		tu.AssertFileExists(t, configPath)
		if !strings.Contains(tu.MustReadFile(t, configPath), "[server]") {
			t.Error("config template missing expected sections")
		}
	})
}
