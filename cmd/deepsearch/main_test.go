package main

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestSystemFlags(t *testing.T) {
	flags := systemFlags()

	t.Run("db has a default path", func(t *testing.T) {
		var dbFlag *cli.StringFlag
		for _, flag := range flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "db" {
				dbFlag = f
				break
			}
		}
		require.NotNil(t, dbFlag)
		assert.Equal(t, "./deepsearch_db", dbFlag.Value)
		assert.Contains(t, dbFlag.Aliases, "d")
	})

	t.Run("host defaults to the local service", func(t *testing.T) {
		var hostFlag *cli.StringFlag
		for _, flag := range flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "host" {
				hostFlag = f
				break
			}
		}
		require.NotNil(t, hostFlag)
		assert.Equal(t, "http://localhost:11434/v1", hostFlag.Value)
	})

	t.Run("web-search is off by default", func(t *testing.T) {
		var searchFlag *cli.BoolFlag
		for _, flag := range flags {
			if f, ok := flag.(*cli.BoolFlag); ok && f.Name == "web-search" {
				searchFlag = f
				break
			}
		}
		require.NotNil(t, searchFlag)
		assert.False(t, searchFlag.Value)
	})
}

func TestAskCommandValidation(t *testing.T) {
	app := &cli.App{
		Name: "deepsearch",
		Commands: []*cli.Command{
			{
				Name:   "ask",
				Action: askCommand,
				Flags:  systemFlags(),
			},
		},
	}

	t.Run("empty question fails", func(t *testing.T) {
		err := app.Run([]string{"deepsearch", "ask"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "question")
	})
}

func TestIngestCommandValidation(t *testing.T) {
	app := &cli.App{
		Name: "deepsearch",
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Action: ingestCommand,
				Flags:  systemFlags(),
			},
		},
	}

	t.Run("no files fails", func(t *testing.T) {
		err := app.Run([]string{"deepsearch", "ingest"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "file")
	})
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"warn", slog.LevelWarn},
			{"error", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: tc.input,
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc.input})
				require.NoError(t, err)
			})
		}
	})

	t.Run("case insensitive log levels", func(t *testing.T) {
		testCases := []string{"DEBUG", "Info", "WaRn", "ERROR"}

		for _, tc := range testCases {
			t.Run(tc, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{
							Name:  "log-level",
							Value: "info",
						},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error {
						return nil
					},
				}

				err := app.Run([]string{"test", "--log-level", tc})
				require.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "log-level",
					Value: "info",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				return nil
			},
		}

		err := app.Run([]string{"test", "--log-level", "invalid"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestMain(m *testing.M) {
	code := m.Run()
	os.Exit(code)
}
