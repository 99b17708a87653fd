package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/dbviewer/internal/adapter"
	"github.com/sadopc/dbviewer/internal/bridge"
	"github.com/sadopc/dbviewer/internal/config"
	"github.com/sadopc/dbviewer/internal/ddl"
	"github.com/sadopc/dbviewer/internal/diagram"
	"github.com/sadopc/dbviewer/internal/history"
	"github.com/sadopc/dbviewer/internal/msg"
	"github.com/sadopc/dbviewer/internal/ui/results"
	"github.com/sadopc/dbviewer/internal/viewer"
)

// extract returns the schema of a .sql script without executing it, or of
// the connected database otherwise.
func extract(cmd *cobra.Command, flags *connFlags, cfg *config.Config, args []string) (*ddl.Result, error) {
	if len(args) > 0 && adapter.IsScript(args[0]) {
		text, err := readSource(args[0], cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return ddl.Extract(text), nil
	}

	conn, err := flags.open(cmd.Context(), cfg, args, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return viewer.New(conn, viewer.Options{}).ExtractSchema(cmd.Context())
}

func warnDiagnostics(w io.Writer, diags []ddl.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "Warning: %s\n", d)
	}
}

func newSchemaCmd(flags *connFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schema [dsn | file.sql | -]",
		Short: "Print the schema extracted from a database or DDL script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := flags.loadConfig(cmd.ErrOrStderr())
			res, err := extract(cmd, flags, cfg, args)
			if err != nil {
				return err
			}
			warnDiagnostics(cmd.ErrOrStderr(), res.Diagnostics)

			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "json":
				data, err := json.MarshalIndent(res.Schema, "", "  ")
				if err != nil {
					return fmt.Errorf("encode schema: %w", err)
				}
				_, err = fmt.Fprintf(out, "%s\n", data)
				return err
			case "yaml", "yml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(res.Schema); err != nil {
					return fmt.Errorf("encode schema: %w", err)
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown format %q (json, yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format (json, yaml)")
	return cmd
}

func newDiagramCmd(flags *connFlags) *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "diagram [dsn | file.sql | -]",
		Short: "Render the ER diagram as SVG or text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stderr := cmd.ErrOrStderr()
			cfg := flags.loadConfig(stderr)
			res, err := extract(cmd, flags, cfg, args)
			if err != nil {
				return err
			}
			warnDiagnostics(stderr, res.Diagnostics)

			drawn := diagram.Render(res.Schema, cfg.Diagram.Layout(), cfg.Diagram.Options)
			for _, w := range drawn.Warnings {
				fmt.Fprintf(stderr, "Warning: %s\n", w)
			}

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}

			switch strings.ToLower(format) {
			case "svg":
				return diagram.WriteSVG(out, drawn.Scene, cfg.Diagram.Style)
			case "text":
				for _, line := range diagram.Rasterize(drawn.Scene, diagram.DefaultTextScale()) {
					if _, err := fmt.Fprintln(out, line); err != nil {
						return err
					}
				}
				return nil
			default:
				return fmt.Errorf("unknown format %q (svg, text)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "svg", "Output format (svg, text)")
	return cmd
}

func newQueryCmd(flags *connFlags) *cobra.Command {
	var (
		query     string
		tableName string
		format    string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "query [dsn]",
		Short: "Run a SELECT or preview a table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (query == "") == (tableName == "") {
				return errors.New("give exactly one of --execute or --table")
			}
			stderr := cmd.ErrOrStderr()
			cfg := flags.loadConfig(stderr)
			if cmd.Flags().Changed("limit") {
				cfg.Results.RowLimit = limit
			}

			conn, err := flags.open(cmd.Context(), cfg, args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer conn.Close()

			st := openStores(cfg, stderr)
			defer st.Close()

			svc := viewer.New(conn, serviceOptions(cfg, st))
			resp := svc.Handle(cmd.Context(), msg.QueryTableMsg{TableName: tableName, SelectQuery: query})
			res, ok := resp.(msg.DisplayQueryResultsMsg)
			if !ok {
				if e, failed := resp.(msg.ErrorMsg); failed {
					return e
				}
				return fmt.Errorf("unexpected response %s", resp.Command())
			}

			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "table":
				return results.WriteTable(out, res, cfg.Results.MaxColumnWidth)
			case "csv":
				return results.WriteCSV(out, res)
			case "json":
				return results.WriteJSON(out, res)
			default:
				return fmt.Errorf("unknown format %q (table, csv, json)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&query, "execute", "e", "", "SELECT statement to run")
	cmd.Flags().StringVarP(&tableName, "table", "t", "", "Table to preview")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, csv, json)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Row limit for table previews")
	return cmd
}

func newServeCmd(flags *connFlags) *cobra.Command {
	var (
		addr    string
		stdio   bool
		verbose bool
		origins []string
	)

	cmd := &cobra.Command{
		Use:   "serve [dsn]",
		Short: "Serve viewer messages over HTTP or stdio",
		Long: `serve answers viewer request messages (QUERY_DATABASE, QUERY_TABLE,
UPDATE_RECORD, EXTRACT_SCHEMA, RENDER_DIAGRAM) as JSON. Over HTTP they are
POSTed to /messages; with --stdio each request is one line on stdin and each
response one line on stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stderr := cmd.ErrOrStderr()
			cfg := flags.loadConfig(stderr)

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

			if stdio && len(args) > 0 && args[0] == "-" {
				return errors.New("--stdio reads requests from stdin; pass the script as a file")
			}
			conn, err := flags.open(cmd.Context(), cfg, args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer conn.Close()

			st := openStores(cfg, stderr)
			defer st.Close()

			svc := viewer.New(conn, serviceOptions(cfg, st))
			logger.Info("connected", "adapter", conn.AdapterName(), "database", conn.DatabaseName())

			if stdio {
				return bridge.ServeStdio(cmd.Context(), svc, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
			}

			if !cmd.Flags().Changed("addr") {
				addr = cfg.Server.Addr
			}
			if !cmd.Flags().Changed("origin") {
				origins = cfg.Server.AllowedOrigins
			}
			srv := bridge.New(svc, bridge.Options{
				Logger:         logger,
				Style:          cfg.Diagram.Style,
				AllowedOrigins: origins,
				AccessLog:      verbose,
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8642", "HTTP listen address")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "Serve newline-delimited JSON on stdin/stdout")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every request")
	cmd.Flags().StringSliceVar(&origins, "origin", nil, "Allowed CORS origin (repeatable)")
	return cmd
}

func newHistoryCmd(flags *connFlags) *cobra.Command {
	var (
		limit  int
		search string
		wipe   bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently served requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist, err := history.New()
			if err != nil {
				return err
			}
			defer hist.Close()

			if wipe {
				return hist.Clear()
			}

			var entries []history.Entry
			if search != "" {
				entries, err = hist.Search("%"+search+"%", limit)
			} else {
				entries, err = hist.Recent(limit)
			}
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No history.")
				return nil
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), historyTable(entries))
			return err
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only entries whose target contains this text")
	cmd.Flags().BoolVar(&wipe, "clear", false, "Delete all history")
	return cmd
}

func historyTable(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := "ok"
		if e.IsError {
			status = "error"
		}
		rows = append(rows, []string{
			e.ExecutedAt.Local().Format(time.DateTime),
			e.Command,
			e.Adapter + "/" + e.Database,
			e.Target,
			strconv.FormatInt(e.RowCount, 10),
			strconv.FormatInt(e.DurationMS, 10) + " ms",
			status,
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("WHEN", "COMMAND", "DATABASE", "TARGET", "ROWS", "TIME", "STATUS").
		Rows(rows...).
		String()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dbviewer %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nSupported adapters:")
			for _, name := range adapter.Names() {
				fmt.Fprintf(out, "  - %s\n", name)
			}
		},
	}
}
