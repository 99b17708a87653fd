package bridge

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sadopc/dbviewer/internal/msg"
)

// ServeStdio reads one JSON request per line from r and writes one JSON
// response per line to w. It returns nil at EOF and ctx.Err() when ctx is
// cancelled between requests. Malformed lines are answered with an error
// message and do not stop the loop.
func ServeStdio(ctx context.Context, h Handler, r io.Reader, w io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxBody)
	out := bufio.NewWriter(w)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp msg.Response
		req, err := msg.DecodeRequest(line)
		if err != nil {
			logger.Warn("bad request", "error", err)
			resp = msg.ErrorMsg{Message: err.Error()}
		} else {
			resp = h.Handle(ctx, req)
			if e, failed := resp.(msg.ErrorMsg); failed {
				logger.Error("request failed", "command", req.Command(), "error", e.Message)
			}
		}

		data, err := msg.EncodeResponse(resp)
		if err != nil {
			return fmt.Errorf("stdio encode: %w", err)
		}
		if _, err := out.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("stdio write: %w", err)
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("stdio write: %w", err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("stdio read: %w", err)
	}
	return nil
}
