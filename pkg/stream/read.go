package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

const readBufferSize = 4096

// Read decodes body until it is exhausted, calling handle for every event in
// arrival order. Unknown events are delivered too; ignoring them is the
// handler's decision.
//
// Whatever happens, the final call to handle is an End. A clean close yields
// End{Err: nil} even when no done event was sent. The returned error equals
// End.Err.
func Read(ctx context.Context, body io.Reader, logger *slog.Logger, handle func(Event)) error {
	dec := NewDecoder(logger)
	buf := make([]byte, readBufferSize)

	deliver := func(raws []RawEvent) {
		for _, raw := range raws {
			handle(Parse(raw))
		}
	}

	var readErr error
	for {
		if err := ctx.Err(); err != nil {
			readErr = err
			break
		}
		n, err := body.Read(buf)
		if n > 0 {
			deliver(dec.Feed(buf[:n]))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				readErr = ctxErr
			} else {
				readErr = fmt.Errorf("read event stream: %w", err)
			}
			break
		}
	}

	if readErr == nil {
		deliver(dec.Flush())
	}
	handle(End{Err: readErr})
	return readErr
}
