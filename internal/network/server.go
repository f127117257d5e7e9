// Package network serves the schema engine over TCP: one JSON command per
// request, one executor.Result per response.
package network

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/leengari/dyntable/internal/executor"
)

// OpExit closes the connection
const OpExit = "exit"

// Start starts the TCP server on port and blocks until ctx is cancelled.
func Start(ctx context.Context, port int, eng executor.Engine) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("Failed to bind to port", "port", port, "error", err)
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	slog.Info("Running on port", "port", port)
	return Serve(ctx, listener, eng)
}

// Serve accepts connections on listener until ctx is cancelled.
func Serve(ctx context.Context, listener net.Listener, eng executor.Engine) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("Failed to accept connection", "error", err)
			continue
		}
		go handleConnection(ctx, conn, eng)
	}
}

func handleConnection(ctx context.Context, conn net.Conn, eng executor.Engine) {
	defer conn.Close()
	logger := slog.With("remote", conn.RemoteAddr().String())

	// Use Decoder instead of Scanner for network streams
	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		var cmd executor.Command
		if err := decoder.Decode(&cmd); err != nil {
			if err == io.EOF {
				return // Connection closed gracefully
			}
			logger.Error("decode error", "error", err)

			errResult := &executor.Result{
				Error: fmt.Sprintf("Invalid request format: %v", err),
			}
			_ = encoder.Encode(errResult)
			return
		}

		if cmd.Op == OpExit {
			return
		}

		result, err := executor.Execute(ctx, eng, cmd)
		if err != nil {
			logger.Debug("command failed", "op", cmd.Op, "table_id", cmd.TableID, "error", err)
			result = &executor.Result{TableID: cmd.TableID, Error: err.Error()}
		}

		if err := encoder.Encode(result); err != nil {
			logger.Error("encode error", "error", err)
			return
		}
	}
}
