package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/cubby/internal/config"
	"github.com/blackwell-systems/cubby/internal/dispatch"
	"github.com/blackwell-systems/cubby/internal/native"
	"github.com/blackwell-systems/cubby/internal/tabs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the native-messaging host loop",
	Long: `Serve reads length-prefixed JSON frames from stdin and writes
responses to stdout, the framing the browser uses for native-messaging
hosts. All logging goes to stderr.

Tab lifecycle events (tab_created, tab_updated, tab_removed) drive
container assignment decisions; relocation requests are emitted as
move_tab frames. All other frames are UI requests handled by the
action dispatcher.

The loop exits cleanly when the browser closes the pipe, or on
SIGTERM/SIGINT.`,
	Example: `  # Typically launched by the browser via a native-messaging manifest:
  #   "path": "/usr/local/bin/cubby", "args": ["serve"]
  cubby serve`,
	RunE: runServe,
}

// tabEvent is the wire form of a tab lifecycle frame.
type tabEvent struct {
	MessageType   string `json:"message_type"`
	TabID         int64  `json:"tab_id"`
	CookieStoreID string `json:"cookie_store_id"`
	OpenerTabID   int64  `json:"opener_tab_id"`
	URL           string `json:"url"`
}

// moveFrame is the outbound relocation request.
type moveFrame struct {
	MessageType   string `json:"message_type"`
	TabID         int64  `json:"tab_id"`
	CookieStoreID string `json:"cookie_store_id"`
}

// frameMover emits move_tab frames. Writes share the response
// encoder, so they are serialized by the same mutex.
type frameMover struct {
	mu     *sync.Mutex
	enc    *native.Encoder
	logger *zap.Logger
}

func (m *frameMover) Move(tabID int64, containerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	frame := moveFrame{MessageType: "move_tab", TabID: tabID, CookieStoreID: containerID}
	if err := m.enc.Encode(frame); err != nil {
		m.logger.Error("move frame not written", zap.Error(err))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	path, err := getDBPath()
	if err != nil {
		return err
	}
	eng, err := openEngine(path)
	if err != nil {
		return err
	}
	defer eng.close()

	cfgDir, err := config.Dir()
	if err != nil {
		return err
	}
	prefsPath := config.PreferencesPath(cfgDir)
	prefs, err := config.Load(prefsPath)
	if err != nil {
		logger.Warn("preferences unreadable, using defaults", zap.Error(err))
		prefs = config.Default()
	}

	var writeMu sync.Mutex
	enc := native.NewEncoder(os.Stdout)
	mover := &frameMover{mu: &writeMu, enc: enc, logger: logger}
	coord := tabs.NewCoordinator(eng.reg, eng.resolver, eng.rec, mover, prefs, logger)

	watcher := config.NewWatcher(prefsPath, logger, coord.SetPreferences)
	if err := watcher.Start(); err != nil {
		logger.Warn("preferences watch unavailable", zap.Error(err))
	} else {
		defer watcher.Stop()
	}

	ready := make(chan struct{})
	d := dispatch.New(eng.reg, eng.rec, eng.resolver, coord, prefsPath, logger, ready)
	close(ready)

	logger.Info("serving",
		zap.String("db", path),
		zap.Int("containers", len(eng.reg.List())),
		zap.Int("psl_entries", eng.resolver.Snapshot().Len()))

	return serveLoop(cmd.Context(), os.Stdin, enc, &writeMu, coord, d, logger)
}

// serveLoop pumps frames until EOF, a read error, or a signal.
func serveLoop(ctx context.Context, in io.Reader, enc *native.Encoder, writeMu *sync.Mutex, coord *tabs.Coordinator, d *dispatch.Dispatcher, logger *zap.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	type frame struct {
		payload []byte
		err     error
	}
	frames := make(chan frame)
	dec := native.NewDecoder(in)
	go func() {
		for {
			payload, err := dec.Next()
			frames <- frame{payload: payload, err: err}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			return nil

		case f := <-frames:
			if f.err != nil {
				if errors.Is(f.err, io.EOF) {
					logger.Info("input closed, shutting down")
					return nil
				}
				return fmt.Errorf("read failed: %w", f.err)
			}
			handleFrame(ctx, f.payload, enc, writeMu, coord, d, logger)
		}
	}
}

func handleFrame(ctx context.Context, payload []byte, enc *native.Encoder, writeMu *sync.Mutex, coord *tabs.Coordinator, d *dispatch.Dispatcher, logger *zap.Logger) {
	var ev tabEvent
	if err := json.Unmarshal(payload, &ev); err == nil {
		switch ev.MessageType {
		case "tab_created":
			coord.OnTabCreated(tabs.Event{TabID: ev.TabID, ContainerID: ev.CookieStoreID,
				OpenerTabID: ev.OpenerTabID, URL: ev.URL})
			return
		case "tab_updated":
			coord.OnTabUpdated(tabs.Event{TabID: ev.TabID, ContainerID: ev.CookieStoreID,
				OpenerTabID: ev.OpenerTabID, URL: ev.URL})
			return
		case "tab_removed":
			coord.OnTabRemoved(ev.TabID)
			return
		}
	}

	resp := d.Dispatch(ctx, payload)
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := enc.Encode(resp); err != nil {
		logger.Error("response not written", zap.Error(err))
	}
}
