package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/blackwell-systems/cubby/internal/config"
	"github.com/blackwell-systems/cubby/internal/dispatch"
	"github.com/blackwell-systems/cubby/internal/native"
	"github.com/blackwell-systems/cubby/internal/registry"
	"github.com/blackwell-systems/cubby/internal/tabs"
)

func newServeFixture(t *testing.T) (*engine, *tabs.Coordinator, *dispatch.Dispatcher, *native.Encoder, *bytes.Buffer, *sync.Mutex) {
	t.Helper()
	eng, err := openEngine(filepath.Join(t.TempDir(), "cubby.db"))
	if err != nil {
		t.Fatalf("openEngine() error = %v", err)
	}
	t.Cleanup(eng.close)

	var out bytes.Buffer
	var writeMu sync.Mutex
	enc := native.NewEncoder(&out)
	logger := zap.NewNop()
	mover := &frameMover{mu: &writeMu, enc: enc, logger: logger}
	coord := tabs.NewCoordinator(eng.reg, eng.resolver, eng.rec, mover,
		config.Default(), logger)

	ready := make(chan struct{})
	close(ready)
	d := dispatch.New(eng.reg, eng.rec, eng.resolver, coord, "", logger, ready)
	return eng, coord, d, enc, &out, &writeMu
}

func encodeFrames(t *testing.T, messages ...any) *bytes.Buffer {
	t.Helper()
	var in bytes.Buffer
	enc := native.NewEncoder(&in)
	for _, m := range messages {
		if err := enc.Encode(m); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
	}
	return &in
}

func decodeFrames(t *testing.T, out *bytes.Buffer) []map[string]any {
	t.Helper()
	dec := native.NewDecoder(out)
	var frames []map[string]any
	for {
		payload, err := dec.Next()
		if err == io.EOF {
			return frames
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(payload, &m); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", payload, err)
		}
		frames = append(frames, m)
	}
}

func TestServeLoopDispatchesAndExitsOnEOF(t *testing.T) {
	_, coord, d, enc, out, writeMu := newServeFixture(t)

	in := encodeFrames(t,
		map[string]any{
			"message_type": "container_action",
			"action": map[string]any{
				"action":        "submit_identity_details",
				"details":       map[string]string{"name": "Work", "color": "blue", "icon": "briefcase"},
				"should_record": false,
			},
		},
		map[string]any{
			"message_type": "request_page",
			"view":         map[string]string{"view": "fetch_all_containers"},
		},
	)

	if err := serveLoop(context.Background(), in, enc, writeMu, coord, d, zap.NewNop()); err != nil {
		t.Fatalf("serveLoop() error = %v", err)
	}

	frames := decodeFrames(t, out)
	if len(frames) != 2 {
		t.Fatalf("got %d response frames, want 2", len(frames))
	}
	for i, f := range frames {
		if ok, _ := f["ok"].(bool); !ok {
			t.Errorf("frame %d = %v, want ok", i, f)
		}
	}
}

func TestServeLoopTabEventEmitsMoveFrame(t *testing.T) {
	eng, coord, d, enc, out, writeMu := newServeFixture(t)

	shop, err := eng.reg.Create(registry.Details{Name: "Shop"}, false, nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := eng.reg.UpdateRules(shop.ID, mustSuffixSlice(t, "*shop.example"), nil); err != nil {
		t.Fatalf("UpdateRules() error = %v", err)
	}

	in := encodeFrames(t, map[string]any{
		"message_type":    "tab_updated",
		"tab_id":          7,
		"cookie_store_id": "firefox-default",
		"url":             "https://cart.shop.example/",
	})

	if err := serveLoop(context.Background(), in, enc, writeMu, coord, d, zap.NewNop()); err != nil {
		t.Fatalf("serveLoop() error = %v", err)
	}

	frames := decodeFrames(t, out)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 move frame: %v", len(frames), frames)
	}
	if frames[0]["message_type"] != "move_tab" || frames[0]["cookie_store_id"] != shop.ID {
		t.Errorf("move frame = %v", frames[0])
	}
}

func TestOpenEngineStampsBundledSnapshot(t *testing.T) {
	eng, err := openEngine(filepath.Join(t.TempDir(), "cubby.db"))
	if err != nil {
		t.Fatalf("openEngine() error = %v", err)
	}
	defer eng.close()

	meta, err := eng.st.GetPSLMeta()
	if err != nil {
		t.Fatalf("GetPSLMeta() error = %v", err)
	}
	if meta == nil || meta.Source != "bundled" || meta.EntryCount == 0 {
		t.Errorf("meta = %+v, want bundled stamp", meta)
	}
}
