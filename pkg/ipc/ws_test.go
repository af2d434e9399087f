package ipc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/odvcencio/livewidgets/pkg/engine"
	"github.com/odvcencio/livewidgets/pkg/render/remote"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

type wireFrame struct {
	Op      string          `json:"op"`
	Element string          `json:"element"`
	Kind    string          `json:"kind"`
	Name    string          `json:"name"`
	On      bool            `json:"on"`
	Spec    json.RawMessage `json:"spec"`
	Payload json.RawMessage `json:"payload"`
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, page string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws/pages/" + page
	return websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
}

func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(wireFrame) bool) wireFrame {
	t.Helper()
	for {
		var f wireFrame
		require.NoError(t, wsjson.Read(ctx, conn, &f))
		if match(f) {
			return f
		}
	}
}

func TestPageSocketStreamsSnapshotAndUpdates(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, body := env.do(t, http.MethodPost, "/api/pages/ops/mount", gaugeFragment)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	conn, _, err := env.dial(t, ctx, "ops", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	first := readUntil(t, ctx, conn, func(wireFrame) bool { return true })
	assert.Equal(t, remote.OpConstruct, first.Op, "snapshot comes first")
	assert.Equal(t, "g", first.Element)

	require.Eventually(t, func() bool { return env.hub.Clients("ops") == 1 }, time.Second, 10*time.Millisecond)

	resp, _ = env.do(t, http.MethodPost, "/api/pages/ops/events/widget_update:g", `{"value":42}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	update := readUntil(t, ctx, conn, func(f wireFrame) bool {
		var spec struct {
			Value float64 `json:"value"`
		}
		return f.Op == remote.OpUpdate && json.Unmarshal(f.Spec, &spec) == nil && spec.Value == 42
	})
	assert.Equal(t, "g", update.Element)

	require.NoError(t, wsjson.Write(ctx, conn, engine.ClientMessage{
		Type:        engine.MsgInteract,
		Element:     "g",
		Interaction: &widget.Interaction{Type: widget.InteractClick},
	}))
	intent := readUntil(t, ctx, conn, func(f wireFrame) bool { return f.Op == remote.OpIntent })
	assert.Equal(t, "drill_down", intent.Name)
	assert.JSONEq(t, `{"widget_id":"g","metric":"gauge_value"}`, string(intent.Payload))
	ack := readUntil(t, ctx, conn, func(f wireFrame) bool { return f.Op == OpAck })
	assert.Equal(t, engine.MsgInteract, ack.Name)
	assert.True(t, ack.On)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":`)))
	bad := readUntil(t, ctx, conn, func(f wireFrame) bool { return f.Op == OpError })
	assert.Contains(t, string(bad.Payload), "MALFORMED_INPUT")

	require.NoError(t, wsjson.Write(ctx, conn, engine.ClientMessage{Type: engine.MsgResize, Element: "missing", Width: 10, Height: 10}))
	unknown := readUntil(t, ctx, conn, func(f wireFrame) bool { return f.Op == OpError })
	assert.Equal(t, "missing", unknown.Element)
	assert.Contains(t, string(unknown.Payload), "UNKNOWN_WIDGET")
}

func TestPageSocketRateLimitsClientMessages(t *testing.T) {
	env := newTestEnv(t, Config{MessagesPerSecond: 0.001, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := env.dial(t, ctx, "ops", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	msg := engine.ClientMessage{Type: engine.MsgDragLeave, Element: "col"}
	require.NoError(t, wsjson.Write(ctx, conn, msg))
	require.NoError(t, wsjson.Write(ctx, conn, msg))

	ack := readUntil(t, ctx, conn, func(f wireFrame) bool { return f.Op == OpAck || f.Op == OpError })
	assert.Equal(t, OpAck, ack.Op)
	limited := readUntil(t, ctx, conn, func(f wireFrame) bool { return f.Op == OpAck || f.Op == OpError })
	assert.Equal(t, OpError, limited.Op)
	assert.Contains(t, string(limited.Payload), "rate limit")
}

func TestPageSocketRejections(t *testing.T) {
	env := newTestEnv(t, Config{MaxConnections: 1, AllowedOrigins: []string{"https://dash.example"}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := env.dial(t, ctx, "ops", http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = env.dial(t, ctx, "bad.page", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	conn, _, err := env.dial(t, ctx, "ops", http.Header{"Origin": []string{"https://dash.example"}})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, resp, err = env.dial(t, ctx, "ops", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestPageSocketClosesWithPage(t *testing.T) {
	env := newTestEnv(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := env.dial(t, ctx, "ops", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return env.hub.Clients("ops") == 1 }, time.Second, 10*time.Millisecond)

	require.True(t, env.manager.ClosePage("ops"))
	_, _, err = conn.Read(ctx)
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return env.hub.Clients("ops") == 0 }, time.Second, 10*time.Millisecond)
}
