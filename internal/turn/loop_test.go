package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opencoreai/turnengine/internal/content"
	"github.com/opencoreai/turnengine/internal/dispatch"
	"github.com/opencoreai/turnengine/internal/testutil"
	"github.com/opencoreai/turnengine/internal/transport"
)

func sseServer(testingHandle *testing.T, eventBatches [][]string) *httptest.Server {
	call := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		if call >= len(eventBatches) {
			testingHandle.Fatalf("unexpected extra call %d", call)
		}
		for _, payload := range eventBatches[call] {
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
		call++
	}))
}

func endTurnBatch(text string) []string {
	return []string{
		`{"type":"message_start","message":{"usage":{"input_tokens":10,"output_tokens":0}}}`,
		`{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
		fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, text),
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":3}}`,
		`{"type":"message_stop"}`,
	}
}

func TestRunEndsOnEndTurn(testingHandle *testing.T) {
	server := sseServer(testingHandle, [][]string{endTurnBatch("hello there")})
	defer server.Close()

	runner := &Runner{Client: transport.NewClient(server.URL, "")}
	result, err := runner.Run(context.Background(), Request{
		Messages: []content.Message{content.NewTextMessage(content.RoleUser, "hi")},
		Model:    "model-x",
	})
	testutil.RequireNoError(testingHandle, err, "run should not error")
	testutil.RequireEqual(testingHandle, result.StopReason, StopEndTurn, "expected end_turn")
	testutil.RequireEqual(testingHandle, result.NumCalls, 1, "expected exactly one call")
}

func toolUseBatch(id, name, inputJSON string) []string {
	return []string{
		`{"type":"message_start","message":{"usage":{"input_tokens":12,"output_tokens":0}}}`,
		fmt.Sprintf(`{"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":%q,"name":%q}}`, id, name),
		fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":%q}}`, inputJSON),
		`{"type":"content_block_stop","index":0}`,
		`{"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":5}}`,
		`{"type":"message_stop"}`,
	}
}

func TestRunDispatchesToolThenEnds(testingHandle *testing.T) {
	server := sseServer(testingHandle, [][]string{
		toolUseBatch("call_1", "Read", `{"file_path":"a.go"}`),
		endTurnBatch("done"),
	})
	defer server.Close()

	registry := dispatch.NewRegistry()
	registry.Register("Read", dispatch.Pure, "reads a file", nil, dispatch.ExecutorFunc(
		func(ctx context.Context, input json.RawMessage) (dispatch.ExecResult, error) {
			return dispatch.ExecResult{Content: "file contents"}, nil
		}))

	runner := &Runner{Client: transport.NewClient(server.URL, ""), Registry: registry}
	result, err := runner.Run(context.Background(), Request{
		Messages: []content.Message{content.NewTextMessage(content.RoleUser, "read a.go")},
		Model:    "model-x",
	})
	testutil.RequireNoError(testingHandle, err, "run should not error")
	testutil.RequireEqual(testingHandle, result.StopReason, StopEndTurn, "expected end_turn after tool dispatch")
	testutil.RequireEqual(testingHandle, result.NumCalls, 2, "expected two calls: tool_use then end_turn")
}

func TestClassifyMaxTokensDecisionTable(testingHandle *testing.T) {
	testutil.RequireEqual(testingHandle, classifyMaxTokens(nil, 0), actionContinue, "no tool uses, under cap: continue")
	testutil.RequireEqual(testingHandle, classifyMaxTokens(nil, MaxContinuations), actionBreakCapReached, "no tool uses, at cap: break")
	use := content.NewToolUse("call_1", "Read", []byte(`{}`))
	testutil.RequireEqual(testingHandle, classifyMaxTokens([]content.ContentBlock{use}, 0), actionDispatchTools, "tool uses present: dispatch")
}
