package codex

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/api", "https://example.com/api/responses"},
		{"https://example.com/api/", "https://example.com/api/responses"},
		{"https://example.com/api/responses", "https://example.com/api/responses"},
		{"", strings.TrimRight(DefaultBaseURL, "/") + "/responses"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.in); got != tt.want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildHeadersDeterministic(t *testing.T) {
	cfg := NewConfig("tok")
	cfg.AccountID = "acct"
	cfg.SessionID = "sess"
	cfg.ExtraHeaders = map[string]string{"X-Custom": " v "}

	headers, err := BuildHeaders(cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	if headers["authorization"] != "Bearer tok" {
		t.Errorf("authorization = %q", headers["authorization"])
	}
	if headers[HeaderAccountID] != "acct" || headers[HeaderAccountIDCanonical] != "acct" {
		t.Errorf("account headers = %q / %q", headers[HeaderAccountID], headers[HeaderAccountIDCanonical])
	}
	if headers[HeaderOpenAIBeta] != "responses=experimental" {
		t.Errorf("beta header = %q", headers[HeaderOpenAIBeta])
	}
	if headers["accept"] != "text/event-stream" || headers["content-type"] != "application/json" {
		t.Errorf("accept/content-type headers wrong")
	}
	if headers[HeaderSessionID] != "sess" {
		t.Errorf("session header = %q", headers[HeaderSessionID])
	}
	if headers["x-custom"] != "v" {
		t.Errorf("extra header not lowercased/trimmed: %v", headers)
	}
	if headers["User-Agent"] != "codex-api/0.1.0" {
		t.Errorf("default user agent = %q", headers["User-Agent"])
	}
}

func TestBuildHeadersRequiresTokenAndAccount(t *testing.T) {
	cfg := NewConfig(" ")
	cfg.AccountID = "acct"
	if _, err := BuildHeaders(cfg, ""); err != ErrMissingAccessToken {
		t.Errorf("err = %v, want missing access token", err)
	}

	cfg = NewConfig("tok")
	if _, err := BuildHeaders(cfg, ""); err != ErrMissingAccountID {
		t.Errorf("err = %v, want missing account id", err)
	}
}

func TestRequestFixedFields(t *testing.T) {
	request := NewRequest("model-1", nil, "sys")
	encoded, err := json.Marshal(request)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatal(err)
	}

	if decoded["store"] != false {
		t.Errorf("store = %v, want false", decoded["store"])
	}
	if decoded["stream"] != true {
		t.Errorf("stream = %v, want true", decoded["stream"])
	}
	if decoded["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v", decoded["tool_choice"])
	}
	if decoded["parallel_tool_calls"] != true {
		t.Errorf("parallel_tool_calls = %v", decoded["parallel_tool_calls"])
	}
	include, ok := decoded["include"].([]any)
	if !ok || len(include) != 1 || include[0] != "reasoning.encrypted_content" {
		t.Errorf("include = %v", decoded["include"])
	}
}

func TestSSEParserReassemblesAcrossChunks(t *testing.T) {
	parser := &SSEParser{}

	var events []StreamEvent
	feed := func(chunk string) {
		events = append(events, parser.Feed([]byte(chunk))...)
	}

	feed("data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hel")
	if len(events) != 0 {
		t.Fatalf("partial event emitted: %#v", events)
	}
	feed("lo\"}\n\n")
	if len(events) != 1 || events[0].Type != EventOutputTextDelta || events[0].Delta != "Hello" {
		t.Fatalf("events = %#v", events)
	}

	feed("data: {\"type\":\"response.output_item.done\",\"item\":{\"type\":\"function_call\",\"id\":\"fc_1\",\"call_id\":\"call_1\",\"name\":\"read\",\"arguments\":\"{\\\"path\\\":\\\"a\\\"}\"}}\n\n")
	if len(events) != 2 || events[1].Type != EventToolCallRequested {
		t.Fatalf("events = %#v", events)
	}
	if *events[1].CallID != "call_1" || *events[1].ToolName != "read" || *events[1].ItemID != "fc_1" {
		t.Errorf("tool event = %#v", events[1])
	}

	feed("data: {\"type\":\"response.completed\",\"response\":{\"status\":\"completed\"}}\n\ndata: [DONE]\n\n")
	if len(events) != 3 || events[2].Type != EventResponseCompleted || events[2].Status != StatusCompleted {
		t.Fatalf("events = %#v", events)
	}
}

func TestSSEParserCRLFBoundaries(t *testing.T) {
	parser := &SSEParser{}
	events := parser.Feed([]byte("data: {\"type\":\"response.output_text.delta\",\"delta\":\"x\"}\r\n\r\n"))
	if len(events) != 1 || events[0].Delta != "x" {
		t.Fatalf("events = %#v", events)
	}
}

func TestTerminalStatusLastEventWins(t *testing.T) {
	events := []StreamEvent{
		{Type: EventOutputTextDelta, Delta: "x"},
		{Type: EventResponseCompleted, Status: StatusCompleted},
	}
	status, ok := TerminalStatus(events)
	if !ok || status != StatusCompleted {
		t.Errorf("status = %v", status)
	}

	status, _ = TerminalStatus([]StreamEvent{{Type: EventOutputTextDelta}})
	if status != StatusIncomplete {
		t.Errorf("status without terminal = %v, want incomplete", status)
	}

	status, _ = TerminalStatus([]StreamEvent{{Type: EventError, Message: "boom"}})
	if status != StatusFailed {
		t.Errorf("status after error = %v, want failed", status)
	}
}

func TestParseErrorMessageExtractsDetail(t *testing.T) {
	msg := parseErrorMessage(429, []byte(`{"error":{"message":"rate limited"}}`))
	if msg != "HTTP 429: rate limited" {
		t.Errorf("msg = %q", msg)
	}
	msg = parseErrorMessage(500, []byte("oops"))
	if msg != "HTTP 500: oops" {
		t.Errorf("msg = %q", msg)
	}
}
