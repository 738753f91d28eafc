package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lvillar/pdfstamp"
	"github.com/lvillar/pdfstamp/fetch"
	"github.com/lvillar/pdfstamp/internal/pdftest"
	"github.com/lvillar/pdfstamp/reader"
)

// run feeds lines to a fresh run of s and returns the decoded responses.
func run(t *testing.T, s *Server, lines ...string) []jsonrpcResponse {
	t.Helper()
	var output bytes.Buffer
	s.input = strings.NewReader(strings.Join(lines, "\n") + "\n")
	s.output = &output
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var out []jsonrpcResponse
	dec := json.NewDecoder(&output)
	for dec.More() {
		var resp jsonrpcResponse
		if err := dec.Decode(&resp); err != nil {
			t.Fatalf("decoding response %q: %v", output.String(), err)
		}
		out = append(out, resp)
	}
	return out
}

func request(t *testing.T, id int, method string, params any) string {
	t.Helper()
	req := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshaling request: %v", err)
	}
	return string(data)
}

func sendRequest(t *testing.T, s *Server, id int, method string, params any) jsonrpcResponse {
	t.Helper()
	resps := run(t, s, request(t, id, method, params))
	if len(resps) != 1 {
		t.Fatalf("got %d responses, want 1", len(resps))
	}
	return resps[0]
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) ToolResult {
	t.Helper()
	resp := sendRequest(t, s, 1, "tools/call", map[string]any{"name": name, "arguments": args})
	if resp.Error != nil {
		t.Fatalf("tools/call %s: %s", name, resp.Error.Message)
	}
	data, _ := json.Marshal(resp.Result)
	var res ToolResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decoding tool result: %v", err)
	}
	return res
}

func fixtures(t *testing.T) map[string][]byte {
	return map[string][]byte{
		"mem://invoice.pdf": pdftest.Numbered(t, pdftest.Letter, 1),
		"mem://form.pdf": pdftest.Form{Pages: 2, Fields: []pdftest.Field{
			{Name: "name", X: 100, Y: 600, W: 200, H: 20, DA: "/Helv 12 Tf 0 g"},
			{Name: "city", Page: 1, X: 100, Y: 500, W: 100, H: 20, DA: "/Cour 9 Tf 0 g"},
		}}.Bytes(),
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	content := fixtures(t)
	f := fetch.FetcherFunc(func(_ context.Context, url string) ([]byte, error) {
		data, ok := content[url]
		if !ok {
			return nil, fmt.Errorf("%w: %s", fetch.ErrStatus, url)
		}
		return data, nil
	})
	s := NewServerWithIO(nil, nil)
	RegisterTools(s, pdfstamp.New(pdfstamp.WithFetcher(f)), f)
	RegisterResources(s)
	return s
}

func TestServerInitialize(t *testing.T) {
	s := newTestServer(t)
	resp := sendRequest(t, s, 1, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
	})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatal("result is not a map")
	}
	if result["protocolVersion"] != ProtocolVersion {
		t.Errorf("protocol version = %v", result["protocolVersion"])
	}
	want := map[string]any{"name": "pdfstamp-mcp", "version": "1.0.0"}
	if diff := cmp.Diff(want, result["serverInfo"]); diff != "" {
		t.Errorf("serverInfo mismatch (-want +got):\n%s", diff)
	}

	s = NewServerWithIO(nil, nil, WithInfo("custom", "2.0"))
	result = sendRequest(t, s, 1, "initialize", nil).Result.(map[string]any)
	if info := result["serverInfo"].(map[string]any); info["name"] != "custom" || info["version"] != "2.0" {
		t.Errorf("serverInfo = %v", info)
	}
}

func TestServerToolsList(t *testing.T) {
	resp := sendRequest(t, newTestServer(t), 2, "tools/list", nil)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error.Message)
	}
	var names []string
	for _, tool := range resp.Result.(map[string]any)["tools"].([]any) {
		m := tool.(map[string]any)
		if m["inputSchema"] == nil || m["description"] == "" {
			t.Errorf("tool %v is missing a schema or description", m["name"])
		}
		names = append(names, m["name"].(string))
	}
	want := []string{"fill_form", "list_form_fields", "pdf_info", "render_template"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tools mismatch (-want +got):\n%s", diff)
	}
}

func TestServerResourcesList(t *testing.T) {
	resp := sendRequest(t, newTestServer(t), 3, "resources/list", nil)
	var uris []string
	for _, r := range resp.Result.(map[string]any)["resources"].([]any) {
		uris = append(uris, r.(map[string]any)["uri"].(string))
	}
	want := []string{"pdf://form-fields", "pdf://pages", "pdf://text"}
	if diff := cmp.Diff(want, uris); diff != "" {
		t.Errorf("resources mismatch (-want +got):\n%s", diff)
	}
}

func TestServerProtocolErrors(t *testing.T) {
	s := newTestServer(t)
	resps := run(t, s,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`not json`,
		"",
		request(t, 4, "ping", nil),
		request(t, 5, "bogus/method", nil),
		request(t, 6, "tools/call", map[string]any{"name": "nope"}),
		request(t, 7, "resources/read", map[string]any{"uri": "pdf://nope"}),
		request(t, 8, "resources/read", map[string]any{"uri": "pdf://pages"}),
	)

	type outcome struct {
		ID   string
		Code int
	}
	var got []outcome
	for _, r := range resps {
		o := outcome{ID: "null"}
		if r.ID != nil {
			o.ID = string(*r.ID)
		}
		if r.Error != nil {
			o.Code = r.Error.Code
		}
		got = append(got, o)
	}
	want := []outcome{
		{"null", codeParse},
		{"4", 0},
		{"5", codeMethodNotFound},
		{"6", codeInvalidParams},
		{"7", codeInvalidParams},
		{"8", codeInternal},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("responses mismatch (-want +got):\n%s", diff)
	}
}

func TestServerRunCanceled(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var output bytes.Buffer
	s.input = strings.NewReader(request(t, 1, "ping", nil) + "\n")
	s.output = &output
	if err := s.Run(ctx); err != context.Canceled {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	if output.Len() != 0 {
		t.Errorf("canceled run wrote %q", output.String())
	}
}

func TestRenderTemplateTool(t *testing.T) {
	s := newTestServer(t)
	res := callTool(t, s, "render_template", map[string]any{
		"config": map[string]any{
			"sourcePDFUrl": "mem://invoice.pdf",
			"fileName":     "out.pdf",
			"nodes": []any{
				map[string]any{"type": "text", "key": "name", "position": map[string]any{"x": 40, "y": 100}},
				map[string]any{"type": "image", "key": "logo", "position": map[string]any{"x": 40, "y": 200}},
			},
			"data": map[string]any{"name": "Alice", "logo": "mem://logo.png"},
		},
	})
	if res.IsError || len(res.Content) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if summary := res.Content[0].Text; !strings.HasPrefix(summary, "out.pdf: 1 pages") || !strings.Contains(summary, "Skipped 1 elements") {
		t.Errorf("summary = %q", summary)
	}
	data, err := base64.StdEncoding.DecodeString(res.Content[1].Data)
	if err != nil {
		t.Fatalf("decoding PDF: %v", err)
	}
	doc, err := reader.Parse(data)
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	p, _ := doc.Page(1)
	if text, _ := p.ExtractText(); !strings.Contains(text, "Alice") {
		t.Errorf("page text = %q", text)
	}
}

func TestFillFormToolOutputPath(t *testing.T) {
	s := newTestServer(t)
	outPath := filepath.Join(t.TempDir(), "filled.pdf")
	res := callTool(t, s, "fill_form", map[string]any{
		"config":     `{"sourcePDFUrl": "mem://form.pdf", "fields": {"name": "Bob", "city": "Lyon"}}`,
		"outputPath": outPath,
	})
	if res.IsError || !strings.Contains(res.Content[0].Text, outPath) {
		t.Fatalf("result = %+v", res)
	}
	doc, err := reader.Open(outPath)
	if err != nil {
		t.Fatalf("opening written PDF: %v", err)
	}
	if doc.NumPages() != 2 {
		t.Errorf("pages = %d", doc.NumPages())
	}
	if fields, _ := doc.FormFields(); len(fields) != 0 {
		t.Errorf("output still has %d form fields", len(fields))
	}
}

func TestToolErrors(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"render_template", map[string]any{}, "missing 'config'"},
		{"render_template", map[string]any{"config": map[string]any{"nodes": []any{}}}, "sourcePDFUrl"},
		{"render_template", map[string]any{"config": map[string]any{"sourcePDFUrl": "mem://gone.pdf"}}, "mem://gone.pdf"},
		{"fill_form", map[string]any{"config": "{"}, "invalid"},
		{"pdf_info", map[string]any{}, "missing 'path' or 'url'"},
		{"list_form_fields", map[string]any{"path": "/does/not/exist.pdf"}, "opening PDF"},
	}
	for _, tt := range tests {
		res := callTool(t, s, tt.tool, tt.args)
		if !res.IsError || !strings.Contains(res.Content[0].Text, tt.want) {
			t.Errorf("%s(%v) = %+v, want an error containing %q", tt.tool, tt.args, res, tt.want)
		}
	}
}

func TestInspectionTools(t *testing.T) {
	s := newTestServer(t)

	res := callTool(t, s, "list_form_fields", map[string]any{"url": "mem://form.pdf"})
	var fields []fieldInfo
	if err := json.Unmarshal([]byte(res.Content[0].Text), &fields); err != nil {
		t.Fatalf("decoding fields: %v\n%s", err, res.Content[0].Text)
	}
	if len(fields) != 2 {
		t.Fatalf("fields = %+v", fields)
	}
	byName := map[string]fieldInfo{}
	for _, f := range fields {
		byName[f.Name] = f
	}
	name := byName["name"]
	if name.Type != "Tx" || len(name.Widgets) != 1 {
		t.Fatalf("name field = %+v", name)
	}
	w := name.Widgets[0]
	if w.Rect != [4]float64{100, 600, 300, 620} || w.Font != "helvetica" || w.FontSize != 12 {
		t.Errorf("name widget = %+v", w)
	}
	if city := byName["city"]; len(city.Widgets) != 1 || city.Widgets[0].Font != "courier" || city.Widgets[0].FontSize != 9 {
		t.Errorf("city field = %+v", city)
	}

	path := filepath.Join(t.TempDir(), "form.pdf")
	if err := os.WriteFile(path, fixtures(t)["mem://form.pdf"], 0o644); err != nil {
		t.Fatal(err)
	}
	res = callTool(t, s, "pdf_info", map[string]any{"path": path})
	var info docInfo
	if err := json.Unmarshal([]byte(res.Content[0].Text), &info); err != nil {
		t.Fatalf("decoding info: %v", err)
	}
	want := docInfo{
		Pages:      2,
		PageSizes:  []pageInfo{{Number: 1, Width: 612, Height: 792}, {Number: 2, Width: 612, Height: 792}},
		FormFields: 2,
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("pdf_info mismatch (-want +got):\n%s", diff)
	}
}

func TestResourcesRead(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(t.TempDir(), "invoice.pdf")
	if err := os.WriteFile(path, pdftest.Numbered(t, pdftest.Letter, 2), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := sendRequest(t, s, 1, "resources/read", map[string]any{"uri": "pdf://text?path=" + path})
	if resp.Error != nil {
		t.Fatalf("resources/read: %s", resp.Error.Message)
	}
	contents := resp.Result.(map[string]any)["contents"].([]any)
	text := contents[0].(map[string]any)["text"].(string)
	for _, want := range []string{"--- Page 1 ---", "Page 1", "--- Page 2 ---", "Page 2"} {
		if !strings.Contains(text, want) {
			t.Errorf("text resource missing %q:\n%s", want, text)
		}
	}

	resp = sendRequest(t, s, 2, "resources/read", map[string]any{"uri": "pdf://pages?path=" + path})
	contents = resp.Result.(map[string]any)["contents"].([]any)
	var info docInfo
	if err := json.Unmarshal([]byte(contents[0].(map[string]any)["text"].(string)), &info); err != nil {
		t.Fatal(err)
	}
	if info.Pages != 2 {
		t.Errorf("pages = %d", info.Pages)
	}
}

func TestAddTool(t *testing.T) {
	s := NewServerWithIO(nil, nil)
	s.AddTool(Tool{
		Name:        "echo",
		Description: "Echo the message back",
		InputSchema: map[string]any{"type": "object"},
		Handler: func(_ context.Context, args map[string]any) (ToolResult, error) {
			return textResult("%v", args["msg"]), nil
		},
	})
	if res := callTool(t, s, "echo", map[string]any{"msg": "hi"}); res.Content[0].Text != "hi" {
		t.Errorf("echo = %+v", res)
	}
}
