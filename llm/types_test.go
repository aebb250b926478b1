package llm

import (
	"encoding/json"
	"testing"
)

func TestMessageUnmarshalStringShorthand(t *testing.T) {
	var msg Message
	if err := json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &msg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if msg.Role != RoleUser {
		t.Errorf("Expected role user, got %s", msg.Role)
	}
	if len(msg.Content) != 1 {
		t.Fatalf("Expected 1 content part, got %d", len(msg.Content))
	}
	if msg.Content[0].Type != ContentPartTypeText || msg.Content[0].Text != "hello" {
		t.Errorf("Expected text part %q, got %+v", "hello", msg.Content[0])
	}
}

func TestMessageUnmarshalPartArray(t *testing.T) {
	raw := `{"role":"user","content":[
		{"type":"text","text":"describe this"},
		{"type":"image","image":{"data":"aWC=","media_type":"image/png"}}
	]}`
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(msg.Content) != 2 {
		t.Fatalf("Expected 2 content parts, got %d", len(msg.Content))
	}
	if msg.Content[1].Type != ContentPartTypeImage {
		t.Errorf("Expected image part, got %s", msg.Content[1].Type)
	}
	if msg.Content[1].Image == nil || msg.Content[1].Image.MediaType != "image/png" {
		t.Errorf("Image payload not decoded: %+v", msg.Content[1].Image)
	}
}

func TestResponseText(t *testing.T) {
	resp := &Response{Content: []ContentPart{
		NewTextPart("first "),
		NewImagePart("data", "image/png"),
		NewTextPart("second"),
	}}
	if got := resp.Text(); got != "first second" {
		t.Errorf("Expected concatenated text parts, got %q", got)
	}
}

func TestRequestPartTypes(t *testing.T) {
	req := &Request{
		Messages: []Message{
			{Role: RoleUser, Content: []ContentPart{NewTextPart("a"), NewImagePart("x", "image/png")}},
			{Role: RoleAssistant, Content: []ContentPart{NewTextPart("b")}},
			{Role: RoleUser, Content: []ContentPart{NewPDFPart("y", "doc.pdf")}},
		},
	}
	types := req.PartTypes()
	want := []ContentPartType{ContentPartTypeText, ContentPartTypeImage, ContentPartTypePDF}
	if len(types) != len(want) {
		t.Fatalf("Expected %d types, got %d", len(want), len(types))
	}
	for i, typ := range want {
		if types[i] != typ {
			t.Errorf("Expected type %s at index %d, got %s", typ, i, types[i])
		}
	}
}

func TestRequestCheckShape(t *testing.T) {
	good := NewTextRequest("anthropic", "claude-sonnet-4-5", "hi")
	if err := good.CheckShape(); err != nil {
		t.Errorf("Expected valid request, got %v", err)
	}

	tests := []struct {
		name string
		req  *Request
	}{
		{"missing provider", &Request{Model: "m", Messages: []Message{NewTextMessage(RoleUser, "x")}}},
		{"missing model", &Request{Provider: "p", Messages: []Message{NewTextMessage(RoleUser, "x")}}},
		{"no messages", &Request{Provider: "p", Model: "m"}},
	}
	for _, tt := range tests {
		if err := tt.req.CheckShape(); err == nil {
			t.Errorf("%s: expected shape error", tt.name)
		}
	}
}

func TestNewVisionRequestImagesFirst(t *testing.T) {
	img := NewImagePart("abc", "image/jpeg")
	req := NewVisionRequest("anthropic", "claude-sonnet-4-5", "what is this", img)
	content := req.Messages[0].Content
	if len(content) != 2 {
		t.Fatalf("Expected 2 parts, got %d", len(content))
	}
	if content[0].Type != ContentPartTypeImage || content[1].Type != ContentPartTypeText {
		t.Error("Expected image part before text part")
	}
}

func TestCapabilitiesSupports(t *testing.T) {
	caps := ModelCapabilities{Vision: true, PDF: false}
	if !caps.Supports(ContentPartTypeText) {
		t.Error("Text must always be supported")
	}
	if !caps.Supports(ContentPartTypeImage) {
		t.Error("Expected vision support")
	}
	if caps.Supports(ContentPartTypePDF) {
		t.Error("Expected no pdf support")
	}
	if caps.Supports(ContentPartTypeAudio) || caps.Supports(ContentPartTypeVideo) {
		t.Error("Expected no audio/video support")
	}
}

func TestCapabilitiesSupportsAll(t *testing.T) {
	caps := ModelCapabilities{Vision: true}
	if !caps.SupportsAll([]ContentPartType{ContentPartTypeText, ContentPartTypeImage}) {
		t.Error("Expected text+image to pass")
	}
	if caps.SupportsAll([]ContentPartType{ContentPartTypeText, ContentPartTypePDF}) {
		t.Error("Expected pdf to fail")
	}
	if !caps.SupportsAll(nil) {
		t.Error("Empty type list must always pass")
	}
}
