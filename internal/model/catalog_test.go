package model

import "testing"

func TestLookup(t *testing.T) {
	m, err := Lookup("gemini-2.5-flash")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if m.Family != "gemini-2.5" {
		t.Errorf("Family = %q, want gemini-2.5", m.Family)
	}
	if !m.FunctionCalling {
		t.Error("FunctionCalling = false, want true")
	}

	if _, err := Lookup("gpt-4o"); err == nil {
		t.Error("Lookup of unknown model should fail")
	}
}

func TestDefaultModelSupported(t *testing.T) {
	if !IsSupported(DefaultChatModel) {
		t.Errorf("default model %q not in catalog", DefaultChatModel)
	}
	if !IsSupported(TitleModel) {
		t.Errorf("title model %q not in catalog", TitleModel)
	}
}

func TestToolsEnabled(t *testing.T) {
	if ToolsEnabled("gemini-2.5-pro") {
		t.Error("gemini-2.5-pro should run with an empty tool set")
	}
	if !ToolsEnabled("gemini-2.5-flash") {
		t.Error("gemini-2.5-flash should run with tools")
	}
}

func TestGenkitName(t *testing.T) {
	if got, want := GenkitName("gemini-1.5-pro"), "googleai/gemini-1.5-pro"; got != want {
		t.Errorf("GenkitName = %q, want %q", got, want)
	}
}
