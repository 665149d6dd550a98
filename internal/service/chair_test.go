package service

import "testing"

func TestRenderScript(t *testing.T) {
	got := RenderScript("I recognize the delegation of {speaker}.", map[string]string{"speaker": "Brazil"})
	if got != "I recognize the delegation of Brazil." {
		t.Errorf("rendered = %q", got)
	}
}

func TestRenderScriptKeepsUnknownPlaceholders(t *testing.T) {
	got := RenderScript("Issue {issue_id}: {unknown}", map[string]string{"issue_id": "3"})
	if got != "Issue 3: {unknown}" {
		t.Errorf("rendered = %q", got)
	}
}
