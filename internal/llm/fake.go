package llm

import "context"

// FakeMarker prefixes every fake response, so tests and manual runs can
// tell canned output from real generations at a glance.
const FakeMarker = "[FAKE_RESPONSE]"

// Fake echoes the prompt back. It is the default provider and the only
// one reachable in the test environment.
type Fake struct{}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) ProviderName() string { return "fake" }

func (f *Fake) ModelName() string { return "fake" }

func (f *Fake) Generate(_ context.Context, req Request) (Response, error) {
	return Response{
		AssistantText: FakeMarker + req.Prompt,
		Metadata:      nil,
	}, nil
}
