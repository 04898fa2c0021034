// Package testutil holds helpers shared by provider tests.
package testutil

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// secretHeaders are removed from recorded interactions.
var secretHeaders = []string{"Authorization", "X-Api-Key", "Openai-Organization", "Openai-Project"}

// NewVCRRecorder creates a recorder that replays testdata/fixtures/<name>.yaml.
// Set VCR_MODE=record to hit the real backend and rewrite the cassette.
func NewVCRRecorder(t *testing.T, cassetteName string) (*recorder.Recorder, func()) {
	t.Helper()

	mode := recorder.ModeReplaying
	if os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	}

	cassettePath := filepath.Join("testdata", "fixtures", cassetteName)

	r, err := recorder.NewAsMode(cassettePath, mode, nil)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	// Prompts vary with template wording, so bodies are not matched.
	r.SetMatcher(func(r *http.Request, i cassette.Request) bool {
		return r.Method == i.Method && r.URL.String() == i.URL
	})

	r.AddSaveFilter(func(i *cassette.Interaction) error {
		for _, h := range secretHeaders {
			delete(i.Request.Headers, h)
		}
		return nil
	})

	cleanup := func() {
		if err := r.Stop(); err != nil {
			t.Errorf("Failed to stop VCR recorder: %v", err)
		}
	}

	return r, cleanup
}

// VCRHTTPClient returns an HTTP client that routes through the recorder.
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{
		Transport: r,
	}
}

// APIKey returns the named environment variable, or a dummy key when
// replaying.
func APIKey(envVar string) string {
	if key := os.Getenv(envVar); key != "" {
		return key
	}
	return "test-key"
}

// SkipIfNoKey skips a recording run that has no credentials.
func SkipIfNoKey(t *testing.T, envVar string) {
	t.Helper()
	if os.Getenv(envVar) == "" && os.Getenv("VCR_MODE") == "record" {
		t.Skipf("Skipping test: %s not set", envVar)
	}
}
