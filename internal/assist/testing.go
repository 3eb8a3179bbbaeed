package assist

import (
	"context"
	"sync"
	"testing"

	"github.com/aetherhq/aether/internal/chat"
	"github.com/aetherhq/aether/internal/gallery"
	"github.com/aetherhq/aether/internal/store"
	"github.com/aetherhq/aether/internal/testutil"
)

// ServiceStub implements Service with per-method hooks. Unset hooks
// return zero-value responses. Calls records invoked method names in
// order, guarded by mu for concurrent turns.
type ServiceStub struct {
	InterpretFunc   func(context.Context, InterpretRequest) (InterpretResponse, error)
	RetrieveFunc    func(context.Context, RetrieveRequest) (RetrieveResponse, error)
	GenerateFunc    func(context.Context, GenerateRequest) (GenerateResponse, error)
	AnalyzeFunc     func(context.Context, AnalyzeRequest) (AnalyzeResponse, error)
	ProcessFileFunc func(context.Context, ProcessFileRequest) (ProcessFileResponse, error)
	TranscribeFunc  func(context.Context, TranscribeRequest) (TranscribeResponse, error)
	SynthesizeFunc  func(context.Context, SynthesizeRequest) (SynthesizeResponse, error)
	ImageFunc       func(context.Context, GenerateImageRequest) (GenerateImageResponse, error)
	FeedbackFunc    func(context.Context, FeedbackRequest) (FeedbackResponse, error)

	mu    sync.Mutex
	calls []string
}

func (s *ServiceStub) record(name string) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	s.mu.Unlock()
}

// Calls returns the method names invoked so far, in order.
func (s *ServiceStub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *ServiceStub) InterpretQuery(ctx context.Context, req InterpretRequest) (InterpretResponse, error) {
	s.record("InterpretQuery")
	if s.InterpretFunc != nil {
		return s.InterpretFunc(ctx, req)
	}
	return InterpretResponse{Intent: req.Query}, nil
}

func (s *ServiceStub) RetrieveContext(ctx context.Context, req RetrieveRequest) (RetrieveResponse, error) {
	s.record("RetrieveContext")
	if s.RetrieveFunc != nil {
		return s.RetrieveFunc(ctx, req)
	}
	return RetrieveResponse{}, nil
}

func (s *ServiceStub) GenerateResponse(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	s.record("GenerateResponse")
	if s.GenerateFunc != nil {
		return s.GenerateFunc(ctx, req)
	}
	return GenerateResponse{Response: "stub response"}, nil
}

func (s *ServiceStub) AnalyzeInformation(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	s.record("AnalyzeInformation")
	if s.AnalyzeFunc != nil {
		return s.AnalyzeFunc(ctx, req)
	}
	return AnalyzeResponse{Summary: "stub summary", KeyInsights: "stub insights", ConfidenceLevel: 0.9}, nil
}

func (s *ServiceStub) ProcessFile(ctx context.Context, req ProcessFileRequest) (ProcessFileResponse, error) {
	s.record("ProcessFile")
	if s.ProcessFileFunc != nil {
		return s.ProcessFileFunc(ctx, req)
	}
	return ProcessFileResponse{Answer: "stub file answer"}, nil
}

func (s *ServiceStub) TranscribeAudio(ctx context.Context, req TranscribeRequest) (TranscribeResponse, error) {
	s.record("TranscribeAudio")
	if s.TranscribeFunc != nil {
		return s.TranscribeFunc(ctx, req)
	}
	return TranscribeResponse{TranscribedText: "stub transcript"}, nil
}

func (s *ServiceStub) SynthesizeSpeech(ctx context.Context, req SynthesizeRequest) (SynthesizeResponse, error) {
	s.record("SynthesizeSpeech")
	if s.SynthesizeFunc != nil {
		return s.SynthesizeFunc(ctx, req)
	}
	return SynthesizeResponse{AudioDataURI: "data:audio/wav;base64,AAAA"}, nil
}

func (s *ServiceStub) GenerateImage(ctx context.Context, req GenerateImageRequest) (GenerateImageResponse, error) {
	s.record("GenerateImage")
	if s.ImageFunc != nil {
		return s.ImageFunc(ctx, req)
	}
	return GenerateImageResponse{ImageDataURI: "data:image/png;base64,iVBORw0KGgo="}, nil
}

func (s *ServiceStub) ProcessFeedback(ctx context.Context, req FeedbackRequest) (FeedbackResponse, error) {
	s.record("ProcessFeedback")
	if s.FeedbackFunc != nil {
		return s.FeedbackFunc(ctx, req)
	}
	return FeedbackResponse{Status: "received"}, nil
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu            sync.Mutex
	notifications []Notification
}

func (n *recordingNotifier) Notify(note Notification) {
	n.mu.Lock()
	n.notifications = append(n.notifications, note)
	n.mu.Unlock()
}

func (n *recordingNotifier) All() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.notifications))
	copy(out, n.notifications)
	return out
}

// stubRecorder is a canned microphone for voice tests.
type stubRecorder struct {
	startErr error
	stopErr  error
	audioURI string
	started  bool
}

func (r *stubRecorder) Start(_ context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.started = true
	return nil
}

func (r *stubRecorder) Stop(_ context.Context) (string, error) {
	r.started = false
	if r.stopErr != nil {
		return "", r.stopErr
	}
	if r.audioURI == "" {
		return "data:audio/webm;base64,AAAA", nil
	}
	return r.audioURI, nil
}

// testEnv bundles a handler over in-memory stores with its observable
// collaborators.
type testEnv struct {
	handler  *Handler
	svc      *ServiceStub
	chats    *chat.Repository
	gallery  *gallery.Repository
	notifier *recordingNotifier
	recorder *stubRecorder
}

// newTestEnv builds a handler over in-memory stores. mutate adjusts
// the params before construction.
func newTestEnv(t *testing.T, mutate func(*HandlerParams)) *testEnv {
	t.Helper()

	ctx := context.Background()
	logger := testutil.DiscardLogger()
	chats := chat.NewRepository(ctx, store.NewMemory(), logger)
	images := gallery.NewRepository(ctx, store.NewMemory(), 0, logger)
	svc := &ServiceStub{}
	notifier := &recordingNotifier{}
	recorder := &stubRecorder{}

	params := HandlerParams{
		Service:  svc,
		Chats:    chats,
		Gallery:  images,
		Recorder: recorder,
		Notifier: notifier,
		Logger:   logger,
	}
	if mutate != nil {
		mutate(&params)
	}

	handler, err := NewHandler(params)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}

	return &testEnv{
		handler:  handler,
		svc:      svc,
		chats:    chats,
		gallery:  images,
		notifier: notifier,
		recorder: recorder,
	}
}
