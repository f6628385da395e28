package aicreative

import (
	"context"
	"testing"
	"time"
)

type stubVideoClient struct {
	pollsUntilDone int
	polled         int
	failAtEnd      bool
}

func (s *stubVideoClient) EditImage(ctx context.Context, req ImageEditRequest) (*ImageResult, error) {
	panic("not used")
}

func (s *stubVideoClient) GenerateVideo(ctx context.Context, req VideoGenerateRequest) (*VideoOperation, error) {
	return &VideoOperation{ID: "op1", Status: VideoStatusProcessing}, nil
}

func (s *stubVideoClient) PollVideo(ctx context.Context, operationID string) (*VideoOperation, error) {
	s.polled++
	if s.polled < s.pollsUntilDone {
		return &VideoOperation{ID: operationID, Status: VideoStatusProcessing}, nil
	}
	if s.failAtEnd {
		return &VideoOperation{ID: operationID, Status: VideoStatusFailed, Error: "transcode error"}, nil
	}
	return &VideoOperation{ID: operationID, Status: VideoStatusSucceeded, VideoURL: "https://cdn.example/video.mp4"}, nil
}

func (s *stubVideoClient) DownloadArtifact(ctx context.Context, artifactURL string) ([]byte, error) {
	return []byte("video-bytes"), nil
}

func TestGenerateVideoAndWaitSucceedsAfterPolling(t *testing.T) {
	stub := &stubVideoClient{pollsUntilDone: 3}

	op, err := GenerateVideoAndWait(context.Background(), stub, VideoGenerateRequest{Prompt: "p"},
		WithPollInterval(time.Millisecond), WithPollBudget(time.Second))
	if err != nil {
		t.Fatalf("generate video: %v", err)
	}
	if op.Status != VideoStatusSucceeded {
		t.Fatalf("status = %v, want succeeded", op.Status)
	}
	if op.VideoURL == "" {
		t.Fatal("expected video url populated")
	}
}

func TestGenerateVideoAndWaitReturnsErrorOnFailedOperation(t *testing.T) {
	stub := &stubVideoClient{pollsUntilDone: 2, failAtEnd: true}

	_, err := GenerateVideoAndWait(context.Background(), stub, VideoGenerateRequest{Prompt: "p"},
		WithPollInterval(time.Millisecond), WithPollBudget(time.Second))
	if err == nil {
		t.Fatal("expected error for failed video operation")
	}
}

func TestGenerateVideoAndWaitRespectsBudget(t *testing.T) {
	stub := &stubVideoClient{pollsUntilDone: 1000}

	_, err := GenerateVideoAndWait(context.Background(), stub, VideoGenerateRequest{Prompt: "p"},
		WithPollInterval(5*time.Millisecond), WithPollBudget(30*time.Millisecond))
	if err == nil {
		t.Fatal("expected budget-exhausted error")
	}
}
