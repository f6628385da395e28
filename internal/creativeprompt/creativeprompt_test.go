package creativeprompt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/pkg/anthropic"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockClient) CreateBatch(ctx context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockClient) GetBatch(ctx context.Context, batchID string) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockClient) GetBatchResults(ctx context.Context, batchID string) (anthropic.BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(anthropic.BatchResultIterator), args.Error(1)
}

func TestWriteReturnsTrimmedPromptText(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "  a cozy mug on a sunlit desk  "}},
	}, nil)

	w := NewWriter(client, "claude-haiku-4-5-20251001")
	prompt, err := w.Write(context.Background(), model.WinnerCreativeImage, "Ceramic Mug")

	require.NoError(t, err)
	require.Equal(t, "a cozy mug on a sunlit desk", prompt)
}

func TestWriteErrorsOnEmptyCompletion(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "   "}},
	}, nil)

	w := NewWriter(client, "claude-haiku-4-5-20251001")
	_, err := w.Write(context.Background(), model.WinnerCreativeVideo, "Ceramic Mug")

	require.Error(t, err)
}

func TestWritePropagatesClientError(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	w := NewWriter(client, "claude-haiku-4-5-20251001")
	_, err := w.Write(context.Background(), model.WinnerCreativeImage, "Ceramic Mug")

	require.Error(t, err)
}

// fakeBatchResultIterator is a minimal anthropic.BatchResultIterator test
// double (the real package's mock iterator lives in an unexported _test.go
// file and isn't reachable from here).
type fakeBatchResultIterator struct {
	items []anthropic.BatchResultItem
	idx   int
}

func (it *fakeBatchResultIterator) Next() bool {
	if it.idx >= len(it.items) {
		return false
	}
	it.idx++
	return true
}
func (it *fakeBatchResultIterator) Item() anthropic.BatchResultItem { return it.items[it.idx-1] }
func (it *fakeBatchResultIterator) Err() error                      { return nil }
func (it *fakeBatchResultIterator) Close() error                    { return nil }

func TestWriteBatchReturnsSucceededPromptsByCustomID(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "primer ack"}},
	}, nil)
	client.On("CreateBatch", mock.Anything, mock.Anything).Return(&anthropic.BatchResponse{
		ID: "batch_1", ProcessingStatus: "in_progress",
	}, nil)
	client.On("GetBatch", mock.Anything, "batch_1").Return(&anthropic.BatchResponse{
		ID: "batch_1", ProcessingStatus: "ended",
	}, nil)
	client.On("GetBatchResults", mock.Anything, "batch_1").Return(&fakeBatchResultIterator{
		items: []anthropic.BatchResultItem{
			{CustomID: "p1:video", Type: "succeeded", Message: &anthropic.MessageResponse{
				Content: []anthropic.ContentBlock{{Type: "text", Text: "a vertical showcase of a mug"}},
			}},
			{CustomID: "p2:image", Type: "errored"},
		},
	}, nil)

	w := NewWriter(client, "claude-haiku-4-5-20251001")
	prompts, err := w.WriteBatch(context.Background(), []PromptJob{
		{CustomID: "p1:video", Kind: model.WinnerCreativeVideo, ProductTitle: "Ceramic Mug"},
		{CustomID: "p2:image", Kind: model.WinnerCreativeImage, ProductTitle: "Wool Scarf"},
	})

	require.NoError(t, err)
	require.Equal(t, "a vertical showcase of a mug", prompts["p1:video"])
	_, failed := prompts["p2:image"]
	require.False(t, failed)
}

func TestWriteBatchEmptyJobsReturnsNil(t *testing.T) {
	client := &mockClient{}
	w := NewWriter(client, "claude-haiku-4-5-20251001")

	prompts, err := w.WriteBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, prompts)
	client.AssertNotCalled(t, "CreateBatch", mock.Anything, mock.Anything)
}

func TestWriteBatchPropagatesCreateBatchError(t *testing.T) {
	client := &mockClient{}
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "ack"}},
	}, nil)
	client.On("CreateBatch", mock.Anything, mock.Anything).Return(nil, errors.New("quota exceeded"))

	w := NewWriter(client, "claude-haiku-4-5-20251001")
	_, err := w.WriteBatch(context.Background(), []PromptJob{
		{CustomID: "p1:video", Kind: model.WinnerCreativeVideo, ProductTitle: "Ceramic Mug"},
	})

	require.Error(t, err)
}
