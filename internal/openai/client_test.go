package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEmbeddingAPI struct {
	mock.Mock
}

func (m *MockEmbeddingAPI) CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	args := m.Called(ctx, conv)
	return args.Get(0).(openai.EmbeddingResponse), args.Error(1)
}

func embeddingResponse(n int) openai.EmbeddingResponse {
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = float32(i) * 0.001
	}
	return openai.EmbeddingResponse{Data: []openai.Embedding{{Embedding: vec}}}
}

func testClient(api EmbeddingAPI, dims int) *Client {
	return newClient(api, Config{EmbeddingDimensions: dims, Backoff: time.Millisecond})
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := testClient(api, 256)
	ctx := context.Background()

	api.On("CreateEmbeddings", ctx, mock.MatchedBy(func(req openai.EmbeddingRequest) bool {
		return req.Model == DefaultEmbeddingModel && req.Dimensions == 256 &&
			len(req.Input.([]string)) == 1 && req.Input.([]string)[0] == "Led the payments platform team"
	})).Return(embeddingResponse(256), nil)

	embedding, err := client.GenerateEmbedding(ctx, "  Led the payments platform team\n")

	require.NoError(t, err)
	assert.Len(t, embedding, 256)
	api.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	embedding, err := client.GenerateEmbedding(context.Background(), "   ")

	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Nil(t, embedding)
}

func TestClient_GenerateEmbedding_RetriesRateLimit(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := testClient(api, 8)
	ctx := context.Background()

	limited := &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}
	api.On("CreateEmbeddings", ctx, mock.Anything).Return(openai.EmbeddingResponse{}, limited).Once()
	api.On("CreateEmbeddings", ctx, mock.Anything).Return(embeddingResponse(8), nil).Once()

	embedding, err := client.GenerateEmbedding(ctx, "retry me")

	require.NoError(t, err)
	assert.Len(t, embedding, 8)
	api.AssertNumberOfCalls(t, "CreateEmbeddings", 2)
}

func TestClient_GenerateEmbedding_GivesUpAfterAttempts(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := testClient(api, 8)
	ctx := context.Background()

	down := &openai.APIError{HTTPStatusCode: http.StatusBadGateway, Message: "upstream"}
	api.On("CreateEmbeddings", ctx, mock.Anything).Return(openai.EmbeddingResponse{}, down)

	_, err := client.GenerateEmbedding(ctx, "text")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create embedding")
	api.AssertNumberOfCalls(t, "CreateEmbeddings", defaultAttempts)
}

func TestClient_GenerateEmbedding_NoRetryOnClientError(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := testClient(api, 8)
	ctx := context.Background()

	api.On("CreateEmbeddings", ctx, mock.Anything).
		Return(openai.EmbeddingResponse{}, &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"})

	_, err := client.GenerateEmbedding(ctx, "text")

	require.Error(t, err)
	api.AssertNumberOfCalls(t, "CreateEmbeddings", 1)
}

func TestClient_GenerateEmbedding_CancelledDuringBackoff(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := newClient(api, Config{EmbeddingDimensions: 8, Backoff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	api.On("CreateEmbeddings", ctx, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(openai.EmbeddingResponse{}, &openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable})

	_, err := client.GenerateEmbedding(ctx, "text")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := testClient(api, 1536)
	ctx := context.Background()

	api.On("CreateEmbeddings", ctx, mock.Anything).Return(embeddingResponse(512), nil)

	embedding, err := client.GenerateEmbedding(ctx, "text")

	assert.ErrorIs(t, err, ErrWrongDimensions)
	assert.Nil(t, embedding)
}

func TestClient_GenerateEmbedding_EmptyResponse(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := testClient(api, 8)
	ctx := context.Background()

	api.On("CreateEmbeddings", ctx, mock.Anything).Return(openai.EmbeddingResponse{}, nil)

	_, err := client.GenerateEmbedding(ctx, "text")
	assert.Error(t, err)
}

func TestClient_GenerateEmbedding_AdaOmitsDimensions(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := newClient(api, Config{EmbeddingModel: openai.AdaEmbeddingV2})
	ctx := context.Background()

	api.On("CreateEmbeddings", ctx, mock.MatchedBy(func(req openai.EmbeddingRequest) bool {
		return req.Dimensions == 0
	})).Return(embeddingResponse(DefaultEmbeddingDimensions), nil)

	_, err := client.GenerateEmbedding(ctx, "text")
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_TruncatesLongInput(t *testing.T) {
	api := new(MockEmbeddingAPI)
	client := testClient(api, 8)
	ctx := context.Background()

	api.On("CreateEmbeddings", ctx, mock.MatchedBy(func(req openai.EmbeddingRequest) bool {
		in := req.Input.([]string)[0]
		return len(in) <= MaxInputChars && utf8.ValidString(in)
	})).Return(embeddingResponse(8), nil)

	_, err := client.GenerateEmbedding(ctx, strings.Repeat("é", MaxInputChars))
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "a", truncateRunes("aé", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 10))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&openai.APIError{HTTPStatusCode: 429}))
	assert.True(t, retryable(&openai.RequestError{HTTPStatusCode: 503, Err: errors.New("x")}))
	assert.False(t, retryable(&openai.APIError{HTTPStatusCode: 400}))
	assert.False(t, retryable(errors.New("dial tcp: refused")))
}

func TestNewClientWithConfig_Defaults(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "k"})

	assert.Equal(t, DefaultEmbeddingDimensions, client.Dimension())
	assert.Equal(t, DefaultEmbeddingModel, client.model)
	assert.Equal(t, defaultAttempts, client.attempts)
}
