package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// MockCache implements EmbeddingCache for testing
type MockCache struct {
	mu               sync.Mutex
	GetEmbeddingFunc func(ctx context.Context, key string) ([]float32, bool, error)
	PutEmbeddingFunc func(ctx context.Context, key, model string, vec []float32) error
	puts             []string
}

func (m *MockCache) GetEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	if m.GetEmbeddingFunc != nil {
		return m.GetEmbeddingFunc(ctx, key)
	}
	return nil, false, nil
}

func (m *MockCache) PutEmbedding(ctx context.Context, key, model string, vec []float32) error {
	m.mu.Lock()
	m.puts = append(m.puts, key)
	m.mu.Unlock()
	if m.PutEmbeddingFunc != nil {
		return m.PutEmbeddingFunc(ctx, key, model, vec)
	}
	return nil
}

// MockClient implements Client and Encoder for testing
type MockClient struct {
	mu        sync.Mutex
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
	calls     int
}

func (m *MockClient) Prepare(ctx context.Context, corpus []string) (Encoder, error) {
	return m, nil
}

func (m *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float32{1, 2, 3}, nil
}

func (m *MockClient) Dim() int      { return 3 }
func (m *MockClient) Model() string { return "mock-model" }

func TestCacheKey(t *testing.T) {
	a := CacheKey("m1", "text")
	if len(a) != 40 {
		t.Errorf("Expected 40 hex characters, got %d", len(a))
	}
	if a != CacheKey("m1", "text") {
		t.Error("Expected stable key for identical input")
	}
	if a == CacheKey("m2", "text") {
		t.Error("Expected model to change the key")
	}
	if CacheKey("ab", "c") == CacheKey("a", "bc") {
		t.Error("Expected separator between model and text")
	}
}

func TestCachedClient_Embed(t *testing.T) {
	cacheErr := errors.New("db down")

	tests := []struct {
		name          string
		get           func(ctx context.Context, key string) ([]float32, bool, error)
		put           func(ctx context.Context, key, model string, vec []float32) error
		embedErr      error
		expected      []float32
		expectError   bool
		expectedCalls int
		expectedPuts  int
	}{
		{
			name: "hit skips provider",
			get: func(ctx context.Context, key string) ([]float32, bool, error) {
				return []float32{9, 9}, true, nil
			},
			expected:      []float32{9, 9},
			expectedCalls: 0,
			expectedPuts:  0,
		},
		{
			name:          "miss embeds and stores",
			expected:      []float32{1, 2, 3},
			expectedCalls: 1,
			expectedPuts:  1,
		},
		{
			name: "lookup failure falls through",
			get: func(ctx context.Context, key string) ([]float32, bool, error) {
				return nil, false, cacheErr
			},
			expected:      []float32{1, 2, 3},
			expectedCalls: 1,
			expectedPuts:  1,
		},
		{
			name: "write failure is ignored",
			put: func(ctx context.Context, key, model string, vec []float32) error {
				return cacheErr
			},
			expected:      []float32{1, 2, 3},
			expectedCalls: 1,
			expectedPuts:  1,
		},
		{
			name:          "provider failure is returned and not stored",
			embedErr:      errors.New("provider down"),
			expectError:   true,
			expectedCalls: 1,
			expectedPuts:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := &MockCache{GetEmbeddingFunc: tt.get, PutEmbeddingFunc: tt.put}
			inner := &MockClient{}
			if tt.embedErr != nil {
				inner.EmbedFunc = func(ctx context.Context, text string) ([]float32, error) {
					return nil, tt.embedErr
				}
			}
			client := NewCachedClient(inner, cache)

			enc, err := client.Prepare(context.Background(), nil)
			if err != nil {
				t.Fatalf("Prepare: %v", err)
			}
			vec, err := enc.Embed(context.Background(), "hello")

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
			} else {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if len(vec) != len(tt.expected) {
					t.Fatalf("Expected %v, got %v", tt.expected, vec)
				}
				for i := range vec {
					if vec[i] != tt.expected[i] {
						t.Errorf("Expected %v, got %v", tt.expected, vec)
						break
					}
				}
			}
			if inner.calls != tt.expectedCalls {
				t.Errorf("Expected %d provider calls, got %d", tt.expectedCalls, inner.calls)
			}
			if len(cache.puts) != tt.expectedPuts {
				t.Errorf("Expected %d cache writes, got %d", tt.expectedPuts, len(cache.puts))
			}
		})
	}
}

func TestCachedClient_KeyUsesModel(t *testing.T) {
	var gotKey string
	cache := &MockCache{
		GetEmbeddingFunc: func(ctx context.Context, key string) ([]float32, bool, error) {
			gotKey = key
			return []float32{1}, true, nil
		},
	}
	client := NewCachedClient(&MockClient{}, cache)
	enc, _ := client.Prepare(context.Background(), nil)
	if _, err := enc.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotKey != CacheKey("mock-model", "hello") {
		t.Errorf("Expected key for mock-model, got %s", gotKey)
	}
	if client.Dim() != 3 || client.Model() != "mock-model" {
		t.Error("Expected CachedClient to forward Dim and Model")
	}
}
