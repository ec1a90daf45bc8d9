package embeddings

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
)

type countingEmbedder struct {
	calls atomic.Int32
	dim   int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return make([]float32, c.dim), nil
}

func (c *countingEmbedder) Dimension() int { return c.dim }

func TestServiceCaches(t *testing.T) {
	emb := &countingEmbedder{dim: 4}
	s := NewService(emb, 2)
	defer s.Close()

	for i := 0; i < 3; i++ {
		vec, err := s.Embed(context.Background(), "a cat on a sofa")
		if err != nil {
			t.Fatalf("embed: %v", err)
		}
		if len(vec) != 4 {
			t.Errorf("len=%d", len(vec))
		}
	}
	if emb.calls.Load() != 1 {
		t.Errorf("calls=%d", emb.calls.Load())
	}
}

func TestServiceErrors(t *testing.T) {
	want := errors.New("down")
	s := NewService(&countingEmbedder{dim: 4, err: want}, 1)
	if _, err := s.Embed(context.Background(), "x"); !errors.Is(err, want) {
		t.Errorf("err=%v", err)
	}
	s.Close()
	s.Close()
	if _, err := s.Embed(context.Background(), "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("err=%v", err)
	}
}

func TestServiceDimensionMismatch(t *testing.T) {
	s := NewService(&badDim{}, 1)
	defer s.Close()
	if _, err := s.Embed(context.Background(), "x"); err == nil {
		t.Error("expected dimension error")
	}
}

type badDim struct{}

func (badDim) Embed(context.Context, string) ([]float32, error) { return []float32{1}, nil }
func (badDim) Dimension() int                                   { return 3 }

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestHash(t *testing.T) {
	h := NewHash(64)
	ctx := context.Background()

	a, _ := h.Embed(ctx, "Cat on the sofa")
	b, _ := h.Embed(ctx, "cat, SOFA!")
	c, _ := h.Embed(ctx, "")

	if len(a) != 64 {
		t.Fatalf("len=%d", len(a))
	}
	if n := cosine(a, a); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm=%v", n)
	}
	if sim := cosine(a, b); sim <= 0 {
		t.Errorf("similarity=%v", sim)
	}
	for _, v := range c {
		if v != 0 {
			t.Fatalf("empty text should embed to zero vector")
		}
	}

	again, _ := h.Embed(ctx, "Cat on the sofa")
	for i := range a {
		if a[i] != again[i] {
			t.Fatalf("not deterministic at %d", i)
		}
	}
}
