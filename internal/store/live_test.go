package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shaiso/Helix/internal/domain"
)

func TestLive_ResolveReturnsOneInstancePerID(t *testing.T) {
	local := newFakeLocal()
	remote := newFakeRemote()
	live := NewLive(newTestCoordinator(local, remote))
	ctx := context.Background()

	p := testPipeline("user-1")
	remote.pipelines[p.ID] = *p

	first, err := live.Resolve(ctx, "user-1", p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := live.Resolve(ctx, "user-1", p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Все точки входа (API, scheduler, MQ) обязаны получать один и тот
	// же экземпляр: иначе у записи два расходящихся писателя
	if first != second {
		t.Fatal("resolve must return the same live instance for one ID")
	}
}

func TestLive_ResolvePrefersLiveOverStorage(t *testing.T) {
	local := newFakeLocal()
	remote := newFakeRemote()
	live := NewLive(newTestCoordinator(local, remote))
	ctx := context.Background()

	p := testPipeline("user-1")
	p.Name = "stored"
	remote.pipelines[p.ID] = *p

	inst, err := live.Resolve(ctx, "user-1", p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Мутация живого экземпляра видна следующему резолву, даже если
	// хранилище отстаёт
	inst.Status = domain.PipelineStatusRunning
	again, err := live.Resolve(ctx, "user-1", p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Status != domain.PipelineStatusRunning {
		t.Error("live state must win over the stored copy")
	}
}

func TestLive_TrackKeepsFirstInstance(t *testing.T) {
	live := NewLive(newTestCoordinator(newFakeLocal(), newFakeRemote()))

	p := testPipeline("user-1")
	other := p.Clone()

	if got := live.Track(p); got != p {
		t.Fatal("first track must register the instance")
	}
	if got := live.Track(other); got != p {
		t.Error("second track under the same ID must return the first instance")
	}
}

func TestLive_ReplaceAndForget(t *testing.T) {
	live := NewLive(newTestCoordinator(newFakeLocal(), newFakeRemote()))

	p := testPipeline("user-1")
	live.Track(p)

	synced := p.Clone()
	synced.Name = "synced"
	live.Replace(synced)
	if got := live.Get(p.ID); got != synced {
		t.Error("replace must swap the live instance")
	}

	live.Forget(p.ID)
	if live.Get(p.ID) != nil {
		t.Error("forget must drop the instance")
	}
}

func TestLive_ResolveUnknownPipeline(t *testing.T) {
	live := NewLive(newTestCoordinator(newFakeLocal(), newFakeRemote()))

	_, err := live.Resolve(context.Background(), "user-1", uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
