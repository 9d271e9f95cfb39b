package inmemory_service_registry_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/repository/service_registry/inmemory_service_registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var svc = model.Service{Namespace: "test-n", Name: "test-s"}

func Test_New_Empty(t *testing.T) {
	repo := inmemory_service_registry.New[string](svc)

	assert.Equal(t, svc, repo.Service())
	assert.Empty(t, repo.Nodes())
	assert.NotNil(t, repo.Nodes())
	assert.False(t, repo.IsRefreshed())
}

func Test_UpdateNodes(t *testing.T) {
	repo := inmemory_service_registry.New[string](svc)

	nodes := []model.Node[string]{{Host: "h1", Port: 1}, {Host: "h2", Port: 2}}
	repo.UpdateNodes(nodes)

	assert.True(t, repo.IsRefreshed())
	assert.Equal(t, nodes, repo.Nodes())

	// mutating caller's slice must not leak into snapshot
	nodes[0].Host = "changed"
	assert.Equal(t, "h1", repo.Nodes()[0].Host)
}

func Test_Nodes_ReturnsCopy(t *testing.T) {
	repo := inmemory_service_registry.New[string](svc)
	repo.UpdateNodes([]model.Node[string]{{Host: "h1", Port: 1}, {Host: "h2", Port: 2}})

	got := repo.Nodes()
	got[0].Host = "changed"
	_ = append(got[:1], model.Node[string]{Host: "h3"})

	again := repo.Nodes()
	require.Len(t, again, 2)
	assert.Equal(t, "h1", again[0].Host)
	assert.Equal(t, "h2", again[1].Host)
}

func Test_UpdateNodes_EmptyStillRefreshed(t *testing.T) {
	repo := inmemory_service_registry.New[string](svc)

	repo.UpdateNodes(nil)

	assert.True(t, repo.IsRefreshed())
	assert.NotNil(t, repo.Nodes())
	assert.Empty(t, repo.Nodes())
}

func Test_Restore_NotRefreshed(t *testing.T) {
	repo := inmemory_service_registry.New[string](svc)

	repo.Restore([]model.Node[string]{{Host: "h1"}})

	assert.False(t, repo.IsRefreshed())
	assert.Len(t, repo.Nodes(), 1)
}

func Test_SnapshotAtomicity(t *testing.T) {
	repo := inmemory_service_registry.New[int](svc)

	const (
		writers    = 4
		iterations = 500
		size       = 16
	)

	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range iterations {
				gen := w*iterations + i
				nodes := make([]model.Node[int], size)
				for j := range nodes {
					nodes[j] = model.Node[int]{Host: fmt.Sprintf("h%d", j), Data: gen}
				}
				repo.UpdateNodes(nodes)
			}
		}()
	}

	stop := make(chan struct{})
	readerErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-stop:
				readerErr <- nil
				return
			default:
			}

			snapshot := repo.Nodes()
			if len(snapshot) == 0 {
				continue
			}
			for _, n := range snapshot {
				if n.Data != snapshot[0].Data {
					readerErr <- fmt.Errorf("torn snapshot: %d vs %d", n.Data, snapshot[0].Data)
					return
				}
			}
		}
	}()

	wg.Wait()
	close(stop)
	require.NoError(t, <-readerErr)
	assert.True(t, repo.IsRefreshed())
}

func Test_Metrics(t *testing.T) {
	repo := inmemory_service_registry.New[string](svc)

	assert.Len(t, repo.Metrics(), 3)
}
