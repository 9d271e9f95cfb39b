package selector_test

import (
	"sync"
	"testing"

	"github.com/horockey/ranger/internal/model"
	"github.com/horockey/ranger/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var svc = model.Service{Namespace: "n", Name: "s"}

func nodes() []model.Node[string] {
	return []model.Node[string]{
		{Host: "a", Data: "eu", HealthcheckStatus: model.HealthcheckStatusHealthy},
		{Host: "b", Data: "us", HealthcheckStatus: model.HealthcheckStatusUnhealthy},
		{Host: "c", Data: "us", HealthcheckStatus: model.HealthcheckStatusHealthy},
		{Host: "d", Data: "eu", HealthcheckStatus: model.HealthcheckStatusHealthy},
	}
}

func Test_RoundRobin(t *testing.T) {
	rr := selector.NewRoundRobin[string]()

	var hosts []string
	for range 6 {
		n, err := rr.Select(svc, nodes(), nil)
		require.NoError(t, err)
		hosts = append(hosts, n.Host)
	}
	assert.Equal(t, []string{"a", "c", "d", "a", "c", "d"}, hosts)
}

func Test_RoundRobin_Criteria(t *testing.T) {
	rr := selector.NewRoundRobin[string]()
	eu := func(n model.Node[string]) bool { return n.Data == "eu" }

	first, err := rr.Select(svc, nodes(), eu)
	require.NoError(t, err)
	second, err := rr.Select(svc, nodes(), eu)
	require.NoError(t, err)

	assert.Equal(t, "a", first.Host)
	assert.Equal(t, "d", second.Host)
}

func Test_RoundRobin_Concurrent(t *testing.T) {
	rr := selector.NewRoundRobin[string]()

	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)
	for range 30 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := rr.Select(svc, nodes(), nil)
			assert.NoError(t, err)
			mu.Lock()
			counts[n.Host]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[string]int{"a": 10, "c": 10, "d": 10}, counts)
}

func Test_NoNodes(t *testing.T) {
	none := func(model.Node[string]) bool { return false }

	for name, sel := range map[string]selector.Selector[string]{
		"round robin": selector.NewRoundRobin[string](),
		"random":      selector.Random[string]{},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := sel.Select(svc, nodes(), none)
			assert.ErrorAs(t, err, &model.NoNodesError{})

			_, err = sel.Select(svc, nil, nil)
			assert.ErrorAs(t, err, &model.NoNodesError{})
		})
	}
}

func Test_Random(t *testing.T) {
	us := func(n model.Node[string]) bool { return n.Data == "us" }

	for range 10 {
		n, err := selector.Random[string]{}.Select(svc, nodes(), us)
		require.NoError(t, err)
		assert.Equal(t, "c", n.Host)
	}
}
