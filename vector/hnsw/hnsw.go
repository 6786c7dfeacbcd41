// Package hnsw provides an approximate vector index based on the
// Hierarchical Navigable Small World graph.
//
// The EF search parameter is the recall/latency tradeoff knob: larger values
// explore a bigger dynamic candidate list, improving recall at the cost of
// search time. EF=200 typically reaches >95% recall on mid-dimensional
// embedding datasets.
package hnsw

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/raggo/metric"
	"github.com/hupe1980/raggo/model"
	"github.com/hupe1980/raggo/vector"
)

// node represents a node in the HNSW graph.
type node struct {
	connections [][]uint32 // links to other nodes, per layer
	vector      []float32
	layer       int
	id          uint32
}

// Options represents the options for configuring HNSW.
type Options struct {
	// M specifies the number of established connections for every new
	// element during construction. The range 12-48 works for most use
	// cases; higher M suits high-dimensional data and high recall targets.
	M int

	// EF specifies the default size of the dynamic candidate list during
	// search. Larger EF improves recall at the cost of search time.
	EF int

	// Heuristic selects the neighbour-selection heuristic from the HNSW
	// paper instead of naive nearest-M linking.
	Heuristic bool

	// Similarity is the similarity measure used for scoring.
	Similarity metric.Similarity

	// Seed seeds the level generator. Fixed by default so that identical
	// insertion sequences build identical graphs.
	Seed int64
}

// DefaultOptions are the recommended defaults.
var DefaultOptions = Options{
	M:          16,
	EF:         200,
	Heuristic:  true,
	Similarity: metric.Cosine,
	Seed:       1,
}

// Index is an approximate vector index backed by an HNSW graph.
//
// Deleted chunks are tombstoned: their nodes keep routing traffic through the
// graph but are excluded from results. The identifier space is append-only.
type Index struct {
	mu        sync.RWMutex
	dimension int
	mmax      int     // max connections per element per layer
	mmax0     int     // max for layer 0
	ml        float64 // normalization factor for level generation
	ep        uint32  // entry point
	maxLevel  int

	nodes   []*node
	chunkOf []model.ChunkID // internal node ID -> chunk ID (0 = sentinel)
	nodeOf  map[model.ChunkID]uint32
	deleted bitset.BitSet

	distFn metric.DistanceFunc
	rng    *rand.Rand
	opts   Options
}

var _ vector.Index = (*Index)(nil)

// New creates a new HNSW index for embeddings of the given dimension.
func New(dimension int, optFns ...func(o *Options)) (*Index, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < 2 {
		// M == 1 would make the level normalization degenerate.
		opts.M = 2
	}

	distFn, err := metric.DistanceProvider(opts.Similarity)
	if err != nil {
		return nil, err
	}

	sentinel := &node{
		id:          0,
		layer:       0,
		vector:      make([]float32, dimension),
		connections: make([][]uint32, 2*opts.M+1),
	}

	return &Index{
		dimension: dimension,
		mmax:      opts.M,
		mmax0:     2 * opts.M,
		ml:        1 / math.Log(float64(opts.M)),
		ep:        0,
		maxLevel:  0,
		nodes:     []*node{sentinel},
		chunkOf:   []model.ChunkID{0},
		nodeOf:    make(map[model.ChunkID]uint32),
		distFn:    distFn,
		rng:       rand.New(rand.NewSource(opts.Seed)), //nolint:gosec // level generator, not crypto
		opts:      opts,
	}, nil
}

// Add inserts the embedding into the graph. Re-adding an existing chunk ID
// tombstones the old node and inserts a fresh one.
func (idx *Index) Add(id model.ChunkID, vec []float32) error {
	if len(vec) != idx.dimension {
		return &vector.ErrDimensionMismatch{Expected: idx.dimension, Actual: len(vec)}
	}

	cp := make([]float32, len(vec))
	copy(cp, vec)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if old, ok := idx.nodeOf[id]; ok {
		idx.deleted.Set(uint(old))
	}

	internal := uint32(len(idx.nodes))
	layer := int(math.Floor(-math.Log(idx.rng.Float64()) * idx.ml))
	n := &node{
		id:          internal,
		vector:      cp,
		layer:       layer,
		connections: make([][]uint32, max(idx.mmax, layer)+1),
	}

	currObj, currDist, err := idx.descendToLayer(cp, n.layer)
	if err != nil {
		return err
	}

	topCandidates := &priorityQueue{}

	for level := min(n.layer, idx.maxLevel); level >= 0; level-- {
		if err := idx.searchLayer(cp, queueItem{node: currObj.id, distance: currDist}, topCandidates, idx.opts.EF, level); err != nil {
			return err
		}

		if idx.opts.Heuristic {
			idx.selectNeighboursHeuristic(topCandidates, idx.opts.M, false)
		} else {
			idx.selectNeighboursSimple(topCandidates, idx.opts.M)
		}

		n.connections[level] = make([]uint32, topCandidates.Len())
		for i := topCandidates.Len() - 1; i >= 0; i-- {
			candidate, _ := heap.Pop(topCandidates).(queueItem)
			n.connections[level][i] = candidate.node
		}
	}

	idx.nodes = append(idx.nodes, n)
	idx.chunkOf = append(idx.chunkOf, id)
	idx.nodeOf[id] = internal

	// Link the neighbour nodes back to the new node, making it visible.
	for level := min(n.layer, idx.maxLevel); level >= 0; level-- {
		for _, neighbour := range n.connections[level] {
			if err := idx.link(neighbour, internal, level); err != nil {
				return err
			}
		}
	}

	if n.layer > idx.maxLevel {
		idx.ep = internal
		idx.maxLevel = n.layer
	}

	return nil
}

// Delete tombstones the chunk. The node stays in the graph for routing but is
// excluded from search results.
func (idx *Index) Delete(id model.ChunkID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	internal, ok := idx.nodeOf[id]
	if !ok {
		return nil
	}
	idx.deleted.Set(uint(internal))
	delete(idx.nodeOf, id)
	return nil
}

// Search performs an approximate nearest-neighbour search and returns up to k
// hits ordered by descending similarity, ties broken by ascending chunk ID.
func (idx *Index) Search(query []float32, k int, optFns ...func(o *vector.SearchOptions)) ([]model.Hit, error) {
	if len(query) != idx.dimension {
		return nil, &vector.ErrDimensionMismatch{Expected: idx.dimension, Actual: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}

	sOpts := vector.SearchOptions{}
	for _, fn := range optFns {
		fn(&sOpts)
	}
	ef := sOpts.EF
	if ef <= 0 {
		ef = idx.opts.EF
	}
	if ef < k {
		ef = k
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.nodes) == 1 {
		return nil, nil
	}

	entry := idx.nodes[idx.ep]
	entryItem, err := idx.greedyDescend(query, entry)
	if err != nil {
		return nil, err
	}

	topCandidates := &priorityQueue{maxHeap: true}
	heap.Init(topCandidates)
	if err := idx.searchLayer(query, entryItem, topCandidates, ef, 0); err != nil {
		return nil, err
	}

	hits := make([]model.Hit, 0, topCandidates.Len())
	for _, item := range topCandidates.items {
		if item.node == 0 || idx.deleted.Test(uint(item.node)) {
			continue
		}
		hits = append(hits, model.Hit{
			ID:    idx.chunkOf[item.node],
			Score: metric.SimilarityFromDistance(idx.opts.Similarity, item.distance),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Dimension returns the configured embedding dimension.
func (idx *Index) Dimension() int { return idx.dimension }

// Close implements vector.Index.
func (idx *Index) Close() error { return nil }

// descendToLayer walks greedily from the entry point down to targetLayer,
// following the single closest connection at each upper layer.
func (idx *Index) descendToLayer(vec []float32, targetLayer int) (*node, float32, error) {
	currObj := idx.nodes[idx.ep]

	currDist, err := idx.distFn(currObj.vector, vec)
	if err != nil {
		return nil, 0, err
	}

	for level := currObj.layer; level > targetLayer; level-- {
		changed := true
		for changed {
			changed = false
			for _, nodeID := range currObj.connections[level] {
				next := idx.nodes[nodeID]
				nextDist, err := idx.distFn(next.vector, vec)
				if err != nil {
					return nil, 0, err
				}
				if nextDist < currDist {
					currObj = next
					currDist = nextDist
					changed = true
				}
			}
		}
	}

	return currObj, currDist, nil
}

// greedyDescend finds the layer-0 entry item for a search query.
func (idx *Index) greedyDescend(query []float32, entry *node) (queueItem, error) {
	curr := entry
	currDist, err := idx.distFn(query, curr.vector)
	if err != nil {
		return queueItem{}, err
	}

	for level := idx.maxLevel; level > 0; level-- {
		scan := true
		for scan {
			scan = false
			if level >= len(curr.connections) {
				continue
			}
			for _, nodeID := range curr.connections[level] {
				d, err := idx.distFn(idx.nodes[nodeID].vector, query)
				if err != nil {
					return queueItem{}, err
				}
				if d < currDist {
					curr = idx.nodes[nodeID]
					currDist = d
					scan = true
				}
			}
		}
	}

	return queueItem{node: curr.id, distance: currDist}, nil
}

// searchLayer performs a best-first search in one layer of the graph.
func (idx *Index) searchLayer(query []float32, ep queueItem, topCandidates *priorityQueue, ef, level int) error {
	var visited bitset.BitSet
	visited.Set(uint(ep.node))

	candidates := &priorityQueue{maxHeap: false}
	heap.Init(candidates)
	heap.Push(candidates, ep)

	topCandidates.maxHeap = true
	heap.Init(topCandidates)
	topCandidates.items = topCandidates.items[:0]
	heap.Push(topCandidates, ep)

	for candidates.Len() > 0 {
		lowerBound := topCandidates.top().distance

		candidate, _ := heap.Pop(candidates).(queueItem)
		if candidate.distance > lowerBound {
			break
		}

		n := idx.nodes[candidate.node]
		if level >= len(n.connections) {
			continue
		}

		for _, neighbour := range n.connections[level] {
			if visited.Test(uint(neighbour)) {
				continue
			}
			visited.Set(uint(neighbour))

			d, err := idx.distFn(query, idx.nodes[neighbour].vector)
			if err != nil {
				return err
			}

			item := queueItem{node: neighbour, distance: d}

			if topCandidates.Len() < ef {
				heap.Push(topCandidates, item)
				heap.Push(candidates, item)
			} else if topCandidates.top().distance > d {
				heap.Pop(topCandidates)
				heap.Push(topCandidates, item)
				heap.Push(candidates, item)
			}
		}
	}

	return nil
}

// link connects two nodes at the given level, pruning back to the connection
// limit when exceeded.
func (idx *Index) link(first, second uint32, level int) error {
	maxConnections := idx.mmax
	// Layer 0 allows double the connections.
	if level == 0 {
		maxConnections = idx.mmax0
	}

	n := idx.nodes[first]
	for level >= len(n.connections) {
		n.connections = append(n.connections, nil)
	}
	n.connections[level] = append(n.connections[level], second)

	if len(n.connections[level]) <= maxConnections {
		return nil
	}

	topCandidates := &priorityQueue{maxHeap: false}
	heap.Init(topCandidates)

	for _, id := range n.connections[level] {
		d, err := idx.distFn(n.vector, idx.nodes[id].vector)
		if err != nil {
			return err
		}
		heap.Push(topCandidates, queueItem{node: id, distance: d})
	}

	if idx.opts.Heuristic {
		idx.selectNeighboursHeuristic(topCandidates, maxConnections, true)
	} else {
		idx.selectNeighboursSimple(topCandidates, maxConnections)
	}

	n.connections[level] = make([]uint32, 0, maxConnections)
	for topCandidates.Len() > 0 && len(n.connections[level]) < maxConnections {
		item, _ := heap.Pop(topCandidates).(queueItem)
		n.connections[level] = append(n.connections[level], item.node)
	}

	return nil
}

// selectNeighboursSimple keeps the nearest M candidates.
func (idx *Index) selectNeighboursSimple(topCandidates *priorityQueue, m int) {
	for topCandidates.Len() > m {
		_ = heap.Pop(topCandidates)
	}
}

// selectNeighboursHeuristic keeps candidates that are closer to the base
// point than to any already-kept candidate, improving graph connectivity in
// clustered data.
func (idx *Index) selectNeighboursHeuristic(topCandidates *priorityQueue, m int, minOrder bool) {
	if topCandidates.Len() <= m {
		return
	}

	working := &priorityQueue{maxHeap: false}
	heap.Init(working)
	for topCandidates.Len() > 0 {
		item, _ := heap.Pop(topCandidates).(queueItem)
		heap.Push(working, item)
	}

	kept := make([]queueItem, 0, m)
	spilled := make([]queueItem, 0, working.Len())

	for working.Len() > 0 && len(kept) < m {
		item, _ := heap.Pop(working).(queueItem)

		hit := true
		for _, v := range kept {
			d, err := idx.distFn(idx.nodes[v.node].vector, idx.nodes[item.node].vector)
			if err != nil {
				continue
			}
			if d < item.distance {
				hit = false
				break
			}
		}

		if hit {
			kept = append(kept, item)
		} else {
			spilled = append(spilled, item)
		}
	}

	for _, item := range spilled {
		if len(kept) >= m {
			break
		}
		kept = append(kept, item)
	}

	topCandidates.maxHeap = !minOrder
	topCandidates.items = topCandidates.items[:0]
	heap.Init(topCandidates)
	for _, item := range kept {
		heap.Push(topCandidates, item)
	}
}
