package resolve

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"

	"leadetl/internal/normalize"
	"leadetl/internal/table"
)

// Column names written by AssignIdentifiers.
const (
	ColUUID   = "UUID"
	ColLeadID = "Lead ID"
)

// Default surrogate id space: every 10-digit number without a leading zero.
const (
	DefaultMinID int64 = 1000000000
	DefaultMaxID int64 = 9999999999
)

// ErrIDSpaceExhausted is returned when every id in the space is taken.
var ErrIDSpaceExhausted = errors.New("resolve: surrogate id space exhausted")

// IDGenerator draws surrogate ids from [Min, Max] by rejection sampling
// against the set of ids already in use. Collisions are retried silently.
type IDGenerator struct {
	min, max int64
	rng      *rand.Rand
	used     map[int64]struct{}
	taken    int64 // used ids inside [min, max]
}

// NewIDGenerator returns a generator over [min, max] seeded with existing ids.
// Existing ids outside the space are remembered but do not reduce capacity.
func NewIDGenerator(min, max int64, rng *rand.Rand, existing ...int64) (*IDGenerator, error) {
	if min > max {
		return nil, fmt.Errorf("resolve: invalid id space [%d, %d]", min, max)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	g := &IDGenerator{min: min, max: max, rng: rng, used: make(map[int64]struct{}, len(existing))}
	for _, id := range existing {
		g.Reserve(id)
	}
	return g, nil
}

// Reserve marks id as taken.
func (g *IDGenerator) Reserve(id int64) {
	if _, dup := g.used[id]; dup {
		return
	}
	g.used[id] = struct{}{}
	if id >= g.min && id <= g.max {
		g.taken++
	}
}

// Next returns an id not previously reserved or returned.
func (g *IDGenerator) Next() (int64, error) {
	span := g.max - g.min + 1
	if g.taken >= span {
		return 0, ErrIDSpaceExhausted
	}
	for {
		id := g.min + g.rng.Int64N(span)
		if _, dup := g.used[id]; dup {
			continue
		}
		g.used[id] = struct{}{}
		g.taken++
		return id, nil
	}
}

// AssignIdentifiers adds a UUID to every row and a Lead ID that is the
// normalized reference id from refCol when valid, otherwise a fresh surrogate
// from gen. Valid reference ids are reserved in gen before any surrogate is
// drawn so the two never collide. newUUID defaults to uuid.New.
func AssignIdentifiers(t *table.Table, refCol string, gen *IDGenerator, newUUID func() uuid.UUID) error {
	ref, err := t.Column(refCol)
	if err != nil {
		return err
	}
	if newUUID == nil {
		newUUID = uuid.New
	}
	ids := make([]string, len(ref))
	for i, v := range ref {
		if id, ok := normalize.RefID(v); ok {
			ids[i] = id
			n, _ := strconv.ParseInt(id, 10, 64)
			gen.Reserve(n)
		}
	}
	for i := range ids {
		if ids[i] != "" {
			continue
		}
		n, err := gen.Next()
		if err != nil {
			return err
		}
		ids[i] = strconv.FormatInt(n, 10)
	}

	t.SetColumn(ColUUID, func(table.Row) string { return newUUID().String() })
	t.AddColumn(ColLeadID, "")
	ix, _ := t.Index(ColLeadID)
	for i := range t.Rows {
		t.Rows[i].V[ix] = ids[i]
	}
	return nil
}
