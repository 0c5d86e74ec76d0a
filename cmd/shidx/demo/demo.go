// Package demo wires up a small synthetic dataset against the index
// engine, the way a smoke-test CLI command would, and reports query
// counts for eyeballing.
package demo

import (
	"fmt"
	"math/rand"
	"strconv"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ledgerwatch/shi/comparer"
	"github.com/ledgerwatch/shi/group"
	"github.com/ledgerwatch/shi/index"
	"github.com/ledgerwatch/shi/primarykv"
	"github.com/ledgerwatch/shi/shi"
)

type widget struct {
	size  int
	color int
	count int
}

var sizeNames = [5]string{"small", "medium", "large", "xlarge", "xxlarge"}
var colorNames = [7]string{"red", "orange", "yellow", "green", "blue", "indigo", "violet"}

// Run builds the size and color groups, inserts n synthetic records seeded
// by seed, and returns a human-readable summary of a few sample queries.
func Run(n int, seed int64) (string, error) {
	primary := primarykv.NewMemStore()
	mgr := index.Attach(primary)

	sizeGroup, err := mgr.RegisterGroup("size", []group.PredicateDef{
		{Name: "size", Fn: func(v any) (any, bool) { return sizeNames[v.(widget).size], true }},
	}, group.Settings{HashTableSize: 1 << 12, Comparer: comparer.String})
	if err != nil {
		return "", err
	}
	colorGroup, err := mgr.RegisterGroup("color", []group.PredicateDef{
		{Name: "color", Fn: func(v any) (any, bool) { return colorNames[v.(widget).color], true }},
	}, group.Settings{HashTableSize: 1 << 12, Comparer: comparer.String})
	if err != nil {
		return "", err
	}

	log.Info("registered groups", "groups", len(mgr.GroupNames()))

	rnd := rand.New(rand.NewSource(seed))
	sess := mgr.NewSession()
	for i := 0; i < n; i++ {
		w := widget{size: rnd.Intn(5), color: rnd.Intn(7), count: rnd.Intn(1000)}
		addr := primary.Put([]byte("rec-"+strconv.Itoa(i)), w)
		if err := sess.Insert(w, shi.RecordId(addr)); err != nil {
			return "", err
		}
	}
	log.Info("inserted synthetic records", "count", n)

	mediumItems, err := mgr.Query(sizeGroup, 0, "medium")
	if err != nil {
		return "", err
	}
	blueItems, err := mgr.Query(colorGroup, 0, "blue")
	if err != nil {
		return "", err
	}
	both, err := mgr.Compose2(
		index.ChainSpec{Group: sizeGroup, Ordinal: 0, Key: "medium"},
		index.ChainSpec{Group: colorGroup, Ordinal: 0, Key: "blue"},
		func(inA, inB bool) bool { return inA && inB },
	)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("medium=%d blue=%d medium&blue=%d", len(mediumItems), len(blueItems), len(both)), nil
}
