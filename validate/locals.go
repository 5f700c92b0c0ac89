package validate

import (
	"sort"

	"github.com/bvisness/wasm-validate/utils"
	"github.com/bvisness/wasm-validate/wasm"
)

// MaxLocals is the most locals, parameters included, a function may declare.
const MaxLocals = 50000

// The first few locals are stored uncompressed for O(1) lookup.
const maxLocalsToTrack = 50

type localRun struct {
	last uint32 // index of the last local in this run
	t    wasm.ValType
}

type locals struct {
	numLocals uint32
	first     []wasm.ValType
	all       []localRun
}

func (l *locals) define(count uint32, t wasm.ValType) bool {
	if count == 0 {
		return true
	}
	total, ok := utils.CheckedAdd(l.numLocals, count)
	if !ok || total > MaxLocals {
		return false
	}
	l.numLocals = total
	for i := uint32(0); i < count && len(l.first) < maxLocalsToTrack; i++ {
		l.first = append(l.first, t)
	}
	l.all = append(l.all, localRun{last: total - 1, t: t})
	return true
}

func (l *locals) get(idx uint32) (wasm.ValType, bool) {
	if int(idx) < len(l.first) {
		return l.first[idx], true
	}
	return l.getSlow(idx)
}

func (l *locals) getSlow(idx uint32) (wasm.ValType, bool) {
	i := sort.Search(len(l.all), func(i int) bool {
		return l.all[i].last >= idx
	})
	if i == len(l.all) {
		return wasm.ValType{}, false
	}
	return l.all[i].t, true
}

func (l *locals) len() uint32 {
	return l.numLocals
}
