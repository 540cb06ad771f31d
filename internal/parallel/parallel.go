// Package parallel provides the one piece of intra-op fan-out the engine
// needs: splitting an embarrassingly-parallel index range across a bounded
// number of goroutines.
//
// Every primitive op forward/backward pair in package gpt2 that is safe to
// parallelize (matmul, attention, softmax) goes through For. Ops that
// accumulate into rows shared across the index, such as encoder backward
// and attention backward, are never handed to For; they stay serial so
// gradient accumulation does not race.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// For calls fn(i) for every i in [0, n), spread across at most workers
// goroutines. workers <= 0 means GOMAXPROCS. fn must not write to memory
// shared across different i unless that memory is disjoint per i; For
// does not introduce any locking of its own.
func For(n, workers int, fn func(i int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var g errgroup.Group
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if lo >= n {
			break
		}
		if hi > n {
			hi = n
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}
