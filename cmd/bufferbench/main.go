// Command bufferbench compares protected buffer implementations with a
// buffered channel.
//
// Usage:
//
//	go run ./cmd/bufferbench -n 1000000 -size 64 -pairs 2
package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/randomizedcoder/protected-buffer/internal/buffer"
)

// putGetter is the blocking subset of buffer.Buffer that a channel can
// also provide.
type putGetter interface {
	Put(int)
	Get() int
}

type chanQueue chan int

func (c chanQueue) Put(v int) { c <- v }
func (c chanQueue) Get() int  { return <-c }

type candidate struct {
	name string
	q    putGetter
}

func main() {
	iterations := flag.Int("n", 1_000_000, "values transferred per run")
	size := flag.Int("size", 64, "buffer capacity")
	pairs := flag.Int("pairs", 1, "producer/consumer pairs")
	flag.Parse()

	if *pairs < 1 || *iterations < *pairs {
		fmt.Fprintln(os.Stderr, "need pairs >= 1 and n >= pairs")
		os.Exit(1)
	}
	n := *iterations / *pairs * *pairs

	var candidates []candidate
	for _, kind := range buffer.Kinds {
		b, err := buffer.New[int](kind, *size)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		candidates = append(candidates, candidate{kind.String(), b})
	}
	candidates = append(candidates, candidate{"channel", make(chanQueue, *size)})

	fmt.Printf("Benchmarking blocking put/get (%d values, size=%d, pairs=%d)\n", n, *size, *pairs)
	fmt.Println("─────────────────────────────────────────────────")

	results := make([]time.Duration, len(candidates))
	for i, c := range candidates {
		results[i] = run(c.q, n, *pairs)
	}

	fmt.Printf("\nResults:\n")
	baseline := float64(results[len(results)-1].Nanoseconds()) / float64(n)
	for i, c := range candidates {
		perOp := float64(results[i].Nanoseconds()) / float64(n)
		fmt.Printf("  %-12s %12v  %8.2f ns/op  %6.2fx vs channel  %8.2f M/s\n",
			c.name, results[i], perOp, baseline/perOp, 1000/perOp)
	}
}

// run moves n values through q using the given number of producer/consumer
// pairs and returns the wall-clock time taken.
func run(q putGetter, n, pairs int) time.Duration {
	per := n / pairs
	var wg sync.WaitGroup

	start := time.Now()
	for range pairs {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range per {
				q.Put(i)
			}
		}()
		go func() {
			defer wg.Done()
			for range per {
				q.Get()
			}
		}()
	}
	wg.Wait()
	return time.Since(start)
}
