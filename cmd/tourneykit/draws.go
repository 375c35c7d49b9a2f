package main

import (
	"fmt"
	"io"
	"os"

	"github.com/lox/tourneykit/sdk/random"
)

// DrawsCmd prints the first draws of a match stream. Every player in a match
// with this seed sees the same values.
type DrawsCmd struct {
	Seed  uint64 `arg:"" help:"Match seed"`
	Count int    `short:"n" default:"10" help:"Number of draws"`
	Turn  *int   `help:"Derive the seed for this turn of a turn-based match"`
	Sides int    `default:"6" help:"Die size for the roll column"`

	out io.Writer
}

func (c *DrawsCmd) Run() error {
	if c.Sides < 1 {
		return fmt.Errorf("sides must be positive")
	}
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	seed := c.Seed
	if c.Turn != nil {
		seed = random.Derive(c.Seed, uint64(*c.Turn))
	}
	stream := random.New(seed)

	fmt.Fprintf(out, "seed %d\n", seed)
	fmt.Fprintf(out, "%4s  %20s  %8s  %4s\n", "pos", "uint64", "float", "roll")
	for i := 0; i < c.Count; i++ {
		pos := stream.Position()
		v := stream.Uint64()
		f := random.NewAt(seed, pos).Float()
		roll, err := random.NewAt(seed, pos).IntRange(1, c.Sides+1)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%4d  %20d  %8.6f  %4d\n", pos, v, f, roll)
	}
	return nil
}
