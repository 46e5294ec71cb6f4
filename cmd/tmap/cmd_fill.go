package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/llxisdsh/tmap"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cmdFill = &cobra.Command{
	Use:   "fill",
	Short: "Bulk-insert random keys and report the table shape",
	Long: `
The "fill" command inserts random string keys into a fresh table, reads them
all back, and prints the resulting bucket statistics. Useful for eyeballing
resize and treeify behavior under a given capacity and load factor.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFill(fillOptions)
	},
}

// FillOptions bundles all options for the fill command.
type FillOptions struct {
	Count      int
	Capacity   int
	LoadFactor float64
	Verify     bool
}

var fillOptions FillOptions

func init() {
	cmdRoot.AddCommand(cmdFill)

	f := cmdFill.Flags()
	f.IntVar(&fillOptions.Count, "count", 1_000_000, "number of keys to insert")
	f.IntVar(&fillOptions.Capacity, "capacity", 16, "initial table capacity")
	f.Float64Var(&fillOptions.LoadFactor, "load-factor", 0.75, "resize threshold ratio")
	f.BoolVar(&fillOptions.Verify, "verify", true, "read every key back and check the table integrity")
}

func runFill(opts FillOptions) error {
	m, err := tmap.New[string, int](
		tmap.WithCapacity(opts.Capacity),
		tmap.WithLoadFactor(opts.LoadFactor),
	)
	if err != nil {
		return err
	}

	keys := make([]string, opts.Count)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%016x", rand.Uint64())
	}

	start := time.Now()
	for i, k := range keys {
		m.Store(k, i)
	}
	logrus.WithFields(logrus.Fields{
		"count":   opts.Count,
		"elapsed": time.Since(start),
		"size":    m.Size(),
	}).Info("insert done")

	if opts.Verify {
		start = time.Now()
		misses := 0
		for i, k := range keys {
			if v, ok := m.Load(k); !ok || v != i {
				misses++
			}
		}
		if misses > 0 {
			logrus.WithField("misses", misses).Error("lookup verification failed")
		}
		if err := m.CheckIntegrity(); err != nil {
			return err
		}
		logrus.WithField("elapsed", time.Since(start)).Info("verify done")
	}

	stats := m.Stats()
	fmt.Print(stats.String())
	return nil
}
