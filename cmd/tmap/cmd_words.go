package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/llxisdsh/tmap"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cmdWords = &cobra.Command{
	Use:   "words [flags] FILE",
	Short: "Count word frequencies in a file",
	Long: `
The "words" command counts how often each word occurs in the given file,
using the hash table as the frequency map, and prints the most frequent ones.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWords(args[0], wordsOptions)
	},
}

// WordsOptions bundles all options for the words command.
type WordsOptions struct {
	Top int
}

var wordsOptions WordsOptions

func init() {
	cmdRoot.AddCommand(cmdWords)

	f := cmdWords.Flags()
	f.IntVar(&wordsOptions.Top, "top", 20, "number of entries to print")
}

func runWords(path string, opts WordsOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	m, err := tmap.New[string, int]()
	if err != nil {
		return err
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		for _, w := range strings.Fields(sc.Text()) {
			w = strings.ToLower(strings.Trim(w, ".,;:!?\"'()[]{}"))
			if w == "" {
				continue
			}
			c, _ := m.Load(w)
			m.Store(w, c+1)
		}
	}
	if err := sc.Err(); err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	logrus.WithField("distinct", m.Size()).Info("count done")

	type wc struct {
		word  string
		count int
	}
	all := make([]wc, 0, m.Size())
	if err := m.Range(func(w string, c int) bool {
		all = append(all, wc{w, c})
		return true
	}); err != nil {
		return err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].word < all[j].word
	})

	n := min(opts.Top, len(all))
	for _, e := range all[:n] {
		fmt.Printf("%8d  %s\n", e.count, e.word)
	}
	return nil
}
