package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chifron/chifron/internal/cache"
	"github.com/chifron/chifron/internal/numbers"
	"github.com/chifron/chifron/internal/numwords"
)

var (
	wordsOnly  bool
	jsonOutput bool

	sayCmd = &cobra.Command{
		Use:   "say NUMBER",
		Short: "Print the French words for a number and synthesize its audio",
		Long: paragraph(fmt.Sprintf("\n%s a number between 0 and %d: print its French words and store the spoken audio in the artifact directory.",
			keyword("Say"), numwords.MaxNumber)),
		Example: paragraph("chifron say 91\nchifron say 80 --words-only\nchifron say 2000 --json"),
		Args:    cobra.ExactArgs(1),
		RunE:    runSay,
	}
)

func runSay(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%q is not an integer", args[0])
	}
	out := cmd.OutOrStdout()

	if wordsOnly {
		words, err := numwords.ToWords(n)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, words)
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Failed to close engine", "err", err)
		}
	}()

	result, err := a.numbers.GetNumberInfo(cmd.Context(), n)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	entry, err := a.store.Lookup(cache.Digest(result.Words))
	if err != nil {
		return err
	}
	return printResult(out, result, entry, isTerminal(out))
}

func printResult(w io.Writer, r numbers.Result, entry cache.Entry, styled bool) error {
	if !styled {
		_, err := fmt.Fprintf(w, "%d\t%s\t%s\n", r.Number, r.Words, entry.Path)
		return err
	}

	_, err := fmt.Fprintf(w, "\n  %s %s\n\n  %s %s\n  %s %s\n\n",
		numberBadge(strconv.Itoa(r.Number)), keyword(r.Words),
		faint("file"), entry.Path+" "+faint("("+humanize.Bytes(uint64(entry.Size))+", "+humanize.Time(entry.CreatedAt)+")"), //nolint:gosec
		faint("url "), r.AudioURL,
	)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec
}

func init() {
	sayCmd.Flags().BoolVarP(&wordsOnly, "words-only", "w", false, "print the words without synthesizing audio")
	sayCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	sayCmd.MarkFlagsMutuallyExclusive("words-only", "json")
}
