package main

import (
	"github.com/spf13/cobra"

	"github.com/parrotnavy/rn-native-updates/internal/exitcodes"
	ui "github.com/parrotnavy/rn-native-updates/internal/ui"
	"github.com/parrotnavy/rn-native-updates/pkg/version"
)

type compareResult struct {
	A        string `json:"a" yaml:"a"`
	B        string `json:"b" yaml:"b"`
	Depth    int    `json:"depth" yaml:"depth"`
	Strategy string `json:"strategy" yaml:"strategy"`
	Result   int    `json:"result" yaml:"result"`
}

func createCompareCmd() *cobra.Command {
	var (
		depth  int
		semver bool
	)
	cmd := &cobra.Command{
		Use:   "compare A B",
		Short: "Compare two version strings",
		Long: `Compare two dotted version strings segment by segment and print -1, 0 or 1.

Segments are read as integers from their leading digits, so "1.2-beta" equals
"1.2" and "1.10" is newer than "1.9". --depth limits the number of segments
compared; --semver switches to strict SemVer precedence.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := getPrinter()
			if err != nil {
				return err
			}
			return handleCompare(p, args[0], args[1], depth, semver)
		},
	}
	cmd.Flags().IntVar(&depth, "depth", 0, "Compare only the first N segments (0 = all)")
	cmd.Flags().BoolVar(&semver, "semver", false, "Use SemVer 2.0 precedence")
	return cmd
}

func handleCompare(p ui.Printer, a, b string, depth int, semver bool) error {
	if depth < 0 {
		return exitcodes.InvalidArgsErrorf("--depth must be >= 0, got %d", depth)
	}
	strategy, name := version.StrategyDotted, "dotted"
	if semver {
		strategy, name = version.StrategySemVer, "semver"
	}
	res := compareResult{
		A:        a,
		B:        b,
		Depth:    depth,
		Strategy: name,
		Result:   version.CompareStrategy(strategy, a, b, depth),
	}
	if p.Structured() {
		return p.Value(res)
	}

	op := "="
	switch res.Result {
	case -1:
		op = "<"
	case 1:
		op = ">"
	}
	p.Textf("%s %s %s\n", a, op, b)
	return nil
}
