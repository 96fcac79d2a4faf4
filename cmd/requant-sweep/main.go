// Command requant-sweep renders an out-of-range-rate-vs-right-shift
// diagnostic for a requantization layer, the provable analogue of the
// ancestor's proof-size-vs-bit-security sweep in Additionnals/plot_pacs_sweep.go:
// instead of scanning PACS protocol parameters, it scans right_shift values
// for a fixed Range/AfterRange and reports how often Requant.Apply lands
// outside the provable window at each shift, over a synthetic input
// distribution.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"zkmlprove/internal/field"
	"zkmlprove/layer"
	"zkmlprove/tensor"
)

type sweepPoint struct {
	rightShift int
	outOfRange float64
	numColumns int
}

func runSweep(rng *rand.Rand, rangeBits, afterRange, numSamples, minShift, maxShift int) []sweepPoint {
	spread := 1 << uint(rangeBits+1)
	input := make([]field.Element, numSamples)
	for i := range input {
		input[i] = field.Element(rng.Intn(spread) - spread/2)
	}
	t := tensor.New([]int{numSamples}, input)

	points := make([]sweepPoint, 0, maxShift-minShift+1)
	for shift := minShift; shift <= maxShift; shift++ {
		r := &layer.Requant{RightShift: shift, Range: 1 << uint(rangeBits), AfterRange: afterRange}
		_, outOfRange, err := r.Op(t)
		if err != nil {
			fmt.Fprintf(os.Stderr, "requant-sweep: right_shift=%d: %v\n", shift, err)
			continue
		}
		points = append(points, sweepPoint{
			rightShift: shift,
			outOfRange: float64(outOfRange) / float64(numSamples),
			numColumns: r.NumColumns(),
		})
	}
	return points
}

func main() {
	rangeBits := flag.Int("range-bits", 3, "log2 of Requant.Range")
	afterRange := flag.Int("after-range", 16, "Requant.AfterRange, must be a power of two")
	numSamples := flag.Int("samples", 4096, "number of synthetic input elements per shift")
	minShift := flag.Int("min-shift", 1, "smallest right_shift to sweep")
	maxShift := flag.Int("max-shift", 12, "largest right_shift to sweep")
	seed := flag.Int64("seed", 1, "PRNG seed for the synthetic input distribution")
	outPath := flag.String("out", "requant_sweep.html", "output HTML file")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	points := runSweep(rng, *rangeBits, *afterRange, *numSamples, *minShift, *maxShift)

	page := components.NewPage().SetPageTitle("Requant out-of-range rate vs. right_shift")

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Requant out-of-range rate vs. right_shift",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "right_shift", Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "out-of-range rate", Type: "value"}),
		charts.WithToolboxOpts(opts.Toolbox{
			Show: opts.Bool(true),
			Feature: &opts.ToolBoxFeature{
				SaveAsImage: &opts.ToolBoxFeatureSaveAsImage{Show: opts.Bool(true)},
			},
		}),
	)

	xAxis := make([]string, len(points))
	rateItems := make([]opts.LineData, len(points))
	columnItems := make([]opts.LineData, len(points))
	for i, p := range points {
		xAxis[i] = fmt.Sprintf("%d", p.rightShift)
		rateItems[i] = opts.LineData{Value: p.outOfRange}
		columnItems[i] = opts.LineData{Value: p.numColumns}
	}
	line.SetXAxis(xAxis).
		AddSeries("out-of-range rate", rateItems).
		AddSeries("lookup columns (K)", columnItems)

	page.AddCharts(line)

	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "requant-sweep: create %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		fmt.Fprintf(os.Stderr, "requant-sweep: render: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s: %d right_shift values swept\n", *outPath, len(points))
}
