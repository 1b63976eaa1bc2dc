package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"mold-measure/internal/mold"
	"mold-measure/internal/session"
)

// printReport writes the per-mold table and the per-type summary.
func printReport(out io.Writer, path string, calib session.CalibrationInfo, rep session.Report, molds []mold.Mold) error {
	fmt.Fprintf(out, "%s: %d molds (%s, %s), %.6f cm/px\n",
		filepath.Base(path), len(molds), rep.Strategy, rep.Elapsed.Round(time.Millisecond), calib.Factor)

	res, err := mold.Aggregate(molds)
	if errors.Is(err, mold.ErrNoMolds) {
		_, err = fmt.Fprintln(out, "no molds detected")
		return err
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nID\tTYPE\tAREA cm²\tLONG cm\tSHORT cm\tMULT\tTOTAL cm²")
	for _, m := range molds {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t%s\t%.2f\n",
			m.ID, m.Type, m.AreaCm2, m.Dimensions.Long(), m.Dimensions.Short(),
			strconv.FormatFloat(m.Multiplier, 'f', -1, 64), m.TotalArea())
	}

	fmt.Fprintln(tw, "\nTYPE\tCOUNT\tAREA cm²\tTOTAL cm²")
	for _, t := range res.Present() {
		s := res.ByType[t]
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\n", t, s.Count, s.TotalArea, s.TotalAreaWithMultiplier)
	}
	fmt.Fprintf(tw, "total\t%d\t%.2f\t%.2f\n", res.Total.Count, res.Total.TotalArea, res.Total.TotalAreaWithMultiplier)
	return tw.Flush()
}
