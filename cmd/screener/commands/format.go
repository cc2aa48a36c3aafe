package commands

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/wonny/rsscreen/internal/brain"
	"github.com/wonny/rsscreen/internal/contracts"
	"github.com/wonny/rsscreen/internal/selection"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	for i := 0; i < totalWidth; i++ {
		fmt.Print("─")
	}
	fmt.Println()
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// printRunResult prints the funnel and top entries of every variant
func printRunResult(result *brain.RunResult, top int) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  RS Screen %s\n", result.Date.Format("2006-01-02"))
	PrintSeparator()
	fmt.Printf("  Universe  : %d tickers (%d excluded)\n", result.Universe.Count(), len(result.Universe.Excluded))
	fmt.Printf("  Config    : %s\n", result.ConfigHash[:12])
	if result.Quality != nil {
		fmt.Printf("  Quality   : %.1f%%\n", result.Quality.QualityScore*100)
		for _, reason := range result.Quality.Reasons {
			PrintWarning(reason)
		}
	}
	fmt.Printf("  Duration  : %s\n", result.Duration.Round(time.Millisecond))
	PrintDoubleSeparator()

	for _, res := range result.Variants {
		printVariant(res, top)
		if paths, ok := result.Exports[res.Variant]; ok {
			PrintSuccess("Exported " + paths.CSV)
		}
	}
}

func printVariant(res *selection.RunResult, top int) {
	fmt.Printf("\n[%s] %d tickers\n", res.Variant, len(res.Watchlist.Entries))

	// Stage funnel
	for _, stage := range contracts.AllStages() {
		fmt.Printf("  %-4s %-22s %6d\n", stage.ShortName(), stage, res.StageCounts[stage])
	}
	if len(res.FailedTickers) > 0 {
		failed := make([]string, 0, len(res.FailedTickers))
		for t := range res.FailedTickers {
			failed = append(failed, t)
		}
		sort.Strings(failed)
		PrintWarning(fmt.Sprintf("%d tickers without data: %v", len(failed), head(failed, 10)))
	}
	fmt.Println()

	entries := res.Watchlist.Entries
	if top > 0 && len(entries) > top {
		entries = entries[:top]
	}
	if len(entries) == 0 {
		return
	}

	widths := []int{4, 8, 8, 4, 24}
	PrintTableHeader([]string{"#", "TICKER", "RS", "PCT", "SECTOR"}, widths)
	for i, e := range entries {
		PrintTableRow([]string{
			strconv.Itoa(i + 1),
			e.Ticker,
			strconv.FormatFloat(e.RawScore, 'f', 3, 64),
			strconv.Itoa(e.Percentile),
			e.Sector,
		}, widths)
	}
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
