package output

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

func StatusBar(ctx context.Context, refreshRate time.Duration, printF func()) {
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			printF()
		case <-ctx.Done():
			return
		}
	}
}

// PrettyReplayStatus renders the replay progress. A negative progress
// means the input size is unknown.
func PrettyReplayStatus(progress float64, rate, records, bytesRead uint64) string {
	bar := "[streaming]"
	if progress >= 0 {
		bar = fmt.Sprintf("[%s] %6.2f%%", ProgressBar(int(progress), 40), progress)
	}
	return fmt.Sprintf("\r%-50s %-20s %-20s %-20s",
		fmt.Sprintf("Replayed: %s", bar),
		fmt.Sprintf("Records/s: %s", humanize.Comma(int64(rate))),
		fmt.Sprintf("Records: %s", humanize.Comma(int64(records))),
		fmt.Sprintf("Read: %s", humanize.Bytes(bytesRead)),
	)
}
