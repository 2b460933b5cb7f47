package main

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/tonimelisma/sharepoint-upload/internal/upload"
)

// newProgress returns an upload progress callback drawing a byte-count bar
// on w. It returns nil (no progress output) when suppressed or when w is not
// a terminal, so piped output and log files stay clean.
func newProgress(w io.Writer, suppress bool) upload.ProgressFunc {
	if suppress || !isTerminal(w) {
		return nil
	}

	return barProgress(w)
}

// barProgress creates the bar on the first callback, once the total is known.
func barProgress(w io.Writer) upload.ProgressFunc {
	var bar *progressbar.ProgressBar

	return func(sent, total int64) {
		if bar == nil {
			bar = progressbar.NewOptions64(total,
				progressbar.OptionSetDescription("Uploading"),
				progressbar.OptionSetWriter(w),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
				progressbar.OptionClearOnFinish(),
			)
		}

		_ = bar.Set64(sent)

		if sent >= total {
			_ = bar.Finish()
		}
	}
}

