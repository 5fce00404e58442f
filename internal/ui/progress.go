package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// ProgressBar wraps progressbar/v3 with sideload styling
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a new progress bar for a known-length operation
func NewProgressBar(max int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(15),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// NewPercentBar creates a 0-100 progress bar for installation phases
func NewPercentBar(description string) *ProgressBar {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// NewProgressBarBytes creates a progress bar optimized for byte operations
func NewProgressBarBytes(max int64, description string) *ProgressBar {
	bar := progressbar.DefaultBytes(max, description)
	return &ProgressBar{bar: bar}
}

// NewIndeterminateProgressBar creates a spinner for unknown-length operations
func NewIndeterminateProgressBar(description string) *ProgressBar {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(10),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// Write implements io.Writer for streaming operations
func (p *ProgressBar) Write(b []byte) (int, error) {
	return p.bar.Write(b)
}

// Add increments the progress bar by n
func (p *ProgressBar) Add(n int) error {
	return p.bar.Add(n)
}

// Set sets the current progress to n
func (p *ProgressBar) Set(n int) error {
	return p.bar.Set(n)
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() error {
	return p.bar.Finish()
}

// Clear clears the progress bar
func (p *ProgressBar) Clear() error {
	return p.bar.Clear()
}

// Describe changes the description of the progress bar
func (p *ProgressBar) Describe(description string) {
	p.bar.Describe(description)
}

// IsFinished returns true if the progress bar is finished
func (p *ProgressBar) IsFinished() bool {
	return p.bar.IsFinished()
}

// ProgressReader wraps an io.Reader with a progress bar
type ProgressReader struct {
	reader io.Reader
	bar    *ProgressBar
}

// NewProgressReader creates a new reader with progress tracking
func NewProgressReader(reader io.Reader, max int64, description string) *ProgressReader {
	return &ProgressReader{
		reader: reader,
		bar:    NewProgressBarBytes(max, description),
	}
}

// Read implements io.Reader with progress tracking
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.bar.Add(n)
	}
	return n, err
}

// Close closes the progress bar
func (pr *ProgressReader) Close() error {
	return pr.bar.Finish()
}
