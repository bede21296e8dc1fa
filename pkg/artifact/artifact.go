// Package artifact writes the files describing a finished agent run: a JSON
// report, a Markdown summary and an animated replay of the screen captures.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/operator/pkg/types"
)

// File names written by WriteAll.
const (
	RunFile     = "run.json"
	SummaryFile = "summary.md"
	ReplayFile  = "replay.gif"
)

// frameDelay is one second, in the 1/100s units GIF uses.
const frameDelay = 100

// Report is everything known about one run.
type Report struct {
	Task      string             `json:"task"`
	Model     string             `json:"model,omitempty"`
	StartTime time.Time          `json:"start_time"`
	EndTime   time.Time          `json:"end_time"`
	Duration  time.Duration      `json:"duration"`
	Error     string             `json:"error,omitempty"`
	Result    *types.AgentResult `json:"result,omitempty"`
}

// Captures returns the run's screen captures, or nil.
func (r *Report) Captures() [][]byte {
	if r.Result == nil {
		return nil
	}
	return r.Result.ScreenCaptures
}

// Writer writes run artifacts into one directory.
type Writer struct {
	outputDir string
}

// NewWriter creates a writer for outputDir.
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.outputDir
}

// WriteAll writes every artifact. The replay is skipped when the run has no
// screen captures.
func (w *Writer) WriteAll(report *Report) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := w.WriteRunJSON(report); err != nil {
		return fmt.Errorf("failed to write run JSON: %w", err)
	}
	if err := w.WriteSummaryMarkdown(report); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}
	if len(report.Captures()) > 0 {
		if err := w.WriteReplayGIF(report.Captures()); err != nil {
			return fmt.Errorf("failed to write replay: %w", err)
		}
	}
	return nil
}

// WriteRunJSON writes the report, including the turn history, as JSON.
func (w *Writer) WriteRunJSON(report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}
	return os.WriteFile(filepath.Join(w.outputDir, RunFile), data, 0600)
}

// WriteSummaryMarkdown writes a human-readable summary.
func (w *Writer) WriteSummaryMarkdown(report *Report) error {
	var md strings.Builder

	md.WriteString("# Browser Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Task:** %s\n\n", report.Task))
	if report.Model != "" {
		md.WriteString(fmt.Sprintf("**Model:** %s\n\n", report.Model))
	}
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", report.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", report.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", report.Duration.Round(time.Millisecond)))

	md.WriteString("## Result\n\n")
	res := report.Result
	switch {
	case report.Error != "":
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", report.Error))
	case res == nil:
		md.WriteString("❔ **No result**\n\n")
	default:
		md.WriteString(fmt.Sprintf("%s **%s**\n\n", outcomeMark(res.Outcome), res.Outcome))
		if res.Message != "" {
			md.WriteString(res.Message + "\n\n")
		}
	}

	if res != nil {
		md.WriteString("## Metrics\n\n")
		md.WriteString(fmt.Sprintf("- **Steps:** %d\n", res.Steps))
		md.WriteString(fmt.Sprintf("- **Screen Captures:** %d\n", len(res.ScreenCaptures)))
		if res.FinalURL != "" {
			md.WriteString(fmt.Sprintf("- **Final URL:** %s\n", res.FinalURL))
		}
		md.WriteString("\n")

		if actions := actionLines(res.TurnHistory); len(actions) > 0 {
			md.WriteString("## Actions\n\n")
			for i, line := range actions {
				md.WriteString(fmt.Sprintf("%d. %s\n", i+1, line))
			}
			md.WriteString("\n")
		}
	}

	return os.WriteFile(filepath.Join(w.outputDir, SummaryFile), []byte(md.String()), 0600)
}

func outcomeMark(o types.Outcome) string {
	switch o {
	case types.OutcomePass:
		return "✅"
	case types.OutcomeFail, types.OutcomeError:
		return "❌"
	default:
		return "❔"
	}
}

// actionLines lists executed actions with their result.
func actionLines(history []types.TurnItem) []string {
	var lines []string
	for _, item := range history {
		if item.Kind != types.KindActionResult || item.Action == nil {
			continue
		}
		mark := "✅"
		if !item.Success {
			mark = "❌"
		}
		line := fmt.Sprintf("%s `%s`", mark, item.Action.String())
		if item.Text != "" {
			line += " " + item.Text
		}
		lines = append(lines, line)
	}
	return lines
}

// WriteReplayGIF writes the captures as an animated GIF.
func (w *Writer) WriteReplayGIF(captures [][]byte) error {
	anim, err := Replay(captures)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(w.outputDir, ReplayFile), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode replay: %w", err)
	}
	return f.Close()
}

// Replay decodes PNG captures into GIF frames, one per second. Every frame
// takes the bounds of the first capture.
func Replay(captures [][]byte) (*gif.GIF, error) {
	if len(captures) == 0 {
		return nil, fmt.Errorf("no screen captures")
	}

	anim := &gif.GIF{}
	var bounds image.Rectangle
	for i, capture := range captures {
		img, err := png.Decode(bytes.NewReader(capture))
		if err != nil {
			return nil, fmt.Errorf("capture %d: %w", i, err)
		}
		if i == 0 {
			bounds = image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy())
		}
		frame := image.NewPaletted(bounds, palette.Plan9)
		draw.Draw(frame, bounds, img, img.Bounds().Min, draw.Src)
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, frameDelay)
	}
	return anim, nil
}
