package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/gretchenboria/snaplock/internal/capture"
	"github.com/gretchenboria/snaplock/internal/monitoring"
)

// ReportSummary holds the aggregate statistics shown at the top of the
// report document.
type ReportSummary struct {
	FrameCount     int
	ObjectCount    int
	CategoryCount  int
	DurationS      float64
	MeanSpeedMS    float64
	StdDevSpeedMS  float64
	MaxSpeedMS     float64
	Classification string
}

// Speed thresholds (m/s) for the stability classification.
const (
	staticSpeedThreshold  = 0.05
	dynamicSpeedThreshold = 2.0
)

// Summarize computes the report summary for a recording.
func Summarize(rec capture.Recording) ReportSummary {
	s := ReportSummary{
		FrameCount:    len(rec.Frames),
		CategoryCount: len(rec.Categories),
	}

	objects := make(map[string]struct{})
	var speeds []float64
	for _, frame := range rec.Frames {
		for _, a := range frame.Annotations {
			objects[a.ObjectID] = struct{}{}
			v := a.Speed()
			speeds = append(speeds, v)
			if v > s.MaxSpeedMS {
				s.MaxSpeedMS = v
			}
		}
	}
	s.ObjectCount = len(objects)

	if len(rec.Frames) > 1 {
		s.DurationS = rec.Frames[len(rec.Frames)-1].Timestamp - rec.Frames[0].Timestamp
	}
	if len(speeds) > 0 {
		s.MeanSpeedMS = stat.Mean(speeds, nil)
		s.StdDevSpeedMS = stat.StdDev(speeds, nil)
	}
	s.Classification = classifyStability(rec, s.MeanSpeedMS)
	return s
}

// classifyStability labels the recording by its motion profile. A scene
// whose final frame has effectively zero motion is "settled" even if it was
// moving earlier.
func classifyStability(rec capture.Recording, meanSpeed float64) string {
	if len(rec.Frames) == 0 {
		return "empty"
	}
	lastMean := frameMeanSpeed(rec.Frames[len(rec.Frames)-1])
	switch {
	case meanSpeed < staticSpeedThreshold:
		return "static"
	case lastMean < staticSpeedThreshold:
		return "settled"
	case meanSpeed < dynamicSpeedThreshold:
		return "slow-moving"
	default:
		return "dynamic"
	}
}

func frameMeanSpeed(frame capture.Frame) float64 {
	if len(frame.Annotations) == 0 {
		return 0
	}
	sum := 0.0
	for _, a := range frame.Annotations {
		sum += a.Speed()
	}
	return sum / float64(len(frame.Annotations))
}

// reportRow is one line of the per-frame quaternion table.
type reportRow struct {
	FrameIndex int
	Timestamp  string
	ObjectID   string
	Category   string
	Quaternion string
	SpeedMS    string
	Visible    bool
}

type reportData struct {
	GeneratedAt  string
	Summary      ReportSummary
	MeanSpeed    string
	StdDevSpeed  string
	MaxSpeed     string
	Duration     string
	ChartHTML    template.HTML
	HistogramB64 string
	Rows         []reportRow
}

// Report renders the recording as a self-contained HTML document: summary
// statistics, a per-frame mean-speed chart, a speed histogram and the full
// per-frame quaternion table. Generation walks every annotation and renders
// two charts, so it is noticeably slower than the other exporters on large
// recordings; hosts should run it off the capture loop.
func Report(rec capture.Recording) ([]byte, error) {
	started := time.Now()
	summary := Summarize(rec)

	data := reportData{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Summary:     summary,
		MeanSpeed:   fmt.Sprintf("%.3f", summary.MeanSpeedMS),
		StdDevSpeed: fmt.Sprintf("%.3f", summary.StdDevSpeedMS),
		MaxSpeed:    fmt.Sprintf("%.3f", summary.MaxSpeedMS),
		Duration:    fmt.Sprintf("%.3f", summary.DurationS),
	}

	if len(rec.Frames) > 0 {
		chartHTML, err := renderSpeedChart(rec)
		if err != nil {
			return nil, fmt.Errorf("render speed chart: %w", err)
		}
		data.ChartHTML = chartHTML

		hist, err := renderSpeedHistogram(rec)
		if err != nil {
			return nil, fmt.Errorf("render speed histogram: %w", err)
		}
		data.HistogramB64 = hist
	}

	for _, frame := range rec.Frames {
		ts := fmt.Sprintf("%.3f", frame.Timestamp)
		for _, a := range frame.Annotations {
			q := a.Quaternion
			data.Rows = append(data.Rows, reportRow{
				FrameIndex: frame.FrameIndex,
				Timestamp:  ts,
				ObjectID:   a.ObjectID,
				Category:   a.CategoryLabel,
				Quaternion: fmt.Sprintf("(%.4f, %.4f, %.4f, %.4f)", q.Imag, q.Jmag, q.Kmag, q.Real),
				SpeedMS:    fmt.Sprintf("%.3f", a.Speed()),
				Visible:    a.Visible,
			})
		}
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute report template: %w", err)
	}

	monitoring.Logf("export: report rendered in %s (%d frames, %d rows)",
		time.Since(started).Round(time.Millisecond), summary.FrameCount, len(data.Rows))
	return buf.Bytes(), nil
}

// renderSpeedChart builds the per-frame mean-speed line chart and returns
// the rendered chart page, embedded in the report via an iframe.
func renderSpeedChart(rec capture.Recording) (template.HTML, error) {
	x := make([]string, 0, len(rec.Frames))
	y := make([]opts.LineData, 0, len(rec.Frames))
	for _, frame := range rec.Frames {
		x = append(x, fmt.Sprintf("%d", frame.FrameIndex))
		y = append(y, opts.LineData{Value: frameMeanSpeed(frame)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Mean speed per frame", Width: "860px", Height: "380px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean object speed per frame (m/s)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).AddSeries("mean speed", y)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return "", err
	}

	iframe := fmt.Sprintf(`<iframe class="chart" srcdoc="%s"></iframe>`,
		template.HTMLEscapeString(buf.String()))
	return template.HTML(iframe), nil
}

// renderSpeedHistogram plots the distribution of per-annotation speeds as a
// PNG and returns it base64-encoded for inline embedding.
func renderSpeedHistogram(rec capture.Recording) (string, error) {
	var speeds plotter.Values
	for _, frame := range rec.Frames {
		for _, a := range frame.Annotations {
			speeds = append(speeds, a.Speed())
		}
	}
	if len(speeds) == 0 {
		return "", nil
	}

	p := plot.New()
	p.Title.Text = "Object speed distribution"
	p.X.Label.Text = "speed (m/s)"
	p.Y.Label.Text = "count"

	hist, err := plotter.NewHist(speeds, 16)
	if err != nil {
		return "", err
	}
	p.Add(hist)

	wt, err := p.WriterTo(5*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return "", err
	}
	var png bytes.Buffer
	if _, err := wt.WriteTo(&png); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png.Bytes()), nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>SnapLock recording report</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
table { border-collapse: collapse; margin: 1em 0; }
th, td { border: 1px solid #bbb; padding: 4px 10px; text-align: left; }
th { background: #eee; }
iframe.chart { width: 900px; height: 420px; border: none; }
.muted { color: #888; }
</style>
</head>
<body>
<h1>SnapLock recording report</h1>
<p class="muted">Generated {{.GeneratedAt}}</p>

<h2>Summary</h2>
<table>
<tr><th>Frames</th><td>{{.Summary.FrameCount}}</td></tr>
<tr><th>Objects</th><td>{{.Summary.ObjectCount}}</td></tr>
<tr><th>Categories</th><td>{{.Summary.CategoryCount}}</td></tr>
<tr><th>Duration (s)</th><td>{{.Duration}}</td></tr>
<tr><th>Mean speed (m/s)</th><td>{{.MeanSpeed}}</td></tr>
<tr><th>Speed std dev (m/s)</th><td>{{.StdDevSpeed}}</td></tr>
<tr><th>Max speed (m/s)</th><td>{{.MaxSpeed}}</td></tr>
<tr><th>Stability</th><td>{{.Summary.Classification}}</td></tr>
</table>

{{if .ChartHTML}}
<h2>Motion over time</h2>
{{.ChartHTML}}
{{end}}

{{if .HistogramB64}}
<h2>Speed distribution</h2>
<img alt="speed histogram" src="data:image/png;base64,{{.HistogramB64}}">
{{end}}

<h2>Per-frame pose table</h2>
{{if .Rows}}
<table>
<tr><th>Frame</th><th>Time (s)</th><th>Object</th><th>Category</th><th>Quaternion (x, y, z, w)</th><th>Speed (m/s)</th><th>Visible</th></tr>
{{range .Rows}}
<tr><td>{{.FrameIndex}}</td><td>{{.Timestamp}}</td><td>{{.ObjectID}}</td><td>{{.Category}}</td><td>{{.Quaternion}}</td><td>{{.SpeedMS}}</td><td>{{.Visible}}</td></tr>
{{end}}
</table>
{{else}}
<p class="muted">No frames recorded.</p>
{{end}}

</body>
</html>
`))
