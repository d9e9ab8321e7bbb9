package tg_charts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"demex-health-bot/internal/infra/fs"
	logging "demex-health-bot/internal/infra/log"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
)

const (
	chartWidth  = 900
	chartHeight = 500

	chartAreaLeft   = 80.0
	chartAreaRight  = 860.0
	chartAreaTop    = 70.0
	chartAreaBottom = 440.0
)

// ErrNotEnoughSamples means fewer than two recorded readings exist for the
// address, so there is nothing to plot.
var ErrNotEnoughSamples = errors.New("not enough health factor samples")

// GenerateHealthChart renders the recorded health factor history of one
// address as a PNG line chart with the alert threshold overlaid.
// Returns the path of the written file.
func GenerateHealthChart(dataDir, address string, threshold float64) (string, error) {
	history, err := fs.LoadHealthHistory(dataDir)
	if err != nil {
		return "", fmt.Errorf("failed to load health history: %w", err)
	}

	samples := history.ForAddress(address)
	if len(samples) < 2 {
		return "", ErrNotEnoughSamples
	}

	// Keep the chart readable: at most the last 50 samples
	if len(samples) > 50 {
		samples = samples[len(samples)-50:]
	}

	minVal, maxVal := samples[0].HealthFactor, samples[0].HealthFactor
	for _, s := range samples {
		if s.HealthFactor < minVal {
			minVal = s.HealthFactor
		}
		if s.HealthFactor > maxVal {
			maxVal = s.HealthFactor
		}
	}
	// The threshold line must always be inside the plot area
	if threshold < minVal {
		minVal = threshold
	}
	if threshold > maxVal {
		maxVal = threshold
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}
	// Small headroom so the line doesn't hug the frame
	pad := (maxVal - minVal) * 0.1
	minVal -= pad
	maxVal += pad

	dc := gg.NewContext(chartWidth, chartHeight)

	// Background
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Title
	dc.SetRGB(0.1, 0.1, 0.1)
	title := fmt.Sprintf("Health factor — %s", shortAddress(address))
	dc.DrawStringAnchored(title, chartWidth/2, 35, 0.5, 0.5)

	// Frame
	dc.SetRGB(0.6, 0.6, 0.6)
	dc.SetLineWidth(1)
	dc.DrawRectangle(chartAreaLeft, chartAreaTop, chartAreaRight-chartAreaLeft, chartAreaBottom-chartAreaTop)
	dc.Stroke()

	toX := func(i int) float64 {
		return chartAreaLeft + float64(i)/float64(len(samples)-1)*(chartAreaRight-chartAreaLeft)
	}
	toY := func(v float64) float64 {
		return chartAreaBottom - (v-minVal)/(maxVal-minVal)*(chartAreaBottom-chartAreaTop)
	}

	// Horizontal gridlines with value labels
	dc.SetRGB(0.85, 0.85, 0.85)
	for i := 0; i <= 4; i++ {
		v := minVal + float64(i)/4*(maxVal-minVal)
		y := toY(v)
		dc.DrawLine(chartAreaLeft, y, chartAreaRight, y)
		dc.Stroke()
		dc.SetRGB(0.3, 0.3, 0.3)
		dc.DrawStringAnchored(fmt.Sprintf("%.2f", v), chartAreaLeft-10, y, 1, 0.5)
		dc.SetRGB(0.85, 0.85, 0.85)
	}

	// Threshold line (red, dashed)
	dc.SetRGB(0.85, 0.2, 0.2)
	dc.SetLineWidth(1.5)
	dc.SetDash(6, 4)
	ty := toY(threshold)
	dc.DrawLine(chartAreaLeft, ty, chartAreaRight, ty)
	dc.Stroke()
	dc.SetDash()
	dc.DrawStringAnchored(fmt.Sprintf("threshold %.2f", threshold), chartAreaRight-10, ty-10, 1, 0.5)

	// Health factor line
	dc.SetRGB(0.15, 0.45, 0.8)
	dc.SetLineWidth(2)
	for i := 1; i < len(samples); i++ {
		dc.DrawLine(toX(i-1), toY(samples[i-1].HealthFactor), toX(i), toY(samples[i].HealthFactor))
		dc.Stroke()
	}
	for i, s := range samples {
		dc.DrawCircle(toX(i), toY(s.HealthFactor), 3)
		dc.Fill()
	}

	// X labels: first and last sample timestamps
	dc.SetRGB(0.3, 0.3, 0.3)
	dc.DrawStringAnchored(formatSampleTime(samples[0].Timestamp), chartAreaLeft, chartAreaBottom+20, 0, 0.5)
	dc.DrawStringAnchored(formatSampleTime(samples[len(samples)-1].Timestamp), chartAreaRight, chartAreaBottom+20, 1, 0.5)

	chartsDir := filepath.Join(dataDir, "charts")
	if err := os.MkdirAll(chartsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create charts directory: %w", err)
	}

	chartPath := filepath.Join(chartsDir, fmt.Sprintf("health_%s.png", shortAddress(address)))
	if err := dc.SavePNG(chartPath); err != nil {
		return "", fmt.Errorf("failed to save chart: %w", err)
	}

	logging.LogInfo("Health chart generated",
		zap.String("address", address),
		zap.Int("samples", len(samples)),
		zap.String("path", chartPath))

	return chartPath, nil
}

// swth1qxy...k9f2 style shortening for titles and file names.
func shortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:8] + "..." + address[len(address)-4:]
}

func formatSampleTime(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Format("01-02 15:04")
}
