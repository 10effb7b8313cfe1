package render

import (
	"fmt"
	"io"
	"math"

	"github.com/sysu-ecnc-dev/team-balancer/backend/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
)

const (
	columnWidth = 2 * vg.Inch
	rowHeight   = 0.3 * vg.Inch
)

// Table 把分组结果画成一张表：每一列是一个队伍，第一行是队名和总分
func Table(res *domain.AssignmentResult) (*plot.Plot, vg.Length, vg.Length, error) {
	if len(res.Teams) == 0 {
		return nil, 0, 0, fmt.Errorf("分组结果中没有任何队伍")
	}

	rows := 1
	for _, team := range res.Teams {
		rows = max(rows, len(team.Members)+1)
	}

	var xys plotter.XYs
	var labels []string
	add := func(col, row int, label string) {
		xys = append(xys, plotter.XY{X: float64(col) + 0.5, Y: float64(rows-row) - 0.5})
		labels = append(labels, label)
	}

	for col, team := range res.Teams {
		add(col, 0, fmt.Sprintf("%s (%s)", team.Label, formatScore(team.TotalScore)))
		for i, member := range team.Members {
			add(col, i+1, fmt.Sprintf("%s: %s", member.Name, formatScore(member.Score)))
		}
	}

	cells, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return nil, 0, 0, err
	}
	for i := range cells.TextStyle {
		cells.TextStyle[i].XAlign = text.XCenter
		cells.TextStyle[i].YAlign = text.YCenter
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%d teams, %d generations", res.Parameters.NumTeams, res.Parameters.Repeat)
	p.HideAxes()
	p.X.Min, p.X.Max = 0, float64(len(res.Teams))
	p.Y.Min, p.Y.Max = 0, float64(rows)

	grid := plotter.NewGrid()
	p.Add(grid, cells)

	width := columnWidth * vg.Length(len(res.Teams))
	height := rowHeight * vg.Length(rows+2)
	return p, width, height, nil
}

// WritePNG 把分组结果渲染为 PNG 写入 w
func WritePNG(w io.Writer, res *domain.AssignmentResult) error {
	p, width, height, err := Table(res)
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SavePNG 把分组结果渲染为 PNG 文件
func SavePNG(path string, res *domain.AssignmentResult) error {
	p, width, height, err := Table(res)
	if err != nil {
		return err
	}
	return p.Save(width, height, path)
}

func formatScore(score float64) string {
	if score == math.Trunc(score) {
		return fmt.Sprintf("%.0f", score)
	}
	return fmt.Sprintf("%.1f", score)
}
