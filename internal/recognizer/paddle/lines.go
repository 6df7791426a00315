package paddle

import (
	"image"

	"github.com/MeKo-Tech/labelscan/internal/mempool"
)

// segmentConfig tunes the projection-profile line finder.
type segmentConfig struct {
	MinInkRatio float64 // share of a row that has to be ink for the row to count
	MaxGap      int     // blank rows tolerated inside one line
	MinHeight   int     // thinner bands are treated as noise
	Pad         int     // margin added around each line
	MaxLines    int
}

func defaultSegmentConfig() segmentConfig {
	return segmentConfig{
		MinInkRatio: 0.002,
		MaxGap:      2,
		MinHeight:   6,
		Pad:         3,
		MaxLines:    64,
	}
}

// inkIsWhite reports whether the raster is light text on a dark background,
// that is when most samples are black.
func inkIsWhite(g *image.Gray) bool {
	black := 0
	for _, v := range g.Pix {
		if v == 0 {
			black++
		}
	}
	return black*2 > len(g.Pix)
}

// segmentLines splits a binarized raster into text-line rectangles, top to
// bottom, using a horizontal projection of ink samples.
func segmentLines(g *image.Gray, cfg segmentConfig) []image.Rectangle {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	var ink uint8
	if inkIsWhite(g) {
		ink = 255
	}

	minInk := max(1, int(float64(w)*cfg.MinInkRatio))
	rowInk := mempool.GetBool(h)
	defer mempool.PutBool(rowInk)
	for y := range h {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		n := 0
		for _, v := range row {
			if v == ink {
				n++
			}
		}
		rowInk[y] = n >= minInk
	}

	var lines []image.Rectangle
	for y := 0; y < h; {
		if !rowInk[y] {
			y++
			continue
		}
		start, end, gap := y, y, 0
		for y < h && gap <= cfg.MaxGap {
			if rowInk[y] {
				end, gap = y, 0
			} else {
				gap++
			}
			y++
		}
		if end-start+1 < cfg.MinHeight {
			continue
		}
		x0, x1, ok := inkColumns(g, ink, start, end)
		if !ok {
			continue
		}
		r := image.Rect(x0-cfg.Pad, start-cfg.Pad, x1+1+cfg.Pad, end+1+cfg.Pad).Intersect(b)
		lines = append(lines, r)
		if cfg.MaxLines > 0 && len(lines) == cfg.MaxLines {
			break
		}
	}
	return lines
}

// inkColumns returns the leftmost and rightmost ink columns in rows y0..y1.
func inkColumns(g *image.Gray, ink uint8, y0, y1 int) (int, int, bool) {
	w := g.Bounds().Dx()
	left, right := w, -1
	for y := y0; y <= y1; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			if v != ink {
				continue
			}
			left = min(left, x)
			right = max(right, x)
		}
	}
	return left, right, right >= 0
}
