package assembly

import (
	"fmt"
	"math"
	"strconv"
)

// Layout is how a source frame is conformed to the target frame.
type Layout string

const (
	LayoutScale     Layout = "scale"
	LayoutComposite Layout = "composite"
	LayoutCrop      Layout = "crop"
)

const aspectTolerance = 0.01

// ChooseLayout scales sources whose aspect ratio is within 1% of the target,
// composites sources that are wider and center-crops the rest.
func ChooseLayout(srcW, srcH, dstW, dstH int) Layout {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return LayoutScale
	}
	src := float64(srcW) / float64(srcH)
	dst := float64(dstW) / float64(dstH)
	switch {
	case math.Abs(src-dst)/dst <= aspectTolerance:
		return LayoutScale
	case src > dst:
		return LayoutComposite
	default:
		return LayoutCrop
	}
}

// Segment is the slice of a source clip used in the assembled video.
type Segment struct {
	Start    float64
	Duration float64
	Loop     bool
}

// PlanSegment takes the centered cap-length slice of long clips and loops
// short clips up to the cap.
func PlanSegment(duration, limit float64) Segment {
	switch {
	case duration > limit:
		return Segment{Start: (duration - limit) / 2, Duration: limit}
	case duration < limit:
		return Segment{Duration: limit, Loop: true}
	default:
		return Segment{Duration: duration}
	}
}

// Frame is a width and height in pixels.
type Frame struct {
	Width  int
	Height int
}

// Graph is an ffmpeg filter graph. Complex graphs label their output [v].
type Graph struct {
	Filter  string
	Complex bool
}

// FilterGraph builds the filter that conforms src to dst for layout.
func FilterGraph(layout Layout, src, dst Frame, fps int) Graph {
	tail := fmt.Sprintf("setsar=1,fps=%d,format=yuv420p", fps)
	switch layout {
	case LayoutComposite:
		square := min(src.Width, src.Height)
		x := (src.Width - square) / 2
		y := (src.Height - square) / 2
		return Graph{
			Complex: true,
			Filter: fmt.Sprintf(
				"[0:v]split=2[src_fg][src_bg];"+
					"[src_fg]crop=%d:%d:%d:%d,scale=%d:%d,setsar=1[fg];"+
					"[src_bg]scale=%d:%d,boxblur=20:5,setsar=1[bg];"+
					"[bg][fg]overlay=(W-w)/2:(H-h)/2,%s[v]",
				square, square, x, y, dst.Width, dst.Width,
				dst.Width, dst.Height,
				tail,
			),
		}
	case LayoutCrop:
		cropW, cropH := cropSize(src, dst)
		return Graph{Filter: fmt.Sprintf("crop=%d:%d,scale=%d:%d,%s", cropW, cropH, dst.Width, dst.Height, tail)}
	default:
		return Graph{Filter: fmt.Sprintf("scale=%d:%d,%s", dst.Width, dst.Height, tail)}
	}
}

// cropSize returns the largest centered region of src with dst's aspect
// ratio, rounded down to even dimensions.
func cropSize(src, dst Frame) (int, int) {
	if src.Width <= 0 || src.Height <= 0 || dst.Width <= 0 || dst.Height <= 0 {
		return src.Width, src.Height
	}
	w, h := src.Width, src.Height
	if float64(src.Width)/float64(src.Height) > float64(dst.Width)/float64(dst.Height) {
		w = src.Height * dst.Width / dst.Height
	} else {
		h = src.Width * dst.Height / dst.Width
	}
	return w &^ 1, h &^ 1
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
