package render

import (
	"fmt"
	"io"
	"strings"

	"snapsync/pkg/proto"
)

const (
	canvasW = 60
	canvasH = 20
)

const resetColor = "\033[0m"

var colorCodes = map[proto.Color]string{
	proto.Red:   "\033[38;5;196m",
	proto.Green: "\033[38;5;46m",
	proto.Blue:  "\033[38;5;39m",
}

// Terminal draws entities as colored dots on an ANSI canvas. Lines end in
// \r\n so output stays aligned while stdin is in raw mode.
type Terminal struct {
	w              io.Writer
	worldW, worldH float32
	lastFrame      string
	frames         int
}

// NewTerminal maps world coordinates in [0,worldW]x[0,worldH] onto the canvas.
func NewTerminal(w io.Writer, worldW, worldH float32) *Terminal {
	return &Terminal{w: w, worldW: worldW, worldH: worldH}
}

// Present redraws only when the frame differs from the previous one.
func (t *Terminal) Present(s proto.Snapshot) {
	frame := t.draw(s)
	if frame == t.lastFrame {
		return
	}
	t.lastFrame = frame
	// 每3帧清屏一次，其余只把光标移回左上角，降低闪烁
	if t.frames%3 == 0 {
		io.WriteString(t.w, "\033[2J")
	}
	t.frames++
	io.WriteString(t.w, "\033[H"+frame)
}

func (t *Terminal) draw(s proto.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("=== snapsync ===\r\n")
	if len(s) == 0 {
		sb.WriteString("waiting for players...\r\n")
		return sb.String()
	}

	canvas := make([][]string, canvasH)
	for y := range canvas {
		canvas[y] = make([]string, canvasW)
		for x := range canvas[y] {
			canvas[y][x] = " "
		}
	}
	for _, e := range s {
		x := clampInt(int(e.X/t.worldW*canvasW), 0, canvasW-1)
		y := clampInt(int(e.Y/t.worldH*canvasH), 0, canvasH-1)
		canvas[y][x] = colorCodes[e.Color] + "●" + resetColor // 彩色小球
	}

	border := "+" + strings.Repeat("-", canvasW) + "+\r\n"
	sb.WriteString(border)
	for _, row := range canvas {
		sb.WriteByte('|')
		for _, cell := range row {
			sb.WriteString(cell)
		}
		sb.WriteString("|\r\n")
	}
	sb.WriteString(border)
	for i, e := range s {
		fmt.Fprintf(&sb, "%s#%d%s %-5s x=%.1f y=%.1f\r\n", colorCodes[e.Color], i, resetColor, e.Color, e.X, e.Y)
	}
	sb.WriteString("\r\nA/D or arrows to move, W/space to jump, Q to quit\r\n")
	return sb.String()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
