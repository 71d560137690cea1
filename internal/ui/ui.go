package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/doridoridoriand/glowping/internal/cycle"
	"github.com/doridoridoriand/glowping/internal/led"
)

const (
	uiRefreshInterval = 500 * time.Millisecond
	legBoxHeight      = 4
	slotCellWidth     = 6
)

// Panel renders the three indicator legs in a terminal. It implements
// led.Driver so a cycle can run without PiGlow hardware.
type Panel struct {
	mu     sync.Mutex
	screen tcell.Screen
	layout led.Layout
	target string
	levels map[int]uint8
	status string
	now    func() time.Time
}

// NewPanel takes over the terminal. Close restores it.
func NewPanel(layout led.Layout, target string) (*Panel, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	p := newPanel(screen, layout, target)
	p.mu.Lock()
	p.render()
	p.mu.Unlock()
	return p, nil
}

// newPanel builds a panel around screen; a nil screen keeps state only.
func newPanel(screen tcell.Screen, layout led.Layout, target string) *Panel {
	levels := make(map[int]uint8, layout.Size())
	for _, slot := range layout.Slots() {
		levels[slot] = led.Off
	}
	return &Panel{
		screen: screen,
		layout: layout,
		target: target,
		levels: levels,
		status: "waiting for first cycle",
		now:    time.Now,
	}
}

func (p *Panel) Set(slot int, brightness uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.levels[slot]; !ok {
		return fmt.Errorf("unknown slot %d", slot)
	}
	p.levels[slot] = brightness
	p.render()
	return nil
}

func (p *Panel) SetGroup(group led.Group, brightness uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, slot := range group.Slots() {
		if _, ok := p.levels[slot]; !ok {
			return fmt.Errorf("unknown slot %d in %s leg", slot, group.Name)
		}
	}
	for _, slot := range group.Slots() {
		p.levels[slot] = brightness
	}
	p.render()
	return nil
}

func (p *Panel) Off() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for slot := range p.levels {
		p.levels[slot] = led.Off
	}
	p.render()
	return nil
}

// Close hands the terminal back.
func (p *Panel) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.screen != nil {
		p.screen.Fini()
		p.screen = nil
	}
	return nil
}

// Report shows the outcome of a finished cycle in the status line.
func (p *Panel) Report(res cycle.Result, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = formatStatus(res, err)
	p.render()
}

// Run handles terminal events until ctx is cancelled or the user quits,
// in which case it returns context.Canceled.
func (p *Panel) Run(ctx context.Context) error {
	p.mu.Lock()
	screen := p.screen
	p.mu.Unlock()
	if screen == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	eventCh := make(chan tcell.Event, 1)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case eventCh <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(uiRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-eventCh:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				if ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
					return context.Canceled
				}
			case *tcell.EventResize:
				p.mu.Lock()
				if p.screen != nil {
					p.screen.Sync()
					p.render()
				}
				p.mu.Unlock()
			}
		case <-ticker.C:
			p.mu.Lock()
			p.render()
			p.mu.Unlock()
		}
	}
}

// Level returns the displayed brightness of slot.
func (p *Panel) Level(slot int) uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.levels[slot]
}

// render redraws the whole screen; callers hold p.mu.
func (p *Panel) render() {
	screen := p.screen
	if screen == nil {
		return
	}
	screen.Clear()
	width, height := screen.Size()
	if width < 20 || height < 5 {
		screen.Show()
		return
	}

	now := p.now().Format("2006-01-02 15:04:05")
	header := fmt.Sprintf(" glowping  %s  %s  (q to quit)", p.target, now)
	drawText(screen, 0, 0, width, header, tcell.StyleDefault.Bold(true))
	drawText(screen, 0, 1, width, " "+p.status, tcell.StyleDefault.Foreground(tcell.ColorGray))

	y := 2
	for _, group := range p.layout.Groups() {
		if height-y < legBoxHeight {
			break
		}
		drawLegBox(screen, 0, y, width, group, p.levels)
		y += legBoxHeight
	}

	screen.Show()
}

func drawLegBox(screen tcell.Screen, x, y, width int, group led.Group, levels map[int]uint8) {
	drawBox(screen, x, y, width, legBoxHeight)
	title := fmt.Sprintf(" %s ", group.Name)
	drawText(screen, x+2, y, width-4, title, tcell.StyleDefault.Bold(true))
	drawStyledText(screen, x+1, y+1, width-2, formatLeg(group, levels, width-2))
	drawText(screen, x+1, y+2, width-2, formatLevels(group, levels), tcell.StyleDefault.Foreground(tcell.ColorGray))
}

// formatLeg lays out one cell per slot, outermost first: the slot id and
// a glyph for its brightness.
func formatLeg(group led.Group, levels map[int]uint8, width int) []styledRune {
	parts := make([]styledText, 0, group.Size)
	for _, slot := range group.Slots() {
		level := levels[slot]
		cell := padOrTrim(fmt.Sprintf("%2d %c", slot, glyph(level)), slotCellWidth)
		parts = append(parts, styledText{text: cell, style: legStyle(group.Name, level)})
	}
	return flattenStyledText(parts, width)
}

func formatLevels(group led.Group, levels map[int]uint8) string {
	cells := make([]string, 0, group.Size)
	for _, slot := range group.Slots() {
		cells = append(cells, padOrTrim(fmt.Sprintf("%3d", levels[slot]), slotCellWidth))
	}
	return strings.Join(cells, "")
}

func glyph(level uint8) rune {
	switch {
	case level == led.Off:
		return '.'
	case level < 64:
		return 'o'
	case level < 192:
		return 'O'
	default:
		return '@'
	}
}

func legStyle(leg string, level uint8) tcell.Style {
	if level == led.Off {
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	}
	switch leg {
	case "attempt":
		return tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case "outcome":
		return tcell.StyleDefault.Foreground(tcell.ColorBlue)
	default:
		return tcell.StyleDefault.Foreground(tcell.ColorGreen)
	}
}

func formatStatus(res cycle.Result, err error) string {
	if err != nil {
		return fmt.Sprintf("cycle aborted in %s: %v", res.Phase, err)
	}
	verdict := "failure"
	if res.Success {
		verdict = "success"
	}
	ok := 0
	for _, a := range res.Attempts {
		if a.Succeeded() {
			ok++
		}
	}
	return fmt.Sprintf("slot %d  %s  %d/%d attempts  hit %.0f%%  state %s",
		res.Slot, verdict, ok, len(res.Attempts), res.HitRate*100, res.State.String())
}

func drawBox(screen tcell.Screen, x, y, width, height int) {
	if width < 2 || height < 2 {
		return
	}
	right := x + width - 1
	bottom := y + height - 1

	setCell(screen, x, y, '+', tcell.StyleDefault)
	setCell(screen, right, y, '+', tcell.StyleDefault)
	setCell(screen, x, bottom, '+', tcell.StyleDefault)
	setCell(screen, right, bottom, '+', tcell.StyleDefault)

	for col := x + 1; col < right; col++ {
		setCell(screen, col, y, '-', tcell.StyleDefault)
		setCell(screen, col, bottom, '-', tcell.StyleDefault)
	}
	for row := y + 1; row < bottom; row++ {
		setCell(screen, x, row, '|', tcell.StyleDefault)
		setCell(screen, right, row, '|', tcell.StyleDefault)
	}
}

func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	drawStyledText(screen, x, y, width, []styledRune{{r: []rune(text), style: style}})
}

type styledText struct {
	text  string
	style tcell.Style
}

type styledRune struct {
	r     []rune
	style tcell.Style
}

func drawStyledText(screen tcell.Screen, x, y, width int, parts []styledRune) {
	if width <= 0 {
		return
	}
	col := x
	for _, part := range parts {
		for _, r := range part.r {
			if col >= x+width {
				return
			}
			setCell(screen, col, y, r, part.style)
			col++
		}
	}
	for col < x+width {
		setCell(screen, col, y, ' ', tcell.StyleDefault)
		col++
	}
}

func flattenStyledText(parts []styledText, width int) []styledRune {
	result := make([]styledRune, 0, len(parts))
	used := 0
	for _, part := range parts {
		runes := []rune(part.text)
		if used+len(runes) > width {
			runes = runes[:maxInt(0, width-used)]
		}
		result = append(result, styledRune{r: runes, style: part.style})
		used += len(runes)
		if used >= width {
			break
		}
	}
	return result
}

func setCell(screen tcell.Screen, x, y int, r rune, style tcell.Style) {
	screen.SetContent(x, y, r, nil, style)
}

func padOrTrim(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) > width {
		return string(runes[:width])
	}
	if len(runes) < width {
		return value + strings.Repeat(" ", width-len(runes))
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
