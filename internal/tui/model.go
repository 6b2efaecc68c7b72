// Package tui is the interactive terminal front end described in spec.md
// §4.5/§6: a two-pane layout (chart left, summary table right) driven by a
// bubbletea program, polling the scrape event channel and the stats store on
// a fixed tick rather than blocking on the broker client (spec.md §5, "main
// thread: drives redraw; never blocks on the broker client").
package tui

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/twmb/ktop/internal/bucket"
	"github.com/twmb/ktop/internal/colors"
	"github.com/twmb/ktop/internal/scrape"
	"github.com/twmb/ktop/internal/stats"
)

const pollInterval = 100 * time.Millisecond

// numBuckets is fixed rather than configurable: spec.md §4.4 only fixes
// bucket_size = draw_interval / numBuckets, and a terminal chart's usable
// horizontal resolution rarely exceeds a couple hundred columns anyway.
const numBuckets = 120

// longWindowThreshold switches the x-axis date label from a bare clock time
// to a date+time form once the window spans more than a few hours
// (SPEC_FULL.md supplemented feature: dual date-label format).
const longWindowThreshold = 6 * time.Hour

var statusErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the bubbletea program state.
type Model struct {
	store *stats.Store
	events <-chan scrape.Event

	drawInterval   time.Duration
	scrapeInterval time.Duration

	colors     *colors.Assignment
	table      table.Model
	basestats  []stats.TopicStats
	lastRecalc time.Time

	width, height int
	log           *logrus.Entry
	quitting      bool
}

// New constructs the TUI model. events is the scraper's output channel;
// store is the (already constructed) stats store the events feed into.
func New(store *stats.Store, events <-chan scrape.Event, drawInterval, scrapeInterval time.Duration, log *logrus.Entry) Model {
	cols := []table.Column{
		{Title: "Topic", Width: 24},
		{Title: "Total", Width: 10},
		{Title: "Seen", Width: 10},
		{Title: "Rate/s", Width: 10},
	}
	tbl := table.New(
		table.WithColumns(cols),
		table.WithFocused(false),
	)
	return Model{
		store:          store,
		events:         events,
		drawInterval:   drawInterval,
		scrapeInterval: scrapeInterval,
		colors:         colors.New(),
		table:          tbl,
		log:            log,
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resizeTable()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "ctrl+d":
			m.quitting = true
			return m, tea.Quit
		}
		// All other keys currently do nothing but still force a redraw
		// (spec.md §6), which happens automatically since bubbletea
		// re-renders View after every Update.
		return m, nil

	case tickMsg:
		return m.onTick(time.Time(msg))
	}
	return m, nil
}

func (m Model) onTick(now time.Time) (tea.Model, tea.Cmd) {
	changed, err := m.store.Ingest(m.events)
	if err != nil {
		m.log.WithError(err).Error("metadata gatherer bailed")
		m.quitting = true
		return m, tea.Quit
	}

	// Samples older than draw_interval x 1.1 are eligible for discard
	// (spec.md §3); DiscardBefore itself subtracts one more
	// scrape_interval of margin (spec.md §4.3/E6), so the cutoff passed
	// here nets out to exactly that retention boundary.
	cutoffMargin := time.Duration(float64(m.drawInterval)*1.1) - m.scrapeInterval
	m.store.DiscardBefore(now.Add(-cutoffMargin))

	dueForRecalc := now.Sub(m.lastRecalc) >= time.Second
	if changed || dueForRecalc {
		m.basestats = m.store.BaseStats()
		m.lastRecalc = now
		m.refreshColors()
		m.rebuildTableRows()
	}

	return m, tickCmd()
}

func (m *Model) refreshColors() {
	var ranked []colors.Ranked
	for _, ts := range m.basestats {
		if ts.Topic.Generation != 0 || ts.Seen == 0 {
			continue
		}
		ranked = append(ranked, colors.Ranked{Topic: ts.Topic.Name, Seen: ts.Seen})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].Seen > ranked[j].Seen })
	m.colors.Update(ranked)
}

func (m *Model) rebuildTableRows() {
	rows := make([]table.Row, 0, len(m.basestats))
	for _, ts := range m.basestats {
		rate := "-"
		if ts.Rate != nil {
			rate = humanize.SIWithDigits(*ts.Rate, 1, "")
		}
		name := ts.Topic.Name
		if ts.Topic.Generation > 0 {
			name = fmt.Sprintf("%s (gen %d)", name, ts.Topic.Generation)
		}
		rows = append(rows, table.Row{
			name,
			humanize.SIWithDigits(float64(ts.Total), 1, ""),
			humanize.SIWithDigits(float64(ts.Seen), 1, ""),
			rate,
		})
	}
	m.table.SetRows(rows)
}

func (m *Model) resizeTable() {
	tableWidth := 46
	if tableWidth > m.width {
		tableWidth = m.width
	}
	m.table.SetWidth(tableWidth)
	h := m.height - 2 // leave room for status line and borders
	if h < 1 {
		h = 1
	}
	m.table.SetHeight(h)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	chartWidth := m.width - 46 - 1
	if chartWidth < 10 {
		chartWidth = 10
	}
	chartHeight := m.height - 2
	if chartHeight < 1 {
		chartHeight = 1
	}

	all := m.buildChartSeries(time.Now())
	var maxY float64
	for _, s := range all {
		for _, p := range s.points {
			if p.Rate > maxY {
				maxY = p.Rate
			}
		}
	}
	chart := renderChart(all, chartWidth, chartHeight, maxY)
	axis := m.axisLabel(time.Now())

	body := lipgloss.JoinHorizontal(lipgloss.Top, chart, " ", m.table.View())
	status := m.statusLine()
	return lipgloss.JoinVertical(lipgloss.Left, body, axis, status)
}

// axisLabel captions the chart's visible time window using the date label
// format appropriate to its span (SPEC_FULL.md supplemented feature).
func (m Model) axisLabel(now time.Time) string {
	layout := dateLabelFormat(m.drawInterval)
	start := now.Add(-m.drawInterval)
	return fmt.Sprintf("%s -> %s", start.Format(layout), now.Format(layout))
}

func (m Model) buildChartSeries(now time.Time) []series {
	bucketSize := m.drawInterval / numBuckets
	if bucketSize <= 0 {
		bucketSize = time.Second
	}
	var all []series
	for _, id := range m.store.Topics() {
		if id.Generation != 0 {
			continue
		}
		td := m.store.Generation(id)
		if td == nil {
			continue
		}
		points, _, ok := bucket.Compute(td, now, bucketSize)
		if !ok {
			continue
		}
		all = append(all, series{
			topic:  id.Name,
			points: points,
			color:  m.colors.Color(id.Name),
		})
	}
	return all
}

func (m Model) statusLine() string {
	err := m.store.LastMetadataError()
	if err == nil {
		return ""
	}
	return statusErrStyle.Render(fmt.Sprintf("metadata error: %v", err))
}

// dateLabelFormat picks the x-axis timestamp format: a bare clock time for
// short windows, date+time once the window spans more than a few hours
// (SPEC_FULL.md supplemented feature).
func dateLabelFormat(drawInterval time.Duration) string {
	if drawInterval > longWindowThreshold {
		return "Jan _2 15:04:05"
	}
	return "15:04:05"
}
