// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/razor/pkg/razorlink"
	"github.com/Thermoquad/razor/pkg/watercut"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	pingIntervalSeconds = 5
	maxLogEntries       = 100
)

// Focus states
const (
	focusAnalyzerList = iota
	focusCommandInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// analyzer is an analyzer seen on the link
type analyzer struct {
	address   uint64
	lastSeen  time.Time
	telemetry watercut.Telemetry
	uptime    time.Duration
	hasUptime bool
}

// Implement list.Item interface
func (a analyzer) Title() string { return fmt.Sprintf("Razor %016X", a.address) }
func (a analyzer) Description() string {
	if a.telemetry.WatercutNaN {
		return "watercut NaN"
	}
	return fmt.Sprintf("%.2f %% %s", a.telemetry.Watercut, phaseName(a.telemetry.OilPhase))
}
func (a analyzer) FilterValue() string { return fmt.Sprintf("%X", a.address) }

type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// registerMap resolves register names and addresses on the host side
type registerMap struct {
	byName map[string]uint16
	byAddr map[uint16]watercut.RegisterInfo
}

func newRegisterMap() registerMap {
	rm := registerMap{byName: map[string]uint16{}, byAddr: map[uint16]watercut.RegisterInfo{}}
	b, err := watercut.New(watercut.DefaultConfig())
	if err != nil {
		return rm
	}
	for _, r := range b.Registers() {
		rm.byName[r.Name] = r.Addr
		rm.byAddr[r.Addr] = r
	}
	return rm
}

func (rm registerMap) resolve(s string) (uint16, error) {
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return uint16(n), nil
	}
	if addr, ok := rm.byName[strings.ToUpper(s)]; ok {
		return addr, nil
	}
	return 0, fmt.Errorf("%w: %s", watercut.ErrUnknownRegister, s)
}

func (rm registerMap) name(addr uint16) string {
	if r, ok := rm.byAddr[addr]; ok {
		return r.Name
	}
	return strconv.Itoa(int(addr))
}

// parseMonitorCommand turns an input line into a request for address
func parseMonitorCommand(line string, address uint64, rm registerMap) (*razorlink.Packet, error) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	switch {
	case len(fields) == 0:
		return nil, errors.New("empty command")

	case strings.EqualFold(fields[0], "save") && len(fields) == 1:
		return razorlink.NewSaveRequest(address), nil

	case strings.EqualFold(fields[0], "cal"):
		if len(fields) != 2 {
			return nil, errors.New("usage: cal VALUE")
		}
		ref, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reference %q", fields[1])
		}
		return razorlink.NewCalibrateOil(address, ref), nil
	}

	if name, value, ok := strings.Cut(line, "="); ok {
		reg, err := rm.resolve(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", strings.TrimSpace(value))
		}
		return razorlink.NewRegisterWrite(address, reg, v), nil
	}

	if len(fields) != 1 {
		return nil, fmt.Errorf("unknown command %q", line)
	}
	reg, err := rm.resolve(fields[0])
	if err != nil {
		return nil, err
	}
	return razorlink.NewRegisterRead(address, reg), nil
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	connMgr  *connectionManager
	connInfo string

	analyzers    map[uint64]*analyzer
	analyzerList list.Model
	registers    registerMap

	stats    *razorlink.Statistics
	eventLog []eventLogEntry

	input        textinput.Model
	focusedField int

	width          int
	height         int
	quitting       bool
	connectionLost bool
	lastPingTime   time.Time
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type linkDataMsg struct {
	packet           *razorlink.Packet
	decodeErr        error
	validationErrors []razorlink.ValidationError
}

type linkBatchMsg struct {
	messages []linkDataMsg
}

type connectionLostMsg struct{}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(connMgr *connectionManager, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "OIL_ADJUST=0.5"
	ti.CharLimit = 40
	ti.Width = 30

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	analyzerList := list.New([]list.Item{}, delegate, 30, 10)
	analyzerList.Title = "Analyzers"
	analyzerList.SetShowStatusBar(false)
	analyzerList.SetShowHelp(false)
	analyzerList.SetFilteringEnabled(false)

	return monitorModel{
		connMgr:      connMgr,
		connInfo:     connInfo,
		analyzers:    make(map[uint64]*analyzer),
		analyzerList: analyzerList,
		registers:    newRegisterMap(),
		stats:        razorlink.NewStatistics(),
		input:        ti,
		focusedField: focusAnalyzerList,
		width:        80,
		height:       24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.analyzerList.SetSize(30, m.listHeight())

	case monitorTickMsg:
		m.stats.CalculateRates()
		if !m.connectionLost && time.Since(m.lastPingTime) >= pingIntervalSeconds*time.Second {
			m.lastPingTime = time.Now()
			for addr := range m.analyzers {
				m.send(razorlink.NewPingRequest(addr))
			}
		}
		return m, monitorTickCmd()

	case linkBatchMsg:
		for _, data := range msg.messages {
			m.processLinkData(data)
		}

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry("Connection lost - reconnecting...", true)

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected", false)
	}

	var cmd tea.Cmd
	if m.focusedField == focusCommandInput {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	} else {
		m.analyzerList, cmd = m.analyzerList.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m monitorModel) listHeight() int {
	h := m.height - 20
	if h < 6 {
		h = 6
	}
	return h
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField != focusCommandInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		if m.focusedField == focusAnalyzerList {
			m.focusedField = focusCommandInput
			m.input.Focus()
		} else {
			m.focusedField = focusAnalyzerList
			m.input.Blur()
		}
		return m, nil

	case "enter":
		if m.focusedField == focusCommandInput {
			m.submitCommand()
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.focusedField == focusCommandInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.analyzerList, cmd = m.analyzerList.Update(msg)
	}
	return m, cmd
}

func (m *monitorModel) submitCommand() {
	line := m.input.Value()
	m.input.SetValue("")

	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return
	}
	selected := m.selectedAnalyzer()
	if selected == nil {
		m.addLogEntry("No analyzer selected", true)
		return
	}

	p, err := parseMonitorCommand(line, selected.address, m.registers)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return
	}
	m.send(p)
	m.addLogEntry(fmt.Sprintf("→ %016X %s", selected.address, line), false)
}

func (m *monitorModel) send(p *razorlink.Packet) {
	if err := m.connMgr.send(p); err != nil {
		m.addLogEntry(fmt.Sprintf("Send failed: %v", err), true)
	}
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *monitorModel) processLinkData(data linkDataMsg) {
	m.stats.Update(data.decodeErr, data.validationErrors)
	if data.decodeErr != nil {
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", data.decodeErr), true)
		return
	}

	p := data.packet
	for _, v := range data.validationErrors {
		m.addLogEntry(fmt.Sprintf("%s: %s", razorlink.FormatMessageType(p.Type()), v.Message), true)
	}

	switch p.Type() {
	case razorlink.MsgTelemetry:
		t, err := razorlink.TelemetryFromPacket(p)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("TELEMETRY: %v", err), true)
			return
		}
		a := m.track(p.Address())
		if a.telemetry.OilPhase != t.OilPhase && !a.lastSeen.IsZero() {
			m.addLogEntry(fmt.Sprintf("%016X phase %s", p.Address(), phaseName(t.OilPhase)), false)
		}
		if t.Alarm && !a.telemetry.Alarm {
			m.addLogEntry(fmt.Sprintf("%016X alarm: %s", p.Address(), t.Diagnostics), true)
		}
		a.telemetry = t
		a.lastSeen = p.Timestamp()
		m.refreshList()

	case razorlink.MsgPingResponse:
		if ms, ok := razorlink.GetMapUint(p.PayloadMap(), 0); ok {
			a := m.track(p.Address())
			a.uptime = time.Duration(ms) * time.Millisecond
			a.hasUptime = true
		}

	case razorlink.MsgRegisterValue:
		reg, value, err := razorlink.RegisterFromPacket(p)
		if err != nil {
			m.addLogEntry(fmt.Sprintf("REGISTER_VALUE: %v", err), true)
			return
		}
		m.addLogEntry(fmt.Sprintf("← %016X %s = %g", p.Address(), m.registers.name(reg), value), false)

	case razorlink.MsgErrorInvalidCmd:
		m.addLogEntry(fmt.Sprintf("← %016X %s", p.Address(), razorlink.FormatPacket(p)), true)
	}
}

// track returns the analyzer at address, adding it when new
func (m *monitorModel) track(address uint64) *analyzer {
	a, ok := m.analyzers[address]
	if !ok {
		a = &analyzer{address: address}
		m.analyzers[address] = a
		m.addLogEntry(fmt.Sprintf("Analyzer %016X found", address), false)
		m.refreshList()
	}
	return a
}

func (m *monitorModel) refreshList() {
	addrs := make([]uint64, 0, len(m.analyzers))
	for addr := range m.analyzers {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	items := make([]list.Item, len(addrs))
	for i, addr := range addrs {
		items[i] = *m.analyzers[addr]
	}
	m.analyzerList.SetItems(items)
}

func (m monitorModel) selectedAnalyzer() *analyzer {
	item, ok := m.analyzerList.SelectedItem().(analyzer)
	if !ok {
		return nil
	}
	return m.analyzers[item.address]
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

func phaseName(oil bool) string {
	if oil {
		return "oil"
	}
	return "water"
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("12"))
)

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("RAZOR MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch", connStatus)))
	s.WriteString("\n\n")

	leftWidth := 30
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 30 {
		rightWidth = 30
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusAnalyzerList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	listPanel := listStyle.Render(m.analyzerList.View())
	telemetryPanel := boxStyle.Width(rightWidth).Render(m.renderTelemetry())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, listPanel, " ", telemetryPanel))
	s.WriteString("\n")

	inputStyle := boxStyle
	if m.focusedField == focusCommandInput {
		inputStyle = focusedBoxStyle
	}
	s.WriteString(inputStyle.Width(m.width - 4).Render(labelStyle.Render("Command: ") + m.input.View()))
	s.WriteString("\n")

	s.WriteString(m.renderStatistics())
	s.WriteString("\n")
	s.WriteString(m.renderEventLog())

	return s.String()
}

func reading(v float64, format string) string {
	if math.IsNaN(v) {
		return errorStyle.Render("NaN")
	}
	return valueStyle.Render(fmt.Sprintf(format, v))
}

func (m monitorModel) renderTelemetry() string {
	a := m.selectedAnalyzer()
	if a == nil {
		return headerStyle.Render("Waiting for telemetry...")
	}
	if a.lastSeen.IsZero() {
		return headerStyle.Render(fmt.Sprintf("Razor %016X: no telemetry yet", a.address))
	}

	t := a.telemetry
	var s strings.Builder
	fmt.Fprintf(&s, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("Watercut:"), reading(t.Watercut, "%.3f %%"),
		labelStyle.Render("Raw:"), reading(t.WatercutRaw, "%.3f %%"),
		labelStyle.Render("Avg:"), reading(t.WatercutAvg, "%.3f %%"))
	fmt.Fprintf(&s, "%s %s   %s %s\n",
		labelStyle.Render("Temperature:"), reading(t.Temperature, "%.1f"),
		labelStyle.Render("Avg:"), reading(t.TempAvg, "%.1f"))
	fmt.Fprintf(&s, "%s %s   %s %s\n",
		labelStyle.Render("Frequency:"), reading(t.Frequency, "%.3f MHz"),
		labelStyle.Render("Reflected:"), reading(t.ReflectedPower, "%.1f mV"))
	fmt.Fprintf(&s, "%s %s   %s %s   %s %s\n",
		labelStyle.Render("Density:"), reading(t.Density, "%.2f"),
		labelStyle.Render("Adj:"), reading(t.DensityAdj, "%.3f"),
		labelStyle.Render("AO:"), reading(t.AnalogOut, "%.3f mA"))

	phase := valueStyle.Render("oil")
	if !t.OilPhase {
		phase = warningStyle.Render("water")
	}
	diag := valueStyle.Render(t.Diagnostics.String())
	if t.Alarm {
		diag = errorStyle.Render("ALARM " + t.Diagnostics.String())
	}
	fmt.Fprintf(&s, "%s %s   %s %s\n", labelStyle.Render("Phase:"), phase, labelStyle.Render("Diagnostics:"), diag)

	age := time.Since(a.lastSeen).Round(time.Second)
	fmt.Fprintf(&s, "%s %s", labelStyle.Render("Last seen:"), headerStyle.Render(age.String()+" ago"))
	if a.hasUptime {
		fmt.Fprintf(&s, "   %s %s", labelStyle.Render("Uptime:"), valueStyle.Render(a.uptime.Round(time.Second).String()))
	}
	return s.String()
}

func (m monitorModel) renderStatistics() string {
	st := m.stats
	errStr := valueStyle.Render(fmt.Sprintf("%d", st.Errors()))
	if st.Errors() > 0 {
		errStr = errorStyle.Render(fmt.Sprintf("%d", st.Errors()))
	}
	content := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", st.TotalPackets)),
		labelStyle.Render("Errors:"), errStr,
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", st.PacketRate)),
		labelStyle.Render("CRC:"), valueStyle.Render(fmt.Sprintf("%d", st.CRCErrors)))
	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderEventLog() string {
	logHeight := m.height - m.listHeight() - 14
	if logHeight < 3 {
		logHeight = 3
	}

	var s strings.Builder
	start := len(m.eventLog) - logHeight
	if start < 0 {
		start = 0
	}
	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, e := range m.eventLog[start:] {
		ts := headerStyle.Render(e.timestamp.Format("15:04:05.000"))
		if e.isError {
			fmt.Fprintf(&s, "%s %s\n", ts, errorStyle.Render("✗ "+e.message))
		} else {
			fmt.Fprintf(&s, "%s %s\n", ts, warningStyle.Render("ℹ "+e.message))
		}
	}
	return boxStyle.Width(m.width - 4).Render(strings.TrimRight(s.String(), "\n"))
}
