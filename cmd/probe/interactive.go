package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	guestbridge "github.com/wippyai/guest-bridge"
	"github.com/wippyai/guest-bridge/bindings"
	"github.com/wippyai/guest-bridge/engine"
	"github.com/wippyai/guest-bridge/hostbuf"
	"github.com/wippyai/guest-bridge/lifecycle"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type allocation struct {
	size    int64
	pinned  bool
	address int64
	length  int64
	err     error
}

type probeModel struct {
	err       error
	vm        *engine.VM
	cache     *bindings.Cache
	module    *lifecycle.Module
	className string
	wasmFile  string
	version   string
	sizeInput textinput.Model
	pinned    bool
	history   []allocation
}

func newProbeModel(wasmFile, className string) *probeModel {
	ti := textinput.New()
	ti.Placeholder = "size in bytes"
	ti.Prompt = "size: "
	ti.Width = 24
	ti.Focus()

	return &probeModel{
		wasmFile:  wasmFile,
		className: className,
		sizeInput: ti,
	}
}

type loadedMsg struct {
	err     error
	vm      *engine.VM
	cache   *bindings.Cache
	module  *lifecycle.Module
	version string
}

type allocatedMsg struct {
	allocation
}

func (m *probeModel) Init() tea.Cmd {
	return m.loadGuest
}

func (m *probeModel) loadGuest() tea.Msg {
	ctx := context.Background()

	guest, err := loadGuest(m.wasmFile, m.className)
	if err != nil {
		return loadedMsg{err: err}
	}

	vm, err := engine.New(ctx, guest, engine.Options{})
	if err != nil {
		return loadedMsg{err: err}
	}

	cache := bindings.NewCache(nil)
	module := lifecycle.New(lifecycle.Config{}, cache)
	version, err := module.OnLoad(vm)
	if err != nil {
		vm.Close(ctx)
		return loadedMsg{err: err}
	}

	return loadedMsg{vm: vm, cache: cache, module: module, version: version}
}

func (m *probeModel) allocate() tea.Msg {
	ctx := context.Background()

	size, err := strconv.ParseInt(strings.TrimSpace(m.sizeInput.Value()), 10, 64)
	if err != nil {
		return allocatedMsg{allocation{err: fmt.Errorf("bad size: %w", err)}}
	}

	// Commands run on fresh goroutines; AcquireEnv attaches each one on
	// demand and the VM's guard reclaims the binding afterwards.
	env, err := guestbridge.AcquireEnv(ctx, m.vm)
	if err != nil {
		return allocatedMsg{allocation{size: size, pinned: m.pinned, err: err}}
	}

	buf, err := hostbuf.Allocate(ctx, env, m.cache, size, m.pinned)
	if err != nil {
		return allocatedMsg{allocation{size: size, pinned: m.pinned, err: err}}
	}

	return allocatedMsg{allocation{
		size:    size,
		pinned:  m.pinned,
		address: hostbuf.Address(env, m.cache, buf),
		length:  hostbuf.Length(env, m.cache, buf),
	}}
}

func (m *probeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			ctx := context.Background()
			if m.module != nil {
				m.module.OnUnload(m.vm)
			}
			if m.vm != nil {
				m.vm.Close(ctx)
			}
			return m, tea.Quit

		case "p":
			m.pinned = !m.pinned
			return m, nil

		case "enter":
			if m.vm != nil {
				return m, m.allocate
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.vm = msg.vm
		m.cache = msg.cache
		m.module = msg.module
		m.version = msg.version

	case allocatedMsg:
		m.history = append(m.history, msg.allocation)
	}

	var cmd tea.Cmd
	m.sizeInput, cmd = m.sizeInput.Update(msg)
	return m, cmd
}

func (m *probeModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.vm == nil {
		return "Loading guest..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Host Buffer Probe"))
	b.WriteString(fmt.Sprintf(" %s (v%s)\n\n", m.className, m.version))

	b.WriteString(m.sizeInput.View())
	b.WriteString("  ")
	pool := "heap"
	if m.pinned {
		pool = "pinned"
	}
	b.WriteString(labelStyle.Render("pool: " + pool))
	b.WriteString("\n\n")

	for i, a := range m.history {
		if a.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("%2d. size=%d: %v", i+1, a.size, a.err)))
		} else {
			b.WriteString(resultStyle.Render(fmt.Sprintf("%2d. address=0x%x length=%d pinned=%t",
				i+1, a.address, a.length, a.pinned)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter allocate • p toggle pool • q quit"))
	return b.String()
}

func runInteractive(wasmFile, className string) error {
	p := tea.NewProgram(newProbeModel(wasmFile, className), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
