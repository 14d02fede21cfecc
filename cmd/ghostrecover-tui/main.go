// Command ghostrecover-tui is the interactive front end for the
// recovery engine: the same bubbletea/lipgloss architecture as the
// teacher's recover-tui (state-machine model, list/textinput/spinner
// components), driving recovery.Engine.Run instead of
// carver.Recover/fat32.Recover/ntfs.Recover. Device enumeration is
// dropped in favor of always entering an image path directly, since
// the engine operates on a blocksource.Source rather than a raw
// device handle.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shubham/ghostrecover/internal/blocksource"
	"github.com/shubham/ghostrecover/internal/btrfs"
	"github.com/shubham/ghostrecover/internal/config"
	"github.com/shubham/ghostrecover/internal/exfat"
	"github.com/shubham/ghostrecover/internal/model"
	"github.com/shubham/ghostrecover/internal/recovery"
	"github.com/shubham/ghostrecover/internal/recoverwrite"
)

// detectFsid tries each filesystem's own magic, in the same order as
// cmd/ghostrecover's detector.
func detectFsid(src blocksource.Source) (model.Fsid, bool) {
	if _, err := exfat.ReadBootSector(src); err == nil {
		return model.FsidExFAT, true
	}
	if _, err := btrfs.ReadSuperblock(src); err == nil {
		return model.FsidBtrfs, true
	}
	if buf, err := src.Read(0, 4); err == nil && len(buf) == 4 &&
		buf[0] == 0x58 && buf[1] == 0x46 && buf[2] == 0x53 && buf[3] == 0x42 {
		return model.FsidXFS, true
	}
	return 0, false
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)
)

// State represents the current screen.
type State int

const (
	StateWelcome State = iota
	StateEnterPath
	StateSelectFS
	StateSelectMode
	StateSelectOutput
	StateConfirm
	StateRunning
	StateResults
)

// RecoveryMode mirrors the CLI's scan/recover split; there is no
// carve mode here since signature scanning already runs as part of
// every engine session.
type RecoveryMode int

const (
	ModeScan RecoveryMode = iota
	ModeRecover
)

type fsItem struct {
	name string
	desc string
	fsid model.Fsid
	auto bool
}

func (i fsItem) Title() string       { return i.name }
func (i fsItem) Description() string { return i.desc }
func (i fsItem) FilterValue() string { return i.name }

type modeItem struct {
	name string
	desc string
	mode RecoveryMode
}

func (i modeItem) Title() string       { return i.name }
func (i modeItem) Description() string { return i.desc }
func (i modeItem) FilterValue() string { return i.name }

type recoveryCompleteMsg struct {
	session model.RecoverySession
	written int
	err     error
}

type model struct {
	state State
	width int
	height int
	err   error

	pathInput  textinput.Model
	imagePath  string

	fsList list.Model
	fsid   model.Fsid
	auto   bool

	modeList list.Model
	mode     RecoveryMode

	outputInput textinput.Model
	outputPath  string

	spinner   spinner.Model
	statusMsg string

	session     model.RecoverySession
	filesWritten int
}

func initialModel() model {
	fsItems := []list.Item{
		fsItem{name: "🔍 Auto-detect", desc: "Probe each filesystem's own signature", auto: true},
		fsItem{name: "XFS", desc: "Linux XFS allocation groups", fsid: model.FsidXFS},
		fsItem{name: "Btrfs", desc: "Btrfs B-tree leaves", fsid: model.FsidBtrfs},
		fsItem{name: "exFAT", desc: "exFAT directory entries", fsid: model.FsidExFAT},
	}
	fsList := list.New(fsItems, list.NewDefaultDelegate(), 0, 0)
	fsList.Title = "Select Filesystem"
	fsList.SetShowStatusBar(false)
	fsList.SetFilteringEnabled(false)

	modeItems := []list.Item{
		modeItem{name: "🔍 Scan Only", desc: "List recoverable files without writing them out", mode: ModeScan},
		modeItem{name: "💾 Recover Files", desc: "Write recovered files to an output directory", mode: ModeRecover},
	}
	modeList := list.New(modeItems, list.NewDefaultDelegate(), 0, 0)
	modeList.Title = "Select Recovery Mode"
	modeList.SetShowStatusBar(false)
	modeList.SetFilteringEnabled(false)

	pathInput := textinput.New()
	pathInput.Placeholder = "/path/to/image.img"
	pathInput.Focus()
	pathInput.Width = 50

	outputInput := textinput.New()
	outputInput.Placeholder = "./recovered"
	outputInput.SetValue("./recovered")
	outputInput.Width = 50

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return model{
		state:       StateWelcome,
		fsList:      fsList,
		modeList:    modeList,
		pathInput:   pathInput,
		outputInput: outputInput,
		spinner:     s,
		auto:        true,
		outputPath:  "./recovered",
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != StateRunning {
				return m, tea.Quit
			}
		case "esc":
			if m.state > StateWelcome && m.state != StateRunning {
				m.state--
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.fsList.SetSize(msg.Width-4, msg.Height-10)
		m.modeList.SetSize(msg.Width-4, msg.Height-10)
		return m, nil

	case recoveryCompleteMsg:
		m.state = StateResults
		m.session = msg.session
		m.filesWritten = msg.written
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	switch m.state {
	case StateWelcome:
		return m.updateWelcome(msg)
	case StateEnterPath:
		return m.updateEnterPath(msg)
	case StateSelectFS:
		return m.updateSelectFS(msg)
	case StateSelectMode:
		return m.updateSelectMode(msg)
	case StateSelectOutput:
		return m.updateSelectOutput(msg)
	case StateConfirm:
		return m.updateConfirm(msg)
	case StateRunning:
		return m.updateRunning(msg)
	case StateResults:
		return m.updateResults(msg)
	}

	return m, nil
}

func (m model) updateWelcome(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		m.state = StateEnterPath
	}
	return m, nil
}

func (m model) updateEnterPath(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		path := m.pathInput.Value()
		if path != "" {
			if strings.HasPrefix(path, "~") {
				home, _ := os.UserHomeDir()
				path = filepath.Join(home, path[1:])
			}
			m.imagePath = path
			m.state = StateSelectFS
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m model) updateSelectFS(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		selected := m.fsList.SelectedItem()
		if selected != nil {
			item := selected.(fsItem)
			m.auto = item.auto
			m.fsid = item.fsid
			m.state = StateSelectMode
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.fsList, cmd = m.fsList.Update(msg)
	return m, cmd
}

func (m model) updateSelectMode(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		selected := m.modeList.SelectedItem()
		if selected != nil {
			m.mode = selected.(modeItem).mode
			if m.mode == ModeScan {
				m.state = StateConfirm
			} else {
				m.state = StateSelectOutput
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.modeList, cmd = m.modeList.Update(msg)
	return m, cmd
}

func (m model) updateSelectOutput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		m.outputPath = m.outputInput.Value()
		if m.outputPath == "" {
			m.outputPath = "./recovered"
		}
		m.state = StateConfirm
		return m, nil
	}

	var cmd tea.Cmd
	m.outputInput, cmd = m.outputInput.Update(msg)
	return m, cmd
}

func (m model) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "y", "Y", "enter":
			m.state = StateRunning
			m.statusMsg = "Scanning..."
			return m, tea.Batch(m.spinner.Tick, m.runRecovery())
		case "n", "N":
			m.state = StateSelectFS
		}
	}
	return m, nil
}

func (m model) updateRunning(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, nil
}

func (m model) updateResults(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "r", "R":
			return initialModel(), tea.Batch(textinput.Blink, initialModel().spinner.Tick)
		case "enter", "q":
			return m, tea.Quit
		}
	}
	return m, nil
}

// runRecovery opens the image, runs the engine end to end, and — for
// ModeRecover — writes every surviving file out via recoverwrite,
// mirroring the CLI's runScan+recover wiring rather than the teacher's
// carver/fat32/ntfs dispatch.
func (m model) runRecovery() tea.Cmd {
	imagePath := m.imagePath
	auto := m.auto
	requestedFsid := m.fsid
	mode := m.mode
	outputPath := m.outputPath

	return func() tea.Msg {
		src, err := blocksource.Open(imagePath)
		if err != nil {
			return recoveryCompleteMsg{err: err}
		}
		defer src.Close()

		fsid := requestedFsid
		if auto {
			detected, ok := detectFsid(src)
			if !ok {
				return recoveryCompleteMsg{err: fmt.Errorf("could not auto-detect filesystem")}
			}
			fsid = detected
		}

		cfg := config.Default()
		eng := recovery.New(src, cfg, nil, nil)
		session, err := eng.Run(fsid, imagePath)
		if err != nil {
			return recoveryCompleteMsg{session: session, err: err}
		}

		if mode == ModeScan {
			return recoveryCompleteMsg{session: session}
		}

		if err := os.MkdirAll(outputPath, 0o755); err != nil {
			return recoveryCompleteMsg{session: session, err: err}
		}
		unit := model.Unit(session.Fsid)
		blockSize := int64(session.Metadata.BlockSize)
		if blockSize == 0 {
			blockSize = 4096
		}
		written := 0
		for _, f := range session.ScanResults {
			if _, err := recoverwrite.Write(src, f, outputPath, unit, blockSize); err == nil {
				written++
			}
		}
		return recoveryCompleteMsg{session: session, written: written}
	}
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" 🔎 ghostrecover "))
	s.WriteString("\n\n")

	switch m.state {
	case StateWelcome:
		s.WriteString(m.viewWelcome())
	case StateEnterPath:
		s.WriteString(m.viewEnterPath())
	case StateSelectFS:
		s.WriteString(m.fsList.View())
	case StateSelectMode:
		s.WriteString(m.modeList.View())
	case StateSelectOutput:
		s.WriteString(m.viewSelectOutput())
	case StateConfirm:
		s.WriteString(m.viewConfirm())
	case StateRunning:
		s.WriteString(m.viewRunning())
	case StateResults:
		s.WriteString(m.viewResults())
	}

	if m.err != nil {
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press q to quit • esc to go back"))

	return s.String()
}

func (m model) viewWelcome() string {
	var s strings.Builder
	s.WriteString(subtitleStyle.Render("Welcome to ghostrecover"))
	s.WriteString("\n\n")
	s.WriteString("Recover deleted files from forensic disk images:\n")
	s.WriteString("  • XFS (Linux allocation groups)\n")
	s.WriteString("  • Btrfs (copy-on-write B-tree)\n")
	s.WriteString("  • exFAT (removable media)\n\n")
	s.WriteString("⚠️  ")
	s.WriteString(lipgloss.NewStyle().Bold(true).Render("Important:"))
	s.WriteString(" the image is opened READ-ONLY and never modified.\n\n")
	s.WriteString(selectedStyle.Render("Press Enter to continue..."))
	return s.String()
}

func (m model) viewEnterPath() string {
	var s strings.Builder
	s.WriteString(subtitleStyle.Render("Enter Disk Image Path"))
	s.WriteString("\n\n")
	s.WriteString("Enter the path to your disk image file:\n\n")
	s.WriteString(m.pathInput.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press Enter to continue"))
	return s.String()
}

func (m model) viewSelectOutput() string {
	var s strings.Builder
	s.WriteString(subtitleStyle.Render("Select Output Directory"))
	s.WriteString("\n\n")
	s.WriteString("Where should recovered files and the audit trail be saved?\n\n")
	s.WriteString(m.outputInput.View())
	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press Enter to continue"))
	return s.String()
}

func (m model) viewConfirm() string {
	var s strings.Builder
	s.WriteString(subtitleStyle.Render("Confirm Recovery Settings"))
	s.WriteString("\n\n")

	s.WriteString(fmt.Sprintf("  Source:      %s\n", m.imagePath))
	fsStr := "auto-detect"
	if !m.auto {
		fsStr = m.fsid.String()
	}
	s.WriteString(fmt.Sprintf("  Filesystem:  %s\n", fsStr))

	modeStr := "Scan Only"
	if m.mode == ModeRecover {
		modeStr = "Recover Files"
	}
	s.WriteString(fmt.Sprintf("  Mode:        %s\n", modeStr))

	if m.mode != ModeScan {
		s.WriteString(fmt.Sprintf("  Output:      %s\n", m.outputPath))
	}

	s.WriteString("\n")
	s.WriteString("⚠️  The source will be opened in READ-ONLY mode.\n\n")
	s.WriteString(selectedStyle.Render("Press Y to start, N to go back"))
	return s.String()
}

func (m model) viewRunning() string {
	var s strings.Builder
	s.WriteString(m.spinner.View())
	s.WriteString(" ")
	s.WriteString(m.statusMsg)
	s.WriteString("\n\n")
	s.WriteString("This may take a while for large images...\n")
	s.WriteString(helpStyle.Render("Please wait..."))
	return s.String()
}

func (m model) viewResults() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(errorStyle.Render("Recovery Failed"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Error: %v\n", m.err))
	} else {
		s.WriteString(successStyle.Render("✓ Scan Complete!"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Found %d deleted files.\n", len(m.session.ScanResults)))
		if m.mode == ModeRecover {
			s.WriteString(fmt.Sprintf("Recovered %d files to: %s\n", m.filesWritten, m.outputPath))
		}
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("Press R to run again • Q to quit"))
	return s.String()
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
