package main

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/claudeless/claudeless/internal/failure"
	"github.com/claudeless/claudeless/internal/permission"
	"github.com/claudeless/claudeless/internal/runtime"
	"github.com/claudeless/claudeless/internal/scenario"
	"github.com/claudeless/claudeless/internal/session"
	"github.com/claudeless/claudeless/internal/state"
	"github.com/claudeless/claudeless/internal/tools"
)

// uiMode identifies the active interaction state. Exactly one mode is
// active at a time.
type uiMode int

const (
	modeSetup uiMode = iota
	modeTrust
	modeBypassConfirm
	modeInput
	modeResponding
	modePermission
	modeHelpDialog
)

// farewells are printed by /exit, picked pseudo-randomly.
var farewells = []string{
	"Goodbye!", "See you later!", "Until next time!", "Take care!",
	"Farewell!", "Happy coding!", "Catch you later!", "Bye for now!",
}

// tuiMessage is a rendered chat entry.
type tuiMessage struct {
	// Role labels the message origin (user, assistant, system, tool).
	Role string
	// Content is the message text displayed in the chat viewport.
	Content string
}

// turnDoneMsg delivers a completed orchestrator turn to the update loop.
type turnDoneMsg struct {
	// Result is the turn outcome, nil on error.
	Result *runtime.TurnResult
	// Err is the orchestrator error, including injected failures.
	Err error
}

// pendingResolvedMsg reports a resolved permission dialog.
type pendingResolvedMsg struct {
	// Result is the recorded tool result.
	Result tools.Result
	// Err is a recording error, if any.
	Err error
}

// compactDoneMsg fires after the /compact delay elapses.
type compactDoneMsg struct{}

// tuiModel drives the interactive terminal UI.
type tuiModel struct {
	// application bundles the orchestrator and its collaborators.
	application *app
	// mode is the active interaction state.
	mode uiMode
	// permMode is the live permission mode, cycled with Shift+Tab.
	permMode permission.Mode
	// chatMessages holds display-friendly entries.
	chatMessages []tuiMessage
	// inputHistory stores prior user inputs for recall.
	inputHistory []string
	// historyIndex tracks the active position in inputHistory.
	historyIndex int
	// historyDraft preserves the in-progress input when browsing history.
	historyDraft string
	// stash holds input saved by Ctrl+S style stashing on clear.
	stash string
	// chatView renders the conversation history.
	chatView viewport.Model
	// input collects user input for new turns.
	input textarea.Model
	// markdownRenderer formats assistant output when available.
	markdownRenderer *glamour.TermRenderer
	// statusText is the bottom status line.
	statusText string
	// tokenCount accumulates a rough token total for /context.
	tokenCount int64
	// sessionGrants remembers YesSession approvals by tool fingerprint.
	sessionGrants map[string]bool
	// pending is the permission dialog subject, when modePermission.
	pending *runtime.PendingPermission
	// permChoice indexes the permission dialog options.
	permChoice int
	// exitHintAt is the deadline for a double-tap exit key.
	exitHintAt time.Time
	// exitHintKey names the key awaiting its double-tap.
	exitHintKey string
	// compacting marks an in-flight /compact.
	compacting bool
	// prevMode restores the mode a dialog was opened from.
	prevMode uiMode
	// width and height track the terminal size.
	width  int
	height int
	// quitting indicates a user-requested exit.
	quitting bool
	// exitCode is reported to the caller after the program finishes.
	exitCode int
}

// runInteractiveTUI starts the full-screen terminal UI.
func runInteractiveTUI(application *app, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("interactive mode requires a TTY")
	}
	modelState := newTUIModel(application)
	program := tea.NewProgram(modelState, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(*tuiModel); ok && m.exitCode != 0 {
		return &exitCodeError{code: m.exitCode}
	}
	return nil
}

// newTUIModel constructs the initial TUI model state.
func newTUIModel(application *app) *tuiModel {
	input := textarea.New()
	input.Placeholder = "Type a message or / for commands..."
	input.Focus()
	input.CharLimit = 0
	input.Prompt = "> "
	input.SetHeight(3)
	input.SetWidth(20)

	chatView := viewport.New(20, 10)

	var renderer *glamour.TermRenderer
	if glam, err := glamour.NewTermRenderer(glamour.WithAutoStyle()); err == nil {
		renderer = glam
	}

	modelState := &tuiModel{
		application:      application,
		permMode:         application.ctx.PermissionMode,
		chatView:         chatView,
		input:            input,
		markdownRenderer: renderer,
		sessionGrants:    map[string]bool{},
		statusText:       "Enter: send | Shift+Tab: permission mode | Ctrl+C twice: quit",
	}
	modelState.mode = modelState.startMode()
	modelState.historyIndex = 0
	modelState.replayResumedSession()
	return modelState
}

// replayResumedSession seeds the chat view with the prior conversation when
// resuming. Tool traffic is filtered out by the transcript loader, so only
// the visible exchange comes back.
func (m *tuiModel) replayResumedSession() {
	opts := m.application.opts
	if (opts.Resume == "" && !opts.Continue) || m.application.writer == nil {
		return
	}
	transcript, err := session.LoadTranscript(m.application.writer.SessionPath())
	if err != nil {
		return
	}
	for _, entry := range transcript.Entries {
		m.appendMessage(entry.Role, entry.Text)
	}
	if len(transcript.Entries) > 0 {
		m.statusText = fmt.Sprintf("Resumed session with %d messages", transcript.MessageCount)
	}
}

// startMode picks the first screen from the runtime context: setup when
// logged out, trust prompt when untrusted, bypass confirmation when bypass
// was requested, otherwise straight to input.
func (m *tuiModel) startMode() uiMode {
	rc := m.application.ctx
	switch {
	case !rc.LoggedIn:
		return modeSetup
	case !rc.Trusted:
		return modeTrust
	case m.application.bypass.Active():
		return modeBypassConfirm
	default:
		return modeInput
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.applyWindowSize(typed)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	case turnDoneMsg:
		return m.finishTurn(typed)
	case pendingResolvedMsg:
		return m.finishPending(typed)
	case compactDoneMsg:
		m.finishCompact()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}

	switch m.mode {
	case modeSetup:
		return m.renderCentered("Welcome to " + m.brand() + "\n\nRun /login to authenticate.\n\nPress any key to exit.")
	case modeTrust:
		return m.renderCentered(fmt.Sprintf("Do you trust the files in this folder?\n\n%s\n\n[y] Yes  [n] No, exit", shortenPath(m.application.ctx.WorkingDirectory)))
	case modeBypassConfirm:
		return m.renderCentered("Bypass permissions mode disables all permission checks.\n\n[y] I accept  [n] Exit")
	case modeHelpDialog:
		return m.renderCentered(helpText)
	}

	header := m.renderHeader()
	chat := m.chatView.View()
	var bottom string
	if m.mode == modePermission {
		bottom = m.renderPermissionDialog()
	} else {
		bottom = m.renderInput()
	}
	status := m.renderStatus()
	return lipgloss.JoinVertical(lipgloss.Left, header, chat, bottom, status)
}

// brand returns the display name, switching when simulating a real version.
func (m *tuiModel) brand() string {
	if simulatedVersion(m.application.opts) != "" {
		return "Claude Code"
	}
	return "Claudeless"
}

// handleKey routes keyboard input by mode.
func (m *tuiModel) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSetup:
		return m.quit(failureExitSuccess)
	case modeTrust:
		switch strings.ToLower(key.String()) {
		case "y", "enter":
			m.mode = modeInput
			return m, nil
		default:
			return m.quit(failureExitSuccess)
		}
	case modeBypassConfirm:
		switch strings.ToLower(key.String()) {
		case "y", "enter":
			m.mode = modeInput
			return m, nil
		default:
			return m.quit(failureExitSuccess)
		}
	case modeHelpDialog:
		m.mode = m.prevMode
		m.statusText = "Closed help."
		return m, nil
	case modePermission:
		return m.handlePermissionKey(key)
	case modeResponding:
		switch key.String() {
		case "ctrl+c", "esc":
			m.appendMessage("assistant", "[Interrupted]")
			m.mode = modeInput
			m.statusText = "Interrupted."
			m.refreshChat()
			return m, nil
		}
		return m, nil
	}
	return m.handleInputKey(key)
}

// handleInputKey is the modeInput keymap.
func (m *tuiModel) handleInputKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		if strings.TrimSpace(m.input.Value()) != "" {
			m.stash = m.input.Value()
			m.input.SetValue("")
			m.statusText = "Input cleared."
			return m, nil
		}
		return m.exitHint("ctrl+c")
	case "ctrl+d":
		if strings.TrimSpace(m.input.Value()) == "" {
			return m.exitHint("ctrl+d")
		}
	case "esc":
		if strings.TrimSpace(m.input.Value()) != "" {
			return m.escClearHint()
		}
		return m, nil
	case "shift+tab":
		m.cyclePermissionMode()
		return m, nil
	case "up":
		m.cycleInputHistory(-1)
		return m, nil
	case "down":
		m.cycleInputHistory(1)
		return m, nil
	}

	if key.Type == tea.KeyEnter {
		if key.Alt {
			m.input.InsertString("\n")
			return m, nil
		}
		return m.submitInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

const failureExitSuccess = 0

// exitHint implements the double-tap exit: first press shows a hint, a
// second press within the exit-hint timeout quits with code 130.
func (m *tuiModel) exitHint(keyName string) (tea.Model, tea.Cmd) {
	now := time.Now()
	if m.exitHintKey == keyName && now.Before(m.exitHintAt) {
		return m.quit(130)
	}
	m.exitHintKey = keyName
	m.exitHintAt = now.Add(time.Duration(m.application.timeouts.ExitHintMS) * time.Millisecond)
	m.statusText = fmt.Sprintf("Press %s again to exit", keyName)
	return m, nil
}

// escClearHint clears the buffer on a double-tap of Esc.
func (m *tuiModel) escClearHint() (tea.Model, tea.Cmd) {
	now := time.Now()
	if m.exitHintKey == "esc" && now.Before(m.exitHintAt) {
		m.stash = m.input.Value()
		m.input.SetValue("")
		m.exitHintKey = ""
		m.statusText = "Input cleared."
		return m, nil
	}
	m.exitHintKey = "esc"
	m.exitHintAt = now.Add(time.Duration(m.application.timeouts.ExitHintMS) * time.Millisecond)
	m.statusText = "Press esc again to clear"
	return m, nil
}

func (m *tuiModel) quit(code int) (tea.Model, tea.Cmd) {
	m.quitting = true
	m.exitCode = code
	return m, tea.Quit
}

// cyclePermissionMode advances the bottom-bar permission mode and rebuilds
// the orchestrator's executor with a matching checker.
func (m *tuiModel) cyclePermissionMode() {
	m.permMode = m.permMode.CycleNext(m.application.bypass.AllowBypass)
	m.rebuildExecutor()
	m.statusText = fmt.Sprintf("Permission mode: %s", m.permMode.DisplayName())
}

func (m *tuiModel) rebuildExecutor() {
	application := m.application
	var overrides map[string]scenario.ToolConfig
	var executionMode scenario.ToolExecutionMode
	if application.cfg != nil && application.cfg.ToolExecution != nil {
		overrides = application.cfg.ToolExecution.Tools
		executionMode = application.cfg.ToolExecution.Mode
	}
	checker := permission.NewChecker(m.permMode, application.bypass, application.ctx.Patterns(), overrides)
	application.orch.SetExecutor(tools.NewPermissionCheckingExecutor(tools.NewExecutor(executionMode), checker))
}

// submitInput sends the current input as a new user message or slash
// command.
func (m *tuiModel) submitInput() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.statusText = ""
	m.appendInputHistory(value)

	if strings.HasPrefix(value, "/") && !m.application.opts.DisableSlashCommands {
		return m.runSlashCommand(value)
	}

	m.appendMessage("user", value)
	m.refreshChat()
	m.mode = modeResponding
	m.statusText = "Thinking..."
	m.tokenCount += int64(len(value) / 4)

	orch := m.application.orch
	return m, func() tea.Msg {
		result, err := orch.Execute(context.Background(), value)
		return turnDoneMsg{Result: result, Err: err}
	}
}

// finishTurn reconciles a completed orchestrator turn.
func (m *tuiModel) finishTurn(msg turnDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		var failErr *runtime.FailureError
		if errors.As(msg.Err, &failErr) {
			m.appendMessage("system", failureDisplayText(failErr.Spec))
		} else {
			m.appendMessage("system", msg.Err.Error())
		}
		m.mode = modeInput
		m.refreshChat()
		return m, nil
	}

	result := msg.Result
	for _, outcome := range result.Tools {
		m.appendToolOutcome(outcome)
	}

	if result.Pending != nil {
		return m.promptPermission(result)
	}

	if result.Text != "" {
		m.appendMessage("assistant", result.Text)
		m.tokenCount += int64(len(result.Text) / 4)
	}
	m.mode = modeInput
	m.statusText = ""
	m.refreshChat()

	// A stop hook block feeds its reason straight back in as the next
	// prompt.
	if result.HookContinuation != "" {
		return m.continueFromHook(result.HookContinuation)
	}
	return m, nil
}

func (m *tuiModel) continueFromHook(prompt string) (tea.Model, tea.Cmd) {
	m.appendMessage("user", prompt)
	m.refreshChat()
	m.mode = modeResponding
	m.statusText = "Thinking..."
	orch := m.application.orch
	return m, func() tea.Msg {
		result, err := orch.Execute(context.Background(), prompt)
		return turnDoneMsg{Result: result, Err: err}
	}
}

// promptPermission opens the dialog, or resolves silently from a session
// grant.
func (m *tuiModel) promptPermission(result *runtime.TurnResult) (tea.Model, tea.Cmd) {
	pending := result.Pending
	fingerprint := tools.Fingerprint(pending.Call.Tool, pending.Call.Input)
	if m.sessionGrants[fingerprint] {
		return m.resolvePending(pending, true)
	}
	m.pending = pending
	m.permChoice = 0
	m.mode = modePermission
	m.input.Blur()
	m.refreshChat()
	return m, nil
}

// handlePermissionKey drives the Yes / YesSession / No selector.
func (m *tuiModel) handlePermissionKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "up", "k":
		if m.permChoice > 0 {
			m.permChoice--
		}
		return m, nil
	case "down", "j":
		if m.permChoice < 2 {
			m.permChoice++
		}
		return m, nil
	case "1", "y":
		m.permChoice = 0
		return m.confirmPermission()
	case "2":
		m.permChoice = 1
		return m.confirmPermission()
	case "3", "n", "esc":
		m.permChoice = 2
		return m.confirmPermission()
	case "enter":
		return m.confirmPermission()
	}
	return m, nil
}

func (m *tuiModel) confirmPermission() (tea.Model, tea.Cmd) {
	pending := m.pending
	m.pending = nil
	m.input.Focus()
	switch m.permChoice {
	case 0:
		return m.resolvePending(pending, true)
	case 1:
		fingerprint := tools.Fingerprint(pending.Call.Tool, pending.Call.Input)
		m.sessionGrants[fingerprint] = true
		return m.resolvePending(pending, true)
	default:
		m.statusText = "Tool denied."
		return m.resolvePending(pending, false)
	}
}

func (m *tuiModel) resolvePending(pending *runtime.PendingPermission, approved bool) (tea.Model, tea.Cmd) {
	m.mode = modeResponding
	orch := m.application.orch
	return m, func() tea.Msg {
		result, err := orch.ResolvePending(context.Background(), pending, approved)
		return pendingResolvedMsg{Result: result, Err: err}
	}
}

// finishPending closes out the turn after a permission decision.
func (m *tuiModel) finishPending(msg pendingResolvedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.appendMessage("system", msg.Err.Error())
	} else if text := msg.Result.Text(); text != "" {
		role := "tool"
		if msg.Result.IsError {
			role = "system"
		}
		m.appendMessage(role, text)
	}
	m.mode = modeInput
	m.statusText = ""
	m.refreshChat()
	return m, nil
}

// runSlashCommand dispatches TUI slash commands.
func (m *tuiModel) runSlashCommand(value string) (tea.Model, tea.Cmd) {
	command := strings.ToLower(strings.Fields(value)[0])
	switch command {
	case "/exit", "/quit":
		m.appendMessage("system", pickFarewell())
		m.refreshChat()
		return m.quit(failureExitSuccess)
	case "/clear":
		m.chatMessages = nil
		m.tokenCount = 0
		m.sessionGrants = map[string]bool{}
		if m.application.engine != nil {
			m.application.engine.ResetCounts()
		}
		m.statusText = "Conversation cleared."
		m.refreshChat()
		return m, nil
	case "/compact":
		m.compacting = true
		m.statusText = "Compacting conversation..."
		delay := time.Duration(m.application.timeouts.CompactDelayMS) * time.Millisecond
		return m, tea.Tick(delay, func(time.Time) tea.Msg { return compactDoneMsg{} })
	case "/help":
		m.prevMode = m.mode
		m.mode = modeHelpDialog
		return m, nil
	case "/todos":
		m.appendMessage("system", m.renderTodos())
		m.refreshChat()
		return m, nil
	case "/context":
		m.appendMessage("system", m.renderContextGrid())
		m.refreshChat()
		return m, nil
	default:
		m.statusText = fmt.Sprintf("Unknown command: %s", command)
		return m, nil
	}
}

// finishCompact replaces the visible conversation with a compaction stub.
func (m *tuiModel) finishCompact() {
	count := len(m.chatMessages)
	m.compacting = false
	m.chatMessages = []tuiMessage{{
		Role:    "system",
		Content: fmt.Sprintf("Compacted (%d messages)", count),
	}}
	m.statusText = ""
	m.refreshChat()
}

// renderTodos reads the session todo file and formats it.
func (m *tuiModel) renderTodos() string {
	writer := m.application.writer
	if writer == nil {
		return "No todos."
	}
	todos, err := state.LoadTodos(writer.TodoPath())
	if err != nil || len(todos) == 0 {
		return "No todos."
	}
	var builder strings.Builder
	builder.WriteString("Todos:\n")
	for _, todo := range todos {
		marker := "[ ]"
		switch todo.Status {
		case "in_progress":
			marker = "[~]"
		case "completed":
			marker = "[x]"
		}
		fmt.Fprintf(&builder, "  %s %s\n", marker, todo.Content)
	}
	return strings.TrimRight(builder.String(), "\n")
}

// renderContextGrid draws the fixed token budget visualization.
func (m *tuiModel) renderContextGrid() string {
	const budget = 200000
	const cells = 50
	used := int(m.tokenCount * cells / budget)
	if used > cells {
		used = cells
	}
	grid := strings.Repeat("▪", used) + strings.Repeat("▫", cells-used)
	return fmt.Sprintf("Context usage\n%s\n%d / %d tokens", grid, m.tokenCount, budget)
}

// appendInputHistory records an input line for history navigation.
func (m *tuiModel) appendInputHistory(value string) {
	m.inputHistory = append(m.inputHistory, value)
	if len(m.inputHistory) > 200 {
		m.inputHistory = m.inputHistory[len(m.inputHistory)-200:]
	}
	m.historyIndex = len(m.inputHistory)
	m.historyDraft = ""
}

// cycleInputHistory moves the input buffer through stored history entries.
func (m *tuiModel) cycleInputHistory(delta int) {
	if len(m.inputHistory) == 0 {
		return
	}
	if m.historyIndex == len(m.inputHistory) {
		m.historyDraft = m.input.Value()
	}
	next := m.historyIndex + delta
	if next < 0 {
		next = 0
	}
	if next > len(m.inputHistory) {
		next = len(m.inputHistory)
	}
	m.historyIndex = next
	if m.historyIndex == len(m.inputHistory) {
		m.input.SetValue(m.historyDraft)
		return
	}
	m.input.SetValue(m.inputHistory[m.historyIndex])
}

// appendMessage adds a new chat message to the display list.
func (m *tuiModel) appendMessage(role string, content string) {
	m.chatMessages = append(m.chatMessages, tuiMessage{Role: role, Content: content})
}

// appendToolOutcome records a tool call and its result in the chat view.
func (m *tuiModel) appendToolOutcome(outcome runtime.ToolOutcome) {
	line := fmt.Sprintf("%s(%s)", outcome.Call.Tool, tools.SalientInput(outcome.Call.Tool, outcome.Call.Input))
	if outcome.Result.IsError {
		line += " failed: " + outcome.Result.Text()
	} else if text := outcome.Result.Text(); text != "" {
		line += "\n  " + strings.ReplaceAll(text, "\n", "\n  ")
	}
	m.appendMessage("tool", line)
}

// refreshChat rebuilds the chat viewport content.
func (m *tuiModel) refreshChat() {
	var builder strings.Builder
	for _, msg := range m.chatMessages {
		builder.WriteString(m.renderMessage(msg))
		builder.WriteString("\n\n")
	}
	m.chatView.SetContent(builder.String())
	m.chatView.GotoBottom()
}

func (m *tuiModel) applyWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 1
	statusHeight := 1
	inputHeight := m.input.Height() + 2
	bodyHeight := m.height - headerHeight - statusHeight - inputHeight
	if bodyHeight < 4 {
		bodyHeight = 4
	}
	m.chatView.Width = m.width
	m.chatView.Height = bodyHeight
	m.input.SetWidth(m.width - 4)
	m.refreshChat()
}

// renderHeader builds the top status line.
func (m *tuiModel) renderHeader() string {
	style := lipgloss.NewStyle().Bold(true)
	rc := m.application.ctx
	header := fmt.Sprintf("%s | %s | %s | %s", m.brand(), rc.UserName, rc.Model, shortenPath(rc.WorkingDirectory))
	return style.Render(padRight(header, m.width))
}

func (m *tuiModel) renderInput() string {
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	return style.Render(m.input.View())
}

// renderPermissionDialog draws the Yes / YesSession / No selector.
func (m *tuiModel) renderPermissionDialog() string {
	pending := m.pending
	var builder strings.Builder
	fmt.Fprintf(&builder, "Allow %s?\n", pending.Call.Tool)
	if salient := tools.SalientInput(pending.Call.Tool, pending.Call.Input); salient != "" {
		fmt.Fprintf(&builder, "  %s\n", salient)
	}
	builder.WriteString("\n")
	options := []string{"1. Yes", "2. Yes, for this session", "3. No"}
	for i, option := range options {
		cursor := "  "
		if i == m.permChoice {
			cursor = "> "
		}
		builder.WriteString(cursor + option + "\n")
	}
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	return style.Render(strings.TrimRight(builder.String(), "\n"))
}

// renderStatus returns the bottom status line with the mode cycler info.
func (m *tuiModel) renderStatus() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	text := m.statusText
	if text == "" {
		text = "Ready"
	}
	text = fmt.Sprintf("%s | %s (shift+tab to cycle)", text, m.permMode.DisplayName())
	return style.Render(padRight(text, m.width))
}

func (m *tuiModel) renderCentered(content string) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(1, 2)
	box := style.Render(content)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// renderMessage formats a chat message for display.
func (m *tuiModel) renderMessage(message tuiMessage) string {
	label := strings.ToUpper(message.Role)
	content := message.Content
	style := lipgloss.NewStyle()
	switch message.Role {
	case "user":
		style = style.Foreground(lipgloss.Color("39")).Bold(true)
		label = "YOU"
	case "assistant":
		style = style.Foreground(lipgloss.Color("10")).Bold(true)
		label = m.brand()
		content = m.renderMarkdown(content)
	case "tool":
		style = style.Foreground(lipgloss.Color("13"))
		label = "TOOL"
	case "system":
		style = style.Foreground(lipgloss.Color("3"))
		label = "SYSTEM"
	}
	return fmt.Sprintf("%s\n%s", style.Render(label+":"), content)
}

func (m *tuiModel) renderMarkdown(content string) string {
	if m.markdownRenderer == nil {
		return content
	}
	rendered, err := m.markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// failureDisplayText formats an injected failure for the chat view.
func failureDisplayText(spec *scenario.FailureSpec) string {
	text, _, ok := failure.Describe(spec)
	if !ok {
		return "API error"
	}
	return text
}

// pickFarewell selects a farewell from the fixed list, seeded by the clock
// the same way plan names are.
func pickFarewell() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d", time.Now().UnixNano())
	return farewells[h.Sum64()%uint64(len(farewells))]
}

const helpText = `Claudeless help

Enter        send message
Shift+Tab    cycle permission mode
Up/Down      input history
Ctrl+C       clear input / press twice to exit
/clear       clear the conversation
/compact     compact the conversation
/todos       show the todo list
/context     show token usage
/exit        leave

Press any key to close.`

// padRight pads a string with spaces to the target width.
func padRight(value string, width int) string {
	runes := []rune(value)
	if len(runes) >= width {
		return value
	}
	return value + strings.Repeat(" ", width-len(runes))
}
