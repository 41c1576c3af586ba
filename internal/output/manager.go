package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type TaskOutput struct {
	ID          int
	Name        string
	Status      string
	Message     string
	StreamLines []string
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	Name  string
	Error error
	Time  time.Time
}

type Manager struct {
	out         io.Writer
	outputs     map[int]*TaskOutput
	mutex       sync.RWMutex
	numLines    int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	taskCount   int
	displayWg   sync.WaitGroup
}

func NewManager() *Manager {
	return newManagerTo(os.Stdout)
}

func newManagerTo(w io.Writer) *Manager {
	return &Manager{
		out:         w,
		outputs:     make(map[int]*TaskOutput),
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
	}
}

// RegisterTask adds a line for one download and returns its handle
func (m *Manager) RegisterTask(name string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.taskCount++
	now := time.Now()
	m.outputs[m.taskCount] = &TaskOutput{
		ID:          m.taskCount,
		Name:        name,
		Status:      "pending",
		StartTime:   now,
		LastUpdated: now,
	}
	return m.taskCount
}

func (m *Manager) SetMessage(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Message = message
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) SetStatus(id int, status string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Status = status
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) Complete(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.StreamLines = nil
		if message == "" {
			message = fmt.Sprintf("Completed %s", info.Name)
		}
		info.Message = message
		info.Complete = true
		info.Status = "success"
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Complete = true
		info.Status = "error"
		info.Error = err
		info.Message = fmt.Sprintf("Failed %s", info.Name)
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{Name: info.Name, Error: err, Time: time.Now()})
	}
}

// SetProgress replaces the task's stream with a progress bar line
func (m *Manager) SetProgress(id int, written, total uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		bar := PrintProgressBar(written, total, 30)
		elapsed := time.Since(info.StartTime).Seconds()
		info.StreamLines = []string{fmt.Sprintf("%s%s %s %s", bar,
			debugStyle.Render(FormatProgress(written, total)),
			StyleSymbols["bullet"],
			debugStyle.Render(FormatSpeed(written, elapsed)))}
		info.LastUpdated = time.Now()
	}
}

func (m *Manager) clearAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, info := range m.outputs {
		info.StreamLines = nil
	}
}

func statusIndicator(status string) string {
	switch status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	case "paused":
		return warningStyle.Render(StyleSymbols["pause"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styleMessage(status, message string) string {
	switch status {
	case "success":
		return successStyle.Render(message)
	case "error":
		return errorStyle.Render(message)
	case "paused":
		return warningStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (m *Manager) sortTasks() (active, pending, completed []*TaskOutput) {
	all := make([]*TaskOutput, 0, len(m.outputs))
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, t := range all {
		switch {
		case t.Complete:
			completed = append(completed, t)
		case t.Status == "pending" && t.Message == "":
			pending = append(pending, t)
		default:
			active = append(active, t)
		}
	}
	return active, pending, completed
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	availableLines := getTerminalHeight() - 3 // room for the prompt
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	activeTasks, pendingTasks, completedTasks := m.sortTasks()

	totalNeeded := len(completedTasks)
	for _, t := range activeTasks {
		totalNeeded += 1 + len(t.StreamLines)
	}
	totalNeeded += len(pendingTasks)
	if totalNeeded > availableLines {
		maxCompleted := max(availableLines-(totalNeeded-len(completedTasks)), 0)
		if len(completedTasks) > maxCompleted {
			completedTasks = completedTasks[len(completedTasks)-maxCompleted:]
		}
	}

	lineCount := 0
	printLine := func(format string, args ...any) bool {
		if lineCount >= availableLines {
			return false
		}
		fmt.Fprintf(m.out, format, args...)
		lineCount++
		return true
	}
	indent := strings.Repeat(" ", 2)
	streamIndent := strings.Repeat(" ", 2+4)

	for _, t := range activeTasks {
		elapsed := time.Since(t.StartTime).Round(time.Second)
		if !printLine("%s%s %s %s\n", indent, statusIndicator(t.Status), debugStyle.Render(elapsed.String()), styleMessage(t.Status, t.Message)) {
			break
		}
		for _, line := range t.StreamLines {
			if !printLine("%s%s\n", streamIndent, streamStyle.Render(line)) {
				break
			}
		}
	}
	for _, t := range pendingTasks {
		if !printLine("%s%s %s\n", indent, statusIndicator(t.Status), pendingStyle.Render("Waiting "+t.Name)) {
			break
		}
	}
	if len(completedTasks) > 10 {
		printLine("%s\n", infoStyle.Render(fmt.Sprintf("%s%d downloads finished ...", indent, len(completedTasks)-8)))
		completedTasks = completedTasks[len(completedTasks)-8:]
	}
	for _, t := range completedTasks {
		total := t.LastUpdated.Sub(t.StartTime).Round(time.Second)
		if !printLine("%s%s %s %s\n", indent, statusIndicator(t.Status), debugStyle.Render(total.String()), styleMessage(t.Status, t.Message)) {
			break
		}
	}
	m.numLines = lineCount
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.clearAll()
				m.updateDisplay()
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, err := range m.errors {
		fmt.Fprintf(m.out, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			errorStyle.Render(err.Name))
		fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", err.Error)))
	}
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Fprintln(m.out)
	var success, failures int
	for _, info := range m.outputs {
		switch info.Status {
		case "success":
			success++
		case "error":
			failures++
		}
	}
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(m.outputs))))
	if failures > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}
