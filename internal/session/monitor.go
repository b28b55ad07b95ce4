package session

// Monitor reduces page visibility and window focus to one foreground signal.
// Losing either signal calls onInactive synchronously. Regaining both never
// resumes anything on its own.
type Monitor struct {
	visible    bool
	focused    bool
	onInactive func()
}

// NewMonitor returns a monitor that starts visible and focused.
func NewMonitor(onInactive func()) *Monitor {
	return &Monitor{visible: true, focused: true, onInactive: onInactive}
}

// SetVisible records a document visibility change.
func (m *Monitor) SetVisible(visible bool) {
	was := m.Active()
	m.visible = visible
	m.notify(was)
}

// SetFocused records a window focus change.
func (m *Monitor) SetFocused(focused bool) {
	was := m.Active()
	m.focused = focused
	m.notify(was)
}

// Active reports whether the page is both visible and focused.
func (m *Monitor) Active() bool {
	return m.visible && m.focused
}

func (m *Monitor) notify(wasActive bool) {
	if wasActive && !m.Active() && m.onInactive != nil {
		m.onInactive()
	}
}
