package tui

const (
	TopicDashboardEvents = "mldash.events"
	TopicUIMessages      = "mldash.ui.msgs"
)

const (
	DomainTypeRedraw     = "dashboard.redraw"
	DomainTypeMode       = "dashboard.mode"
	DomainTypeDispatched = "dashboard.dispatched"
	DomainTypeQueueDepth = "queue.depth"
)

const (
	UITypeRedraw     = "tui.redraw"
	UITypeMode       = "tui.mode"
	UITypeDispatched = "tui.dispatched"
	UITypeQueueDepth = "tui.queue.depth"
)
