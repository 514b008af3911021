package tree

// Op names a tree operation for errors, events and metrics.
type Op string

const (
	OpList         Op = "list"
	OpExpand       Op = "expand"
	OpCreateNote   Op = "create_note"
	OpCreateFolder Op = "create_folder"
	OpDelete       Op = "delete"
	OpRename       Op = "rename"
	OpMove         Op = "move"
	OpPin          Op = "pin"
	OpUnpin        Op = "unpin"
)

// Verb returns the user-facing verb for the operation.
func (o Op) Verb() string {
	switch o {
	case OpList:
		return "list"
	case OpExpand:
		return "expand"
	case OpCreateNote:
		return "create note"
	case OpCreateFolder:
		return "create folder"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	case OpMove:
		return "move"
	case OpPin:
		return "pin"
	case OpUnpin:
		return "unpin"
	default:
		return string(o)
	}
}

// Event is the closed set of notifications the tree emits to its consumer.
// Consumers switch on the concrete type.
type Event interface {
	treeEvent()
}

// StructureChanged reports that the visible structure under Paths may have
// changed. Each path is a directory whose subtree needs re-flattening; ""
// means the whole tree.
type StructureChanged struct {
	Paths []string
}

// LoadFailed reports a directory listing failure. It is non-fatal.
type LoadFailed struct {
	Path string
	Err  error
}

// ItemRenamed carries what a consumer needs to remap open references.
type ItemRenamed struct {
	OldPath string
	NewPath string
	IsDir   bool
}

// ItemMoved is ItemRenamed for drag-and-drop style relocations.
type ItemMoved struct {
	OldPath string
	NewPath string
	IsDir   bool
}

// ItemDeleted lets the consumer drop references to Path and anything beneath it.
type ItemDeleted struct {
	Path  string
	IsDir bool
}

// PinsChanged asks consumers showing pinned items to refresh.
type PinsChanged struct{}

func (StructureChanged) treeEvent() {}
func (LoadFailed) treeEvent()       {}
func (ItemRenamed) treeEvent()      {}
func (ItemMoved) treeEvent()        {}
func (ItemDeleted) treeEvent()      {}
func (PinsChanged) treeEvent()      {}

// Sink receives events. Emit must not block.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev Event) { f(ev) }

// ChanSink delivers events to a buffered channel, dropping them when the
// consumer falls behind. Every drop is followed by a catch-up
// StructureChanged for the whole tree once there is room again.
type ChanSink struct {
	ch      chan Event
	dropped chan struct{}
}

// NewChanSink creates a sink with the given buffer size.
func NewChanSink(size int) *ChanSink {
	if size <= 0 {
		size = 64
	}
	return &ChanSink{ch: make(chan Event, size), dropped: make(chan struct{}, 1)}
}

// Emit implements Sink.
func (s *ChanSink) Emit(ev Event) {
	select {
	case <-s.dropped:
		select {
		case s.ch <- StructureChanged{Paths: []string{""}}:
		default:
			s.markDropped()
			return
		}
	default:
	}
	select {
	case s.ch <- ev:
	default:
		s.markDropped()
	}
}

func (s *ChanSink) markDropped() {
	select {
	case s.dropped <- struct{}{}:
	default:
	}
}

// Events returns the receive side of the sink.
func (s *ChanSink) Events() <-chan Event {
	return s.ch
}

type multiSink []Sink

func (m multiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// Tee fans events out to several sinks in order. Nil sinks are skipped.
func Tee(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type discard struct{}

func (discard) Emit(Event) {}
