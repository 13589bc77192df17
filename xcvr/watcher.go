// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package xcvr

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/platinasystems/sysplat/internal/sysfs"
	"github.com/platinasystems/sysplat/internal/wait"
	"github.com/platinasystems/sysplat/inventory"
)

const DefaultPollInterval = time.Second

type Status int

const (
	Removed Status = iota
	Inserted
	unknown Status = -1
)

func (s Status) String() string {
	switch s {
	case Removed:
		return "removed"
	case Inserted:
		return "inserted"
	}
	return "unknown"
}

// Event reports a presence change of a slot of the given kind.
type Event struct {
	Kind   string
	Slot   int
	Status Status
}

func (e Event) String() string {
	return fmt.Sprintf("%s%d: %s", e.Kind, e.Slot, e.Status)
}

// Presencer is anything with a presence bit: cages, psu and fan slots.
type Presencer interface {
	Presence() (bool, error)
}

type item struct {
	kind   string
	id     int
	obj    Presencer
	intr   inventory.Interrupt
	status Status
	f      *os.File
}

// changed refreshes the item status and reports a transition. The first
// successful read only records the baseline.
func (it *item) changed() (bool, error) {
	present, err := it.obj.Presence()
	if err != nil {
		return false, err
	}
	status := Removed
	if present {
		status = Inserted
	}
	changed := it.status != unknown && status != it.status
	it.status = status
	return changed, nil
}

func (it *item) open() (int, error) {
	if it.f == nil {
		f, err := os.Open(sysfs.Path(it.intr.File()))
		if err != nil {
			return -1, err
		}
		it.f = f
	}
	return int(it.f.Fd()), nil
}

func (it *item) close() {
	if it.f != nil {
		it.f.Close()
		it.f = nil
	}
}

type itemKey struct {
	kind string
	id   int
}

// Watcher detects presence changes by polling, and by waiting on the
// interrupt files of slots with an interrupt line when UseInterrupts is
// set.
type Watcher struct {
	// Preserve keeps the items and their baseline across Wait calls.
	Preserve      bool
	UseInterrupts bool
	PollInterval  time.Duration

	items []*item
	byKey map[itemKey]*item
	byFd  map[int]*item
	epfd  int
}

func NewWatcher(preserve bool) *Watcher {
	return &Watcher{
		Preserve:     preserve,
		PollInterval: DefaultPollInterval,
		byKey:        make(map[itemKey]*item),
		byFd:         make(map[int]*item),
		epfd:         -1,
	}
}

// Add starts watching obj and records its current presence as baseline.
// Adding a watched key again is ignored when preserving.
func (w *Watcher) Add(kind string, id int, obj Presencer, intr inventory.Interrupt) error {
	k := itemKey{kind, id}
	if old, found := w.byKey[k]; found {
		if w.Preserve {
			return nil
		}
		w.remove(old)
	}
	it := &item{kind: kind, id: id, obj: obj, intr: intr, status: unknown}
	if intr != nil && w.UseInterrupts {
		if err := w.register(it); err != nil {
			return err
		}
	}
	if _, err := it.changed(); err != nil {
		log.Debug("%s%d: presence: %v", kind, id, err)
	}
	w.items = append(w.items, it)
	w.byKey[k] = it
	return nil
}

// Load watches every transceiver slot of inv.
func (w *Watcher) Load(inv inventory.Reader) error {
	slots := inv.XcvrSlots()
	for _, id := range inventory.SortedKeys(slots) {
		s := slots[id]
		if err := w.Add(string(s.Kind()), id, s, s.InterruptLine()); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) remove(it *item) {
	for i, x := range w.items {
		if x == it {
			w.items = append(w.items[:i], w.items[i+1:]...)
			break
		}
	}
	w.unregister(it)
	delete(w.byKey, itemKey{it.kind, it.id})
}

func (w *Watcher) register(it *item) error {
	if w.epfd < 0 {
		fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
		if err != nil {
			return fmt.Errorf("epoll: %w", err)
		}
		w.epfd = fd
	}
	if err := it.intr.Clear(); err != nil {
		log.Debug("%s: clear: %v", it.intr.Name(), err)
	}
	fd, err := it.open()
	if err != nil {
		return err
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err = unix.EpollCtl(w.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		it.close()
		return fmt.Errorf("%s: epoll add: %w", it.intr.File(), err)
	}
	w.byFd[fd] = it
	return nil
}

func (w *Watcher) unregister(it *item) {
	if it.f == nil {
		return
	}
	fd := int(it.f.Fd())
	if w.epfd >= 0 {
		unix.EpollCtl(w.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	delete(w.byFd, fd)
	it.close()
}

// Poll checks every watched item once and returns the transitions seen
// since the previous check. Items that fail to read are skipped.
func (w *Watcher) Poll() []Event {
	var events []Event
	for _, it := range w.items {
		if ev, ok := w.check(it); ok {
			events = append(events, ev)
		}
	}
	return events
}

func (w *Watcher) check(it *item) (Event, bool) {
	changed, err := it.changed()
	if err != nil {
		log.Debug("%s%d: presence: %v", it.kind, it.id, err)
		return Event{}, false
	}
	if !changed {
		return Event{}, false
	}
	return Event{Kind: it.kind, Slot: it.id, Status: it.status}, true
}

// Wait blocks until at least one transition is seen or timeout elapses;
// a zero timeout waits forever.
func (w *Watcher) Wait(timeout time.Duration) []Event {
	defer w.teardown()
	block := timeout == 0
	interval := w.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for block || timeout > 0 {
		begin := wait.Now()
		d := interval
		if !block && timeout < d {
			d = timeout
		}
		events := w.epoll(d)
		events = append(events, w.Poll()...)
		if len(events) > 0 {
			return dedup(events)
		}
		timeout -= wait.Now().Sub(begin)
	}
	return nil
}

// epoll waits up to d for interrupts, or simply sleeps without any.
func (w *Watcher) epoll(d time.Duration) []Event {
	if w.epfd < 0 || len(w.byFd) == 0 {
		wait.Sleep(d)
		return nil
	}
	buf := make([]unix.EpollEvent, len(w.byFd))
	n, err := unix.EpollWait(w.epfd, buf, int(d/time.Millisecond))
	if err != nil {
		if err != unix.EINTR {
			log.Debug("epoll wait: %v", err)
		}
		return nil
	}
	var events []Event
	for _, e := range buf[:n] {
		it, found := w.byFd[int(e.Fd)]
		if !found {
			continue
		}
		if ev, ok := w.check(it); ok {
			events = append(events, ev)
		}
		if err := it.intr.Clear(); err != nil {
			log.Debug("%s: clear: %v", it.intr.Name(), err)
		}
		// sysfs attributes only signal once per open
		w.unregister(it)
		if err := w.register(it); err != nil {
			log.Warning("%s: %v", it.intr.Name(), err)
		}
	}
	return events
}

func (w *Watcher) teardown() {
	if w.Preserve {
		return
	}
	w.Close()
}

// Close releases the interrupt files and forgets every item.
func (w *Watcher) Close() error {
	for _, it := range w.items {
		it.close()
	}
	w.items = nil
	w.byKey = make(map[itemKey]*item)
	w.byFd = make(map[int]*item)
	if w.epfd >= 0 {
		unix.Close(w.epfd)
		w.epfd = -1
	}
	return nil
}

// dedup keeps the last event of each slot.
func dedup(events []Event) []Event {
	last := make(map[itemKey]int)
	var out []Event
	for _, e := range events {
		k := itemKey{e.Kind, e.Slot}
		if i, found := last[k]; found {
			out[i] = e
			continue
		}
		last[k] = len(out)
		out = append(out, e)
	}
	return out
}

// Changes groups events by kind then slot id with the numeric status, the
// shape platform daemons report change events in.
func Changes(kinds []string, events []Event) map[string]map[string]string {
	m := make(map[string]map[string]string)
	for _, k := range kinds {
		m[k] = make(map[string]string)
	}
	for _, e := range events {
		if m[e.Kind] == nil {
			m[e.Kind] = make(map[string]string)
		}
		m[e.Kind][strconv.Itoa(e.Slot)] = strconv.Itoa(int(e.Status))
	}
	return m
}

// Kinds lists the event kinds present in events, sorted.
func Kinds(events []Event) []string {
	seen := make(map[string]bool)
	var l []string
	for _, e := range events {
		if !seen[e.Kind] {
			seen[e.Kind] = true
			l = append(l, e.Kind)
		}
	}
	sort.Strings(l)
	return l
}
