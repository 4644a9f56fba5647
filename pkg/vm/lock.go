package vm

// Lock is a named sync lock shared by the instances of one Patch. Waiters
// are served in FIFO order and the lock is handed directly to the next
// waiter on release.
type Lock struct {
	Name   string
	holder *Instance
	queue  []*Instance
}

// Holder returns the instance holding the lock, or nil.
func (l *Lock) Holder() *Instance {
	return l.holder
}

// Waiting returns the number of queued instances.
func (l *Lock) Waiting() int {
	return len(l.queue)
}

// acquire takes the lock or queues inst behind the current holder.
func (l *Lock) acquire(inst *Instance) bool {
	if l.holder == nil {
		l.holder = inst
		return true
	}
	l.queue = append(l.queue, inst)
	return false
}

// release gives the lock to the first waiter and returns it, or nil.
func (l *Lock) release(inst *Instance) *Instance {
	if l.holder != inst {
		return nil
	}
	l.holder = nil
	if len(l.queue) == 0 {
		return nil
	}
	next := l.queue[0]
	copy(l.queue, l.queue[1:])
	l.queue[len(l.queue)-1] = nil
	l.queue = l.queue[:len(l.queue)-1]
	l.holder = next
	return next
}

// remove drops a waiter that was cancelled while queued.
func (l *Lock) remove(inst *Instance) {
	for i, w := range l.queue {
		if w == inst {
			copy(l.queue[i:], l.queue[i+1:])
			l.queue[len(l.queue)-1] = nil
			l.queue = l.queue[:len(l.queue)-1]
			return
		}
	}
}
