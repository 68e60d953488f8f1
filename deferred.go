package helio

// DispatchL2 queues a low-priority task on the loop's deferred FIFO. The
// queue is drained once per loop iteration, after completion dispatch and
// before the fiber step, so deferred work never starves readiness handling.
// Loop thread only; cross-thread submissions go through Dispatch.
func (p *Proactor) DispatchL2(task Tasklet) {
	p.assertLoopThread("DispatchL2")
	p.l2.Add(task)
}

func (p *Proactor) runL2Tasks() {
	for p.l2.Length() > 0 {
		p.l2.Remove().(Tasklet)()
	}
}

// IdleTask is a callback run on iterations with no other work. It returns
// true while it still has work to do, which suppresses the spin/pause path
// for another iteration.
type IdleTask func() bool

type idleEntry struct {
	id   uint32
	task IdleTask
}

// AddOnIdleTask registers an idle task and returns its id. Loop thread only.
func (p *Proactor) AddOnIdleTask(task IdleTask) uint32 {
	p.assertLoopThread("AddOnIdleTask")
	p.nextIdleID++
	p.idleTasks = append(p.idleTasks, idleEntry{id: p.nextIdleID, task: task})
	return p.nextIdleID
}

// RemoveOnIdleTask unregisters a previously added idle task.
func (p *Proactor) RemoveOnIdleTask(id uint32) {
	p.assertLoopThread("RemoveOnIdleTask")
	for i := range p.idleTasks {
		if p.idleTasks[i].id == id {
			p.idleTasks = append(p.idleTasks[:i], p.idleTasks[i+1:]...)
			return
		}
	}
}

// runOnIdleTasks runs every idle task once and reports whether any of them
// still has pending work.
func (p *Proactor) runOnIdleTasks() bool {
	active := false
	for i := range p.idleTasks {
		if p.idleTasks[i].task() {
			active = true
		}
	}
	return active
}
