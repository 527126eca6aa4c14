package dom

import "golang.org/x/net/html"

// MutationType is the kind of change a MutationRecord describes.
type MutationType int

const (
	// ChildList records nodes added to or removed from Target.
	ChildList MutationType = iota

	// CharacterData records a change to the text of Target.
	CharacterData
)

// String returns the DOM name of the mutation type.
func (t MutationType) String() string {
	switch t {
	case ChildList:
		return "childList"
	case CharacterData:
		return "characterData"
	default:
		return "unknown"
	}
}

// MutationRecord describes one change to the tree.
type MutationRecord struct {
	Type         MutationType
	Target       *html.Node
	AddedNodes   []*html.Node
	RemovedNodes []*html.Node
}

// ObserveOptions selects which records an observation receives.
type ObserveOptions struct {
	ChildList     bool
	CharacterData bool

	// Subtree extends the observation to all descendants of the target.
	// It stops at shadow roots, which must be observed separately.
	Subtree bool
}

// MutationCallback receives a batch of records.
type MutationCallback func(records []MutationRecord, o *Observer)

type registration struct {
	target *html.Node
	opts   ObserveOptions
}

// Observer receives mutation records for the nodes it observes.
type Observer struct {
	doc       *Document
	callback  MutationCallback
	regs      []registration
	queue     []MutationRecord
	scheduled bool
}

// NewObserver creates an observer bound to d. It receives nothing until
// Observe is called.
func (d *Document) NewObserver(callback MutationCallback) *Observer {
	return &Observer{doc: d, callback: callback}
}

// Observe starts (or updates) observation of target.
func (o *Observer) Observe(target *html.Node, opts ObserveOptions) {
	for i := range o.regs {
		if o.regs[i].target == target {
			o.regs[i].opts = opts
			return
		}
	}
	if len(o.regs) == 0 {
		o.doc.observers = append(o.doc.observers, o)
	}
	o.regs = append(o.regs, registration{target: target, opts: opts})
}

// Disconnect stops all observation and drops pending records.
func (o *Observer) Disconnect() {
	o.regs = nil
	o.queue = nil
	observers := o.doc.observers[:0]
	for _, other := range o.doc.observers {
		if other != o {
			observers = append(observers, other)
		}
	}
	o.doc.observers = observers
}

// TakeRecords returns and clears the pending records.
func (o *Observer) TakeRecords() []MutationRecord {
	records := o.queue
	o.queue = nil
	return records
}

// Flush delivers pending records to the callback synchronously.
func (o *Observer) Flush() {
	o.scheduled = false
	records := o.TakeRecords()
	if len(records) > 0 && o.callback != nil {
		o.callback(records, o)
	}
}

func (o *Observer) wants(rec MutationRecord) bool {
	for _, reg := range o.regs {
		switch rec.Type {
		case ChildList:
			if !reg.opts.ChildList {
				continue
			}
		case CharacterData:
			if !reg.opts.CharacterData {
				continue
			}
		}
		if rec.Target == reg.target {
			return true
		}
		if reg.opts.Subtree && isInclusiveAncestor(reg.target, rec.Target) {
			return true
		}
	}
	return false
}

func (d *Document) queueRecord(rec MutationRecord) {
	for _, o := range d.observers {
		if !o.wants(rec) {
			continue
		}
		o.queue = append(o.queue, rec)
		if o.scheduled || d.scheduler == nil {
			continue
		}
		o.scheduled = true
		obs := o
		if !d.scheduler.Post(obs.Flush) {
			// Loop is gone; keep the records for TakeRecords.
			obs.scheduled = false
		}
	}
}
