// Package ownership replicates part ownership, part poses and the shared
// task index between participants. One participant is the authority: it
// grants ownership, owns the canonical task index and periodically
// broadcasts a snapshot. Other participants stream the poses of the parts
// they own back to it.
package ownership

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AaronLay10/AssemblyEngine/internal/geom"
	"github.com/AaronLay10/AssemblyEngine/internal/interaction"
	"github.com/AaronLay10/AssemblyEngine/internal/parttree"
	"github.com/AaronLay10/AssemblyEngine/internal/scene"
	"github.com/AaronLay10/AssemblyEngine/internal/tasks"
)

// Unowned marks a node nobody has claimed.
const Unowned = -1

const (
	DefaultSnapshotInterval = 100 * time.Millisecond
	DefaultDeltaInterval    = 50 * time.Millisecond
	DefaultClaimTimeout     = time.Second

	inboxSize = 256
	noAdvance = -2
)

// Config configures a Participant.
type Config struct {
	ID        int
	Authority bool
	// SnapshotInterval is how often the authority broadcasts a snapshot.
	SnapshotInterval time.Duration
	// DeltaInterval is how often a peer sends the poses it owns.
	DeltaInterval time.Duration
	// ClaimTimeout bounds how long an unanswered claim shields the node
	// from snapshot poses.
	ClaimTimeout time.Duration
}

// Hooks are optional notifications, called on the tick goroutine.
type Hooks struct {
	Claimed         func(node int)
	Granted         func(node, owner int)
	SnapshotApplied func(taskIndex int)
	Advanced        func(from int)
	Reset           func()
	Dropped         func(m Message, reason string)
}

// Participant is one member of a shared session.
type Participant struct {
	cfg   Config
	ctrl  *interaction.Controller
	seq   *tasks.Sequencer
	tr    Transport
	hooks Hooks
	run   string

	owners []int
	// pending maps claimed nodes awaiting a grant to the claim age.
	pending map[int]time.Duration

	// authority counters
	epoch   uint64
	sendSeq uint64

	// last applied authority state
	lastRun   string
	lastSeq   uint64
	lastEpoch uint64

	sinceSnapshot time.Duration
	sinceDelta    time.Duration

	// advanceFrom is the task index of an unanswered advance request, or
	// noAdvance. Peers repeat it until a snapshot moves past it.
	advanceFrom  int
	sinceAdvance time.Duration

	inbox chan Message
}

// New creates a participant over the controller's tree and subscribes to tr.
// The sequencer's finished notifications are turned into advance requests.
func New(cfg Config, ctrl *interaction.Controller, seq *tasks.Sequencer, tr Transport, hooks Hooks) (*Participant, error) {
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = DefaultSnapshotInterval
	}
	if cfg.DeltaInterval <= 0 {
		cfg.DeltaInterval = DefaultDeltaInterval
	}
	if cfg.ClaimTimeout <= 0 {
		cfg.ClaimTimeout = DefaultClaimTimeout
	}
	p := &Participant{
		cfg:     cfg,
		ctrl:    ctrl,
		seq:     seq,
		tr:      tr,
		hooks:   hooks,
		run:     uuid.NewString(),
		owners:  make([]int, ctrl.Tree().Len()),
		pending: make(map[int]time.Duration),
		inbox:   make(chan Message, inboxSize),

		advanceFrom: noAdvance,
	}
	for i := range p.owners {
		p.owners[i] = Unowned
	}
	if err := tr.Subscribe(p.enqueue); err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	seq.OnTaskFinished(func(tasks.Task) { p.RequestAdvance() })
	return p, nil
}

// ID returns the participant id.
func (p *Participant) ID() int {
	return p.cfg.ID
}

// IsAuthority reports whether this participant is the authority.
func (p *Participant) IsAuthority() bool {
	return p.cfg.Authority
}

// Owner returns the owner of node i, or Unowned.
func (p *Participant) Owner(i int) int {
	if i < 0 || i >= len(p.owners) {
		return Unowned
	}
	return p.owners[i]
}

// Owners returns a copy of the owner record.
func (p *Participant) Owners() []int {
	return append([]int(nil), p.owners...)
}

// Owned returns the number of nodes owned by this participant.
func (p *Participant) Owned() int {
	n := 0
	for _, o := range p.owners {
		if o == p.cfg.ID {
			n++
		}
	}
	return n
}

// Pending reports whether a claim on node i awaits a grant.
func (p *Participant) Pending(i int) bool {
	_, ok := p.pending[i]
	return ok
}

// enqueue runs on the transport goroutine. Messages that do not fit are
// dropped; the next snapshot or delta makes up for them.
func (p *Participant) enqueue(m Message) {
	select {
	case p.inbox <- m:
	default:
	}
}

// Claim asks for ownership of n. The authority grants its own claims at once.
func (p *Participant) Claim(n *parttree.Node) {
	if n == nil || n.Index >= len(p.owners) || p.owners[n.Index] == p.cfg.ID {
		return
	}
	if p.cfg.Authority {
		p.grant(n.Index, p.cfg.ID)
		return
	}
	p.pending[n.Index] = 0
	p.send(Message{Kind: KindClaim, Sender: p.cfg.ID, Claim: &Claim{Node: n.Index}})
	if p.hooks.Claimed != nil {
		p.hooks.Claimed(n.Index)
	}
}

// ClaimSelected claims every selected node.
func (p *Participant) ClaimSelected() {
	for _, n := range p.ctrl.Selected() {
		p.Claim(n)
	}
}

// RequestAdvance asks the authority to move past the current task. The
// authority advances directly; peers repeat the request every
// DeltaInterval until the shared index moves.
func (p *Participant) RequestAdvance() {
	from := p.seq.Index()
	if p.cfg.Authority {
		p.advance(from)
		return
	}
	p.advanceFrom = from
	p.sinceAdvance = 0
	p.sendAdvance()
}

// AdvancePending reports whether an advance request awaits the authority.
func (p *Participant) AdvancePending() bool {
	return p.advanceFrom != noAdvance
}

func (p *Participant) sendAdvance() {
	p.send(Message{Kind: KindAdvanceRequest, Sender: p.cfg.ID, Advance: &Advance{From: p.advanceFrom}})
}

// retryAdvance repeats an unanswered advance request. The authority ignores
// requests whose From is no longer current, so repeats are harmless.
func (p *Participant) retryAdvance(dt time.Duration) {
	if p.advanceFrom == noAdvance {
		return
	}
	if t := p.seq.Current(); p.seq.Index() != p.advanceFrom || t == nil || !t.TaskInfo().Finished {
		p.advanceFrom = noAdvance
		return
	}
	p.sinceAdvance += dt
	if p.sinceAdvance >= p.cfg.DeltaInterval {
		p.sinceAdvance = 0
		p.sendAdvance()
	}
}

// RequestReset resets the session on every participant through the authority.
func (p *Participant) RequestReset() {
	if p.cfg.Authority {
		p.relayReset()
		return
	}
	p.send(Message{Kind: KindResetRequest, Sender: p.cfg.ID})
}

// Tick handles queued messages, refreshes task gating and sends whatever
// is due. It must run on the same goroutine as the sequencer.
func (p *Participant) Tick(dt time.Duration) {
	p.drain()
	for i, age := range p.pending {
		if age += dt; age >= p.cfg.ClaimTimeout {
			delete(p.pending, i)
		} else {
			p.pending[i] = age
		}
	}
	p.gateTasks()

	if p.cfg.Authority {
		p.sinceSnapshot += dt
		if p.sinceSnapshot >= p.cfg.SnapshotInterval {
			p.sinceSnapshot = 0
			p.broadcast(Message{Kind: KindSnapshot, Sender: p.cfg.ID, Snapshot: p.snapshot()})
		}
		return
	}
	p.retryAdvance(dt)
	p.sinceDelta += dt
	if p.sinceDelta >= p.cfg.DeltaInterval {
		p.sinceDelta = 0
		if d := p.delta(); d != nil {
			p.send(Message{Kind: KindDelta, Sender: p.cfg.ID, Delta: d})
		}
	}
}

func (p *Participant) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.handle(m)
		default:
			return
		}
	}
}

func (p *Participant) handle(m Message) {
	if err := m.validate(); err != nil {
		p.drop(m, err.Error())
		return
	}
	switch m.Kind {
	case KindSnapshot:
		if !p.cfg.Authority {
			p.applySnapshot(m.Snapshot)
		}
	case KindDelta:
		if p.cfg.Authority {
			p.applyDelta(m.Sender, m.Delta)
		}
	case KindClaim:
		if p.cfg.Authority {
			p.grant(m.Claim.Node, m.Sender)
		}
	case KindGrant:
		if !p.cfg.Authority {
			p.applyGrant(m.Grant)
		}
	case KindAdvanceRequest:
		if p.cfg.Authority {
			p.advance(m.Advance.From)
		}
	case KindResetRequest:
		if p.cfg.Authority {
			p.relayReset()
		}
	case KindReset:
		if !p.cfg.Authority {
			p.resetLocal()
		}
	}
}

// gateTasks enables exactly the tasks whose node this participant owns.
func (p *Participant) gateTasks() {
	tree := p.ctrl.Tree()
	for _, t := range p.seq.Tasks() {
		info := t.TaskInfo()
		n := tree.Lookup(info.Object)
		info.Enabled = n != nil && p.Owner(n.Index) == p.cfg.ID
	}
}

func (p *Participant) grant(node, owner int) {
	if node < 0 || node >= len(p.owners) {
		p.drop(Message{Kind: KindClaim, Sender: owner}, "node out of range")
		return
	}
	p.owners[node] = owner
	p.epoch++
	p.gateTasks()
	p.broadcast(Message{
		Kind:   KindGrant,
		Sender: p.cfg.ID,
		Grant:  &Grant{Run: p.run, Epoch: p.epoch, Node: node, Owner: owner},
	})
	if p.hooks.Granted != nil {
		p.hooks.Granted(node, owner)
	}
}

func (p *Participant) applyGrant(g *Grant) {
	if g.Node < 0 || g.Node >= len(p.owners) {
		return
	}
	if g.Run == p.lastRun && g.Epoch < p.lastEpoch {
		p.drop(Message{Kind: KindGrant, Grant: g}, "stale grant")
		return
	}
	p.adoptRun(g.Run)
	p.lastEpoch = g.Epoch
	p.owners[g.Node] = g.Owner
	delete(p.pending, g.Node)
	p.gateTasks()
	if p.hooks.Granted != nil {
		p.hooks.Granted(g.Node, g.Owner)
	}
}

// adoptRun forgets the counters of a previous authority process.
func (p *Participant) adoptRun(run string) {
	if run != p.lastRun {
		p.lastRun = run
		p.lastSeq = 0
		p.lastEpoch = 0
	}
}

func (p *Participant) applySnapshot(s *Snapshot) {
	tree := p.ctrl.Tree()
	if len(s.Owners) != tree.Len() {
		p.drop(Message{Kind: KindSnapshot, Snapshot: s}, "node count mismatch")
		return
	}
	if s.Run == p.lastRun && s.Seq <= p.lastSeq {
		p.drop(Message{Kind: KindSnapshot, Snapshot: s}, "stale snapshot")
		return
	}
	p.adoptRun(s.Run)
	p.lastSeq = s.Seq

	if s.Epoch >= p.lastEpoch {
		p.lastEpoch = s.Epoch
		copy(p.owners, s.Owners)
		for i := range p.pending {
			if p.owners[i] == p.cfg.ID {
				delete(p.pending, i)
			}
		}
		p.gateTasks()
	}

	frame := cageFrame(tree)
	for i, n := range tree.Nodes() {
		if p.owners[i] == p.cfg.ID || p.Pending(i) {
			continue
		}
		placeHeld(n, frame.TransformPose(s.Poses[i]))
	}

	if s.TaskIndex != p.seq.Index() {
		p.seq.SetIndex(s.TaskIndex)
	}
	if p.hooks.SnapshotApplied != nil {
		p.hooks.SnapshotApplied(s.TaskIndex)
	}
}

func (p *Participant) applyDelta(sender int, d *Delta) {
	tree := p.ctrl.Tree()
	frame := cageFrame(tree)
	for k, i := range d.Nodes {
		if p.Owner(i) != sender {
			continue
		}
		placeHeld(tree.Node(i), frame.TransformPose(d.Poses[k]))
	}
}

func (p *Participant) advance(from int) {
	if from != p.seq.Index() {
		return
	}
	p.seq.Advance()
	if p.hooks.Advanced != nil {
		p.hooks.Advanced(from)
	}
}

func (p *Participant) relayReset() {
	p.broadcast(Message{Kind: KindReset, Sender: p.cfg.ID})
	p.resetLocal()
}

func (p *Participant) resetLocal() {
	p.advanceFrom = noAdvance
	p.seq.Reset()
	if p.hooks.Reset != nil {
		p.hooks.Reset()
	}
}

func (p *Participant) snapshot() *Snapshot {
	p.sendSeq++
	tree := p.ctrl.Tree()
	frame := cageFrame(tree)
	s := &Snapshot{
		Run:       p.run,
		Seq:       p.sendSeq,
		Epoch:     p.epoch,
		TaskIndex: p.seq.Index(),
		Owners:    p.Owners(),
		Poses:     make([]geom.Pose, tree.Len()),
	}
	for i, n := range tree.Nodes() {
		s.Poses[i] = relativePose(frame, n)
	}
	return s
}

func (p *Participant) delta() *Delta {
	tree := p.ctrl.Tree()
	frame := cageFrame(tree)
	var d Delta
	for i, o := range p.owners {
		if o != p.cfg.ID {
			continue
		}
		d.Nodes = append(d.Nodes, i)
		d.Poses = append(d.Poses, relativePose(frame, tree.Node(i)))
	}
	if len(d.Nodes) == 0 {
		return nil
	}
	return &d
}

func (p *Participant) send(m Message) {
	if err := p.tr.SendToAuthority(m); err != nil {
		p.drop(m, err.Error())
	}
}

func (p *Participant) broadcast(m Message) {
	if err := p.tr.Broadcast(m); err != nil {
		p.drop(m, err.Error())
	}
}

func (p *Participant) drop(m Message, reason string) {
	if p.hooks.Dropped != nil {
		p.hooks.Dropped(m, reason)
	}
}

func cageFrame(tree *parttree.Tree) geom.Frame {
	if tree.Cage == nil {
		return geom.IdentityFrame
	}
	return tree.Cage.Frame()
}

// relativePose expresses n's current pose in the cage frame.
func relativePose(cage geom.Frame, n *parttree.Node) geom.Pose {
	if !n.Resolved() {
		return n.Baseline
	}
	return geom.Pose{
		Position: cage.InverseTransformPoint(n.Object.Position()),
		Rotation: cage.InverseTransformRotation(n.Object.Rotation()),
	}
}

// placeHeld moves n to a world pose without disturbing its children.
func placeHeld(n *parttree.Node, pose geom.Pose) {
	if !n.Resolved() {
		return
	}
	held := scene.HoldChildren(n.Object)
	n.Object.SetPose(pose)
	held.Restore()
}
