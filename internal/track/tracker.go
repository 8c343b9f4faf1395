package track

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"questline.gg/internal/protocol"
	"questline.gg/internal/quest"
)

// ContextProvider hands out the authoritative player capability for a
// player id. Implementations create state lazily on first use.
type ContextProvider interface {
	PlayerContext(playerID string) quest.PlayerContext
}

// AuditSink receives every status transition the tracker performs.
type AuditSink interface {
	RecordTransition(ev TransitionEvent)
}

type TransitionEvent struct {
	At       time.Time    `json:"at"`
	PlayerID string       `json:"player_id"`
	QuestID  string       `json:"quest_id"`
	From     quest.Status `json:"from"`
	To       quest.Status `json:"to"`
	Reason   string       `json:"reason"`
}

type Config struct {
	WorldID       string
	TickInterval  time.Duration // objective re-evaluation cadence, ~1 Hz
	FlushInterval time.Duration // save checkpoint cadence
	ProgressPath  string        // empty disables durable flushes
	SessionQueue  int           // per-session outbound buffer
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 30 * time.Second
	}
	if c.SessionQueue <= 0 {
		c.SessionQueue = 64
	}
}

type JoinRequest struct {
	PlayerID   string
	PlayerName string
	Out        chan []byte
	Resp       chan JoinResponse
}

type JoinResponse struct {
	SessionID string
	Welcome   protocol.WelcomeMsg
}

// Envelope is one raw inbound frame attributed to a session.
type Envelope struct {
	SessionID string
	Raw       []byte
}

type session struct {
	id       string
	playerID string
	out      chan []byte

	// lastPushed is the debounce record: the status this session last saw
	// per quest id. Pushes that would repeat it are suppressed.
	lastPushed map[string]quest.Status
}

type adminKind int

const (
	adminReset adminKind = iota + 1
	adminForceComplete
	adminReject
	adminReport
)

type adminReq struct {
	kind     adminKind
	playerID string
	questID  string
	resp     chan adminResp
}

type adminResp struct {
	ok     bool
	code   string
	report *PlayerReport
}

type PlayerReport struct {
	PlayerID string        `json:"player_id"`
	Quests   []QuestReport `json:"quests"`
}

type QuestReport struct {
	QuestID    string            `json:"quest_id"`
	Status     quest.Status      `json:"status"`
	Ready      bool              `json:"ready"`
	Objectives []ObjectiveReport `json:"objectives"`
}

type ObjectiveReport struct {
	Key      string `json:"key"`
	Kind     string `json:"kind"`
	Target   string `json:"target"`
	Stored   int    `json:"stored"`
	Required int    `json:"required"`
}

// Tracker is the authoritative quest state machine. It is an actor: Run
// owns all transitions on a single goroutine, so redeem and tick for the
// same player are naturally serialized.
type Tracker struct {
	cfg     Config
	catalog *quest.Catalog
	eval    *quest.Evaluator
	store   *Store
	players ContextProvider
	logger  *log.Logger

	audit    AuditSink
	commands func(playerID, command string)

	sessions map[string]*session

	inbox  chan Envelope
	join   chan JoinRequest
	leave  chan string
	admin  chan adminReq
	reload chan *quest.Catalog
	stop   chan struct{}
}

func New(cfg Config, cat *quest.Catalog, store *Store, players ContextProvider, logger *log.Logger) *Tracker {
	cfg.applyDefaults()
	return &Tracker{
		cfg:      cfg,
		catalog:  cat,
		eval:     quest.NewEvaluator(cat),
		store:    store,
		players:  players,
		logger:   logger,
		sessions: map[string]*session{},
		inbox:    make(chan Envelope, 256),
		join:     make(chan JoinRequest, 16),
		leave:    make(chan string, 16),
		admin:    make(chan adminReq, 16),
		reload:   make(chan *quest.Catalog, 1),
		stop:     make(chan struct{}),
	}
}

func (t *Tracker) SetAuditSink(a AuditSink) { t.audit = a }

// SetCommandRunner installs the executor for command rewards. Unset,
// commands are logged and dropped.
func (t *Tracker) SetCommandRunner(fn func(playerID, command string)) { t.commands = fn }

func (t *Tracker) Inbox() chan<- Envelope        { return t.inbox }
func (t *Tracker) Join() chan<- JoinRequest      { return t.join }
func (t *Tracker) Leave() chan<- string          { return t.leave }
func (t *Tracker) Reload() chan<- *quest.Catalog { return t.reload }
func (t *Tracker) Stop()                         { close(t.stop) }

func (t *Tracker) Run(ctx context.Context) error {
	tick := time.NewTicker(t.cfg.TickInterval)
	defer tick.Stop()
	flush := time.NewTicker(t.cfg.FlushInterval)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			t.flushStore()
			return ctx.Err()
		case <-t.stop:
			t.flushStore()
			return nil
		case req := <-t.join:
			t.handleJoin(req)
		case id := <-t.leave:
			t.handleLeave(id)
		case env := <-t.inbox:
			t.handleEnvelope(env)
		case req := <-t.admin:
			t.handleAdmin(req)
		case cat := <-t.reload:
			t.catalog = cat
			t.eval = quest.NewEvaluator(cat)
			t.logger.Printf("catalog reloaded: %d quests digest=%s", cat.Len(), cat.Digest())
		case <-tick.C:
			t.tickAll()
		case <-flush.C:
			t.flushStore()
		}
	}
}

func (t *Tracker) handleJoin(req JoinRequest) {
	s := &session{
		id:         uuid.NewString(),
		playerID:   req.PlayerID,
		out:        req.Out,
		lastPushed: map[string]quest.Status{},
	}
	t.sessions[s.id] = s

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       s.id,
		PlayerID:        req.PlayerID,
		WorldID:         t.cfg.WorldID,
		TickIntervalMs:  int(t.cfg.TickInterval / time.Millisecond),
		CatalogDigest:   t.catalog.Digest(),
		QuestCount:      t.catalog.Len(),
	}
	req.Resp <- JoinResponse{SessionID: s.id, Welcome: welcome}

	// Initial snapshot so a fresh mirror converges immediately. The writer
	// pump drains out after WELCOME, keeping channel order.
	t.snapshotTo(s)
	t.logger.Printf("session %s joined player=%s name=%q", s.id, req.PlayerID, req.PlayerName)
}

func (t *Tracker) handleLeave(sessionID string) {
	s, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	delete(t.sessions, sessionID)
	t.logger.Printf("session %s left player=%s", s.id, s.playerID)
	// Disconnect doubles as a save checkpoint.
	t.flushStore()
}

func (t *Tracker) handleEnvelope(env Envelope) {
	s, ok := t.sessions[env.SessionID]
	if !ok {
		return
	}
	base, err := protocol.DecodeBase(env.Raw)
	if err != nil {
		t.refuse(s, "", protocol.ErrProtoBadRequest, "malformed frame")
		return
	}
	if base.ProtocolVersion != protocol.Version {
		t.refuse(s, base.Type, protocol.ErrProtoVersion, "unsupported protocol version")
		return
	}

	switch base.Type {
	case protocol.TypeRedeemRequest:
		var req protocol.RedeemRequestMsg
		if err := json.Unmarshal(env.Raw, &req); err != nil || req.QuestID == "" {
			t.refuse(s, base.Type, protocol.ErrProtoBadRequest, "bad redeem request")
			return
		}
		q, ok := t.catalog.ByID(req.QuestID)
		if !ok {
			// Reference error: no state change, no sync, no reply.
			t.logger.Printf("redeem for unknown quest %q from %s", req.QuestID, s.playerID)
			return
		}
		// A failed redeem intentionally emits nothing; the mirror simply
		// never sees a transition.
		t.redeem(s.playerID, q, "redeem_request")
	case protocol.TypeSyncRequest:
		t.snapshotTo(s)
	default:
		t.refuse(s, base.Type, protocol.ErrProtoBadRequest, "unroutable type")
	}
}

func (t *Tracker) handleAdmin(req adminReq) {
	switch req.kind {
	case adminReset:
		t.resetPlayer(req.playerID)
		req.resp <- adminResp{ok: true}
	case adminForceComplete:
		q, ok := t.catalog.ByID(req.questID)
		if !ok {
			req.resp <- adminResp{code: protocol.ErrUnknownQuest}
			return
		}
		// Same ready/redeem path as a client request; no bypass.
		t.refreshObjectiveProgress(req.playerID, q)
		if t.store.Status(req.playerID, q.ID).Terminal() {
			req.resp <- adminResp{code: protocol.ErrTerminal}
			return
		}
		if !t.redeem(req.playerID, q, "force_complete") {
			req.resp <- adminResp{code: protocol.ErrNotReady}
			return
		}
		req.resp <- adminResp{ok: true}
	case adminReject:
		q, ok := t.catalog.ByID(req.questID)
		if !ok {
			req.resp <- adminResp{code: protocol.ErrUnknownQuest}
			return
		}
		if !t.reject(req.playerID, q.ID) {
			req.resp <- adminResp{code: protocol.ErrTerminal}
			return
		}
		req.resp <- adminResp{ok: true}
	case adminReport:
		req.resp <- adminResp{ok: true, report: t.buildReport(req.playerID)}
	}
}

// ResetPlayer clears all records for the player. Safe from any goroutine.
func (t *Tracker) ResetPlayer(ctx context.Context, playerID string) error {
	_, err := t.adminCall(ctx, adminReq{kind: adminReset, playerID: playerID})
	return err
}

// ForceComplete drives the quest through refresh + redeem. Returns false
// with a protocol error code when the quest is unknown, terminal, or not
// ready.
func (t *Tracker) ForceComplete(ctx context.Context, playerID, questID string) (bool, string, error) {
	resp, err := t.adminCall(ctx, adminReq{kind: adminForceComplete, playerID: playerID, questID: questID})
	if err != nil {
		return false, "", err
	}
	return resp.ok, resp.code, nil
}

// RejectQuest marks the quest rejected with no reward.
func (t *Tracker) RejectQuest(ctx context.Context, playerID, questID string) (bool, string, error) {
	resp, err := t.adminCall(ctx, adminReq{kind: adminReject, playerID: playerID, questID: questID})
	if err != nil {
		return false, "", err
	}
	return resp.ok, resp.code, nil
}

// Report returns the player's stored progress and statuses.
func (t *Tracker) Report(ctx context.Context, playerID string) (*PlayerReport, error) {
	resp, err := t.adminCall(ctx, adminReq{kind: adminReport, playerID: playerID})
	if err != nil {
		return nil, err
	}
	return resp.report, nil
}

func (t *Tracker) adminCall(ctx context.Context, req adminReq) (adminResp, error) {
	req.resp = make(chan adminResp, 1)
	select {
	case t.admin <- req:
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
	select {
	case resp := <-req.resp:
		return resp, nil
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
}

// --- state machine core (tracker goroutine only) ---

// refreshObjectiveProgress evaluates every completion objective and ratchets
// the stored value. It never touches QuestStatus.
func (t *Tracker) refreshObjectiveProgress(playerID string, q *quest.Quest) {
	pc := t.players.PlayerContext(playerID)
	for _, obj := range q.Completion {
		live, _ := t.eval.Evaluate(obj, pc)
		t.store.RecordProgress(playerID, quest.ObjectiveKey(q.ID, obj.ID), live, obj.Count)
	}
}

// isReady checks stored (banked) progress, never live counts, plus
// dependency gating: every dependency must be redeemed. Unmet dependencies
// only gate offering and redemption; progress accumulates regardless.
func (t *Tracker) isReady(playerID string, q *quest.Quest) bool {
	for _, obj := range q.Completion {
		if t.store.Progress(playerID, quest.ObjectiveKey(q.ID, obj.ID)) < obj.Count {
			return false
		}
	}
	for _, dep := range q.Deps {
		if t.store.Status(playerID, dep) != quest.StatusRedeemed {
			return false
		}
	}
	return true
}

// redeem grants the reward at most once and moves the quest to REDEEMED.
// Any failure leaves status and reward untouched.
func (t *Tracker) redeem(playerID string, q *quest.Quest, reason string) bool {
	st := t.store.Status(playerID, q.ID)
	if st.Terminal() {
		return false
	}
	if !t.isReady(playerID, q) {
		return false
	}
	if r := q.Reward; !r.Empty() {
		pc := t.players.PlayerContext(playerID)
		if !pc.ServerAuthoritative() {
			// Grants come only from the authoritative side, never a mirror.
			t.logger.Printf("refusing reward grant from non-authoritative context: player=%s quest=%s", playerID, q.ID)
			return false
		}
		if r.Item != "" {
			count := r.Count
			if count <= 0 {
				count = 1
			}
			pc.GrantItem(r.Item, count)
		}
		for _, cmd := range r.Commands {
			if t.commands != nil {
				t.commands(playerID, cmd)
			} else {
				t.logger.Printf("reward command dropped (no runner): player=%s cmd=%q", playerID, cmd)
			}
		}
	}
	t.transition(playerID, q.ID, st, quest.StatusRedeemed, reason)
	return true
}

func (t *Tracker) reject(playerID, questID string) bool {
	st := t.store.Status(playerID, questID)
	if st.Terminal() {
		return false
	}
	t.transition(playerID, questID, st, quest.StatusRejected, "reject")
	return true
}

func (t *Tracker) transition(playerID, questID string, from, to quest.Status, reason string) {
	t.store.SetStatus(playerID, questID, to)
	if t.audit != nil {
		t.audit.RecordTransition(TransitionEvent{
			At:       time.Now().UTC(),
			PlayerID: playerID,
			QuestID:  questID,
			From:     from,
			To:       to,
			Reason:   reason,
		})
	}
	t.pushStatus(playerID, questID, to)
}

func (t *Tracker) resetPlayer(playerID string) {
	t.store.ResetPlayer(playerID)
	if t.audit != nil {
		t.audit.RecordTransition(TransitionEvent{
			At:       time.Now().UTC(),
			PlayerID: playerID,
			QuestID:  "*",
			From:     "",
			To:       quest.StatusIncomplete,
			Reason:   "reset",
		})
	}
	for _, q := range t.catalog.All() {
		t.pushStatus(playerID, q.ID, quest.StatusIncomplete)
	}
}

// tickAll re-evaluates every connected player's non-terminal quests and
// drives INCOMPLETE -> READY. Debounced: pushStatus suppresses repeats.
func (t *Tracker) tickAll() {
	seen := map[string]bool{}
	for _, s := range t.sessions {
		if seen[s.playerID] {
			continue
		}
		seen[s.playerID] = true
		t.tickPlayer(s.playerID)
	}
}

func (t *Tracker) tickPlayer(playerID string) {
	for _, q := range t.catalog.All() {
		st := t.store.Status(playerID, q.ID)
		if st.Terminal() {
			continue
		}
		t.refreshObjectiveProgress(playerID, q)
		if st == quest.StatusIncomplete && t.isReady(playerID, q) {
			t.transition(playerID, q.ID, st, quest.StatusReady, "tick")
		}
	}
}

// pushStatus sends STATUS_SYNC to all of a player's sessions, skipping any
// session that already saw this status for this quest.
func (t *Tracker) pushStatus(playerID, questID string, st quest.Status) {
	for _, s := range t.sessions {
		if s.playerID != playerID || s.lastPushed[questID] == st {
			continue
		}
		if t.send(s, protocol.StatusSyncMsg{
			Type:            protocol.TypeStatusSync,
			ProtocolVersion: protocol.Version,
			QuestID:         questID,
			Status:          string(st),
		}) {
			s.lastPushed[questID] = st
		}
	}
}

// snapshotTo pushes one STATUS_SYNC per catalog quest, unconditionally.
func (t *Tracker) snapshotTo(s *session) {
	for _, q := range t.catalog.All() {
		st := t.store.Status(s.playerID, q.ID)
		if t.send(s, protocol.StatusSyncMsg{
			Type:            protocol.TypeStatusSync,
			ProtocolVersion: protocol.Version,
			QuestID:         q.ID,
			Status:          string(st),
		}) {
			s.lastPushed[q.ID] = st
		}
	}
}

func (t *Tracker) refuse(s *session, ackFor, code, msg string) {
	t.send(s, protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		AckFor:          ackFor,
		Accepted:        false,
		Code:            code,
		Message:         msg,
	})
}

func (t *Tracker) send(s *session, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	select {
	case s.out <- b:
		return true
	default:
		t.logger.Printf("session %s outbound queue full, dropping frame", s.id)
		return false
	}
}

func (t *Tracker) buildReport(playerID string) *PlayerReport {
	rep := &PlayerReport{PlayerID: playerID}
	for _, q := range t.catalog.All() {
		qr := QuestReport{
			QuestID: q.ID,
			Status:  t.store.Status(playerID, q.ID),
			Ready:   t.isReady(playerID, q),
		}
		for _, obj := range q.Completion {
			key := quest.ObjectiveKey(q.ID, obj.ID)
			qr.Objectives = append(qr.Objectives, ObjectiveReport{
				Key:      key,
				Kind:     string(obj.Kind),
				Target:   obj.Target,
				Stored:   t.store.Progress(playerID, key),
				Required: obj.Count,
			})
		}
		rep.Quests = append(rep.Quests, qr)
	}
	return rep
}

func (t *Tracker) flushStore() {
	if t.cfg.ProgressPath == "" {
		return
	}
	if err := t.store.Flush(t.cfg.ProgressPath); err != nil {
		// Logged warning only; the in-memory store stays authoritative and
		// the dirty flag keeps the next checkpoint retrying.
		t.logger.Printf("WARN flush: %v", err)
	}
}
