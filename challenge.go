/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Sticky daily challenge sessions
//
// Each challenge lives at /challenge/:id and is driven over /challenge/:id/ws.
// The server runs the game; the browser only draws views and forwards input.
//
// Features:
// - One hub goroutine per challenge; game code and timers only run there
// - First player to connect owns the challenge and is credited the check-in
// - Any other tab or phone on the same challenge id sees and controls it
// - Reconnecting clients get the current view replayed
// - Challenges auto-reaped after a configurable idle timeout
// - Random 8-char challenge IDs via crypto/rand, with server-side collision check
// - QR code to carry a challenge over to a phone for the photo

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/sticky/checkins"
	"github.com/Seednode/sticky/games"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	storeTimeout = 5 * time.Second
	sendBuffer   = 32

	checkInFailed = "Check-in failed, please try again"
)

// Messages coming from clients
type ClientMessage struct {
	Type string `json:"type"` // "input", "restart"
	games.Input
}

// SessionInfoMessage is sent immediately on connect.
type SessionInfoMessage struct {
	Type        string      `json:"type"` // "session_info"
	ChallengeID string      `json:"challenge_id"`
	IsOwner     bool        `json:"is_owner"`
	CheckedIn   bool        `json:"checked_in"`
	Phase       games.Phase `json:"phase"`
	Game        games.Kind  `json:"game,omitempty"`
	SeedHash    string      `json:"seed_hash,omitempty"`
	Nonce       uint64      `json:"nonce,omitempty"`
}

// ViewMessage carries whatever the active game last drew.
type ViewMessage struct {
	Type  string      `json:"type"` // "view"
	Phase games.Phase `json:"phase"`
	Game  games.Kind  `json:"game"`
	View  any         `json:"view"`
}

type ToastMessage struct {
	Type    string `json:"type"` // "toast"
	Message string `json:"message"`
	Level   string `json:"level"`
}

// SimpleMessage is for "clear" and "error". Retry tells the client a
// "restart" request will try again.
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Retry   bool   `json:"retry,omitempty"`
}

// CheckedInMessage is broadcast once the check-in is stored, and sent to
// anyone joining a challenge whose owner already checked in today.
type CheckedInMessage struct {
	Type    string            `json:"type"` // "checked_in"
	Summary *checkins.Summary `json:"summary"`
	Photo   string            `json:"photo,omitempty"`
	Groups  []string          `json:"groups_completed,omitempty"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type inputRequest struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id  string
	app *App

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	inputs   chan inputRequest
	timers   chan func()
	quit     chan struct{}
	stopOnce sync.Once
	// done is closed once run has returned.
	done chan struct{}

	mu         sync.RWMutex
	createdAt  time.Time
	lastActive time.Time

	// Everything below is owned by the run goroutine.
	ownerID   string
	manager   *games.Manager
	seeds     games.Seeds
	nonce     uint64
	lastView  any
	checkedIn bool
	// unsaved holds a captured photo whose check-in failed to store.
	unsaved string
}

func newHub(app *App, id string) *Hub {
	now := time.Now()
	return &Hub{
		id:         id,
		app:        app,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		inputs:     make(chan inputRequest),
		timers:     make(chan func(), 64),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}
}

func (h *Hub) touch() {
	h.mu.Lock()
	h.lastActive = time.Now()
	h.mu.Unlock()
}

func (h *Hub) idleSince() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.lastActive
}

// stop ends the run loop, which tears down the game and disconnects
// every client.
func (h *Hub) stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

func (h *Hub) run() {
	defer close(h.done)

	cfg := h.app.cfg

	for {
		select {
		case c := <-h.register:
			h.touch()

			if h.ownerID == "" {
				h.ownerID = c.playerID
				logf(cfg, "GAMES: Challenge %s owned by %s", h.id, shortID(h.ownerID))
			}

			h.welcome(c)

		case c := <-h.unreg:
			h.touch()
			h.drop(c)

		case in := <-h.inputs:
			h.touch()
			h.handleInput(in)

		case f := <-h.timers:
			f()

		case <-h.quit:
			if h.manager != nil {
				h.manager.Close()
			}
			for c := range h.clients {
				h.drop(c)
				_ = c.conn.Close()
			}
			return
		}
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// send queues msg for c, dropping a client that cannot keep up.
func (h *Hub) send(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		logf(h.app.cfg, "GAMES: Dropping slow client on challenge %s", h.id)
		h.drop(c)
		_ = c.conn.Close()
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.send(c, msg)
	}
}

func (h *Hub) sessionInfo(c *Client) SessionInfoMessage {
	info := SessionInfoMessage{
		Type:        "session_info",
		ChallengeID: h.id,
		IsOwner:     c.playerID == h.ownerID,
		CheckedIn:   h.checkedIn,
		Phase:       games.PhaseIdle,
	}

	if h.manager != nil {
		info.Phase = h.manager.Phase()
		info.Game = h.manager.Kind()
		info.SeedHash = h.seeds.ServerHash()
		info.Nonce = h.seeds.Nonce
	}

	return info
}

func (h *Hub) welcome(c *Client) {
	if h.manager == nil && !h.checkedIn {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		done, err := h.app.store.CheckedIn(ctx, h.ownerID, h.app.today())
		cancel()
		if err != nil {
			logf(h.app.cfg, "ERROR: Checking challenge %s owner: %v", h.id, err)
		}
		h.checkedIn = done
	}

	if h.checkedIn {
		h.clients[c] = true
		h.send(c, h.sessionInfo(c))
		h.sendCheckedIn(c)
		return
	}

	// The first view is replayed below, so c joins after the game starts.
	if h.manager == nil {
		h.start()
	}

	h.clients[c] = true
	h.send(c, h.sessionInfo(c))

	if h.unsaved != "" {
		h.send(c, SimpleMessage{Type: "error", Message: checkInFailed, Retry: true})
		return
	}

	if h.lastView != nil {
		h.send(c, h.viewMessage(h.lastView))
	}
}

func (h *Hub) sendCheckedIn(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	today := h.app.today()

	summary, err := h.app.store.Summary(ctx, h.ownerID, today)
	if err != nil {
		h.send(c, SimpleMessage{Type: "error", Message: "Unable to load check-in"})
		logf(h.app.cfg, "ERROR: Loading summary for challenge %s: %v", h.id, err)
		return
	}

	photo, err := h.app.store.Photo(ctx, h.ownerID, today)
	if err != nil && !errors.Is(err, checkins.ErrNotFound) {
		logf(h.app.cfg, "ERROR: Loading photo for challenge %s: %v", h.id, err)
	}

	h.send(c, CheckedInMessage{Type: "checked_in", Summary: summary, Photo: photo})
}

// start draws a fresh game for the owner.
func (h *Hub) start() {
	h.nonce++

	seeds, err := games.NewSeeds(h.ownerID, h.nonce)
	if err != nil {
		h.broadcast(SimpleMessage{Type: "error", Message: "Unable to start challenge"})
		logf(h.app.cfg, "ERROR: Seeding challenge %s: %v", h.id, err)
		return
	}
	h.seeds = seeds

	env := games.Env{
		Surface:      hubSurface{h},
		Scheduler:    hubScheduler{h},
		Rand:         h.app.newRand(seeds),
		MaxPhotoSize: h.app.cfg.maxPhotoSize,
	}

	h.manager = games.NewManager(env, h.complete)
	h.manager.OnSelect = h.selected
	h.manager.StartDailyChallenge()
}

func (h *Hub) selected(kind games.Kind) {
	logf(h.app.cfg, "GAMES: Challenge %s drew %s (nonce %d)", h.id, kind, h.nonce)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := h.app.store.RecordPlay(ctx, h.app.today(), string(kind)); err != nil {
		logf(h.app.cfg, "ERROR: Recording play for challenge %s: %v", h.id, err)
	}
}

// complete stores the check-in once the photo is taken.
func (h *Hub) complete(photo string) {
	cfg := h.app.cfg

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	res, err := h.app.store.Submit(ctx, checkins.CheckIn{
		UserID:   h.ownerID,
		Day:      h.app.today(),
		Photo:    photo,
		Game:     string(h.manager.Kind()),
		SeedHash: h.seeds.ServerHash(),
	})
	switch {
	case errors.Is(err, checkins.ErrAlreadyCheckedIn):
		h.unsaved = ""
		h.checkedIn = true
		h.broadcast(ToastMessage{Type: "toast", Message: "Already checked in today", Level: "info"})
		for c := range h.clients {
			h.sendCheckedIn(c)
		}
		return
	case err != nil:
		// Kept so a restart can store it again without replaying the game.
		h.unsaved = photo
		h.broadcast(SimpleMessage{Type: "error", Message: checkInFailed, Retry: true})
		logf(cfg, "ERROR: Saving check-in for challenge %s: %v", h.id, err)
		return
	}

	h.unsaved = ""
	h.checkedIn = true

	logf(cfg, "CHECKIN: %s checked in via %s on challenge %s (photo %s, streak %d)",
		shortID(h.ownerID),
		res.CheckIn.Game,
		h.id,
		humanReadableSize(int64(len(photo))),
		res.Summary.Streak,
	)

	h.broadcast(CheckedInMessage{
		Type:    "checked_in",
		Summary: &res.Summary,
		Photo:   photo,
		Groups:  res.GroupsCompleted,
	})

	ev := checkins.Event{
		ID:          res.CheckIn.ID,
		UserID:      res.CheckIn.UserID,
		Day:         res.CheckIn.Day,
		Game:        res.CheckIn.Game,
		Mood:        res.CheckIn.Mood,
		SeedHash:    res.CheckIn.SeedHash,
		Streak:      res.Summary.Streak,
		GroupsDone:  res.GroupsCompleted,
		CreatedAt:   res.CheckIn.CreatedAt,
		ChallengeID: h.id,
	}
	if err := h.app.pub.Publish(ctx, ev); err != nil {
		logf(cfg, "ERROR: Publishing check-in %s: %v", ev.ID, err)
	}
}

func (h *Hub) handleInput(in inputRequest) {
	if h.manager == nil || h.checkedIn {
		return
	}

	switch in.msg.Type {
	case "input":
		h.manager.Input(in.msg.Input)

	case "restart":
		if h.unsaved != "" {
			h.complete(h.unsaved)
			return
		}

		// Otherwise only a failed camera phase can be retried.
		camera, ok := h.manager.Current().(*games.Camera)
		if !ok || camera.State() != games.CameraError {
			return
		}
		h.manager.Close()
		h.start()
		for c := range h.clients {
			h.send(c, h.sessionInfo(c))
		}
	}
}

func (h *Hub) viewMessage(view any) ViewMessage {
	return ViewMessage{Type: "view", Phase: h.manager.Phase(), Game: h.manager.Kind(), View: view}
}

// hubSurface draws onto every client of the hub.
type hubSurface struct{ h *Hub }

func (s hubSurface) Clear() {
	s.h.lastView = nil
	s.h.broadcast(SimpleMessage{Type: "clear"})
}

func (s hubSurface) Show(view any) {
	s.h.lastView = view
	s.h.broadcast(s.h.viewMessage(view))
}

func (s hubSurface) Toast(msg, level string) {
	s.h.broadcast(ToastMessage{Type: "toast", Message: msg, Level: level})
}

// hubScheduler runs callbacks on the hub goroutine.
type hubScheduler struct{ h *Hub }

func (s hubScheduler) Now() time.Time { return time.Now() }

func (s hubScheduler) After(d time.Duration, f func()) func() {
	// Only read and written on the hub goroutine.
	cancelled := false

	t := time.AfterFunc(d, func() {
		select {
		case s.h.timers <- func() {
			if !cancelled {
				f()
			}
		}:
		case <-s.h.quit:
		}
	})

	return func() {
		cancelled = true
		t.Stop()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "sticky_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   400 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	// Later handlers in this request see the new id too.
	r.AddCookie(&http.Cookie{Name: playerCookieName, Value: id})

	return id
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}

// GameManager holds a set of hubs keyed by challenge ID, so each
// /challenge/:id is its own isolated session.
type GameManager struct {
	app         *App
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
	done        chan struct{}
	closeOnce   sync.Once
	closed      bool
	// running counts hub run loops that have not returned.
	running sync.WaitGroup
}

func newGameManager(app *App, idleTimeout time.Duration) *GameManager {
	gm := &GameManager{
		app:         app,
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
		done:        make(chan struct{}),
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

// getHub returns the hub for id, starting one if needed. It returns nil
// once the manager is closed.
func (gm *GameManager) getHub(id string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if gm.closed {
		return nil
	}

	if hub, ok := gm.hubs[id]; ok {
		return hub
	}

	hub := newHub(gm.app, id)
	gm.hubs[id] = hub

	gm.running.Add(1)
	go func() {
		defer gm.running.Done()
		hub.run()
	}()

	return hub
}

// newGameID generates a crypto-random challenge ID and ensures it doesn't
// collide with existing challenges.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// validGameID accepts the IDs newGameID produces.
func validGameID(id string) bool {
	if len(id) != 8 {
		return false
	}
	for _, r := range id {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-gm.done:
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for id, hub := range gm.hubs {
			if hub.idleSince().Before(cutoff) {
				delete(gm.hubs, id)
				hub.stop()
				logf(gm.app.cfg, "GAMES: Reaped idle challenge %s", id)
			}
		}
		gm.mu.Unlock()
	}
}

// close ends every challenge and stops the reaper. It returns once every
// hub has finished, so nothing touches the store afterwards.
func (gm *GameManager) close() {
	gm.closeOnce.Do(func() { close(gm.done) })

	gm.mu.Lock()
	gm.closed = true
	for id, hub := range gm.hubs {
		delete(gm.hubs, id)
		hub.stop()
	}
	gm.mu.Unlock()

	gm.running.Wait()
}

// WebSocket handler that picks the hub based on :id
func serveChallengeWS(app *App, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id := ps.ByName("id")
		if !validGameID(id) {
			http.Error(w, "invalid challenge id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		// Upgrade writes its own response, so a new cookie has to go
		// through the response header it is given.
		var header http.Header
		if cookies := w.Header().Values("Set-Cookie"); len(cookies) > 0 {
			header = http.Header{"Set-Cookie": cookies}
		}

		conn, err := upgrader.Upgrade(w, r, header)
		if err != nil {
			logf(app.cfg, "ERROR: Upgrading challenge %s for %s: %v", id, realIP(r), err)
			return
		}

		hub := gm.getHub(id)
		if hub == nil {
			_ = conn.Close()
			return
		}

		// A frame is a base64 photo plus a little JSON.
		conn.SetReadLimit(int64(app.cfg.maxPhotoSize)*4/3 + 4096)

		client := &Client{
			conn:     conn,
			send:     make(chan any, sendBuffer),
			playerID: playerID,
		}

		select {
		case hub.register <- client:
		case <-hub.quit:
			_ = conn.Close()
			return
		}

		logf(app.cfg, "SERVE: Challenge %s joined by %s", id, realIP(r))

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unreg <- c:
		case <-h.quit:
		}
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "input", "restart":
			select {
			case h.inputs <- inputRequest{client: c, msg: msg}:
			case <-h.quit:
				return
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current challenge URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validGameID(ps.ByName("id")) {
			http.Error(w, "invalid challenge id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /.../:id/qr; strip trailing "/qr" to get the challenge URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func serveChallengePage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validGameID(ps.ByName("id")) {
			http.Redirect(w, r, cfg.prefix+"/challenge", http.StatusTemporaryRedirect)
			return
		}

		data, err := assets.ReadFile("assets/challenge.html")
		if err != nil {
			errs <- err
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// redirectNewGame handles GET /challenge by generating a new random
// challenge ID and redirecting to /challenge/:id.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		_ = getOrSetPlayerID(w, r)

		id := gm.newGameID()
		logf(cfg, "GAMES: Created challenge %s%s/%s", cfg.prefix, path, id)
		http.Redirect(w, r, cfg.prefix+path+"/"+id, http.StatusTemporaryRedirect)
	}
}

// registerChallenge sets up routes so that:
//   - $path          → redirects to a new random challenge (8-char ID)
//   - $path/:id      → HTML client
//   - $path/:id/ws   → WebSocket for that challenge
//   - $path/:id/qr   → PNG QR code for that challenge URL
func registerChallenge(app *App, path string, mux *httprouter.Router, errs chan<- error) *GameManager {
	cfg := app.cfg
	gm := newGameManager(app, cfg.sessionTimeout)

	mux.GET(cfg.prefix+path, redirectNewGame(cfg, path, gm))
	mux.GET(cfg.prefix+path+"/:id", serveChallengePage(cfg, errs))
	mux.GET(cfg.prefix+path+"/:id/ws", serveChallengeWS(app, gm))
	mux.GET(cfg.prefix+path+"/:id/qr", qrHandler(cfg))

	return gm
}
