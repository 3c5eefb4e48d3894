package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/sticky/checkins"
	"github.com/Seednode/sticky/games"
	"github.com/julienschmidt/httprouter"
)

const (
	maxRequestBody = 4096
	historyDefault = 30
	historyMax     = 365
)

type moodRequest struct {
	Mood string `json:"mood"`
}

type groupRequest struct {
	Name string `json:"name"`
}

type moodsResponse struct {
	Current string   `json:"current"`
	Moods   []string `json:"moods"`
}

type gamesResponse struct {
	Games []games.Kind `json:"games"`
}

// apiHandle is an API route that already knows its player.
type apiHandle func(ctx context.Context, w http.ResponseWriter, r *http.Request, p httprouter.Params, playerID string)

func withPlayer(app *App, h apiHandle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			writeError(app.cfg, w, r, http.StatusInternalServerError, errors.New("unable to assign player id"))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()

		h(ctx, w, r, p, playerID)

		logf(app.cfg, "API: %s %s for %s from %s in %s",
			r.Method,
			r.URL.Path,
			shortID(playerID),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}

	return nil
}

// statusFor maps store errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, checkins.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkins.ErrInvalidInput), errors.Is(err, checkins.ErrInvalidMood):
		return http.StatusBadRequest
	case errors.Is(err, checkins.ErrAlreadyCheckedIn):
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

func apiSummary(app *App) apiHandle {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, _ httprouter.Params, playerID string) {
		summary, err := app.store.Summary(ctx, playerID, app.today())
		if err != nil {
			writeError(app.cfg, w, r, statusFor(err), err)
			return
		}

		writeJSON(app.cfg, w, http.StatusOK, summary)
	}
}

func apiMoods(app *App) apiHandle {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, _ httprouter.Params, playerID string) {
		mood, err := app.store.Mood(ctx, playerID, app.today())
		if err != nil {
			writeError(app.cfg, w, r, statusFor(err), err)
			return
		}

		writeJSON(app.cfg, w, http.StatusOK, moodsResponse{Current: mood, Moods: checkins.Moods})
	}
}

func apiSetMood(app *App) apiHandle {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, _ httprouter.Params, playerID string) {
		var req moodRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(app.cfg, w, r, http.StatusBadRequest, err)
			return
		}

		if err := app.store.SetMood(ctx, playerID, req.Mood, app.today()); err != nil {
			writeError(app.cfg, w, r, statusFor(err), err)
			return
		}

		writeJSON(app.cfg, w, http.StatusOK, moodsResponse{Current: req.Mood, Moods: checkins.Moods})
	}
}

func apiHistory(app *App) apiHandle {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, _ httprouter.Params, playerID string) {
		limit := historyDefault
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(app.cfg, w, r, http.StatusBadRequest, fmt.Errorf("invalid limit: %q", v))
				return
			}
			limit = min(n, historyMax)
		}

		history, err := app.store.History(ctx, playerID, limit)
		if err != nil {
			writeError(app.cfg, w, r, statusFor(err), err)
			return
		}
		if history == nil {
			history = []checkins.CheckIn{}
		}

		writeJSON(app.cfg, w, http.StatusOK, history)
	}
}

func apiPhoto(app *App) apiHandle {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, p httprouter.Params, playerID string) {
		day := p.ByName("day")
		if !checkins.ValidDay(day) {
			writeError(app.cfg, w, r, http.StatusBadRequest, fmt.Errorf("invalid day: %q", day))
			return
		}

		uri, err := app.store.Photo(ctx, playerID, day)
		if err != nil {
			writeError(app.cfg, w, r, statusFor(err), err)
			return
		}

		contentType, data, err := photoBytes(uri)
		if err != nil {
			writeError(app.cfg, w, r, http.StatusInternalServerError, err)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "private, max-age=3600")
		securityHeaders(app.cfg, w)

		_, _ = w.Write(data)
	}
}

func apiStats(app *App) apiHandle {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, _ httprouter.Params, _ string) {
		day := r.URL.Query().Get("day")
		if day == "" {
			day = app.today()
		}
		if !checkins.ValidDay(day) {
			writeError(app.cfg, w, r, http.StatusBadRequest, fmt.Errorf("invalid day: %q", day))
			return
		}

		stats, err := app.store.Stats(ctx, day)
		if err != nil {
			writeError(app.cfg, w, r, statusFor(err), err)
			return
		}

		writeJSON(app.cfg, w, http.StatusOK, stats)
	}
}

func apiGames(app *App) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(app.cfg, w, http.StatusOK, gamesResponse{Games: games.Kinds()})
	}
}

func apiGroups(app *App) apiHandle {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, _ httprouter.Params, playerID string) {
		groups, err := app.store.Groups(ctx, playerID)
		if err != nil {
			writeError(app.cfg, w, r, statusFor(err), err)
			return
		}
		if groups == nil {
			groups = []checkins.Group{}
		}

		writeJSON(app.cfg, w, http.StatusOK, groups)
	}
}

func apiCreateGroup(app *App) apiHandle {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, _ httprouter.Params, playerID string) {
		var req groupRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(app.cfg, w, r, http.StatusBadRequest, err)
			return
		}

		group, err := app.store.CreateGroup(ctx, req.Name, playerID)
		if err != nil {
			writeError(app.cfg, w, r, statusFor(err), err)
			return
		}

		logf(app.cfg, "GROUPS: %s created group %s", shortID(playerID), group.ID)

		writeJSON(app.cfg, w, http.StatusCreated, group)
	}
}

func apiJoinGroup(app *App) apiHandle {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request, p httprouter.Params, playerID string) {
		id := strings.TrimSpace(p.ByName("group"))

		group, err := app.store.JoinGroup(ctx, id, playerID)
		if err != nil {
			writeError(app.cfg, w, r, statusFor(err), err)
			return
		}

		writeJSON(app.cfg, w, http.StatusOK, group)
	}
}

// registerAPI sets up the JSON routes under /api. Every route acts for the
// player in the request's cookie.
func registerAPI(app *App, mux *httprouter.Router) {
	prefix := app.cfg.prefix + "/api"

	mux.GET(prefix+"/summary", withPlayer(app, apiSummary(app)))
	mux.GET(prefix+"/mood", withPlayer(app, apiMoods(app)))
	mux.PUT(prefix+"/mood", withPlayer(app, apiSetMood(app)))
	mux.GET(prefix+"/history", withPlayer(app, apiHistory(app)))
	mux.GET(prefix+"/photo/:day", withPlayer(app, apiPhoto(app)))
	mux.GET(prefix+"/stats", withPlayer(app, apiStats(app)))
	mux.GET(prefix+"/games", apiGames(app))
	mux.GET(prefix+"/groups", withPlayer(app, apiGroups(app)))
	mux.POST(prefix+"/groups", withPlayer(app, apiCreateGroup(app)))
	mux.POST(prefix+"/groups/:group/join", withPlayer(app, apiJoinGroup(app)))
}
