/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"embed"
	"fmt"
	"html"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/sticky/checkins"
	"github.com/julienschmidt/httprouter"
)

//go:embed assets/*
var assets embed.FS

func homeBody(cfg *Config, summary *checkins.Summary) string {
	var b strings.Builder

	b.WriteString(`<main class="home">`)
	b.WriteString(`<h1>Sticky</h1>`)

	b.WriteString(`<section class="stats">`)
	fmt.Fprintf(&b, `<div class="stat"><span class="num">%d</span><span class="label">day streak</span></div>`, summary.Streak)
	fmt.Fprintf(&b, `<div class="stat"><span class="num">%d</span><span class="label">check-ins</span></div>`, summary.Total)
	fmt.Fprintf(&b, `<div class="stat"><span class="num" id="mood">%s</span><span class="label">mood</span></div>`, html.EscapeString(summary.Mood))
	b.WriteString(`</section>`)

	if summary.CheckedInToday {
		b.WriteString(`<section class="today done"><p>Checked in for today.</p>`)
		fmt.Fprintf(&b, `<img class="photo" alt="Today's photo" src="%s/api/photo/%s">`, cfg.prefix, html.EscapeString(summary.Day))
		b.WriteString(`</section>`)
	} else {
		fmt.Fprintf(&b, `<section class="today"><a class="button" href="%s/challenge">Start today's challenge</a></section>`, cfg.prefix)
	}

	b.WriteString(`<section class="moods"><h2>How are you feeling?</h2><div id="mood-picker">`)
	for _, m := range checkins.Moods {
		fmt.Fprintf(&b, `<button type="button" data-mood="%s">%s</button>`, html.EscapeString(m), html.EscapeString(m))
	}
	b.WriteString(`</div></section>`)

	b.WriteString(`<section class="groups"><h2>Groups</h2><ul id="groups"></ul>`)
	b.WriteString(`<form id="new-group"><input name="name" maxlength="64" placeholder="New group name" required><button type="submit">Create</button></form>`)
	b.WriteString(`<form id="join-group"><input name="id" placeholder="Group id" required><button type="submit">Join</button></form>`)
	b.WriteString(`</section>`)

	b.WriteString(`<section class="history"><h2>Recent</h2><ul id="history"></ul></section>`)
	b.WriteString(`</main>`)

	return b.String()
}

func serveHomePage(app *App, errs chan<- error) httprouter.Handle {
	cfg := app.cfg

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		playerID := getOrSetPlayerID(w, r)

		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()

		summary, err := app.store.Summary(ctx, playerID, app.today())
		if err != nil {
			errs <- fmt.Errorf("home page summary: %w", err)

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			securityHeaders(cfg, w)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(newPage(cfg, "Server Error", "Unable to load your check-ins. Please try again.")))

			return
		}

		var page strings.Builder
		page.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		page.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		page.WriteString(getFavicon(cfg))
		fmt.Fprintf(&page, `<link rel="stylesheet" href="%s/assets/app.css">`, cfg.prefix)
		fmt.Fprintf(&page, `<script defer src="%s/assets/home.js"></script>`, cfg.prefix)
		fmt.Fprintf(&page, `<title>Sticky</title></head><body data-prefix="%s">`, html.EscapeString(cfg.prefix))
		page.WriteString(homeBody(cfg, summary))
		page.WriteString(`<div id="toasts"></div></body></html>`)

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write([]byte(page.String()))
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Home page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(app *App, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(app.cfg, w)

		ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
		defer cancel()

		if err := app.store.Ping(ctx); err != nil {
			logf(app.cfg, "ERROR: Health check: %v", err)

			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Unavailable\n"))

			return
		}

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveAssets(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		fname := "assets/" + strings.TrimPrefix(p.ByName("asset"), "/")

		data, err := assets.ReadFile(fname)
		if err != nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			securityHeaders(cfg, w)
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(newPage(cfg, "Not Found", "No such file.")))

			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		switch strings.ToLower(filepath.Ext(fname)) {
		case ".css":
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case ".js":
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		case ".html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		case ".svg":
			w.Header().Set("Content-Type", "image/svg+xml")
		}

		_, err = w.Write(data)
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := "User-agent: *\nDisallow: " + cfg.prefix + "/api/\nDisallow: " + cfg.prefix + "/challenge\n"

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
