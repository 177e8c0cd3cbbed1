// Package web is the small ops surface: health, a status snapshot, and QR
// images for countdown event links.
package web

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/gryphrace/paddock/internal/countdown"
	"github.com/gryphrace/paddock/internal/models"
)

func Router(db *gorm.DB, countdowns *countdown.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", health)
	r.Get("/status", status(db))
	r.Get("/qr/{channel}/{title}.png", eventQR(countdowns))

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// status reports store-backed counts for monitoring.
func status(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		var users, sessions, channels, entries int64
		db.Model(&models.User{}).Count(&users)
		db.Model(&models.VerifyingUser{}).Count(&sessions)
		db.Model(&models.CountdownChannel{}).Count(&channels)
		db.Model(&models.CountdownEntry{}).Count(&entries)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{
			"users":              users,
			"pending_sessions":   sessions,
			"countdown_channels": channels,
			"countdown_entries":  entries,
		})
	}
}

// eventQR serves a QR image of a countdown entry's event link, so the link
// can be dropped on posters around the shop.
func eventQR(countdowns *countdown.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID := chi.URLParam(r, "channel")
		title, err := url.PathUnescape(chi.URLParam(r, "title"))
		if channelID == "" || title == "" || err != nil {
			http.NotFound(w, r)
			return
		}

		entry, ok, err := countdowns.Entry(channelID, title)
		if err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}

		png, err := qrcode.Encode(entry.Link, qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "failed to generate qr", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(png)
	}
}
