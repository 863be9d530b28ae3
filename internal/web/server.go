package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/deskbook/internal/application/usecases"
	"github.com/example/deskbook/internal/auth"
	"github.com/example/deskbook/internal/availability"
	"github.com/example/deskbook/internal/domain/booking"
	"github.com/example/deskbook/internal/domain/slot"
	"github.com/example/deskbook/internal/infrastructure/crypto"
	"github.com/example/deskbook/internal/infrastructure/postgres"
	"github.com/example/deskbook/internal/presenter"
)

//go:embed templates/*.html
var fs embed.FS

type Server struct {
	Auth         *auth.Store
	Users        *postgres.UserRepo
	History      *postgres.HistoryRepo
	Availability *availability.Store
	Refresher    *availability.Refresher
	Submitter    *usecases.Submitter
	AEAD         *crypto.AEAD
	Presenter    presenter.Presenter
	Log          *zap.Logger

	mu       sync.Mutex
	sessions map[int64]*userState
}

// userState is the per-user interaction state the browser front end would
// keep in page memory: the selection controller and the last submission
// outcome to render. mu serializes the handlers that touch it, so the
// controller keeps a single writer even when the same user has two requests
// in flight.
type userState struct {
	mu         sync.Mutex
	ctrl       *slot.Controller
	priceCents int64
	lastState  usecases.SubmitState
	lastErr    error
	flash      string
}

type tmplData struct {
	Title string
	User  int64

	Flash   string
	Slots   []slotView
	Summary presenter.Summary
	SpaceID int64
	Date    string
	Presets []slot.Preset

	Bookings []booking.Booking
	Stale    bool
}

type slotView struct {
	ID        int
	HourLabel string
	Status    slot.Status
	Selected  bool
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/", s.Auth.RequireAuth(http.HandlerFunc(s.handleGrid)))
	mux.Handle("/seleziona", s.Auth.RequireAuth(http.HandlerFunc(s.handleClick)))
	mux.Handle("/preset", s.Auth.RequireAuth(http.HandlerFunc(s.handlePreset)))
	mux.Handle("/annulla-ultima", s.Auth.RequireAuth(http.HandlerFunc(s.handleUndo)))
	mux.Handle("/svuota", s.Auth.RequireAuth(http.HandlerFunc(s.handleClear)))
	mux.Handle("/prenota", s.Auth.RequireAuth(http.HandlerFunc(s.handleSubmit)))
	mux.Handle("/token", s.Auth.RequireAuth(http.HandlerFunc(s.handleToken)))
	mux.Handle("/storico", s.Auth.RequireAuth(http.HandlerFunc(s.handleHistory)))

	return mux
}

func (s *Server) state(uid int64) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = make(map[int64]*userState)
	}
	st, ok := s.sessions[uid]
	if !ok {
		st = &userState{ctrl: slot.NewController(), lastState: usecases.StateIdle}
		// The price tracks the selection through the controller's
		// subscription, so it is current the moment a click lands.
		s.Presenter.Watch(st.ctrl, nil, func(cents int64) { st.priceCents = cents })
		s.sessions[uid] = st
	}
	return st
}

// withState runs fn with the user's interaction state locked. Handlers reach
// the controller, price and flash only through here.
func (s *Server) withState(uid int64, fn func(st *userState)) {
	st := s.state(uid)
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := auth.NormalizeUsername(r.FormValue("username"))
		id, err := s.Auth.Authenticate(r.Context(), username, r.FormValue("password"))
		if err != nil {
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		// The pending-selection cookie, if set, is picked up by the grid
		// handler so the interrupted booking resumes seamlessly.
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// gridContext resolves the (space, date) key of the current request.
func gridContext(r *http.Request) (int64, slot.Day, error) {
	spaceID := int64(1)
	if v := strings.TrimSpace(r.FormValue("space")); v != "" {
		var err error
		spaceID, err = strconv.ParseInt(v, 10, 64)
		if err != nil || spaceID < 1 {
			return 0, slot.Day{}, fmt.Errorf("invalid space id")
		}
	}
	day := slot.DayOf(time.Now())
	if v := strings.TrimSpace(r.FormValue("date")); v != "" {
		var err error
		day, err = slot.ParseDay(v)
		if err != nil {
			return 0, slot.Day{}, err
		}
	}
	return spaceID, day, nil
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())

	spaceID, day, err := gridContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.withState(uid, func(st *userState) {
		// Restore a selection stashed before a login redirect, for its own key.
		if ps, ok := s.Auth.TakePendingSelection(w, r); ok {
			spaceID = ps.SpaceID
			if d, err := slot.ParseDay(ps.Day); err == nil {
				day = d
			}
			if err := s.loadGrid(r.Context(), st, spaceID, day); err == nil {
				s.restoreSelection(st.ctrl, ps.Selected)
				st.flash = "Welcome back. Your selection was restored."
			}
		}

		stale := false
		g := st.ctrl.Grid()
		if g == nil || g.SpaceID != spaceID || g.Day != day {
			if err := s.loadGrid(r.Context(), st, spaceID, day); err != nil {
				// Availability unknown, not failed: render whatever we have and
				// say so instead of fabricating an empty grid.
				stale = true
				st.flash = "Availability could not be refreshed. Showing last known state."
				s.Log.Warn("grid load failed", zap.Error(err))
			}
		}
		s.Refresher.MarkActive(spaceID, day)

		s.renderGrid(w, uid, st, spaceID, day, stale)
	})
}

func (s *Server) loadGrid(ctx context.Context, st *userState, spaceID int64, day slot.Day) error {
	g, ok := s.Availability.Cached(spaceID, day)
	if !ok {
		var err error
		g, err = s.Availability.Fetch(ctx, spaceID, day)
		if err != nil {
			return err
		}
	}
	st.ctrl.SetGrid(g)
	st.lastState = usecases.StateIdle
	st.lastErr = nil
	return nil
}

// restoreSelection replays a serialized selection through the controller so
// the contiguity rules still hold against the freshly fetched grid.
func (s *Server) restoreSelection(ctrl *slot.Controller, ids []int) {
	if len(ids) == 0 {
		return
	}
	min, max := ids[0], ids[0]
	for _, id := range ids[1:] {
		if id < min {
			min = id
		}
		if id > max {
			max = id
		}
	}
	_ = ctrl.Click(min)
	if max > min {
		_ = ctrl.Click(max)
	}
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	s.mutateSelection(w, r, func(st *userState, r *http.Request) {
		id, err := strconv.Atoi(r.FormValue("id"))
		if err != nil {
			st.flash = "Invalid slot"
			return
		}
		if err := st.ctrl.Click(id); err != nil {
			// Selection errors resolve locally; they never abort the page.
			st.flash = clickMessage(err)
		}
	})
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	s.mutateSelection(w, r, func(st *userState, r *http.Request) {
		if err := st.ctrl.SelectPreset(r.FormValue("name")); err != nil {
			st.flash = clickMessage(err)
		}
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.mutateSelection(w, r, func(st *userState, r *http.Request) {
		st.ctrl.UndoLast()
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.mutateSelection(w, r, func(st *userState, r *http.Request) {
		st.ctrl.Clear()
	})
}

func (s *Server) mutateSelection(w http.ResponseWriter, r *http.Request, fn func(*userState, *http.Request)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.withState(uid, func(st *userState) {
		st.lastState = usecases.StateIdle
		st.lastErr = nil
		fn(st, r)

		g := st.ctrl.Grid()
		if g == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/?space=%d&date=%s", g.SpaceID, g.Day), http.StatusFound)
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	s.withState(uid, func(st *userState) {
		g := st.ctrl.Grid()
		if g == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		sess := s.apiSession(r.Context(), uid)
		selected := st.ctrl.Selected()
		// Capture before Submit: success clears the selection, which zeroes
		// the tracked price.
		price := st.priceCents
		res := s.Submitter.Submit(r.Context(), sess, st.ctrl)
		st.lastState = res.State
		st.lastErr = res.Err
		st.flash = ""

		switch res.State {
		case usecases.StateSucceeded:
			b := booking.Booking{
				UserID:     uid,
				BookingRef: res.BookingRef,
				SpaceID:    g.SpaceID,
				Day:        g.Day.String(),
				PriceCents: price,
			}
			if h, ok := hoursOf(g, selected); ok {
				b.StartHour, b.EndHour = h[0], h[1]
			}
			if _, err := s.History.Record(r.Context(), b); err != nil {
				s.Log.Error("record booking", zap.Error(err))
			}
			st.flash = fmt.Sprintf("Booking %s confirmed.", res.BookingRef)
		case usecases.StateAuthRequired:
			if err := s.Auth.SetPendingSelection(w, usecases.PendingFor(st.ctrl)); err != nil {
				s.Log.Error("stash pending selection", zap.Error(err))
			}
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		http.Redirect(w, r, fmt.Sprintf("/?space=%d&date=%s", g.SpaceID, g.Day), http.StatusFound)
	})
}

// handleToken saves the user's coworking-API bearer token, encrypted at rest.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tok := strings.TrimSpace(r.FormValue("token"))
	enc, err := s.AEAD.EncryptToString(tok)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := s.Users.SetAPIToken(r.Context(), uid, enc); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.withState(uid, func(st *userState) { st.flash = "API token saved." })
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	bs, err := s.History.ListByUser(r.Context(), uid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/storico.html", tmplData{Title: "Bookings", User: uid, Bookings: bs})
}

func (s *Server) apiSession(ctx context.Context, uid int64) auth.APISession {
	enc, err := s.Users.GetAPIToken(ctx, uid)
	if err != nil {
		if !errors.Is(err, postgres.ErrNotFound) {
			s.Log.Error("load api token", zap.Error(err))
		}
		return auth.APISession{}
	}
	tok, err := s.AEAD.DecryptString(enc)
	if err != nil {
		s.Log.Error("decrypt api token", zap.Error(err))
		return auth.APISession{}
	}
	return auth.APISession{Token: tok}
}

func (s *Server) renderGrid(w http.ResponseWriter, uid int64, st *userState, spaceID int64, day slot.Day, stale bool) {
	g := st.ctrl.Grid()
	var views []slotView
	if g != nil {
		for _, sl := range g.Slots() {
			views = append(views, slotView{
				ID:        sl.ID,
				HourLabel: sl.HourLabel,
				Status:    sl.Status,
				Selected:  st.ctrl.IsSelected(sl.ID),
			})
		}
	}
	sum := s.Presenter.Summarize(g, st.ctrl.Selected(), st.lastState, st.lastErr)

	flash := st.flash
	st.flash = ""
	s.render(w, "templates/grid.html", tmplData{
		Title:   "Book a space",
		User:    uid,
		Flash:   flash,
		Slots:   views,
		Summary: sum,
		SpaceID: spaceID,
		Date:    day.String(),
		Presets: slot.Presets,
		Stale:   stale,
	})
}

func clickMessage(err error) string {
	switch {
	case errors.Is(err, slot.ErrEndBeforeStart):
		return "End must be after start."
	case errors.Is(err, slot.ErrNotSelectable):
		return "That hour is not available."
	case errors.Is(err, slot.ErrUnknownPreset):
		return "Unknown preset."
	case errors.Is(err, slot.ErrNoGrid):
		return "Load a day first."
	default:
		return err.Error()
	}
}

func hoursOf(g *slot.Grid, selected []int) ([2]int, bool) {
	if len(selected) == 0 {
		return [2]int{}, false
	}
	min, max := selected[0], selected[0]
	for _, id := range selected[1:] {
		if id < min {
			min = id
		}
		if id > max {
			max = id
		}
	}
	start, ok := g.Window.HourForID(min)
	if !ok {
		return [2]int{}, false
	}
	end, _ := g.Window.HourForID(max)
	return [2]int{start, end + 1}, true
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs, "templates/base.html", name)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func Start(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("listening", zap.String("addr", addr))
	return srv.ListenAndServe()
}
