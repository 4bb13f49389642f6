package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/preflab/pairwise/internal/config"
	"github.com/preflab/pairwise/internal/manifest"
	"github.com/preflab/pairwise/internal/services"
	"github.com/preflab/pairwise/internal/study"
	"github.com/preflab/pairwise/internal/web"
)

type Router struct {
	store Store
	cfg   *config.Config
	m     manifest.Manifest
	tmpl  *web.Templates
	now   func() time.Time
}

func NewRouter(store Store, cfg *config.Config, m manifest.Manifest, tmpl *web.Templates) *Router {
	return &Router{store: store, cfg: cfg, m: m, tmpl: tmpl, now: func() time.Time { return time.Now().UTC() }}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", rt.handleIndex)
	mux.HandleFunc("POST /begin", rt.handleBegin)
	mux.HandleFunc("GET /trial", rt.handleTrial)
	mux.HandleFunc("POST /submit", rt.handleSubmit)
	mux.HandleFunc("GET /reset", rt.handleReset)
	mux.HandleFunc("GET /done", rt.handleDone)
	mux.HandleFunc("GET /export.csv", rt.handleExport)
	mux.HandleFunc("GET /healthz", rt.handleHealthz)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(rt.cfg.StaticDir))))
}

// currentSession resolves the request's session from cookie + store.
// Returns nil (not an error) when there is none.
func (rt *Router) currentSession(r *http.Request) (*study.Session, error) {
	sid := rt.sessionIDFromRequest(r)
	if sid == "" {
		return nil, nil
	}
	return rt.store.GetSession(sid)
}

// createSession plans a fresh study, persists session and participant, and
// hands the browser a new signed cookie.
func (rt *Router) createSession(w http.ResponseWriter, demographics map[string]string) (*study.Session, error) {
	sess, err := study.NewSession(rt.m, rt.cfg.NTrials)
	if err != nil {
		return nil, err
	}
	sess.Demographics = demographics
	if err := rt.store.PutSession(sess); err != nil {
		return nil, err
	}
	p := &study.Participant{ID: sess.ParticipantID, CreatedAtUTC: sess.CreatedAtUTC(), Demographics: demographics}
	if err := rt.store.PutParticipant(p); err != nil {
		return nil, err
	}
	if err := rt.setSessionCookie(w, sess.ID); err != nil {
		return nil, err
	}
	return sess, nil
}

// GET / — start page, or straight back into the study if one is running.
func (rt *Router) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := rt.currentSession(r)
	if err != nil {
		rt.renderError(w, http.StatusInternalServerError, "We could not load your session.")
		return
	}
	if sess != nil {
		if sess.Done() {
			http.Redirect(w, r, "/done", http.StatusFound)
		} else {
			http.Redirect(w, r, "/trial", http.StatusFound)
		}
		return
	}
	data := web.StartData{NTrials: rt.cfg.NTrials, Metrics: rt.cfg.Metrics, Demographics: rt.cfg.Demographics}
	if err := rt.tmpl.RenderStart(w, data); err != nil {
		log.Printf("render start: %v", err)
	}
}

// POST /begin — create the session and its frozen trial plan.
func (rt *Router) handleBegin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	var demographics map[string]string
	for _, key := range rt.cfg.Demographics {
		if v := r.PostFormValue("demo_" + key); v != "" {
			if demographics == nil {
				demographics = map[string]string{}
			}
			demographics[key] = v
		}
	}
	sess, err := rt.createSession(w, demographics)
	if err != nil {
		log.Printf("begin: %v", err)
		rt.renderError(w, http.StatusInternalServerError, "We could not start the study. Please try again.")
		return
	}
	log.Printf("session %s started: participant=%s trials=%d", sess.ID, sess.ParticipantID, len(sess.Plan))
	http.Redirect(w, r, "/trial", http.StatusSeeOther)
}

// GET /trial — render the participant's current trial. Reloads render the
// exact same pair because the plan is frozen in the store.
func (rt *Router) handleTrial(w http.ResponseWriter, r *http.Request) {
	sess, err := rt.currentSession(r)
	if err != nil {
		rt.renderError(w, http.StatusInternalServerError, "We could not load your session.")
		return
	}
	if sess == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	spec, ok := sess.Current()
	if !ok {
		http.Redirect(w, r, "/done", http.StatusFound)
		return
	}
	log.Printf("serving trial %d to %s: set=%s left=%s right=%s", sess.TrialIndex, sess.ParticipantID, spec.Set, spec.Left.Video, spec.Right.Video)
	data := web.TrialData{
		TrialIndex:  sess.TrialIndex,
		TrialNumber: sess.TrialIndex + 1,
		NTrials:     len(sess.Plan),
		Left:        spec.Left,
		Right:       spec.Right,
		Metrics:     rt.cfg.Metrics,
		ScoreMin:    study.ScoreMin,
		ScoreMax:    study.ScoreMax,
	}
	if err := rt.tmpl.RenderTrial(w, data); err != nil {
		log.Printf("render trial: %v", err)
	}
}

// POST /submit — record the current trial's ratings and advance. A
// submission for any other index is stale (double submit, back button) and
// is ignored by re-presenting the current state.
func (rt *Router) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, err := rt.currentSession(r)
	if err != nil {
		rt.renderError(w, http.StatusInternalServerError, "We could not load your session.")
		return
	}
	if sess == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if sess.Done() {
		http.Redirect(w, r, "/done", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	submitted, err := strconv.Atoi(r.PostFormValue("trial_index"))
	if err != nil {
		http.Error(w, "trial_index must be an integer", http.StatusBadRequest)
		return
	}
	if submitted != sess.TrialIndex {
		log.Printf("stale submission from %s: got trial %d, current is %d", sess.ParticipantID, submitted, sess.TrialIndex)
		http.Redirect(w, r, "/trial", http.StatusSeeOther)
		return
	}

	scores, err := parseScores(r, rt.cfg.Metrics)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	spec, _ := sess.Current()
	rating := sess.RatingFor(spec, scores, rt.now())
	// The append must be durable before we confirm anything to the
	// participant; a storage failure is surfaced, not swallowed.
	if err := rt.store.AppendRating(rating); err != nil {
		log.Printf("append rating for %s trial %d: %v", sess.ParticipantID, sess.TrialIndex, err)
		rt.renderError(w, http.StatusInternalServerError, "Your ratings could not be saved. Please try again.")
		return
	}
	ok, err := rt.store.AdvanceSession(sess.ID, sess.TrialIndex)
	if err != nil {
		log.Printf("advance session %s: %v", sess.ID, err)
		rt.renderError(w, http.StatusInternalServerError, "Your ratings could not be saved. Please try again.")
		return
	}
	if !ok {
		// A concurrent submit won the race; treat ours as stale.
		http.Redirect(w, r, "/trial", http.StatusSeeOther)
		return
	}
	if sess.TrialIndex+1 >= len(sess.Plan) {
		http.Redirect(w, r, "/done", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/trial", http.StatusSeeOther)
}

// GET /reset — discard the session and start over with a fresh participant
// id. Works from any state.
func (rt *Router) handleReset(w http.ResponseWriter, r *http.Request) {
	if _, err := rt.createSession(w, nil); err != nil {
		log.Printf("reset: %v", err)
		rt.renderError(w, http.StatusInternalServerError, "We could not reset your session.")
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// GET /done — terminal page once every trial is submitted.
func (rt *Router) handleDone(w http.ResponseWriter, r *http.Request) {
	sess, err := rt.currentSession(r)
	if err != nil {
		rt.renderError(w, http.StatusInternalServerError, "We could not load your session.")
		return
	}
	if sess == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if !sess.Done() {
		http.Redirect(w, r, "/trial", http.StatusFound)
		return
	}
	if err := rt.tmpl.RenderDone(w); err != nil {
		log.Printf("render done: %v", err)
	}
}

// GET /export.csv — token-gated full-table dump, streamed row by row.
func (rt *Router) handleExport(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = r.Header.Get("X-Export-Token")
	}
	if err := services.AuthorizeExport(token, rt.cfg.ExportToken, rt.cfg.ExportTokenHash); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	format, err := services.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	participants, err := rt.store.ListParticipants()
	if err != nil {
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}
	demoByKey := make(map[string]map[string]string, len(participants))
	for _, p := range participants {
		demoByKey[p.ID+"|"+p.CreatedAtUTC] = p.Demographics
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", services.ExportFilename(format, rt.now())))

	e := services.NewExporter(w, format, rt.cfg.Metrics, rt.cfg.Demographics)
	if err := e.WriteHeader(); err != nil {
		log.Printf("export header: %v", err)
		return
	}
	err = rt.store.ForEachRating(func(rating *study.Rating) error {
		return e.WriteRating(rating, demoByKey[rating.ParticipantID+"|"+rating.CreatedAtUTC])
	})
	if err != nil {
		// Headers are gone; all we can do is log and truncate the stream.
		log.Printf("export stream: %v", err)
		return
	}
	if err := e.Flush(); err != nil {
		log.Printf("export flush: %v", err)
	}
}

func (rt *Router) handleHealthz(w http.ResponseWriter, r *http.Request) {
	n, err := rt.store.CountRatings()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      err == nil,
		"name":    "Pairwise study server",
		"ratings": n,
	})
}

func (rt *Router) renderError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	if err := rt.tmpl.RenderError(w, web.ErrorData{Message: msg}); err != nil {
		log.Printf("render error page: %v", err)
	}
}

// parseScores pulls <key>_left / <key>_right integers for every configured
// metric and bounds-checks them.
func parseScores(r *http.Request, metrics []study.Metric) (map[string]study.ScorePair, error) {
	scores := make(map[string]study.ScorePair, len(metrics))
	for _, m := range metrics {
		left, err := parseScore(r.PostFormValue(m.Key + "_left"))
		if err != nil {
			return nil, study.NewInvalidError(fmt.Sprintf("%s (video A): %v", m.Key, err))
		}
		right, err := parseScore(r.PostFormValue(m.Key + "_right"))
		if err != nil {
			return nil, study.NewInvalidError(fmt.Sprintf("%s (video B): %v", m.Key, err))
		}
		scores[m.Key] = study.ScorePair{Left: left, Right: right}
	}
	return scores, nil
}

func parseScore(raw string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("missing score")
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("score must be an integer")
	}
	if v < study.ScoreMin || v > study.ScoreMax {
		return 0, fmt.Errorf("score must be between %d and %d", study.ScoreMin, study.ScoreMax)
	}
	return v, nil
}
