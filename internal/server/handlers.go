package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/safequote/safequote/pkg/filter"
	"github.com/safequote/safequote/pkg/render"
	g "maragu.dev/gomponents"
)

const searchFailedMessage = "Search failed, please try again."

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := sess.ensureInitialized(r.Context()); err != nil {
		s.log.WithError(err).Warn("Failed to load filter options")
	}
	s.write(w, render.Page(s.title, s.labels, sess.ctrl.State(), "/events"))
}

func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := sess.ctrl.OnYearChanged(r.Context(), r.FormValue("year")); err != nil {
		s.log.WithError(err).Warn("Year change failed")
	}
	s.writeForm(w, sess)
}

func (s *Server) handleMake(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := sess.ctrl.OnMakeChanged(r.Context(), r.FormValue("make")); err != nil {
		s.log.WithError(err).Warn("Make change failed")
	}
	s.writeForm(w, sess)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := sess.ctrl.OnModelChanged(r.FormValue("model")); err != nil {
		if errors.Is(err, filter.ErrModelWithoutMake) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.log.WithError(err).Warn("Model change failed")
	}
	s.writeForm(w, sess)
}

func (s *Server) handleRating(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	value, err := strconv.Atoi(r.FormValue("minSafetyRating"))
	if err != nil {
		http.Error(w, "minSafetyRating must be an integer", http.StatusBadRequest)
		return
	}
	s.write(w, render.RatingLabel(sess.ctrl.OnRatingSliderInput(value)))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := sess.ctrl.OnSearchClicked(r.Context()); err != nil {
		s.log.WithError(err).Warn("Search failed")
		sess.notifier.Notify(filter.LevelError, searchFailedMessage)
	}
	s.write(w, g.Group([]g.Node{
		render.Results(s.labels, sess.ctrl.State()),
		s.notification(sess),
	}))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if err := sess.ctrl.OnResetClicked(r.Context()); err != nil {
		s.log.WithError(err).Warn("Reset failed")
		if errors.Is(err, filter.ErrSearchFailed) {
			sess.notifier.Notify(filter.LevelError, searchFailedMessage)
		}
	}
	s.write(w, g.Group([]g.Node{
		render.App(s.labels, sess.ctrl.State()),
		s.notification(sess),
	}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.write(w, render.ComingSoon(s.title, "Login"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *Server) writeForm(w http.ResponseWriter, sess *session) {
	s.write(w, render.FilterForm(s.labels, sess.ctrl.State()))
}

func (s *Server) notification(sess *session) g.Node {
	level, message := sess.notifier.take()
	return render.Notification(level, message)
}

func (s *Server) write(w http.ResponseWriter, n g.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := n.Render(w); err != nil {
		s.log.WithError(err).Error("Failed to render response")
	}
}
