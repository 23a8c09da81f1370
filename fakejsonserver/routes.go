package fakejsonserver

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/siegeai/autodoc/infer"
)

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/", s.handleRoot())
	s.router.HandleFunc("/widget", s.handleCreateWidget()).Methods("POST")
	s.router.HandleFunc("/widgets", s.handleGetWidgets()).Methods("GET")
	s.router.HandleFunc("/widgets/{id}", s.handleGetWidget()).Methods("GET")
	s.router.HandleFunc("/widgets/{id}", s.handleUpdateWidget()).Methods("PATCH")
	s.router.HandleFunc("/widgets/{id}", s.handleDeleteWidget()).Methods("DELETE")
	s.router.Use(logMiddleware)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := negroni.NewResponseWriter(w)
		next.ServeHTTP(ww, r)
		slog.Debug("served", "method", r.Method, "uri", r.RequestURI, "proto", r.Proto, "status", ww.Status())
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

// decodeWidget reads the fields of a JSON or urlencoded widget body, leaving
// absent ones empty.
func decodeWidget(r *http.Request) (widget, error) {
	var res widget
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return res, err
		}
		res.Title = r.PostForm.Get("title")
		res.Description = r.PostForm.Get("description")
		if q := r.PostForm.Get("quantity"); q != "" {
			n, err := strconv.ParseInt(q, 10, 64)
			if err != nil {
				return res, err
			}
			res.Quantity = n
		}
		return res, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return res, err
	}
	fields, err := infer.ParseSampleObjectBytes(body)
	if err != nil {
		return res, err
	}
	if v, ok := fields["title"].(string); ok {
		res.Title = v
	}
	if v, ok := fields["description"].(string); ok {
		res.Description = v
	}
	if v, ok := fields["quantity"].(int64); ok {
		res.Quantity = v
	}
	return res, nil
}

func (*Server) handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "Welcome home!")
	}
}

func (s *Server) handleCreateWidget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		newWidget, err := decodeWidget(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Kindly enter data with the widget title and description only")
			return
		}
		if newWidget.Title == "" {
			writeError(w, http.StatusUnprocessableEntity, "The title field is required.")
			return
		}

		s.mu.Lock()
		newWidget.ID = strconv.Itoa(s.nextID)
		s.nextID++
		s.widgets = append(s.widgets, newWidget)
		s.mu.Unlock()

		writeJSON(w, http.StatusCreated, newWidget)
	}
}

func (s *Server) find(id string) (int, bool) {
	for i, singleWidget := range s.widgets {
		if singleWidget.ID == id {
			return i, true
		}
	}
	return 0, false
}

func (s *Server) handleGetWidget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		i, ok := s.find(mux.Vars(r)["id"])
		if !ok {
			writeError(w, http.StatusNotFound, "widget not found")
			return
		}
		writeJSON(w, http.StatusOK, s.widgets[i])
	}
}

func (s *Server) handleGetWidgets() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		search := strings.ToLower(r.URL.Query().Get("search"))

		s.mu.Lock()
		defer s.mu.Unlock()

		res := make([]widget, 0, len(s.widgets))
		for _, singleWidget := range s.widgets {
			if strings.Contains(strings.ToLower(singleWidget.Title), search) {
				res = append(res, singleWidget)
			}
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleUpdateWidget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		updatedWidget, err := decodeWidget(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Kindly enter data with the widget title and description only in order to update")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		i, ok := s.find(mux.Vars(r)["id"])
		if !ok {
			writeError(w, http.StatusNotFound, "widget not found")
			return
		}
		if updatedWidget.Title != "" {
			s.widgets[i].Title = updatedWidget.Title
		}
		if updatedWidget.Description != "" {
			s.widgets[i].Description = updatedWidget.Description
		}
		writeJSON(w, http.StatusOK, s.widgets[i])
	}
}

func (s *Server) handleDeleteWidget() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		id := mux.Vars(r)["id"]
		i, ok := s.find(id)
		if !ok {
			writeError(w, http.StatusNotFound, "widget not found")
			return
		}
		s.widgets = append(s.widgets[:i], s.widgets[i+1:]...)
		w.WriteHeader(http.StatusNoContent)
	}
}
