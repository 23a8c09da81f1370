// Package fakejsonserver is a small widget API used to demonstrate and test
// documentation capture.
package fakejsonserver

import (
	"sync"

	"github.com/gorilla/mux"

	"github.com/siegeai/autodoc/descriptor"
)

type Server struct {
	router *mux.Router

	mu      sync.Mutex
	widgets []widget
	nextID  int
}

func New() *Server {
	s := &Server{
		router:  mux.NewRouter(),
		widgets: make([]widget, 0),
	}
	s.populateTestWidgets()
	s.setupRoutes()
	return s
}

// Router exposes the routes so callers can add middleware with Use.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) populateTestWidgets() {
	s.widgets = []widget{
		{
			ID:          "1",
			Title:       "Jeremy Bearimy",
			Description: "Some convoluted cyclical timeline situation",
		},
		{
			ID:          "2",
			Title:       "Gizmo",
			Description: "This is more of a gizmo than a widget, but we'll abuse the widget system to store it here.",
		},
	}
	s.nextID = len(s.widgets) + 1
}

type widget struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity,omitempty"`
}

// Descriptors returns the request descriptors of the widget routes.
func Descriptors() *descriptor.Registry {
	reg := descriptor.NewRegistry()
	requests := []descriptor.Request{
		{
			Name:   "Widgets\\ListWidgetsRequest",
			Routes: []string{"GET /widgets"},
			Fields: []descriptor.Field{
				{Name: "page", Rules: "integer"},
				{Name: "search", Rules: "string"},
			},
			Annotations: map[string]string{
				"page":   "page number, starting at 1",
				"search": "substring of the title",
			},
		},
		{
			Name:   "Widgets\\CreateWidgetRequest",
			Routes: []string{"POST /widget"},
			Fields: []descriptor.Field{
				{Name: "title", Rules: "required|string"},
				{Name: "description", Rules: "string"},
				{Name: "quantity", Rules: []string{"integer", "min:0"}},
			},
			Annotations: map[string]string{
				"description": "Stores a new widget.",
				"_422":        "The widget is invalid",
			},
		},
		{
			Name:   "Widgets\\GetWidgetRequest",
			Routes: []string{"GET /widgets/{id}"},
			Annotations: map[string]string{
				"summary": "show widget",
				"_404":    "No widget has this id",
			},
		},
		{
			Name:   "Widgets\\UpdateWidgetRequest",
			Routes: []string{"PATCH /widgets/{id}"},
			Fields: []descriptor.Field{
				{Name: "title", Rules: "string"},
				{Name: "description", Rules: "string"},
			},
		},
		{
			Name:   "Widgets\\DeleteWidgetRequest",
			Routes: []string{"DELETE /widgets/{id}"},
		},
	}
	for _, req := range requests {
		if err := reg.Register(req); err != nil {
			panic(err)
		}
	}
	return reg
}
