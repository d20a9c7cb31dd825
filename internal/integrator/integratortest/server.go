// Package integratortest поднимает поддельный сервис интегрирования для тестов.
package integratortest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"goarea/internal/integrator"
)

// Reply сценарий ответа на один запрос
type Reply struct {
	Status int
	Raw    string // если задано, отправляется как есть
	Area   *float64
	Error  *string
	Delay  time.Duration
}

func Area(v float64) Reply { return Reply{Area: &v} }

func DomainError(msg string) Reply { return Reply{Error: &msg} }

func Status(code int) Reply { return Reply{Status: code} }

func Raw(body string) Reply { return Reply{Raw: body} }

func (r Reply) After(d time.Duration) Reply {
	r.Delay = d
	return r
}

type Server struct {
	*httptest.Server

	mu      sync.Mutex
	calls   []integrator.Request
	respond func(integrator.Request) Reply
}

func NewServer(respond func(integrator.Request) Reply) *Server {
	s := &Server{respond: respond}

	r := mux.NewRouter()
	r.HandleFunc("/integrate", s.handleIntegrate).Methods(http.MethodPost)
	s.Server = httptest.NewServer(r)
	return s
}

// Endpoint полный адрес /integrate
func (s *Server) Endpoint() string {
	return s.Server.URL + "/integrate"
}

func (s *Server) Calls() []integrator.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]integrator.Request, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *Server) handleIntegrate(w http.ResponseWriter, r *http.Request) {
	var req integrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	reply := s.respond(req)
	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if reply.Status != 0 {
		w.WriteHeader(reply.Status)
	}
	if reply.Raw != "" {
		w.Write([]byte(reply.Raw))
		return
	}
	json.NewEncoder(w).Encode(integrator.Response{Area: reply.Area, Error: reply.Error})
}
