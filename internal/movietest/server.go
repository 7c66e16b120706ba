// Package movietest provides an in-memory movie API served by gin, for tests
// that need a server honoring (or deliberately breaking) the movie contract.
package movietest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/movie-api/moviecheck/internal/movieapi"
)

// Options shape the fake server. The zero value is the nested-route,
// server-assigned-id, duplicate-rejecting contract.
type Options struct {
	// PathPrefix is "/movies" or "" for bare routes. Empty means bare.
	PathPrefix string
	// ClientIDs expects the id in the create payload and answers 201 with no body.
	ClientIDs bool
	// Envelope wraps fetched movies in {"data": ...}.
	Envelope bool

	// Knobs that break one part of the contract each.
	AllowDuplicates  bool // re-POST creates a second record instead of 409
	OmitCreatedID    bool // server-id 201 body carries no id
	DropUpdates      bool // PUT answers 200 without storing
	KeepDeleted      bool // DELETE answers 204 without removing
	AddStatus        int  // overrides the 201 on successful create
	HealthFullStatus int  // overrides the 200 on /health?mode=full
}

// Request is one request the server received, in arrival order
type Request struct {
	Method string
	Path   string
	Query  string
}

// Server is the in-memory movie API
type Server struct {
	opts   Options
	engine *gin.Engine

	mu       sync.Mutex
	movies   map[string]movieapi.Movie
	requests []Request
}

// New builds a server with the given options
func New(opts Options) *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		opts:   opts,
		engine: gin.New(),
		movies: make(map[string]movieapi.Movie),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.recordRequest())

	s.engine.GET("/health", s.health)

	movies := s.engine.Group(opts.PathPrefix)
	movies.POST("/add", s.addMovie)
	movies.GET("/get/:id", s.getMovie)
	movies.PUT("/update/:id", s.updateMovie)
	movies.DELETE("/delete/:id", s.deleteMovie)

	return s
}

// Start serves s on an httptest server closed at test cleanup and returns its URL
func Start(t *testing.T, opts Options) (*Server, string) {
	t.Helper()
	s := New(opts)
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, srv.URL
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Requests returns a copy of the request log
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Movie returns the stored record for id
func (s *Server) Movie(id string) (movieapi.Movie, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[id]
	return m, ok
}

// Len returns the number of stored records
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.movies)
}

// Put seeds a record
func (s *Server) Put(m movieapi.Movie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies[m.ID] = m
}

func (s *Server) recordRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
			Query:  c.Request.URL.RawQuery,
		})
		s.mu.Unlock()
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	if c.Query("mode") == "full" && s.opts.HealthFullStatus != 0 && s.opts.HealthFullStatus != http.StatusOK {
		c.JSON(s.opts.HealthFullStatus, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) addMovie(c *gin.Context) {
	var m movieapi.Movie
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.ClientIDs {
		if m.ID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}
		if _, exists := s.movies[m.ID]; exists && !s.opts.AllowDuplicates {
			c.Status(http.StatusConflict)
			return
		}
		s.movies[m.ID] = m
		c.Status(s.addStatus())
		return
	}

	if !s.opts.AllowDuplicates {
		for _, existing := range s.movies {
			if existing.Title == m.Title && existing.Year == m.Year {
				c.JSON(http.StatusConflict, gin.H{"error": "movie already exists"})
				return
			}
		}
	}

	m.ID = uuid.NewString()
	s.movies[m.ID] = m

	if s.opts.OmitCreatedID {
		c.JSON(s.addStatus(), gin.H{"title": m.Title, "year": m.Year, "stars": m.Stars})
		return
	}
	c.JSON(s.addStatus(), m)
}

func (s *Server) addStatus() int {
	if s.opts.AddStatus != 0 {
		return s.opts.AddStatus
	}
	return http.StatusCreated
}

func (s *Server) getMovie(c *gin.Context) {
	s.mu.Lock()
	m, ok := s.movies[c.Param("id")]
	s.mu.Unlock()

	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	if s.opts.Envelope {
		c.JSON(http.StatusOK, gin.H{"data": m})
		return
	}
	c.JSON(http.StatusOK, m)
}

// updateMovie overwrites unconditionally, creating the record if needed
func (s *Server) updateMovie(c *gin.Context) {
	var m movieapi.Movie
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m.ID = c.Param("id")

	if !s.opts.DropUpdates {
		s.mu.Lock()
		s.movies[m.ID] = m
		s.mu.Unlock()
	}
	c.Status(http.StatusOK)
}

func (s *Server) deleteMovie(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.movies[id]; !ok {
		c.Status(http.StatusNotFound)
		return
	}
	if !s.opts.KeepDeleted {
		delete(s.movies, id)
	}
	c.Status(http.StatusNoContent)
}
