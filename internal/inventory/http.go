package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"MiniInventory/pkg/kit"
)

const maxBodyBytes = 1 << 20

var (
	errTrailingData = errors.New("unexpected data after JSON value")
	errNotAnObject  = errors.New("request body must be a JSON object")
)

type Server struct {
	Store   *Store
	Log     *zap.Logger
	Limiter *kit.IPRateLimiter
}

type deleteResp struct {
	Success        bool    `json:"success"`
	Message        string  `json:"message"`
	DeletedProduct Product `json:"deletedProduct"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(routeNotFound)
	r.MethodNotAllowed(routeNotFound)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Store.Ping(ctx); err != nil {
			s.logger().Warn("readyz failed", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/products", s.list)
	r.Get("/products/instock", s.listInStock)
	r.Get("/products/{id}", s.get)

	r.Group(func(wr chi.Router) {
		if s.Limiter != nil {
			wr.Use(s.Limiter.Middleware)
		}
		wr.Post("/products", s.create)
		wr.Put("/products/{id}", s.update)
		wr.Delete("/products/{id}", s.delete)
	})

	return r
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Store.List(r.Context()))
}

func (s *Server) listInStock(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Store.ListInStock(r.Context()))
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	p, err := s.Store.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, id, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		kit.WriteErrorMessage(w, r, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	candidate, violations := ParseCreate(fields)
	if len(violations) > 0 {
		kit.WriteError(w, r, http.StatusBadRequest, "Validation failed", violations)
		return
	}

	created, err := s.Store.Create(r.Context(), candidate)
	if err != nil {
		s.writeStoreError(w, r, 0, err)
		return
	}

	s.logger().Info("product created", zap.Int("id", created.ID))
	kit.WriteJSON(w, http.StatusCreated, created)
}

// update checks the id and the record's existence before the body fields, and
// reports only the first invalid field.
func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		kit.WriteErrorMessage(w, r, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	id, ok := parseID(w, r)
	if !ok {
		return
	}

	updated, err := s.Store.Update(r.Context(), id, func(current Product) (Product, error) {
		patch, violation := ParsePatch(fields)
		if violation != "" {
			return Product{}, &ValidationError{Violations: []string{violation}}
		}
		return patch.Apply(current), nil
	})
	if err != nil {
		s.writeStoreError(w, r, id, err)
		return
	}

	s.logger().Info("product updated", zap.Int("id", id))
	kit.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	removed, err := s.Store.Delete(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, id, err)
		return
	}

	s.logger().Info("product deleted", zap.Int("id", id))
	kit.WriteJSON(w, http.StatusOK, deleteResp{
		Success:        true,
		Message:        "Product deleted successfully",
		DeletedProduct: removed,
	})
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, id int, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		kit.WriteError(w, r, http.StatusBadRequest, "Validation failed", verr.Violations)
	case errors.Is(err, ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "Product not found", map[string]any{"id": id})
	case errors.Is(err, ErrPersist):
		kit.WriteErrorMessage(w, r, http.StatusInternalServerError, "Internal server error", "failed to save products")
	default:
		s.logger().Error("unexpected store error", zap.Error(err), zap.Int("id", id))
		kit.WriteErrorMessage(w, r, http.StatusInternalServerError, "Internal server error", "unexpected error")
	}
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func parseID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "Invalid product ID", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}

// decodeFields reads a JSON object body. An empty body counts as {}.
func decodeFields(w http.ResponseWriter, r *http.Request) (Fields, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(r.Body)

	var fields Fields
	if err := dec.Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return Fields{}, nil
		}
		return nil, err
	}
	if fields == nil {
		return nil, errNotAnObject
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errTrailingData
	}

	return fields, nil
}

func routeNotFound(w http.ResponseWriter, r *http.Request) {
	kit.WriteErrorMessage(w, r, http.StatusNotFound, "Route not found",
		fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path))
}
