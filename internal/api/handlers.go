// internal/api/handlers.go
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"github.com/tamzrod/modbus-bridge/internal/bridge"
	"github.com/tamzrod/modbus-bridge/internal/status"
)

type infoResponse struct {
	Version string `json:"version"`
	Cores   int    `json:"cores"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{Version: s.cfg.Version, Cores: runtime.NumCPU()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, status.Encode(status.Snapshot{Health: status.HealthDisabled}))
		return
	}
	writeJSON(w, http.StatusOK, status.Encode(s.store.Snapshot()))
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	cmd, err := s.decode(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	reply, err := s.bridge.Get(r.Context(), cmd)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	cmd, err := s.decode(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	reply, err := s.bridge.Set(r.Context(), cmd)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// request is the wire form of a command; the address fields are required.
type request struct {
	SlaveID    *uint8  `json:"slaveId"`
	RegisterID *uint16 `json:"registerId"`
	FuncID     *int    `json:"funcId"`
	Value      any     `json:"value"`
}

// decode reads the body into a command. Bodies whose declared or actual
// length reaches the scratch size are refused before parsing.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (bridge.Command, error) {
	limit := int64(s.cfg.ScratchSize)
	if r.ContentLength >= limit {
		return bridge.Command{}, fmt.Errorf("%w: declared %d bytes, capacity %d", ErrCapacityExceeded, r.ContentLength, limit)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit-1))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return bridge.Command{}, fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, limit)
		}
		return bridge.Command{}, fmt.Errorf("%w: %v", ErrReceive, err)
	}
	if len(body) == 0 {
		return bridge.Command{}, fmt.Errorf("%w: empty body", ErrMalformedRequest)
	}

	var req request
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return bridge.Command{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return bridge.Command{}, fmt.Errorf("%w: trailing content after command", ErrMalformedRequest)
	}
	if req.SlaveID == nil || req.RegisterID == nil || req.FuncID == nil {
		return bridge.Command{}, fmt.Errorf("%w: slaveId, registerId and funcId are required", ErrMalformedRequest)
	}

	return bridge.Command{
		SlaveID:    *req.SlaveID,
		RegisterID: *req.RegisterID,
		FuncID:     *req.FuncID,
		Value:      req.Value,
	}, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := classify(err)

	ev := s.logger.Warn()
	if code >= http.StatusInternalServerError {
		ev = s.logger.Error()
	}
	ev.Err(err).
		Str("path", r.URL.Path).
		Str("request_id", w.Header().Get("X-Request-ID")).
		Int("status", code).
		Str("code", kind).
		Msg("request failed")

	writeError(w, code, kind, err.Error())
}
