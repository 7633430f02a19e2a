package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sugawarayuuta/sonnet"
)

// maxMatchBody bounds the input accepted by the match endpoint.
const maxMatchBody = 64 << 20 // 64MB

// Handler holds HTTP handlers for the GoScan API.
type Handler struct {
	mgr    *Manager
	logger *slog.Logger
}

// NewHandler creates a new Handler backed by the given Manager.
func NewHandler(mgr *Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{mgr: mgr, logger: logger}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Scanner lifecycle.
	mux.HandleFunc("GET /scanners", h.handleListScanners)
	mux.HandleFunc("POST /scanners", h.handleCompile)
	mux.HandleFunc("GET /scanners/{name}", h.handleGetScanner)
	mux.HandleFunc("DELETE /scanners/{name}", h.handleDeleteScanner)

	// Matching.
	mux.HandleFunc("POST /scanners/{name}/match", h.handleMatch)
}

func (h *Handler) handleListScanners(w http.ResponseWriter, r *http.Request) {
	names := h.mgr.List()

	infos := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		inst, err := h.mgr.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, scannerInfo(inst))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scanners": infos,
	})
}

func (h *Handler) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string        `json:"name"`
		Patterns []PatternSpec `json:"patterns"`
	}
	if err := sonnet.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	inst, err := h.mgr.Compile(req.Name, req.Patterns)
	if err != nil {
		switch {
		case errors.Is(err, ErrScannerExists):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ErrBadScannerName):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusCreated, scannerInfo(inst))
}

func (h *Handler) handleGetScanner(w http.ResponseWriter, r *http.Request) {
	inst, err := h.mgr.Get(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	info := scannerInfo(inst)
	if prefix := r.URL.Query().Get("prefix"); prefix != "" {
		info["patterns"] = inst.Registry.ListPrefix(prefix)
	} else {
		info["patterns"] = inst.Manifest.Patterns
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) handleDeleteScanner(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.mgr.Delete(name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (h *Handler) handleMatch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	input, err := io.ReadAll(io.LimitReader(r.Body, maxMatchBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read input: "+err.Error())
		return
	}

	res, err := h.mgr.Match(name, input)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func scannerInfo(inst *ScannerInstance) map[string]interface{} {
	return map[string]interface{}{
		"name":       inst.Name,
		"states":     inst.Scanner.Size(),
		"letters":    inst.Scanner.LettersCount(),
		"regexps":    inst.Scanner.RegexpsCount(),
		"buf_bytes":  inst.Scanner.BufSize(),
		"created_at": inst.Manifest.CreatedAt,
	}
}
