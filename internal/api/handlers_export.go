package api

import (
	"net/http"

	"github.com/dgallion1/sentree/internal/render"
	"github.com/dgallion1/sentree/internal/syntree"
)

type exportRequest struct {
	Title  string         `json:"title"`
	Format string         `json:"format"` // "markdown" (default) or "html"
	Nodes  []syntree.Node `json:"nodes"`
}

// handleExport renders a tree as assembled by the client, with expanded
// children already spliced in.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Nodes) == 0 {
		jsonError(w, "nodes are required", http.StatusBadRequest)
		return
	}

	switch req.Format {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(render.Markdown(req.Title, req.Nodes)))
	case "html":
		out, err := render.HTML(req.Title, req.Nodes)
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(out))
	default:
		jsonError(w, "unsupported format: "+req.Format, http.StatusBadRequest)
	}
}
