package http

import (
	"bytes"
	"net/http"

	"kakeibo/internal/export"
	"kakeibo/internal/log"
)

// handleExport downloads the whole ledger as YAML (default) or XLSX.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	enc, err := export.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}

	txs := s.deps.Ledger.Transactions()
	var buf bytes.Buffer
	if err := enc.Encode(&buf, txs); err != nil {
		s.fail(w, r, "export", err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Ledger exported",
		"format", enc.Extension(), log.FieldCount, len(txs))
	NewResponse().
		Header("Content-Disposition", `attachment; filename="`+export.Filename(enc, s.now())+`"`).
		Bytes(enc.ContentType(), buf.Bytes()).
		Write(w)
}
