package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/schema"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	Total     int    `json:"total,omitempty"`
	Timestamp string `json:"timestamp"`
}

// CreatedTable is returned by table creation.
type CreatedTable struct {
	TableID string `json:"table_id"`
}

// FieldInfo is one column of a described table.
type FieldInfo struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol,omitempty"`
	Type   string `json:"type"`
}

// TableInfo describes a table.
type TableInfo struct {
	TableID      string           `json:"table_id"`
	PhysicalName string           `json:"physical_name"`
	Fields       schema.FieldList `json:"fields"`
	Columns      []FieldInfo      `json:"columns"`
	Fingerprint  string           `json:"fingerprint"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// HealthInfo is returned by /health.
type HealthInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Tables  int    `json:"tables"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{
		"name":    "dyntable API",
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ids, err := s.eng.ListTables(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respond(w, http.StatusOK, HealthInfo{Status: "healthy", Version: Version, Tables: len(ids)})
}

func (s *Server) listTypesHandler(w http.ResponseWriter, r *http.Request) {
	symbols := s.eng.Symbols()
	respondList(w, symbols, len(symbols))
}

func (s *Server) createTableHandler(w http.ResponseWriter, r *http.Request) {
	var fields schema.FieldList
	if !decodeBody(w, r, &fields) {
		return
	}
	id, err := s.eng.CreateTable(r.Context(), fields)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, CreatedTable{TableID: id})
}

func (s *Server) listTablesHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := s.eng.ListTables(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondList(w, ids, len(ids))
}

func (s *Server) describeTableHandler(w http.ResponseWriter, r *http.Request) {
	def, spec, err := s.eng.Describe(r.Context(), r.PathValue("id"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	info := TableInfo{
		TableID:      def.LogicalID,
		PhysicalName: def.PhysicalName,
		Fields:       def.Layout(),
		Columns:      []FieldInfo{{Name: schema.IdentityColumn, Type: "identity"}},
		Fingerprint:  def.Fingerprint,
		CreatedAt:    def.CreatedAt,
		UpdatedAt:    def.UpdatedAt,
	}
	for i, f := range spec.Fields {
		info.Columns = append(info.Columns, FieldInfo{Name: f.Name, Symbol: def.FieldTypes[i], Type: f.Type.String()})
	}
	respond(w, http.StatusOK, info)
}

func (s *Server) alterTableHandler(w http.ResponseWriter, r *http.Request) {
	var fields schema.FieldList
	if !decodeBody(w, r, &fields) {
		return
	}
	if err := s.eng.AlterTable(r.Context(), r.PathValue("id"), fields); err != nil {
		respondEngineError(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) dropTableHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.DropTable(r.Context(), r.PathValue("id")); err != nil {
		respondEngineError(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func (s *Server) insertRowHandler(w http.ResponseWriter, r *http.Request) {
	var row data.Row
	if !decodeBody(w, r, &row) {
		return
	}
	if row.Data == nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Row must be a JSON object")
		return
	}
	stored, err := s.eng.Insert(r.Context(), r.PathValue("id"), row)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, stored)
}

func (s *Server) listRowsHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := s.eng.List(r.Context(), r.PathValue("id"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondList(w, rows, len(rows))
}

func (s *Server) getRowHandler(w http.ResponseWriter, r *http.Request) {
	rowID, ok := parseRowID(w, r)
	if !ok {
		return
	}
	row, err := s.eng.GetRow(r.Context(), r.PathValue("id"), rowID)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respond(w, http.StatusOK, row)
}

func (s *Server) deleteRowHandler(w http.ResponseWriter, r *http.Request) {
	rowID, ok := parseRowID(w, r)
	if !ok {
		return
	}
	if err := s.eng.DeleteRow(r.Context(), r.PathValue("id"), rowID); err != nil {
		respondEngineError(w, r, err)
		return
	}
	respond(w, http.StatusOK, nil)
}

func parseRowID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("rowID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_ROW_ID", fmt.Sprintf("Invalid row id %q", raw))
		return 0, false
	}
	return id, true
}

// decodeBody reads one JSON value into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	if dec.More() {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Request body must hold a single JSON value")
		return false
	}
	return true
}

func respond(w http.ResponseWriter, status int, data interface{}) {
	writeResponse(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondList(w http.ResponseWriter, data interface{}, total int) {
	writeResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Total: total, Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondErrorDetails(w, status, code, message, nil)
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeResponse(w, status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

func writeResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
