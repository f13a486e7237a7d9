package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/KaramelBytes/dashloom-cli/internal/chart"
	"github.com/KaramelBytes/dashloom-cli/internal/join"
	"github.com/KaramelBytes/dashloom-cli/internal/model"
	"github.com/KaramelBytes/dashloom-cli/internal/parser"
	"github.com/KaramelBytes/dashloom-cli/internal/table"
)

// pipelineRequest carries the inputs of the join fold.
type pipelineRequest struct {
	Tables        []table.RawTable `json:"tables" validate:"required,min=1"`
	HeaderIndices map[string]int   `json:"headerIndices"`
	Joins         []join.Spec      `json:"joins"`
}

func (p pipelineRequest) merge() (join.MergedRowSet, []join.StepStats) {
	refs := make([]join.TableRef, 0, len(p.Tables))
	for _, raw := range p.Tables {
		refs = append(refs, join.TableRef{
			ID:    raw.ID,
			Name:  raw.Name,
			Table: table.Normalize(raw, p.HeaderIndices[raw.ID]),
		})
	}
	return join.JoinTrace(refs, p.Joins)
}

type previewRequest struct {
	pipelineRequest
	Limit int `json:"limit" validate:"min=0"`
}

type previewResponse struct {
	Columns []string         `json:"columns"`
	Rows    []join.Row       `json:"rows"`
	Total   int              `json:"total"`
	Steps   []join.StepStats `json:"steps"`
}

type finalizeRequest struct {
	pipelineRequest
	// Selection nil means every merged column.
	Selection []string `json:"selection"`
	Title     string   `json:"title" validate:"max=200"`
}

type aggregateRequest struct {
	Rows   []model.TypedRow `json:"rows"`
	Chart  *chart.Spec      `json:"chart" validate:"required_without=Charts"`
	Charts []chart.Spec     `json:"charts"`
}

type suggestRequest struct {
	DataModel model.DataModel `json:"dataModel"`
	Prompt    string          `json:"prompt" validate:"max=2000"`
}

// decode reads and validates a JSON body into v. It writes the error response
// and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		render.Render(w, r, errBadRequest(fmt.Errorf("malformed JSON: %w", err)))
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		render.Render(w, r, errValidation(err))
		return false
	}
	return true
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	file, hdr, err := r.FormFile("file")
	if err != nil {
		render.Render(w, r, errBadRequest(fmt.Errorf("expected a multipart \"file\" field: %w", err)))
		return
	}
	defer file.Close()
	raws, err := parser.ParseReader(hdr.Filename, file)
	if err != nil {
		if errors.Is(err, parser.ErrUnsupported) {
			render.Render(w, r, &errResponse{Status: http.StatusUnsupportedMediaType, Code: "UNSUPPORTED_FORMAT", Message: err.Error()})
			return
		}
		render.Render(w, r, errUnprocessable(err))
		return
	}
	s.logger.DebugContext(r.Context(), "file imported", "file", hdr.Filename, "tables", len(raws))
	render.JSON(w, r, map[string]any{"tables": raws})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !s.decode(w, r, &req) {
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = DefaultPreviewLimit
	}
	merged, stats := req.merge()
	rows := merged.Rows
	if len(rows) > limit {
		rows = rows[:limit]
	}
	render.JSON(w, r, previewResponse{
		Columns: merged.Columns,
		Rows:    rows,
		Total:   len(merged.Rows),
		Steps:   stats,
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	merged, _ := req.merge()
	sel := req.Selection
	if sel == nil {
		sel = merged.Columns
	}
	dm, err := model.TypeAndCoerce(merged, sel)
	if err != nil {
		if errors.Is(err, model.ErrEmptySelection) {
			render.Render(w, r, errUnprocessable(err))
			return
		}
		render.Render(w, r, errBadRequest(err))
		return
	}
	dm.Name = req.Title
	if dm.Name == "" {
		for i, t := range req.Tables {
			if i > 0 {
				dm.Name += " + "
			}
			dm.Name += t.Name
		}
	}
	render.JSON(w, r, dm)
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	var req aggregateRequest
	if !s.decode(w, r, &req) {
		return
	}
	specs := req.Charts
	if req.Chart != nil {
		specs = append([]chart.Spec{*req.Chart}, specs...)
	}
	for _, sp := range specs {
		if err := chart.Validate(sp); err != nil {
			render.Render(w, r, errValidation(err))
			return
		}
	}
	if req.Chart != nil && len(req.Charts) == 0 {
		render.JSON(w, r, map[string]any{"points": chart.Aggregate(req.Rows, *req.Chart)})
		return
	}
	render.JSON(w, r, map[string]any{"series": chart.RenderAll(req.Rows, specs)})
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	if s.suggester == nil {
		render.Render(w, r, errUnavailable("no AI provider configured"))
		return
	}
	var req suggestRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.DataModel.Columns) == 0 {
		render.Render(w, r, errUnprocessable(model.ErrEmptySelection))
		return
	}
	var (
		specs []chart.Spec
		err   error
	)
	if req.Prompt != "" {
		var sp chart.Spec
		sp, err = s.suggester.Custom(r.Context(), req.DataModel, req.Prompt)
		specs = []chart.Spec{sp}
	} else {
		specs, err = s.suggester.Suggest(r.Context(), req.DataModel)
	}
	if err != nil {
		s.logger.WarnContext(r.Context(), "suggestion failed", "err", err)
		hint := ""
		if s.hint != nil {
			hint = s.hint(err)
		}
		render.Render(w, r, errUpstream(err, hint))
		return
	}
	render.JSON(w, r, map[string]any{"charts": specs})
}
