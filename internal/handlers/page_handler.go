package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dataportal/internal/chart"
	"dataportal/internal/forms"
	"dataportal/internal/logger"
	"dataportal/internal/middlewares"
	"dataportal/internal/models"
	"dataportal/internal/pages"
	"dataportal/internal/persistence"
	"dataportal/internal/responses"
	"dataportal/internal/services"
)

const configureSegment = "configure"

type PageHandler struct {
	dispatcher *pages.Dispatcher
	charts     *chart.Action
	runner     chart.Runner
	crud       *services.CrudService
	lggr       logger.Logger
}

func NewPageHandler(dispatcher *pages.Dispatcher, charts *chart.Action, runner chart.Runner, crud *services.CrudService, lggr logger.Logger) *PageHandler {
	return &PageHandler{
		dispatcher: dispatcher,
		charts:     charts,
		runner:     runner,
		crud:       crud,
		lggr:       lggr.Named("PageHandler"),
	}
}

// PageView is the JSON descriptor of a dispatched page.
type PageView struct {
	Page       *pages.Page          `json:"page"`
	Path       string               `json:"path"`
	Parameters []string             `json:"parameters,omitempty"`
	Parent     string               `json:"parent,omitempty"`
	Chart      *chart.ChartInstance `json:"chart,omitempty"`
	Objects    []persistence.Object `json:"objects,omitempty"`
	Object     persistence.Object   `json:"object,omitempty"`
	Form       *forms.Form          `json:"form,omitempty"`
}

func (h *PageHandler) view(d *pages.Dispatch) *PageView {
	pi := d.LastPageInstance()
	v := &PageView{Page: pi.Page, Path: d.AbsoluteOriginalPath(), Parameters: pi.Parameters}
	if parent, err := h.charts.ReturnToParent(d); err == nil {
		v.Parent = parent
	}
	return v
}

// dispatch resolves the wildcard path. A trailing /configure selects the
// configuration of the page before it.
func (h *PageHandler) dispatch(c *gin.Context) (*pages.Dispatch, bool, bool) {
	path := strings.TrimSuffix(c.Param("path"), "/")
	configure := false
	if strings.HasSuffix(path, "/"+configureSegment) {
		path = strings.TrimSuffix(path, "/"+configureSegment)
		configure = true
	}

	d, err := h.dispatcher.Dispatch(path)
	if err != nil {
		responses.Fail(c, statusFor(err), err, "Page not found")
		return nil, false, false
	}
	return d, configure, true
}

func (h *PageHandler) require(c *gin.Context, level models.AccessLevel) bool {
	if middlewares.Allowed(c, level) {
		return true
	}
	responses.Fail(c, http.StatusForbidden, nil, "Access denied. "+level.String()+" permission required.")
	return false
}

// Get handles GET /api/v1/pages/*path: chart pages are rendered, or
// streamed when chartId is given; crud pages list or read rows.
func (h *PageHandler) Get(c *gin.Context) {
	d, configure, ok := h.dispatch(c)
	if !ok {
		return
	}
	if configure {
		h.configure(c, d)
		return
	}

	ctx := c.Request.Context()
	pi := d.LastPageInstance()
	view := h.view(d)

	switch pi.Page.Type {
	case pages.TypeChart:
		if chartID := c.Query("chartId"); chartID != "" {
			h.streamChart(c, chartID)
			return
		}
		if err := h.charts.PreparePage(pi); err != nil {
			responses.Fail(c, statusFor(err), err, "Page not found")
			return
		}
		opts, err := chartOptions(c)
		if err != nil {
			responses.Fail(c, http.StatusBadRequest, err, "Invalid chart options")
			return
		}
		instance, err := h.charts.Execute(ctx, d, h.runner, opts)
		if err != nil {
			responses.Fail(c, statusFor(err), err, "Failed to generate chart")
			return
		}
		view.Chart = instance

	case pages.TypeCrud:
		if len(pi.Parameters) == 0 {
			objects, err := h.crud.List(ctx, pi)
			if err != nil {
				responses.Fail(c, statusFor(err), err, "Failed to list objects")
				return
			}
			view.Objects = objects
			break
		}
		obj, err := h.crud.Read(ctx, pi)
		if err != nil {
			responses.Fail(c, statusFor(err), err, "Failed to read object")
			return
		}
		view.Object = obj
		if c.Query("form") == "true" {
			form, err := h.crud.Form(ctx, pi)
			if err != nil {
				responses.Fail(c, statusFor(err), err, "Failed to build form")
				return
			}
			view.Form = form
		}

	default:
		if len(pi.Parameters) > 0 {
			responses.Fail(c, http.StatusNotFound, pages.ErrPageNotFound, "Page not found")
			return
		}
	}

	responses.Success(c, http.StatusOK, view, "Page retrieved successfully")
}

func (h *PageHandler) streamChart(c *gin.Context, chartID string) {
	png, err := h.charts.Chart(chartID)
	if err != nil {
		if !errors.Is(err, chart.ErrChartNotFound) {
			h.lggr.Errorw("Failed to read chart", "chartId", chartID, "err", err)
		}
		responses.Fail(c, statusFor(err), err, "Chart not found")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *PageHandler) configure(c *gin.Context, d *pages.Dispatch) {
	if !h.require(c, models.AccessDevelop) {
		return
	}
	pi := d.LastPageInstance()
	if err := h.charts.PreparePage(pi); err != nil {
		responses.Fail(c, statusFor(err), err, "Page not found")
		return
	}

	form, err := h.charts.Configure(c.Request.Context(), pi)
	if err != nil {
		responses.Fail(c, statusFor(err), err, "Failed to build configuration form")
		return
	}
	view := h.view(d)
	view.Form = form
	responses.Success(c, http.StatusOK, view, "Configuration form retrieved successfully")
}

// Post handles POST /api/v1/pages/*path: saves a chart configuration on
// .../configure, otherwise creates a row of a crud page.
func (h *PageHandler) Post(c *gin.Context) {
	d, configure, ok := h.dispatch(c)
	if !ok {
		return
	}
	values, err := requestValues(c)
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	ctx := c.Request.Context()
	pi := d.LastPageInstance()

	if configure {
		if !h.require(c, models.AccessDevelop) {
			return
		}
		if err := h.charts.PreparePage(pi); err != nil {
			responses.Fail(c, statusFor(err), err, "Page not found")
			return
		}
		form, saved, err := h.charts.UpdateConfiguration(ctx, pi, values, currentUserPtr(c))
		if err != nil {
			responses.Fail(c, statusFor(err), err, "Failed to save configuration")
			return
		}
		view := h.view(d)
		view.Form = form
		if !saved {
			responses.FailWithData(c, http.StatusUnprocessableEntity, services.ErrValidation, "Invalid configuration", view)
			return
		}
		responses.Success(c, http.StatusOK, view, "Configuration updated successfully")
		return
	}

	if !h.require(c, models.AccessEdit) {
		return
	}
	form, obj, err := h.crud.Create(ctx, pi, values)
	h.writeResult(c, d, form, obj, err, http.StatusCreated, "Object created successfully")
}

// Put handles PUT /api/v1/pages/*path on a crud row.
func (h *PageHandler) Put(c *gin.Context) {
	d, _, ok := h.dispatch(c)
	if !ok || !h.require(c, models.AccessEdit) {
		return
	}
	values, err := requestValues(c)
	if err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	form, obj, err := h.crud.Update(c.Request.Context(), d.LastPageInstance(), values)
	h.writeResult(c, d, form, obj, err, http.StatusOK, "Object updated successfully")
}

// Delete handles DELETE /api/v1/pages/*path on a crud row.
func (h *PageHandler) Delete(c *gin.Context) {
	d, _, ok := h.dispatch(c)
	if !ok || !h.require(c, models.AccessEdit) {
		return
	}
	if err := h.crud.Delete(c.Request.Context(), d.LastPageInstance()); err != nil {
		responses.Fail(c, statusFor(err), err, "Failed to delete object")
		return
	}
	responses.Success(c, http.StatusOK, nil, "Object deleted successfully")
}

func (h *PageHandler) writeResult(c *gin.Context, d *pages.Dispatch, form *forms.Form, obj persistence.Object, err error, status int, msg string) {
	view := h.view(d)
	view.Form = form
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			responses.FailWithData(c, http.StatusUnprocessableEntity, err, "Invalid object", view)
			return
		}
		responses.Fail(c, statusFor(err), err, "Failed to save object")
		return
	}
	view.Object = obj
	responses.Success(c, status, view, msg)
}

// requestValues reads a JSON object or a url encoded form as strings.
func requestValues(c *gin.Context) (map[string]string, error) {
	values := map[string]string{}
	if c.ContentType() == gin.MIMEPOSTForm {
		if err := c.Request.ParseForm(); err != nil {
			return nil, err
		}
		for k := range c.Request.PostForm {
			values[k] = c.Request.PostForm.Get(k)
		}
		return values, nil
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, err
	}
	for k, v := range body {
		values[k] = forms.FormatValue(v)
	}
	return values, nil
}

func chartOptions(c *gin.Context) (chart.Options, error) {
	opts := chart.DefaultOptions()
	var err error
	if v := c.Query("width"); v != "" {
		if opts.Width, err = strconv.Atoi(v); err != nil || opts.Width <= 0 {
			return opts, errors.New("width must be a positive integer")
		}
	}
	if v := c.Query("height"); v != "" {
		if opts.Height, err = strconv.Atoi(v); err != nil || opts.Height <= 0 {
			return opts, errors.New("height must be a positive integer")
		}
	}
	if v := c.Query("antiAlias"); v != "" {
		if opts.AntiAlias, err = strconv.ParseBool(v); err != nil {
			return opts, err
		}
	}
	if v := c.Query("borderVisible"); v != "" {
		if opts.BorderVisible, err = strconv.ParseBool(v); err != nil {
			return opts, err
		}
	}
	return opts, nil
}
