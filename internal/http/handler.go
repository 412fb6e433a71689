package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tree-census/internal/http/middleware"
	"tree-census/internal/importer"
	"tree-census/internal/model"
	"tree-census/internal/service"
	"tree-census/internal/table"
)

type Handler struct {
	dashboard      *service.DashboardService
	maxImportBytes int64
	log            zerolog.Logger
}

func NewHandler(dashboard *service.DashboardService, maxImportBytes int64, log zerolog.Logger) *Handler {
	return &Handler{
		dashboard:      dashboard,
		maxImportBytes: maxImportBytes,
		log:            log,
	}
}

func (h *Handler) Register(r *gin.Engine, sessionMiddleware gin.HandlerFunc) {
	api := r.Group("/api")
	api.POST("/sessions", h.createSession)

	protected := api.Group("/")
	protected.Use(sessionMiddleware)

	state := protected.Group("/state")
	{
		state.GET("", h.getState)
		state.PUT("/search", h.setSearch)
		state.PUT("/filters", h.setFilters)
		state.PUT("/viewport", h.setViewport)
		state.POST("/zoom-in", h.zoom(1))
		state.POST("/zoom-out", h.zoom(-1))
		state.PUT("/tab", h.setTab)
		state.PUT("/theme", h.setTheme)
		state.PUT("/layer", h.setLayer)
		state.POST("/selection", h.selectRecord)
		state.DELETE("/selection", h.clearSelection)
	}

	// Polygon area selection
	area := protected.Group("/area")
	{
		area.POST("/begin", h.beginArea)
		area.POST("/vertices", h.addAreaVertex)
		area.POST("/commit", h.commitArea)
		area.POST("/cancel", h.cancelArea)
		area.DELETE("", h.clearArea)
	}

	protected.GET("/options", h.getOptions)
	protected.GET("/records", h.listRecords)
	protected.GET("/records/:id", h.getRecord)
	protected.GET("/map", h.getMap)
	protected.GET("/table", h.getTable)
	protected.GET("/stats", h.getStats)

	protected.POST("/import", h.importFile)
	protected.POST("/import/sample", h.importSample)
	protected.POST("/import/remote", h.importRemote)
	protected.GET("/export", h.export)
	protected.DELETE("/session", h.deleteSession)
}

func (h *Handler) createSession(c *gin.Context) {
	var req struct {
		Source string `json:"source"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
	}

	info, err := h.dashboard.CreateSession(c.Request.Context(), req.Source)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(info))
}

func (h *Handler) deleteSession(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	if err := h.dashboard.DeleteSession(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(gin.H{"deleted": true}))
}

// respond writes a snapshot-returning service call.
func (h *Handler) respond(c *gin.Context, snap *service.Snapshot, err error) {
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(snap))
}

func (h *Handler) getState(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	snap, err := h.dashboard.Snapshot(c.Request.Context(), id)
	h.respond(c, snap, err)
}

func (h *Handler) setSearch(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	var req struct {
		Term string `json:"term"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	snap, err := h.dashboard.SetSearch(c.Request.Context(), id, req.Term)
	h.respond(c, snap, err)
}

func (h *Handler) setFilters(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	var req struct {
		Species   string `json:"species"`
		Condition string `json:"condition"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	snap, err := h.dashboard.SetFilters(c.Request.Context(), id, req.Species, req.Condition)
	h.respond(c, snap, err)
}

func (h *Handler) setViewport(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	var req struct {
		Lat  *float64 `json:"lat" binding:"required"`
		Lng  *float64 `json:"lng" binding:"required"`
		Zoom int      `json:"zoom" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	snap, err := h.dashboard.SetViewport(c.Request.Context(), id, model.Viewport{
		Center: model.LatLng{Lat: *req.Lat, Lng: *req.Lng},
		Zoom:   req.Zoom,
	})
	h.respond(c, snap, err)
}

func (h *Handler) zoom(delta int) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := middleware.MustSessionID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
			return
		}

		snap, err := h.dashboard.Zoom(c.Request.Context(), id, delta)
		h.respond(c, snap, err)
	}
}

func (h *Handler) setTab(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	var req struct {
		Tab string `json:"tab" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	snap, err := h.dashboard.SetTab(c.Request.Context(), id, model.Tab(req.Tab))
	h.respond(c, snap, err)
}

func (h *Handler) setTheme(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	var req struct {
		Dark *bool `json:"dark" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	snap, err := h.dashboard.SetTheme(c.Request.Context(), id, *req.Dark)
	h.respond(c, snap, err)
}

func (h *Handler) setLayer(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	var req struct {
		Layer string `json:"layer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	snap, err := h.dashboard.SetBaseLayer(c.Request.Context(), id, model.Layer(req.Layer))
	h.respond(c, snap, err)
}

func (h *Handler) selectRecord(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	var req struct {
		ID *int64 `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	snap, err := h.dashboard.SelectRecord(c.Request.Context(), id, *req.ID)
	h.respond(c, snap, err)
}

func (h *Handler) clearSelection(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	snap, err := h.dashboard.ClearSelection(c.Request.Context(), id)
	h.respond(c, snap, err)
}

func (h *Handler) beginArea(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	snap, err := h.dashboard.BeginArea(c.Request.Context(), id)
	h.respond(c, snap, err)
}

func (h *Handler) addAreaVertex(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	var req struct {
		Lat *float64 `json:"lat" binding:"required"`
		Lng *float64 `json:"lng" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	snap, err := h.dashboard.AddAreaVertex(c.Request.Context(), id, model.LatLng{Lat: *req.Lat, Lng: *req.Lng})
	h.respond(c, snap, err)
}

func (h *Handler) commitArea(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	snap, err := h.dashboard.CommitArea(c.Request.Context(), id)
	h.respond(c, snap, err)
}

func (h *Handler) cancelArea(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	snap, err := h.dashboard.CancelArea(c.Request.Context(), id)
	h.respond(c, snap, err)
}

func (h *Handler) clearArea(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	snap, err := h.dashboard.ClearArea(c.Request.Context(), id)
	h.respond(c, snap, err)
}

func (h *Handler) getOptions(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	options, err := h.dashboard.Options(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(options))
}

func (h *Handler) listRecords(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	limit := service.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid limit"))
			return
		}
		limit = parsed
	}

	list, err := h.dashboard.Records(c.Request.Context(), id, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(list))
}

func (h *Handler) getRecord(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	recordID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid record id"))
		return
	}

	record, err := h.dashboard.Record(c.Request.Context(), id, recordID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(record))
}

func (h *Handler) getMap(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	view, err := h.dashboard.MapView(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(view))
}

func (h *Handler) getTable(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	var q table.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	page, err := h.dashboard.Table(c.Request.Context(), id, q)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(page))
}

func (h *Handler) getStats(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	summary, err := h.dashboard.Stats(c.Request.Context(), id, c.Query("scope"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(summary))
}

func (h *Handler) importFile(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImportBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse("file exceeds import size limit"))
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse("multipart field \"file\" is required"))
		return
	}

	file, err := header.Open()
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer file.Close()

	report, err := h.dashboard.Import(c.Request.Context(), id, file, header.Filename)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(report))
}

func (h *Handler) importSample(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	report, err := h.dashboard.LoadSample(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(report))
}

func (h *Handler) importRemote(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	report, err := h.dashboard.LoadRemote(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(report))
}

func (h *Handler) export(c *gin.Context) {
	id, ok := middleware.MustSessionID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing session"))
		return
	}

	format, err := importer.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	var buf bytes.Buffer
	filename, err := h.dashboard.Export(c.Request.Context(), id, &buf, format)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", filename, url.PathEscape(filename)))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrImportFailed):
		c.JSON(http.StatusUnprocessableEntity, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
