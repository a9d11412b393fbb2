package api

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"weodash/internal/charts"
	"weodash/internal/engine"
	"weodash/internal/models"
	"weodash/internal/session"
)

const exportName = "weo_filtered_data"

type Handler struct {
	sessions *session.Registry
	vintages engine.VintageRule
}

func NewHandler(sessions *session.Registry, vintages engine.VintageRule) *Handler {
	return &Handler{sessions: sessions, vintages: vintages}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.POST("/sessions", h.CreateSession)

	s := api.Group("/sessions/:id")
	s.DELETE("", h.DeleteSession)
	s.GET("/options", h.GetOptions)
	s.GET("/selection", h.GetSelection)
	s.PUT("/selection", h.PutSelection)
	s.GET("/view", h.GetView)
	s.GET("/export.csv", h.ExportCSV)
	s.GET("/export.arrow", h.ExportArrow)
	s.GET("/pairs", h.GetPairs)
	s.GET("/series", h.GetSeries)
	s.GET("/groups", h.GetGroups)
	s.GET("/charts/line.png", h.LineChart)
	s.GET("/charts/bar.png", h.BarChart)
	s.GET("/charts/scatter.png", h.ScatterChart)
}

// --- HELPERS ---

func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// httpError maps domain errors onto status codes; anything else is a 500.
func httpError(err error) error {
	var re *engine.InvalidRangeError
	if errors.As(err, &re) {
		return echo.NewHTTPError(http.StatusBadRequest, re.Error()).SetInternal(err)
	}
	var le *engine.LoadError
	if errors.As(err, &le) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, le.Error()).SetInternal(err)
	}
	return err
}

func (h *Handler) session(c echo.Context) (*session.Session, error) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}
	return s, nil
}

var filterParams = []string{"country", "region", "income_group", "year_min", "year_max", "indicator"}

func hasFilterParams(q url.Values) bool {
	for _, p := range filterParams {
		if _, ok := q[p]; ok {
			return true
		}
	}
	return false
}

func parseYear(q url.Values, key string, def int) (int, error) {
	s := q.Get(key)
	if s == "" {
		return def, nil
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid %s %q", key, s))
	}
	return y, nil
}

// selection reads the filters from the query string. A single year bound
// leaves the other side open.
func selection(c echo.Context) (models.FilterSelection, error) {
	q := c.QueryParams()
	sel := models.FilterSelection{
		Countries:    q["country"],
		Regions:      q["region"],
		IncomeGroups: q["income_group"],
		Indicator:    q.Get("indicator"),
	}
	if q.Get("year_min") != "" || q.Get("year_max") != "" {
		lo, err := parseYear(q, "year_min", math.MinInt)
		if err != nil {
			return sel, err
		}
		hi, err := parseYear(q, "year_max", math.MaxInt)
		if err != nil {
			return sel, err
		}
		sel.YearRange = &models.YearRange{Min: lo, Max: hi}
	}
	return sel, nil
}

func (h *Handler) view(c echo.Context) (engine.View, models.FilterSelection, error) {
	s, err := h.session(c)
	if err != nil {
		return nil, models.FilterSelection{}, err
	}
	if !hasFilterParams(c.QueryParams()) {
		v, sel, err := s.CurrentView()
		if err != nil {
			return nil, sel, httpError(err)
		}
		return v, sel, nil
	}
	sel, err := selection(c)
	if err != nil {
		return nil, sel, err
	}
	v, err := s.View(sel)
	if err != nil {
		return nil, sel, httpError(err)
	}
	return v, sel, nil
}

// kindView is view narrowed by ?kind=forecast|actual, classified with the
// configured vintage rule. Without kind every vintage is kept.
func (h *Handler) kindView(c echo.Context) (engine.View, models.FilterSelection, engine.VintageKind, error) {
	kind, err := engine.ParseVintageKind(c.QueryParam("kind"))
	if err != nil {
		return nil, models.FilterSelection{}, kind, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, sel, err := h.view(c)
	if err != nil {
		return nil, sel, kind, err
	}
	return engine.OnlyKind(v, h.vintages, kind), sel, kind, nil
}

func onlyYear(v engine.View, year int) engine.View {
	out := make(engine.View, 0, len(v))
	for _, r := range v {
		if r.Year == year {
			out = append(out, r)
		}
	}
	return out
}

// optionalYear returns the "year" parameter, or the earliest year of v.
func optionalYear(c echo.Context, v engine.View) (int, bool, error) {
	if s := c.QueryParam("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			return 0, false, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid year %q", s))
		}
		return y, true, nil
	}
	years := engine.Years(v)
	if len(years) == 0 {
		return 0, false, nil
	}
	return years[0], true, nil
}

func indicatorLabel(sel models.FilterSelection, kind engine.VintageKind) string {
	label := sel.Indicator
	if label == "" {
		label = "all indicators"
	}
	if kind != engine.VintageOther {
		label += " (" + kind.String() + ")"
	}
	return label
}

func renderPNG(c echo.Context, render func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		if errors.Is(err, charts.ErrNoData) {
			return c.NoContent(http.StatusNoContent)
		}
		return err
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

// --- HANDLERS ---

type sessionInfo struct {
	ID      string         `json:"id"`
	Created time.Time      `json:"created"`
	Records int            `json:"records"`
	Options models.Options `json:"options"`
}

func (h *Handler) CreateSession(c echo.Context) error {
	s, err := h.sessions.Create(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, sessionInfo{
		ID:      s.ID,
		Created: s.Created,
		Records: s.Table().Len(),
		Options: s.Table().Options(),
	})
}

func (h *Handler) DeleteSession(c echo.Context) error {
	if !h.sessions.Delete(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "unknown session")
	}
	return c.NoContent(http.StatusNoContent)
}

// GetOptions lists filter values; ?q= narrows the countries by fuzzy match.
func (h *Handler) GetOptions(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	opts := s.Table().Options()
	if q := c.QueryParam("q"); q != "" {
		opts.Countries = fuzzy.FindFold(q, opts.Countries)
		if opts.Countries == nil {
			opts.Countries = []string{}
		}
	}
	return c.JSON(http.StatusOK, opts)
}

func (h *Handler) GetSelection(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Selection())
}

func (h *Handler) PutSelection(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var sel models.FilterSelection
	if err := c.Bind(&sel); err != nil {
		return err
	}
	if err := s.Select(sel); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s.Selection())
}

// GetView returns the filtered records, paginated. ?sort=table orders them
// by country and year like the data table.
func (h *Handler) GetView(c echo.Context) error {
	v, _, _, err := h.kindView(c)
	if err != nil {
		return err
	}
	if c.QueryParam("sort") == "table" {
		v = engine.SortForTable(v)
	}

	total := len(v)
	limit, offset := getPaginationParams(c, total)
	if offset > total {
		offset = total
	}
	// limit may be anything up to MaxInt; clamp before adding
	if limit > total-offset {
		limit = total - offset
	}
	end := offset + limit

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   v[offset:end],
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handler) ExportCSV(c echo.Context) error {
	v, _, _, err := h.kindView(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := engine.WriteCSV(&buf, v); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+exportName+`.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handler) ExportArrow(c echo.Context) error {
	v, _, _, err := h.kindView(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := engine.WriteArrow(&buf, v); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+exportName+`.arrow"`)
	return c.Blob(http.StatusOK, "application/vnd.apache.arrow.stream", buf.Bytes())
}

func (h *Handler) GetPairs(c echo.Context) error {
	axis, err := engine.ParseAxis(c.QueryParam("axis"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, _, err := h.view(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.PivotForComparison(v, axis, h.vintages))
}

func (h *Handler) GetSeries(c echo.Context) error {
	v, _, _, err := h.kindView(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, engine.LineSeries(v))
}

func (h *Handler) GetGroups(c echo.Context) error {
	by, err := engine.ParseGroupBy(c.QueryParam("group_by"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, _, _, err := h.kindView(c)
	if err != nil {
		return err
	}
	year, ok, err := optionalYear(c, v)
	if err != nil {
		return err
	}
	if !ok {
		return c.JSON(http.StatusOK, []models.GroupMean{})
	}
	return c.JSON(http.StatusOK, engine.GroupMeans(v, year, by))
}

func (h *Handler) LineChart(c echo.Context) error {
	v, sel, kind, err := h.kindView(c)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("Evolution of %s over time", indicatorLabel(sel, kind))
	return renderPNG(c, func(buf *bytes.Buffer) error {
		return charts.Line(buf, title, engine.LineSeries(v))
	})
}

func (h *Handler) BarChart(c echo.Context) error {
	by, err := engine.ParseGroupBy(c.QueryParam("group_by"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, sel, kind, err := h.kindView(c)
	if err != nil {
		return err
	}
	year, ok, err := optionalYear(c, v)
	if err != nil {
		return err
	}
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}
	title := fmt.Sprintf("Mean %s by %s in %d", indicatorLabel(sel, kind), by, year)
	return renderPNG(c, func(buf *bytes.Buffer) error {
		return charts.Bar(buf, title, engine.GroupMeans(v, year, by))
	})
}

// ScatterChart plots forecasts against realized values; ?year= restricts it
// to one year as the dashboard does.
func (h *Handler) ScatterChart(c echo.Context) error {
	axis, err := engine.ParseAxis(c.QueryParam("axis"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if c.QueryParam("axis") == "" {
		axis = engine.AxisCountry
	}
	v, sel, err := h.view(c)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("Forecast vs. realized - %s", indicatorLabel(sel, engine.VintageOther))
	if s := c.QueryParam("year"); s != "" {
		year, err := strconv.Atoi(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid year %q", s))
		}
		v = onlyYear(v, year)
		title = fmt.Sprintf("%s in %d", title, year)
	}
	return renderPNG(c, func(buf *bytes.Buffer) error {
		return charts.Scatter(buf, title, engine.PivotForComparison(v, axis, h.vintages))
	})
}
