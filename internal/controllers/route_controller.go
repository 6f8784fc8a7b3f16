package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"drive_mapping/internal/middleware"
	"drive_mapping/internal/services"
)

type RouteController struct {
	routes         *services.RouteService
	likes          *services.LikeService
	browse         *services.BrowseService
	maxUploadBytes int64
}

func NewRouteController(routes *services.RouteService, likes *services.LikeService, browse *services.BrowseService, maxUploadBytes int64) *RouteController {
	return &RouteController{routes: routes, likes: likes, browse: browse, maxUploadBytes: maxUploadBytes}
}

// SubmitRoute handles POST /routes. A non-empty id field turns the
// submission into an update of that route.
func (rc *RouteController) SubmitRoute(c *gin.Context) {
	var routeID uint
	if raw := strings.TrimSpace(c.PostForm("id")); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			c.String(http.StatusBadRequest, "invalid id")
			return
		}
		routeID = id
	}
	rc.submit(c, routeID)
}

// UpdateRoute handles POST /routes/:id.
func (rc *RouteController) UpdateRoute(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.String(http.StatusBadRequest, "invalid id")
		return
	}
	rc.submit(c, id)
}

func (rc *RouteController) submit(c *gin.Context, routeID uint) {
	req := services.SubmitRequest{
		RouteID: routeID,
		UserID:  middleware.CurrentUserID(c),
		Form:    parseRouteForm(c),
	}

	if form, err := c.MultipartForm(); err == nil {
		files := form.File["photos[]"]
		if len(files) == 0 {
			files = form.File["photos"]
		}
		req.Uploads = services.SlotsFromMultipart(files, rc.maxUploadBytes)
	} else if !errors.Is(err, http.ErrNotMultipart) {
		middleware.Log(c).WithError(err).Warn("SubmitRoute: could not parse multipart body")
		c.String(http.StatusBadRequest, "%s", failurePrefix(routeID)+services.ErrUploadTransport.Error())
		return
	}

	id, err := rc.routes.Submit(c.Request.Context(), req)
	if err != nil {
		rc.respondSubmitError(c, routeID, err)
		return
	}

	middleware.Log(c).WithField("route_id", id).Info("SubmitRoute: route saved")
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/routes/%d", id))
}

func (rc *RouteController) respondSubmitError(c *gin.Context, routeID uint, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.String(http.StatusBadRequest, "%s", verr.Error())
	case errors.Is(err, services.ErrNotFound):
		c.String(http.StatusNotFound, "%s", err.Error())
	case errors.Is(err, services.ErrForbidden):
		c.String(http.StatusForbidden, "%s", err.Error())
	default:
		middleware.Log(c).WithError(err).Warn("SubmitRoute: submission failed")
		c.String(http.StatusBadRequest, "%s", failurePrefix(routeID)+err.Error())
	}
}

func failurePrefix(routeID uint) string {
	if routeID == 0 {
		return "create failed: "
	}
	return "update failed: "
}

// DeleteRoute handles POST /routes/:id/delete.
func (rc *RouteController) DeleteRoute(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.String(http.StatusBadRequest, "invalid id")
		return
	}

	err := rc.routes.Delete(c.Request.Context(), id, middleware.CurrentUserID(c))
	switch {
	case err == nil:
		middleware.Log(c).WithField("route_id", id).Info("DeleteRoute: route deleted")
		c.Redirect(http.StatusSeeOther, "/routes")
	case errors.Is(err, services.ErrNotFound):
		c.String(http.StatusNotFound, "%s", err.Error())
	case errors.Is(err, services.ErrForbidden):
		c.String(http.StatusForbidden, "%s", err.Error())
	default:
		middleware.Log(c).WithError(err).Error("DeleteRoute: delete failed")
		c.String(http.StatusInternalServerError, "delete failed")
	}
}

// ToggleLike handles POST /routes/:id/like and sends the browser back to
// where it came from.
func (rc *RouteController) ToggleLike(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.String(http.StatusBadRequest, "invalid id")
		return
	}

	liked, err := rc.likes.Toggle(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.String(http.StatusNotFound, "%s", err.Error())
			return
		}
		middleware.Log(c).WithError(err).Error("ToggleLike: toggle failed")
		c.String(http.StatusInternalServerError, "like failed")
		return
	}

	middleware.Log(c).WithFields(logrus.Fields{"route_id": id, "liked": liked}).Debug("ToggleLike")
	c.Redirect(http.StatusSeeOther, sameSiteReferer(c, fmt.Sprintf("/routes/%d", id)))
}

// sameSiteReferer returns the path of the Referer when it points at this
// host, and fallback otherwise.
func sameSiteReferer(c *gin.Context, fallback string) string {
	ref, err := url.Parse(c.GetHeader("Referer"))
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") {
		return fallback
	}
	if ref.Host != "" && ref.Host != c.Request.Host {
		return fallback
	}
	return ref.RequestURI()
}

// GetRoute handles GET /routes/:id.
func (rc *RouteController) GetRoute(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	detail, err := rc.browse.Get(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		middleware.Log(c).WithError(err).Error("GetRoute: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load route"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}

// ListRoutes handles GET /routes?q=&pref=.
func (rc *RouteController) ListRoutes(c *gin.Context) {
	rc.list(c, listFilter(c))
}

// ListFavorites handles GET /favorites for the current user.
func (rc *RouteController) ListFavorites(c *gin.Context) {
	f := listFilter(c)
	f.LikedBy = middleware.CurrentUserID(c)
	rc.list(c, f)
}

func (rc *RouteController) list(c *gin.Context, f services.ListFilter) {
	routes, err := rc.browse.List(c.Request.Context(), f)
	if err != nil {
		middleware.Log(c).WithError(err).Error("ListRoutes: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list routes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": routes})
}

// ListPrefectures handles GET /prefectures.
func (rc *RouteController) ListPrefectures(c *gin.Context) {
	counts, err := rc.browse.PrefectureCounts(c.Request.Context())
	if err != nil {
		middleware.Log(c).WithError(err).Error("ListPrefectures: query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not count routes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": counts})
}

func listFilter(c *gin.Context) services.ListFilter {
	f := services.ListFilter{Query: c.Query("q")}
	if pref, err := strconv.Atoi(c.Query("pref")); err == nil && pref > 0 {
		f.Prefecture = pref
	}
	return f
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
