package reports

import (
	"errors"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/cleanupghent/cleanup-backend/internal/catalog"
	"github.com/cleanupghent/cleanup-backend/internal/config"
	"github.com/cleanupghent/cleanup-backend/internal/models"
	"github.com/cleanupghent/cleanup-backend/internal/services"
	"github.com/cleanupghent/cleanup-backend/internal/session"
	"github.com/cleanupghent/cleanup-backend/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handler struct {
	service *Service
	catalog *catalog.Registry
	cfg     *config.Config
}

func NewHandler(service *Service, registry *catalog.Registry, cfg *config.Config) *Handler {
	return &Handler{service: service, catalog: registry, cfg: cfg}
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": true, "message": message})
}

func (h *Handler) submitError(c *fiber.Ctx, err error) error {
	var rejection *services.ContentRejection
	switch {
	case errors.As(err, &rejection):
		return fail(c, fiber.StatusUnprocessableEntity, rejection.Message())
	case errors.Is(err, storage.ErrUnsupportedType):
		return fail(c, fiber.StatusUnsupportedMediaType, "Only JPEG, PNG, HEIC or WebP photos and MP4 or MOV videos are accepted")
	case errors.Is(err, storage.ErrFileTooLarge):
		return fail(c, fiber.StatusRequestEntityTooLarge, "File is too large")
	case errors.Is(err, ErrMediaRequired),
		errors.Is(err, ErrAfterImageRequired),
		errors.Is(err, ErrAfterImageNotImage),
		errors.Is(err, ErrLocationRequired),
		errors.Is(err, ErrInvalidCoordinates),
		errors.Is(err, ErrDescriptionTooLong):
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	return fail(c, fiber.StatusInternalServerError, "Failed to submit report")
}

func openUpload(fh *multipart.FileHeader) (*Upload, func(), error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &Upload{
		Body:        f,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
	}, func() { _ = f.Close() }, nil
}

func formFloat(c *fiber.Ctx, key string) (*float64, error) {
	raw := strings.TrimSpace(c.FormValue(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, ErrInvalidCoordinates
	}
	return &v, nil
}

// placeAtBin fills in coordinates when the reporter named a known bin
// instead of sending a GPS fix.
func (h *Handler) placeAtBin(in *SubmitInput) {
	if h.catalog == nil || in.Lat != nil || in.Long != nil || in.LocationName == "" {
		return
	}
	bin, ok := h.catalog.FindBin(in.LocationName)
	if !ok {
		return
	}
	lat, long := bin.Lat, bin.Long
	in.Lat, in.Long = &lat, &long
	in.LocationName = bin.LocationName
}

// Submit handles POST /reports (multipart/form-data).
func (h *Handler) Submit(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var in SubmitInput

	if fh, err := c.FormFile("media"); err == nil {
		upload, closeFn, err := openUpload(fh)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Failed to read media file")
		}
		defer closeFn()
		in.Media = upload
	}
	if fh, err := c.FormFile("after_image"); err == nil {
		upload, closeFn, err := openUpload(fh)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Failed to read after photo")
		}
		defer closeFn()
		in.AfterImage = upload
	}

	if in.Lat, err = formFloat(c, "lat"); err != nil {
		return h.submitError(c, err)
	}
	if in.Long, err = formFloat(c, "long"); err != nil {
		return h.submitError(c, err)
	}
	in.LocationName = strings.TrimSpace(c.FormValue("location_name"))
	in.Description = c.FormValue("description")
	h.placeAtBin(&in)

	report, err := h.service.Submit(c.UserContext(), userID, in)
	if err != nil {
		return h.submitError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}

func (h *Handler) ListMine(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	limit, offset := session.ClampPage(c.QueryInt("limit", 20), c.QueryInt("offset", 0), 100)

	reports, total, err := h.service.ListMine(c.UserContext(), userID, limit, offset)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load reports")
	}
	return c.JSON(fiber.Map{"data": reports, "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) canSeeAll(c *fiber.Ctx, userID uuid.UUID) bool {
	return session.GetRole(c) == models.RoleAdmin ||
		h.cfg.IsAdminEmail(session.GetEmail(c)) ||
		h.cfg.IsAdminUserID(userID.String())
}

// Get returns a report to its owner or to an admin. Anyone else gets 404.
func (h *Handler) Get(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid report ID")
	}

	report, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, ErrReportNotFound) {
			return fail(c, fiber.StatusNotFound, "Report not found")
		}
		return fail(c, fiber.StatusInternalServerError, "Failed to load report")
	}
	if report.UserID != userID && !h.canSeeAll(c, userID) {
		return fail(c, fiber.StatusNotFound, "Report not found")
	}
	return c.JSON(report)
}

func (h *Handler) Map(c *fiber.Ctx) error {
	var box *BoundingBox
	keys := []string{"min_lat", "min_long", "max_lat", "max_long"}
	present := 0
	values := make([]float64, len(keys))
	for i, k := range keys {
		raw := c.Query(k)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Invalid bounding box")
		}
		values[i] = v
		present++
	}
	switch present {
	case 0:
	case len(keys):
		box = &BoundingBox{MinLat: values[0], MinLong: values[1], MaxLat: values[2], MaxLong: values[3]}
	default:
		return fail(c, fiber.StatusBadRequest, "Bounding box needs min_lat, min_long, max_lat and max_long")
	}

	reports, err := h.service.MapReports(c.UserContext(), box)
	if err != nil {
		if errors.Is(err, ErrInvalidBoundingBox) {
			return fail(c, fiber.StatusBadRequest, "Invalid bounding box")
		}
		return fail(c, fiber.StatusInternalServerError, "Failed to load map reports")
	}
	return c.JSON(fiber.Map{"data": reports})
}

func (h *Handler) Bins(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.catalog.Bins()})
}

// --- Admin handlers ---

func (h *Handler) AdminList(c *fiber.Ctx) error {
	status := c.Query("status")
	switch status {
	case "", StatusPending, StatusVerified, StatusRejected:
	default:
		return fail(c, fiber.StatusBadRequest, "Invalid status filter")
	}
	limit, offset := session.ClampPage(c.QueryInt("limit", 50), c.QueryInt("offset", 0), 100)

	reports, total, err := h.service.ListAll(c.UserContext(), status, limit, offset)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "Failed to load reports")
	}
	return c.JSON(fiber.Map{"data": reports, "total": total, "limit": limit, "offset": offset})
}

func (h *Handler) Review(c *fiber.Ctx) error {
	adminID, err := session.GetUserID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid report ID")
	}

	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	report, err := h.service.Review(c.UserContext(), adminID, id, strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidReviewStatus):
			return fail(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, ErrReportNotFound):
			return fail(c, fiber.StatusNotFound, "Report not found")
		case errors.Is(err, ErrReportAlreadyReviewed):
			return fail(c, fiber.StatusConflict, err.Error())
		}
		return fail(c, fiber.StatusInternalServerError, "Failed to review report")
	}
	return c.JSON(ReviewResponse{Report: *report, PointsAwarded: report.PointsAwarded})
}
