package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jo-hoe/formulastore/internal/core"
	"github.com/labstack/echo/v4"
)

const mimePNG = "image/png"

var (
	errMissingBody  = errors.New("no data provided")
	errBodyTooLarge = errors.New("request body too large")
)

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
	// shutdown asks the host process to stop; nil disables the endpoint
	shutdown func()
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService, shutdown func()) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
		shutdown:    shutdown,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", s.probeHandler)

	e.GET("/api/formulas", s.listFormulasHandler)
	e.POST("/api/formulas", s.saveFormulasHandler)

	e.POST("/api/image/save", s.saveImageHandler)
	e.GET("/api/image/load", s.loadImageHandler)
	e.DELETE("/api/image", s.clearImageHandler)
	e.GET("/api/image/preview", s.previewImageHandler)

	if s.config.AllowShutdown && s.shutdown != nil {
		e.POST("/shutdown", s.shutdownHandler)
	}
}

func (s *APIService) probeHandler(ctx echo.Context) error {
	if !s.coreService.Healthy(ctx.Request().Context()) {
		return ctx.String(http.StatusServiceUnavailable, "storage backend unreachable")
	}
	return ctx.String(http.StatusOK, "API Service is running")
}

func (s *APIService) listFormulasHandler(ctx echo.Context) error {
	lists, err := s.coreService.Formulas().ListFormulas(ctx.Request().Context())
	if err != nil {
		slog.Error("listFormulasHandler: failed to list formulas",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return ctx.JSON(http.StatusOK, FormulasResponse{
		Products:  lists.Products,
		Reactants: lists.Reactants,
	})
}

func (s *APIService) saveFormulasHandler(ctx echo.Context) error {
	var request *SaveFormulasRequest
	if err := decodeJSONBody(ctx, &request); err != nil || request == nil {
		status := bodyErrorStatus(err)
		slog.Warn("saveFormulasHandler: rejected request body",
			"status", status, "error", err)
		return s.statusError(ctx, status, bodyErrorMessage(err))
	}

	product := ""
	if request.Product != nil {
		product = *request.Product
	}
	reactants := make([]string, 0, len(request.Reactants))
	for _, reactant := range request.Reactants {
		if reactant != nil {
			reactants = append(reactants, *reactant)
		}
	}

	outcome, err := s.coreService.Formulas().SaveFormulas(ctx.Request().Context(), product, reactants)
	if err != nil {
		slog.Error("saveFormulasHandler: failed to save formulas",
			"status", http.StatusInternalServerError, "error", err)
		return s.statusError(ctx, http.StatusInternalServerError, err.Error())
	}

	slog.Info("formulas saved", "inserted", outcome.Inserted())
	return ctx.JSON(http.StatusCreated, StatusResponse{Status: statusSuccess})
}

func (s *APIService) saveImageHandler(ctx echo.Context) error {
	var request *SaveImageRequest
	if err := decodeJSONBody(ctx, &request); err != nil || request == nil {
		status := bodyErrorStatus(err)
		slog.Warn("saveImageHandler: rejected request body",
			"status", status, "error", err)
		if status == http.StatusRequestEntityTooLarge {
			return s.statusError(ctx, status, bodyErrorMessage(err))
		}
		return s.statusError(ctx, http.StatusBadRequest, "No image data provided")
	}
	if err := ctx.Validate(request); err != nil {
		slog.Warn("saveImageHandler: missing image data",
			"status", http.StatusBadRequest, "error", err)
		return s.statusError(ctx, http.StatusBadRequest, "No image data provided")
	}

	err := s.coreService.Images().SaveImage(ctx.Request().Context(), request.ImageData)
	if errors.Is(err, core.ErrValidation) {
		return s.statusError(ctx, http.StatusBadRequest, "No image data provided")
	}
	if err != nil {
		slog.Error("saveImageHandler: failed to save image",
			"status", http.StatusInternalServerError, "error", err)
		return s.statusError(ctx, http.StatusInternalServerError, err.Error())
	}

	return ctx.JSON(http.StatusCreated, StatusResponse{Status: statusSuccess})
}

func (s *APIService) loadImageHandler(ctx echo.Context) error {
	imageData, err := s.coreService.Images().LoadImage(ctx.Request().Context())
	if errors.Is(err, core.ErrNotFound) {
		return ctx.JSON(http.StatusNotFound, ImageResponse{ImageData: nil})
	}
	if err != nil {
		slog.Error("loadImageHandler: failed to load image",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}

	s.setNoCache(ctx)
	return ctx.JSON(http.StatusOK, ImageResponse{ImageData: &imageData})
}

func (s *APIService) clearImageHandler(ctx echo.Context) error {
	if err := s.coreService.Images().ClearImage(ctx.Request().Context()); err != nil {
		slog.Error("clearImageHandler: failed to clear image",
			"status", http.StatusInternalServerError, "error", err)
		return s.statusError(ctx, http.StatusInternalServerError, err.Error())
	}
	return ctx.JSON(http.StatusOK, StatusResponse{Status: statusSuccess})
}

func (s *APIService) previewImageHandler(ctx echo.Context) error {
	width := 0
	if raw := strings.TrimSpace(ctx.QueryParam("width")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return s.statusError(ctx, http.StatusBadRequest, fmt.Sprintf("invalid width %q", raw))
		}
		width = parsed
	}

	preview, err := s.coreService.Images().PreviewImage(ctx.Request().Context(), width)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return ctx.JSON(http.StatusNotFound, ErrorResponse{Error: "no image saved"})
	case errors.Is(err, core.ErrValidation):
		return s.statusError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrUnsupportedImage):
		slog.Warn("previewImageHandler: stored image cannot be rendered",
			"status", http.StatusUnsupportedMediaType, "error", err)
		return ctx.JSON(http.StatusUnsupportedMediaType, ErrorResponse{Error: err.Error()})
	case err != nil:
		slog.Error("previewImageHandler: failed to render preview",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}

	s.setNoCache(ctx)
	return ctx.Blob(http.StatusOK, mimePNG, preview)
}

func (s *APIService) shutdownHandler(ctx echo.Context) error {
	slog.Info("shutdown requested", "remote_ip", ctx.RealIP())
	if err := ctx.NoContent(http.StatusAccepted); err != nil {
		return err
	}
	s.shutdown()
	return nil
}

func (s *APIService) statusError(ctx echo.Context, status int, message string) error {
	return ctx.JSON(status, StatusResponse{Status: statusError, Message: message})
}

func (s *APIService) setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

// decodeJSONBody decodes a JSON request body into target. A body that is absent,
// blank or not declared as JSON yields errMissingBody, one cut off by the body limit
// errBodyTooLarge.
func decodeJSONBody(ctx echo.Context, target any) error {
	request := ctx.Request()
	if !strings.HasPrefix(request.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return errMissingBody
	}

	body, err := io.ReadAll(request.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) || errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return fmt.Errorf("%w: %v", errBodyTooLarge, err)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return errMissingBody
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func bodyErrorMessage(err error) string {
	switch {
	case err == nil || errors.Is(err, errMissingBody):
		return "No data provided"
	case errors.Is(err, errBodyTooLarge):
		return "Request body too large"
	}
	return err.Error()
}

func bodyErrorStatus(err error) int {
	if errors.Is(err, errBodyTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
